// Package pipeline turns syllabus PDFs into objective artifacts: one parser
// per document and a coordinator that fans documents out over a worker pool.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/a3tai/syllabus-extractor/internal/pdf"
	pdferrors "github.com/a3tai/syllabus-extractor/internal/pdf/errors"
	"github.com/a3tai/syllabus-extractor/internal/pdf/layout"
	"github.com/a3tai/syllabus-extractor/internal/syllabus"
)

// DefaultMaxFileSize bounds the size of a source PDF.
const DefaultMaxFileSize = 100 * 1024 * 1024

// Status is the outcome of parsing one document.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Result is the outcome of one document. Objectives is empty for failures.
type Result struct {
	Filename      string
	Path          string
	ArtifactPath  string
	Objectives    []syllabus.Objective
	Status        Status
	Err           error
	SourceDigest  string
	SourceModTime time.Time
	Duration      time.Duration
}

// Count returns the number of objectives in the result.
func (r Result) Count() int {
	return len(r.Objectives)
}

// Parser extracts the objectives of a single document and persists its
// artifact. It holds no per-document state and is safe for concurrent use.
type Parser struct {
	outputDir   string
	maxFileSize int64
	cacheMode   CacheMode
	digests     DigestLookup
	extractor   *syllabus.PageExtractor
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithCacheMode selects the incremental skip policy.
func WithCacheMode(mode CacheMode) Option {
	return func(p *Parser) { p.cacheMode = mode }
}

// WithDigestLookup supplies recorded source digests for CacheByContent.
func WithDigestLookup(lookup DigestLookup) Option {
	return func(p *Parser) { p.digests = lookup }
}

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(p *Parser) { p.maxFileSize = n }
}

// WithStrategies overrides the table strategies tried on each page.
func WithStrategies(strategies ...layout.Strategy) Option {
	return func(p *Parser) { p.extractor = syllabus.NewPageExtractor(strategies...) }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// WithClock overrides the clock used for extraction timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// NewParser creates a parser writing artifacts into outputDir.
func NewParser(outputDir string, opts ...Option) *Parser {
	p := &Parser{
		outputDir:   outputDir,
		maxFileSize: DefaultMaxFileSize,
		cacheMode:   CacheByModTime,
		extractor:   syllabus.NewPageExtractor(),
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OutputDir returns the directory artifacts are written to.
func (p *Parser) OutputDir() string {
	return p.outputDir
}

// Parse processes the document at path. Unless force is set, a document
// whose artifact is up to date is skipped and its artifact reloaded.
// Parse never panics and never returns an error: failures are reported in
// the result with StatusFailed.
func (p *Parser) Parse(ctx context.Context, path string, force bool) (result Result) {
	start := time.Now()
	result = Result{
		Filename:     filepath.Base(path),
		Path:         path,
		ArtifactPath: ArtifactPath(p.outputDir, path),
	}
	defer func() {
		result.Duration = time.Since(start)
	}()

	err := pdferrors.Guard(pdferrors.ErrorTypeDocumentRead, func() error {
		return p.parse(ctx, &result, force)
	})
	if err != nil {
		p.logger.Error("Error processing document",
			zap.String("file", result.Filename),
			zap.Error(err),
		)
		result.Status = StatusFailed
		result.Objectives = []syllabus.Objective{}
		result.Err = err
	}
	return result
}

func (p *Parser) parse(ctx context.Context, result *Result, force bool) error {
	info, err := os.Stat(result.Path)
	if err != nil {
		return pdferrors.Wrap(pdferrors.ErrorTypeDocumentRead, err).WithFile(result.Filename)
	}
	result.SourceModTime = info.ModTime()

	if digest, err := FileDigest(result.Path); err == nil {
		result.SourceDigest = digest
	} else {
		p.logger.Warn("Could not digest source", zap.String("file", result.Filename), zap.Error(err))
	}

	if !force && p.upToDate(ctx, result, info) {
		objectives, err := ReadArtifact(result.ArtifactPath)
		if err == nil {
			p.logger.Info("Skipping (up to date)",
				zap.String("file", result.Filename),
				zap.Int("objectives", len(objectives)),
			)
			result.Objectives = objectives
			result.Status = StatusSkipped
			return nil
		}
		p.logger.Warn("Cached artifact unreadable, reparsing",
			zap.String("file", result.Filename),
			zap.Error(pdferrors.Wrap(pdferrors.ErrorTypeCacheRead, err)),
		)
	}

	p.logger.Info("Processing", zap.String("file", result.Filename))
	objectives, err := p.Extract(result.Path)
	if err != nil {
		return err
	}

	if err := WriteJSON(result.ArtifactPath, objectives); err != nil {
		return pdferrors.Wrap(pdferrors.ErrorTypeArtifactWrite, err).WithFile(result.Filename)
	}

	result.Objectives = objectives
	result.Status = StatusProcessed
	return nil
}

// Extract reads every page of the document at path and returns its
// deduplicated, numbered objectives without touching the output directory.
// Pages that fail to load are skipped.
func (p *Parser) Extract(path string) ([]syllabus.Objective, error) {
	filename := filepath.Base(path)

	doc, err := pdf.Open(path, p.maxFileSize)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if !doc.HasContentStreams() {
		p.logger.Debug("Content streams unavailable, using text layer rectangles", zap.String("file", filename))
	}

	state := syllabus.NewState()
	var candidates []syllabus.Objective
	for n := 1; n <= doc.NumPages(); n++ {
		page, err := doc.Page(n)
		if err != nil {
			p.logger.Warn("Skipping page", zap.String("file", filename), zap.Int("page", n), zap.Error(err))
			continue
		}

		var found []syllabus.Objective
		err = pdferrors.Guard(pdferrors.ErrorTypePageExtraction, func() error {
			found, state = p.extractor.Extract(page, filename, state)
			return nil
		})
		if err != nil {
			p.logger.Warn("Skipping page", zap.String("file", filename), zap.Int("page", n), zap.Error(err))
			continue
		}
		candidates = append(candidates, found...)
	}

	objectives := Dedup(candidates)
	AssignIDs(objectives, SubjectPrefix(filename))

	stamp := p.now().Format(time.RFC3339)
	for i := range objectives {
		objectives[i].ExtractionDate = stamp
		objectives[i] = objectives[i].Normalized()
		if err := objectives[i].Validate(); err != nil {
			return nil, pdferrors.Wrap(pdferrors.ErrorTypeArtifactWrite, fmt.Errorf("invalid record: %w", err)).WithFile(filename)
		}
	}
	return objectives, nil
}
