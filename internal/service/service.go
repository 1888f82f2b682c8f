// Package service exposes extraction, batch runs and objective queries to the
// MCP and HTTP surfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/a3tai/syllabus-extractor/internal/manifest"
	"github.com/a3tai/syllabus-extractor/internal/pdf"
	pdferrors "github.com/a3tai/syllabus-extractor/internal/pdf/errors"
	"github.com/a3tai/syllabus-extractor/internal/pdf/security"
	"github.com/a3tai/syllabus-extractor/internal/pipeline"
	"github.com/a3tai/syllabus-extractor/internal/syllabus"
)

const (
	// DefaultQueryLimit caps query results when the caller gives no limit.
	DefaultQueryLimit = 50
	// MaxQueryLimit is the largest accepted query limit.
	MaxQueryLimit = 500
)

// ErrNoResults is returned by queries before any batch has written output.
var ErrNoResults = errors.New("no batch output yet: run a batch first")

// History is the processing manifest as seen by the service: recorded runs
// and documents, plus single-document outcomes.
type History interface {
	Runs(ctx context.Context, limit int) ([]manifest.Run, error)
	Documents(ctx context.Context) ([]manifest.Document, error)
	RecordDocument(ctx context.Context, result pipeline.Result) error
}

// DocumentInfo describes one PDF in the input directory.
type DocumentInfo struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"modified"`
	HasArtifact bool      `json:"has_artifact"`
	Status      string    `json:"status,omitempty"`
	Objectives  int       `json:"objectives"`
	LastError   string    `json:"last_error,omitempty"`
}

// Query filters the combined objectives. Zero values match everything.
type Query struct {
	Section    string
	Difficulty int
	Skill      string
	Text       string
	SourceFile string
	Limit      int
}

// QueryResult is a page of matching objectives.
type QueryResult struct {
	Total      int                  `json:"total"`
	Returned   int                  `json:"returned"`
	Objectives []syllabus.Objective `json:"objectives"`
}

// Service ties the input directory, the pipeline and the manifest together.
// Batch runs and single-file extractions are serialized.
type Service struct {
	inputDir    string
	paths       *security.PathValidator
	coordinator *pipeline.Coordinator
	history     History
	logger      *zap.Logger
	mu          sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithHistory attaches the processing manifest.
func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a service over inputDir.
func New(inputDir string, coordinator *pipeline.Coordinator, opts ...Option) (*Service, error) {
	if coordinator == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}
	paths, err := security.NewPathValidator(inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	s := &Service{
		inputDir:    paths.Root(),
		paths:       paths,
		coordinator: coordinator,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// InputDir returns the absolute input directory.
func (s *Service) InputDir() string {
	return s.inputDir
}

// OutputDir returns the artifact directory.
func (s *Service) OutputDir() string {
	return s.coordinator.Parser().OutputDir()
}

// ListDocuments lists the PDFs in the input directory together with their
// artifact and manifest state.
func (s *Service) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	files, err := pdf.Discover(s.inputDir)
	if err != nil {
		return nil, err
	}

	recorded := map[string]manifest.Document{}
	if s.history != nil {
		docs, err := s.history.Documents(ctx)
		if err != nil {
			s.logger.Warn("Manifest unavailable", zap.Error(err))
		}
		for _, d := range docs {
			recorded[d.Filename] = d
		}
	}

	infos := make([]DocumentInfo, 0, len(files))
	for _, path := range files {
		info := DocumentInfo{Name: filepath.Base(path), Path: path}
		if fi, err := os.Stat(path); err == nil {
			info.Size = fi.Size()
			info.ModTime = fi.ModTime()
		}
		if _, err := os.Stat(pipeline.ArtifactPath(s.OutputDir(), path)); err == nil {
			info.HasArtifact = true
		}
		if d, ok := recorded[info.Name]; ok {
			info.Status = d.Status
			info.Objectives = d.ObjectiveCount
			info.LastError = d.Error
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// ExtractFile parses one document of the input directory, named relative to
// it, and writes its artifact. The combined artifact is left untouched.
func (s *Service) ExtractFile(ctx context.Context, name string, force bool) (*pipeline.Result, error) {
	path, err := s.paths.Resolve(name)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.OutputDir(), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	if collision, ok := s.artifactCollision(path); ok {
		return &collision, collision.Err
	}

	result := s.coordinator.Parser().Parse(ctx, path, force)
	if s.history != nil {
		if err := s.history.RecordDocument(ctx, result); err != nil {
			s.logger.Warn("Failed to record document in manifest",
				zap.String("file", result.Filename),
				zap.Error(pdferrors.Wrap(pdferrors.ErrorTypeManifest, err)),
			)
		}
	}
	if result.Status == pipeline.StatusFailed {
		return &result, result.Err
	}
	return &result, nil
}

// artifactCollision reports whether another document of path's directory
// owns the artifact path would be written to.
func (s *Service) artifactCollision(path string) (pipeline.Result, bool) {
	files, err := pdf.Discover(filepath.Dir(path))
	if err != nil {
		return pipeline.Result{}, false
	}
	_, collisions := pipeline.PartitionArtifacts(s.OutputDir(), files)
	for _, c := range collisions {
		if c.Path == path {
			return c, true
		}
	}
	return pipeline.Result{}, false
}

// RunBatch processes the whole input directory.
func (s *Service) RunBatch(ctx context.Context, force bool) (*pipeline.BatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinator.Run(ctx, s.inputDir, force)
}

// LatestSummary returns the summary written by the last batch.
func (s *Service) LatestSummary(_ context.Context) (*pipeline.Summary, error) {
	summary, err := pipeline.ReadSummary(s.OutputDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoResults
	}
	return summary, err
}

// Runs returns recent runs from the manifest, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]manifest.Run, error) {
	if s.history == nil {
		return []manifest.Run{}, nil
	}
	return s.history.Runs(ctx, limit)
}

// QueryObjectives filters the combined artifact of the last batch.
func (s *Service) QueryObjectives(_ context.Context, q Query) (*QueryResult, error) {
	objectives, err := pipeline.ReadArtifact(filepath.Join(s.OutputDir(), pipeline.CombinedFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoResults
	}
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	switch {
	case limit <= 0:
		limit = DefaultQueryLimit
	case limit > MaxQueryLimit:
		limit = MaxQueryLimit
	}

	result := &QueryResult{Objectives: []syllabus.Objective{}}
	for _, o := range objectives {
		if !q.Matches(o) {
			continue
		}
		result.Total++
		if len(result.Objectives) < limit {
			result.Objectives = append(result.Objectives, o)
		}
	}
	result.Returned = len(result.Objectives)
	return result, nil
}

// Matches reports whether o satisfies every filter set in q. Text filters
// are case-insensitive.
func (q Query) Matches(o syllabus.Objective) bool {
	if q.Difficulty > 0 && o.Difficulty != q.Difficulty {
		return false
	}
	if q.Section != "" && !containsFold(o.Section, q.Section) && !containsFold(o.Subsection, q.Section) {
		return false
	}
	if q.SourceFile != "" && !strings.EqualFold(o.SourceFile, q.SourceFile) {
		return false
	}
	if q.Skill != "" && !hasSkill(o.Skills, q.Skill) {
		return false
	}
	if q.Text != "" {
		if !containsFold(o.Objective, q.Text) && !containsFold(o.Content, q.Text) && !hasKeyword(o.Keywords, q.Text) {
			return false
		}
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func hasSkill(skills []string, code string) bool {
	for _, s := range skills {
		if strings.EqualFold(s, code) {
			return true
		}
	}
	return false
}

func hasKeyword(keywords []string, word string) bool {
	for _, k := range keywords {
		if strings.EqualFold(k, word) {
			return true
		}
	}
	return false
}
