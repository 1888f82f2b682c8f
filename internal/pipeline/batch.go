package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/syllabus-extractor/internal/pdf"
	pdferrors "github.com/a3tai/syllabus-extractor/internal/pdf/errors"
	"github.com/a3tai/syllabus-extractor/internal/syllabus"
)

// RunRecorder persists the outcome of a batch run.
type RunRecorder interface {
	RecordRun(ctx context.Context, report *BatchReport) error
}

// BatchReport is everything a run produced.
type BatchReport struct {
	RunID      string
	StartedAt  time.Time
	InputDir   string
	OutputDir  string
	Summary    Summary
	Results    []Result
	Objectives []syllabus.Objective
	// Written is false when the input directory held no PDFs and no
	// artifacts were produced.
	Written bool
}

// Coordinator runs the parser over every PDF in a directory and writes the
// combined artifact and summary.
type Coordinator struct {
	parser   *Parser
	workers  int
	recorder RunRecorder
	logger   *zap.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithWorkers bounds the number of documents parsed concurrently.
// Values below one select runtime.NumCPU().
func WithWorkers(n int) CoordinatorOption {
	return func(c *Coordinator) { c.workers = n }
}

// WithRecorder records every completed run.
func WithRecorder(recorder RunRecorder) CoordinatorOption {
	return func(c *Coordinator) { c.recorder = recorder }
}

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

// NewCoordinator creates a coordinator around parser.
func NewCoordinator(parser *Parser, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		parser: parser,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = runtime.NumCPU()
	}
	return c
}

// Parser returns the document parser used by the coordinator.
func (c *Coordinator) Parser() *Parser {
	return c.parser
}

// Run processes every PDF directly inside inputDir. Document failures are
// reported in the summary; only an unusable input directory or an unwritable
// combined artifact fails the run. The context is only consulted by the
// manifest; parses already started always finish.
func (c *Coordinator) Run(ctx context.Context, inputDir string, force bool) (*BatchReport, error) {
	report := &BatchReport{
		RunID:     uuid.Must(uuid.NewV7()).String(),
		StartedAt: time.Now(),
		InputDir:  inputDir,
		OutputDir: c.parser.OutputDir(),
	}

	files, err := pdf.Discover(inputDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		c.logger.Warn("No PDF files found", zap.String("input", inputDir))
		return report, nil
	}

	outputDir := c.parser.OutputDir()
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeArtifactWrite, err).WithFile(outputDir)
	}

	c.logger.Info("Scanning PDFs",
		zap.String("run_id", report.RunID),
		zap.Int("files", len(files)),
		zap.String("input", inputDir),
		zap.Int("workers", c.workers),
	)

	results := make(chan Result, len(files))
	unique, collisions := PartitionArtifacts(outputDir, files)
	for _, result := range collisions {
		c.logger.Error("Error processing document",
			zap.String("file", result.Filename),
			zap.Error(result.Err),
		)
		results <- result
	}

	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, file := range unique {
		g.Go(func() error {
			results <- c.parser.Parse(ctx, file, force)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	objectives := []syllabus.Objective{}
	summary := Summary{
		Stats:    Stats{TotalFiles: len(files)},
		RunID:    report.RunID,
		Failures: []Failure{},
	}
	for result := range results {
		report.Results = append(report.Results, result)
		objectives = append(objectives, result.Objectives...)
		switch result.Status {
		case StatusProcessed:
			summary.Stats.Processed++
		case StatusSkipped:
			summary.Stats.Skipped++
		default:
			summary.Stats.Failed++
			summary.Failures = append(summary.Failures, Failure{File: result.Filename, Error: errorText(result.Err)})
		}
	}
	sort.Slice(summary.Failures, func(i, j int) bool { return summary.Failures[i].File < summary.Failures[j].File })
	summary.Stats.TotalObjectives = len(objectives)
	summary.Timestamp = time.Now().Format(time.RFC3339)

	if err := WriteJSON(filepath.Join(outputDir, CombinedFileName), objectives); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeArtifactWrite, err).WithFile(CombinedFileName)
	}
	if err := WriteJSON(filepath.Join(outputDir, SummaryFileName), summary); err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeArtifactWrite, err).WithFile(SummaryFileName)
	}

	report.Summary = summary
	report.Objectives = objectives
	report.Written = true

	if c.recorder != nil {
		if err := c.recorder.RecordRun(ctx, report); err != nil {
			c.logger.Warn("Failed to record run in manifest",
				zap.String("run_id", report.RunID),
				zap.Error(pdferrors.Wrap(pdferrors.ErrorTypeManifest, err)),
			)
		}
	}

	c.logger.Info("Done",
		zap.String("run_id", report.RunID),
		zap.Int("objectives", summary.Stats.TotalObjectives),
		zap.Int("files", summary.Stats.TotalFiles),
		zap.Int("processed", summary.Stats.Processed),
		zap.Int("skipped", summary.Stats.Skipped),
		zap.Int("failed", summary.Stats.Failed),
	)
	return report, nil
}

// PartitionArtifacts splits files, in order, into those that own their
// artifact path and failed results for later files whose artifact path is
// already taken, such as "bio.PDF" after "bio.pdf" would be.
func PartitionArtifacts(outputDir string, files []string) ([]string, []Result) {
	owners := make(map[string]string, len(files))
	unique := make([]string, 0, len(files))
	var collisions []Result
	for _, file := range files {
		artifact := ArtifactPath(outputDir, file)
		owner, taken := owners[artifact]
		if !taken {
			owners[artifact] = file
			unique = append(unique, file)
			continue
		}
		name := filepath.Base(file)
		collisions = append(collisions, Result{
			Filename:     name,
			Path:         file,
			ArtifactPath: artifact,
			Objectives:   []syllabus.Objective{},
			Status:       StatusFailed,
			Err: pdferrors.New(pdferrors.ErrorTypeArtifactWrite, "artifact name already used by another document").
				WithFile(name).
				WithContext(fmt.Sprintf("%s belongs to %s; rename one of them", filepath.Base(artifact), filepath.Base(owner))),
		})
	}
	return unique, collisions
}

func errorText(err error) string {
	if err == nil {
		return "unknown failure"
	}
	return err.Error()
}
