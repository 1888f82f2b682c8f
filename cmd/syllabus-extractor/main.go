package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/a3tai/syllabus-extractor/internal/config"
	"github.com/a3tai/syllabus-extractor/internal/httpapi"
	"github.com/a3tai/syllabus-extractor/internal/logging"
	"github.com/a3tai/syllabus-extractor/internal/manifest"
	"github.com/a3tai/syllabus-extractor/internal/mcp"
	"github.com/a3tai/syllabus-extractor/internal/pipeline"
	"github.com/a3tai/syllabus-extractor/internal/service"
	"github.com/a3tai/syllabus-extractor/internal/watch"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// app bundles everything the run modes share.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *manifest.Store
	pipeline *pipeline.Coordinator
	service  *service.Service
}

// newApp opens the manifest and assembles the pipeline and service.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := manifest.Open(cfg.ManifestFile())
	if err != nil {
		return nil, err
	}
	logger.Info("Manifest opened", zap.String("path", store.Path()))

	cacheMode, err := pipeline.ParseCacheMode(cfg.CacheKey)
	if err != nil {
		store.Close()
		return nil, err
	}

	parser := pipeline.NewParser(cfg.OutputDir,
		pipeline.WithCacheMode(cacheMode),
		pipeline.WithDigestLookup(store),
		pipeline.WithMaxFileSize(cfg.MaxFileSize),
		pipeline.WithLogger(logger),
	)
	coordinator := pipeline.NewCoordinator(parser,
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithRecorder(store),
		pipeline.WithCoordinatorLogger(logger),
	)
	svc, err := service.New(cfg.InputDir, coordinator,
		service.WithHistory(store),
		service.WithLogger(logger),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: store, pipeline: coordinator, service: svc}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// run dispatches to the configured mode and blocks until it finishes.
func (a *app) run(ctx context.Context, stdout io.Writer) error {
	switch {
	case a.cfg.IsStdioMode():
		return a.runStdio(ctx)
	case a.cfg.IsServerMode():
		return a.runServer(ctx)
	case a.cfg.IsBatchMode() && a.cfg.Watch:
		return a.runWatch(ctx, stdout)
	default:
		return a.runBatch(ctx, stdout)
	}
}

func (a *app) runBatch(ctx context.Context, stdout io.Writer) error {
	report, err := a.service.RunBatch(ctx, a.cfg.Force)
	if err != nil {
		return err
	}
	printReport(stdout, report)
	return nil
}

func (a *app) runWatch(ctx context.Context, stdout io.Writer) error {
	w := watch.New(a.cfg.InputDir, a.pipeline,
		watch.WithDebounce(a.cfg.WatchDebounce),
		watch.WithLogger(a.logger),
		watch.OnRun(func(report *pipeline.BatchReport, err error) {
			if err == nil {
				printReport(stdout, report)
			}
		}),
	)
	return w.Run(ctx)
}

func (a *app) runStdio(ctx context.Context) error {
	server, err := mcp.NewServer(a.cfg, a.service, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server.ServeStdio(ctx)
}

func (a *app) runServer(ctx context.Context) error {
	server, err := mcp.NewServer(a.cfg, a.service, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	api := httpapi.New(a.service,
		httpapi.WithMCP(server.MCPServer(), a.cfg.BaseURL()),
		httpapi.WithLogger(a.logger),
	)
	return api.ListenAndServe(ctx, a.cfg.Address())
}

// printReport writes the completion report of a batch run. It is printed
// whatever the number of failed documents.
func printReport(w io.Writer, report *pipeline.BatchReport) {
	if !report.Written {
		fmt.Fprintf(w, "No PDF files found in %s\n", report.InputDir)
		return
	}
	st := report.Summary.Stats
	fmt.Fprintf(w, "Processing complete (run %s)\n", report.RunID)
	fmt.Fprintf(w, "  Files:      %d\n", st.TotalFiles)
	fmt.Fprintf(w, "  Processed:  %d\n", st.Processed)
	fmt.Fprintf(w, "  Skipped:    %d\n", st.Skipped)
	fmt.Fprintf(w, "  Failed:     %d\n", st.Failed)
	fmt.Fprintf(w, "  Objectives: %d\n", st.TotalObjectives)
	for _, f := range report.Summary.Failures {
		fmt.Fprintf(w, "  ! %s: %s\n", f.File, f.Error)
	}
	fmt.Fprintf(w, "Output: %s\n", report.OutputDir)
}

func main() {
	cfg, err := config.LoadFromFlags()
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion()
		return
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsDebug() {
		logger.Debug("Starting with configuration", zap.String("config", cfg.String()))
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}

	// Set up context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	err = a.run(ctx, os.Stdout)
	stop()
	if cerr := a.Close(); cerr != nil {
		logger.Warn("Failed to close manifest", zap.Error(cerr))
	}
	if err != nil {
		logger.Error("Run failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("Syllabus Extractor\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}
