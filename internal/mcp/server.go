package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/a3tai/syllabus-extractor/internal/config"
	"github.com/a3tai/syllabus-extractor/internal/descriptions"
	"github.com/a3tai/syllabus-extractor/internal/pipeline"
	"github.com/a3tai/syllabus-extractor/internal/service"
)

// Tool names
const (
	ToolListDocuments   = "syllabus_list_documents"
	ToolExtractFile     = "syllabus_extract_file"
	ToolRunBatch        = "syllabus_run_batch"
	ToolQueryObjectives = "syllabus_query_objectives"
	ToolServerInfo      = "syllabus_server_info"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *service.Service
	mcpServer *server.MCPServer
	logger    *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc *service.Service, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   svc,
		mcpServer: mcpServer,
		logger:    logger,
	}
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying protocol server, e.g. for SSE transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		ToolListDocuments,
		mcp.WithDescription(descriptions.GetToolDescription(ToolListDocuments)),
	), s.handleListDocuments)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolExtractFile,
		mcp.WithDescription(descriptions.GetToolDescription(ToolExtractFile)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("PDF file name relative to the input directory"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Reprocess even if the artifact is up to date"),
		),
	), s.handleExtractFile)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolRunBatch,
		mcp.WithDescription(descriptions.GetToolDescription(ToolRunBatch)),
		mcp.WithBoolean("force",
			mcp.Description("Reprocess every document regardless of the cache"),
		),
	), s.handleRunBatch)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolQueryObjectives,
		mcp.WithDescription(descriptions.GetToolDescription(ToolQueryObjectives)),
		mcp.WithString("section", mcp.Description("Text matched against section and subsection headings")),
		mcp.WithNumber("difficulty", mcp.Description("Difficulty level 1, 2 or 3")),
		mcp.WithString("skill", mcp.Description("Skill code, e.g. KC or UK")),
		mcp.WithString("q", mcp.Description("Free text matched against objective, content and keywords")),
		mcp.WithString("source_file", mcp.Description("Restrict to one syllabus file name")),
		mcp.WithNumber("limit", mcp.Description("Maximum objectives returned (default 50, max 500)")),
	), s.handleQueryObjectives)

	s.mcpServer.AddTool(mcp.NewTool(
		ToolServerInfo,
		mcp.WithDescription(descriptions.GetToolDescription(ToolServerInfo)),
	), s.handleServerInfo)
}

// Handler functions
func (s *Server) handleListDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.service.ListDocuments(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatDocuments(s.service.InputDir(), docs)), nil
}

func (s *Server) handleExtractFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	force := boolArg(request.GetArguments(), "force")

	result, err := s.service.ExtractFile(ctx, path, force)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := marshal(result.Objectives)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := fmt.Sprintf("%s: %s, %d objective(s)\nArtifact: %s\n\n%s",
		result.Filename, result.Status, result.Count(), result.ArtifactPath, body)
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleRunBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	force := boolArg(request.GetArguments(), "force")

	report, err := s.service.RunBatch(ctx, force)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatReport(report)), nil
}

func (s *Server) handleQueryObjectives(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	q := service.Query{
		Section:    stringArg(args, "section"),
		Skill:      stringArg(args, "skill"),
		Text:       stringArg(args, "q"),
		SourceFile: stringArg(args, "source_file"),
		Difficulty: intArg(args, "difficulty"),
		Limit:      intArg(args, "limit"),
	}
	if q.Difficulty < 0 || q.Difficulty > 3 {
		return mcp.NewToolResultError("difficulty must be 1, 2 or 3"), nil
	}

	result, err := s.service.QueryObjectives(ctx, q)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := marshal(result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(body), nil
}

func (s *Server) handleServerInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("📁 Input Directory: %s\n", s.service.InputDir())
	text += fmt.Sprintf("📦 Output Directory: %s\n", s.service.OutputDir())
	text += fmt.Sprintf("🗂️  Cache Key: %s\n", s.config.CacheKey)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n\n", s.config.MaxFileSize/(1024*1024))

	summary, err := s.service.LatestSummary(ctx)
	switch {
	case errors.Is(err, service.ErrNoResults):
		text += "📊 Last Batch: none yet (call syllabus_run_batch)\n"
	case err != nil:
		text += fmt.Sprintf("📊 Last Batch: unreadable (%v)\n", err)
	default:
		st := summary.Stats
		text += fmt.Sprintf("📊 Last Batch: %s at %s\n", summary.RunID, summary.Timestamp)
		text += fmt.Sprintf("   %d file(s): %d processed, %d skipped, %d failed, %d objective(s)\n",
			st.TotalFiles, st.Processed, st.Skipped, st.Failed, st.TotalObjectives)
	}

	text += "\n🛠️  Available Tools:\n"
	for _, name := range descriptions.GetAllToolNames() {
		desc := descriptions.GetToolDescription(name)
		if i := strings.IndexByte(desc, '\n'); i > 0 {
			desc = desc[:i]
		}
		text += fmt.Sprintf("• %s: %s\n", name, desc)
	}
	return mcp.NewToolResultText(text), nil
}

// Formatting helpers
func formatDocuments(dir string, docs []service.DocumentInfo) string {
	if len(docs) == 0 {
		return fmt.Sprintf("No PDF files found in directory: %s", dir)
	}

	text := fmt.Sprintf("Found %d syllabus PDF(s) in directory: %s\n\n", len(docs), dir)
	for i, d := range docs {
		text += fmt.Sprintf("%d. %s (%d bytes)\n", i+1, d.Name, d.Size)
		status := d.Status
		if status == "" {
			status = "not processed"
		}
		text += fmt.Sprintf("   Status: %s, artifact: %t, objectives: %d\n", status, d.HasArtifact, d.Objectives)
		if d.LastError != "" {
			text += fmt.Sprintf("   Last error: %s\n", d.LastError)
		}
	}
	return text
}

func formatReport(report *pipeline.BatchReport) string {
	if !report.Written {
		return fmt.Sprintf("No PDF files found in %s; nothing was written", report.InputDir)
	}
	st := report.Summary.Stats
	text := fmt.Sprintf("Run %s finished\n", report.RunID)
	text += fmt.Sprintf("Files: %d (processed %d, skipped %d, failed %d)\n", st.TotalFiles, st.Processed, st.Skipped, st.Failed)
	text += fmt.Sprintf("Objectives: %d\n", st.TotalObjectives)
	if len(report.Summary.Failures) > 0 {
		text += "\nFailures:\n"
		for _, f := range report.Summary.Failures {
			text += fmt.Sprintf("• %s: %s\n", f.File, f.Error)
		}
	}
	return text
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data), nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// intArg accepts JSON numbers, which decode as float64.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// ServeStdio serves MCP over stdin and stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info("Starting syllabus MCP server in stdio mode", zap.String("input", s.service.InputDir()))

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
