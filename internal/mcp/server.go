package mcp

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/omofolarin/fill-pdf/internal/config"
	"github.com/omofolarin/fill-pdf/internal/descriptions"
	"github.com/omofolarin/fill-pdf/internal/fetch"
	"github.com/omofolarin/fill-pdf/internal/fill"
	"github.com/omofolarin/fill-pdf/internal/model"
	"github.com/omofolarin/fill-pdf/internal/pathguard"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *fill.Service
	guard     *pathguard.Guard
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, service *fill.Service) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("fill service cannot be nil")
	}

	guard, err := pathguard.New(cfg.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("invalid working directory: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		service:   service,
		guard:     guard,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	pdfFillTool := mcp.NewTool(
		"pdf_fill",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_fill")),
		mcp.WithString("template",
			mcp.Required(),
			mcp.Description("Template PDF: path, http(s) URL or JSON request descriptor"),
		),
		mcp.WithString("output",
			mcp.Required(),
			mcp.Description("Path of the filled PDF"),
		),
		mcp.WithString("fields",
			mcp.Description("Field data as a JSON array"),
		),
		mcp.WithString("fields_file",
			mcp.Description("Path of a JSON or YAML field data file, used when fields is empty"),
		),
		mcp.WithString("metadata_output",
			mcp.Description("Optional path for the processing metadata JSON"),
		),
		mcp.WithString("text_overflow",
			mcp.Description("Default text overflow for fields without their own: overflow or cutoff"),
		),
		mcp.WithBoolean("flatten",
			mcp.Description("Remove interactive fields from the output (default true)"),
		),
		mcp.WithBoolean("use_cache",
			mcp.Description("Cache remote templates"),
		),
		mcp.WithBoolean("refresh_cache",
			mcp.Description("Download the template even when it is cached"),
		),
	)
	s.mcpServer.AddTool(pdfFillTool, s.handlePDFFill)

	pdfPageInfoTool := mcp.NewTool(
		"pdf_page_info",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_page_info")),
		mcp.WithString("template",
			mcp.Required(),
			mcp.Description("Template PDF: path, http(s) URL or JSON request descriptor"),
		),
		mcp.WithBoolean("use_cache",
			mcp.Description("Cache remote templates"),
		),
	)
	s.mcpServer.AddTool(pdfPageInfoTool, s.handlePDFPageInfo)

	pdfCacheClearTool := mcp.NewTool(
		"pdf_cache_clear",
		mcp.WithDescription(descriptions.GetToolDescription("pdf_cache_clear")),
	)
	s.mcpServer.AddTool(pdfCacheClearTool, s.handlePDFCacheClear)
}

// Handler functions
func (s *Server) handlePDFFill(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	template, err := request.RequireString("template")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	template, err = s.resolveTemplate(template)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	output, err := request.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, err = s.guard.Resolve(output)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()
	fields, err := s.loadFields(stringArg(args, "fields"), stringArg(args, "fields_file"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	metadataPath := stringArg(args, "metadata_output")
	if metadataPath != "" {
		if metadataPath, err = s.guard.Resolve(metadataPath); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	overflow := stringArg(args, "text_overflow")
	if overflow == "" {
		overflow = s.config.TextOverflow
	}

	result, err := s.service.Fill(ctx, fill.Request{
		Template:     template,
		Fields:       fields,
		Flatten:      boolArg(args, "flatten", true),
		TextOverflow: model.ParseTextOverflow(overflow),
		UseCache:     boolArg(args, "use_cache", false),
		RefreshCache: boolArg(args, "refresh_cache", false),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := fill.WriteOutputs(result, output, metadataPath); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFillResult(output, result)), nil
}

func (s *Server) handlePDFPageInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	template, err := request.RequireString("template")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	template, err = s.resolveTemplate(template)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pages, err := s.service.PageInfo(ctx, template, boolArg(request.GetArguments(), "use_cache", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Template: %s\n", template)
	fmt.Fprintf(&b, "Pages: %d\n", len(pages))
	for _, p := range pages {
		fmt.Fprintf(&b, "  Page %d: %g x %g pt\n", p.Index, p.Width, p.Height)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handlePDFCacheClear(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.service.ClearCache(ctx); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Template cache cleared"), nil
}

// resolveTemplate confines local templates to the working directory.
// Remote sources pass through unchanged.
func (s *Server) resolveTemplate(raw string) (string, error) {
	src, err := fetch.ParseSource(raw)
	if err != nil {
		return "", err
	}
	if src.IsRemote() {
		return raw, nil
	}
	return s.guard.Resolve(src.Path)
}

func (s *Server) loadFields(inline, file string) ([]model.FieldData, error) {
	if inline != "" {
		fields, err := fill.ParseFields([]byte(inline), fill.FormatJSON)
		if err != nil {
			return nil, fmt.Errorf("invalid fields: %w", err)
		}
		return fields, nil
	}
	if file == "" {
		return nil, fmt.Errorf("either fields or fields_file is required")
	}

	path, err := s.guard.Resolve(file)
	if err != nil {
		return nil, err
	}
	return fill.LoadFields(path)
}

func formatFillResult(output string, result *fill.Result) string {
	meta := result.Metadata

	var b strings.Builder
	fmt.Fprintf(&b, "Successfully filled PDF: %s\n", output)
	fmt.Fprintf(&b, "Template pages: %d\n", len(result.Pages))
	fmt.Fprintf(&b, "Pages with fields: %d\n", len(meta.Pages))
	fmt.Fprintf(&b, "Fields processed: %d\n", meta.FieldsProcessed)
	fmt.Fprintf(&b, "Fields skipped: %d\n", meta.FieldsSkipped)
	if result.FromCache {
		b.WriteString("Template served from cache\n")
	}

	if len(meta.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range meta.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}
	if len(meta.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range meta.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func boolArg(args map[string]any, key string, def bool) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	}
	return def
}

// Run serves MCP over standard I/O until the client disconnects
func (s *Server) Run(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting fill-pdf MCP server in stdio mode")
		log.Printf("Working directory: %s", s.guard.Root())
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
