// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/recordservice"
	"github.com/starford/ansuz/internal/search"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp      *server.MCPServer
	records  *recordservice.Service
	searcher *search.Service
}

// New creates a new MCP server with all Ansuz tools registered.
func New(records *recordservice.Service, searcher *search.Service) *Server {
	s := &Server{records: records, searcher: searcher}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Search knowledge records by keyword, semantic similarity, or a hybrid of both."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("mode", mcp.Description("Search mode: keyword, semantic, or hybrid (default hybrid)")),
		mcp.WithString("type", mcp.Description("Optional record type filter (note, journal, article, video, social-post, image)")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read the full content of a knowledge record by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	), s.readRecord)

	s.mcp.AddTool(mcp.NewTool("save_record",
		mcp.WithDescription("Save a new knowledge record. The body is Markdown. "+
			"Read the contract first via the get_record_contract tool or the "+
			"ansuz://record-format resource."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Record type (note, journal, article, video, social-post, image)")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Record title")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Markdown content")),
		mcp.WithString("category", mcp.Description("Free-text grouping, defaults to 'uncategorized'")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("source_url", mcp.Description("Where the content came from")),
	), s.saveRecord)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List knowledge records, newest first, optionally filtered by type."),
		mcp.WithString("type", mcp.Description("Optional record type filter")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("related_records",
		mcp.WithDescription("Find records linked to or from the specified record."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id to find relations for")),
	), s.relatedRecords)

	s.mcp.AddTool(mcp.NewTool("get_record_contract",
		mcp.WithDescription("Returns the canonical Ansuz record format contract. "+
			"Call this before saving records to ensure correct structure."),
	), s.getRecordContract)

	// Resource: record format contract.
	s.mcp.AddResource(
		mcp.NewResource("ansuz://record-format", "Record Format Contract",
			mcp.WithResourceDescription("Canonical record file format that all records follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode := "hybrid"
	if m, modeErr := req.RequireString("mode"); modeErr == nil && m != "" {
		mode = m
	}
	var typeFilter models.Type
	if t, typeErr := req.RequireString("type"); typeErr == nil {
		typeFilter = models.Type(t)
	}

	var results []search.Result
	switch mode {
	case "keyword":
		results, err = s.searcher.Keyword(ctx, query, typeFilter, 20)
	case "semantic":
		results, err = s.searcher.Semantic(ctx, query, typeFilter, 20)
	case "hybrid":
		results, err = s.searcher.Hybrid(ctx, query, typeFilter, 20)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode: %s", mode)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) saveRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := req.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rec := &models.Record{
		Type:        models.Type(typ),
		Title:       title,
		Body:        body,
		InputSource: "mcp",
	}
	if category, catErr := req.RequireString("category"); catErr == nil {
		rec.Category = category
	}
	if tags, tagErr := req.RequireString("tags"); tagErr == nil && tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				rec.Tags = append(rec.Tags, t)
			}
		}
	}
	if sourceURL, srcErr := req.RequireString("source_url"); srcErr == nil {
		rec.SourceURL = sourceURL
	}

	created, err := s.records.Create(ctx, rec)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", created.ID)), nil
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var typeFilter models.Type
	if t, err := req.RequireString("type"); err == nil {
		typeFilter = models.Type(t)
	}

	rows, err := s.records.List(ctx, index.ListOptions{Type: typeFilter})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var lines []string
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", row.ID, row.Type, row.Title))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no records"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) relatedRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	related, err := s.records.Related(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(related) == 0 {
		return mcp.NewToolResultText("no related records"), nil
	}
	return mcp.NewToolResultText(strings.Join(related, "\n")), nil
}

func (s *Server) getRecordContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormatContract), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://record-format",
			MIMEType: "text/markdown",
			Text:     RecordFormatContract,
		},
	}, nil
}
