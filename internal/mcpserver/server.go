// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Codex retrieval and ingest tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/codex/internal/apperr"
	"github.com/starford/codex/internal/corpus"
	"github.com/starford/codex/internal/ingest"
	"github.com/starford/codex/internal/retrieval"
)

const groundingFormatURI = "codex://grounding-format"

// Server wraps the MCP server with Codex tools.
type Server struct {
	mcp *server.MCPServer
	svc *corpus.Service
}

// New creates a new MCP server with all Codex tools registered.
func New(svc *corpus.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Codex",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_chunks",
		mcp.WithDescription("Rank stored chunks by trigram similarity to a query. Returns JSON hits."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("k", mcp.Description("Maximum number of hits (default 8)")),
	), s.searchChunks)

	s.mcp.AddTool(mcp.NewTool("ground",
		mcp.WithDescription("Build a citation-indexed grounding block for a query. "+
			"Read the "+groundingFormatURI+" resource for the citation rules."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Question or topic to ground")),
		mcp.WithNumber("k", mcp.Description("Maximum number of chunks (default 8)")),
	), s.ground)

	s.mcp.AddTool(mcp.NewTool("ingest_url",
		mcp.WithDescription("Fetch a document over http(s) and add it to the corpus."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Document URL")),
		mcp.WithString("name", mcp.Description("File name used for the extension check (defaults to the URL path)")),
		mcp.WithNumber("size", mcp.Description("Declared size in bytes, checked before fetching")),
	), s.ingestURL)

	s.mcp.AddTool(mcp.NewTool("ingest_text",
		mcp.WithDescription("Add inline text to the corpus."),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name, e.g. notes.md")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document text")),
		mcp.WithString("title", mcp.Description("Optional title")),
	), s.ingestText)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Read a stored document with its chunks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.getDocument)

	s.mcp.AddResource(
		mcp.NewResource(groundingFormatURI, "Grounding Format",
			mcp.WithResourceDescription("Layout of grounding blocks and how to cite them."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGroundingFormat,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) searchChunks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.Search(ctx, query, req.GetInt("k", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) ground(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.svc.Ground(ctx, query, req.GetInt("k", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if g.Context == "" {
		return mcp.NewToolResultText("no matching chunks"), nil
	}
	return mcp.NewToolResultText(renderGrounding(g)), nil
}

func renderGrounding(g retrieval.Grounding) string {
	return g.Context + "\n\n" + strings.Join(g.Footnotes, "\n")
}

func (s *Server) ingestURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item := ingest.Item{
		Name: req.GetString("name", ""),
		Size: int64(req.GetInt("size", 0)),
		Ref:  url,
	}
	return ingestResult(s.svc.Ingest(ctx, []ingest.Item{item})[0]), nil
}

func (s *Server) ingestText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item := ingest.Item{
		Name:   name,
		Source: "mcp:" + name,
		Title:  req.GetString("title", ""),
		Size:   int64(len(content)),
		Data:   []byte(content),
	}
	return ingestResult(s.svc.Ingest(ctx, []ingest.Item{item})[0]), nil
}

// ingestResult renders a result as its status line; rejections and
// failures are tool errors.
func ingestResult(r ingest.Result) *mcp.CallToolResult {
	rep := ingest.NewReport(r)
	if !rep.OK {
		return mcp.NewToolResultError(rep.Line())
	}
	return mcp.NewToolResultText(rep.Line() + "\nid: " + rep.ID)
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Document(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found: " + id), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readGroundingFormat(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      groundingFormatURI,
			MIMEType: "text/markdown",
			Text:     GroundingFormatContract,
		},
	}, nil
}
