package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/codex/internal/corpus"
	"github.com/starford/codex/internal/ingest"
	"github.com/starford/codex/internal/models"
	"github.com/starford/codex/internal/retrieval"
	"github.com/starford/codex/internal/source"
	"github.com/starford/codex/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db := testutil.TestDB(t)
	in := ingest.New(db,
		ingest.WithLogger(testutil.Logger()),
		ingest.WithFetcher(source.NewHTTPFetcher(source.AllowLoopback())),
	)
	return New(corpus.NewService(db, in, retrieval.New(db), nil, testutil.Logger()))
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_chunks":
		result, err = srv.searchChunks(ctx, req)
	case "ground":
		result, err = srv.ground(ctx, req)
	case "ingest_url":
		result, err = srv.ingestURL(ctx, req)
	case "ingest_text":
		result, err = srv.ingestText(ctx, req)
	case "get_document":
		result, err = srv.getDocument(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// docID extracts the id line from an ingest tool result.
func docID(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	_, id, ok := strings.Cut(resultText(r), "\nid: ")
	require.True(t, ok, "no id in %q", resultText(r))
	return id
}

func TestIngestTextAndGetDocument(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "ingest_text", map[string]any{
		"name":    "pool.md",
		"content": "# Pooling\nconnection pool sizing",
	})
	require.False(t, r.IsError, resultText(r))
	assert.True(t, strings.HasPrefix(resultText(r), "✓ pool.md → indexed (1 chunks)"))

	r = callTool(t, srv, "get_document", map[string]any{"id": docID(t, r)})
	require.False(t, r.IsError, resultText(r))

	var doc corpus.DocumentDetail
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), &doc))
	assert.Equal(t, "Pooling", doc.Title)
	assert.Equal(t, "mcp:pool.md", doc.Source)
	assert.Len(t, doc.Chunks, 1)
}

func TestIngestTextDuplicate(t *testing.T) {
	srv := testServer(t)
	args := map[string]any{"name": "a.txt", "content": "same words"}

	first := callTool(t, srv, "ingest_text", args)
	second := callTool(t, srv, "ingest_text", map[string]any{"name": "b.txt", "content": "same words"})

	assert.Equal(t, docID(t, first), docID(t, second))
	assert.Contains(t, resultText(second), "indexed (existing chunks)")
}

func TestIngestTextRejected(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "ingest_text", map[string]any{"name": "tool.exe", "content": "MZ"})
	assert.True(t, r.IsError)
	assert.Equal(t, "✗ tool.exe → blocked extension", resultText(r))
}

func TestGetDocumentMissing(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "get_document", map[string]any{"id": "nope"})
	assert.True(t, r.IsError)
	assert.Equal(t, "not found: nope", resultText(r))
}

func TestIngestURL(t *testing.T) {
	srv := testServer(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/guide.md" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("# Guide\nremote text"))
	}))
	defer ts.Close()

	r := callTool(t, srv, "ingest_url", map[string]any{"url": ts.URL + "/guide.md"})
	require.False(t, r.IsError, resultText(r))
	assert.True(t, strings.HasPrefix(resultText(r), "✓ guide.md → indexed"))

	r = callTool(t, srv, "ingest_url", map[string]any{"url": ts.URL + "/missing.md"})
	assert.True(t, r.IsError)
	assert.Equal(t, "✗ missing.md → http 404", resultText(r))
}

func TestSearchAndGround(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "ingest_text", map[string]any{"name": "pool.md", "content": "# Pooling\nconnection pool sizing"})
	callTool(t, srv, "ingest_text", map[string]any{"name": "garden.txt", "content": "compost and mulch"})

	r := callTool(t, srv, "search_chunks", map[string]any{"query": "connection pool", "k": 3})
	require.False(t, r.IsError, resultText(r))
	var hits []models.Hit
	require.NoError(t, json.Unmarshal([]byte(resultText(r)), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "Pooling", hits[0].Title)

	r = callTool(t, srv, "ground", map[string]any{"query": "connection pool"})
	require.False(t, r.IsError, resultText(r))
	text := resultText(r)
	assert.True(t, strings.HasPrefix(text, "[#1 | Pooling]\n"))
	assert.True(t, strings.HasSuffix(text, "\n\n[#1] Pooling"))

	r = callTool(t, srv, "ground", map[string]any{"query": "zzzz qqqq"})
	assert.Equal(t, "no matching chunks", resultText(r))
}

func TestMissingArguments(t *testing.T) {
	srv := testServer(t)
	for _, tool := range []string{"search_chunks", "ground", "ingest_url", "ingest_text", "get_document"} {
		r := callTool(t, srv, tool, map[string]any{})
		assert.True(t, r.IsError, tool)
	}
}

func TestGroundingFormatResource(t *testing.T) {
	srv := testServer(t)

	contents, err := srv.readGroundingFormat(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, groundingFormatURI, tc.URI)
	assert.Contains(t, tc.Text, "[#<i> | <label>]")
}
