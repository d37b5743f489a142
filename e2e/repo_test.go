package e2e

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/thellimist/repoctx/e2e/reposerver"
	"github.com/thellimist/repoctx/internal/aggregator"
	"github.com/thellimist/repoctx/internal/assist"
	"github.com/thellimist/repoctx/internal/mcp"
)

var testFiles = []reposerver.File{
	{Path: "README.md", Description: "Project overview", Content: "# widgets\n"},
	{Path: "parser/json.go", Description: "JSON parser", Content: "package parser\n\nfunc ParseJSON() {}\n"},
	{Path: "parser/json_test.go", Content: "package parser\n"},
	{Path: "widget.go", Description: "Widget model", Content: "package parser\n\ntype Widget struct{}\n"},
}

// startServer runs the repository MCP server over real HTTP and returns a
// handshaken client for it.
func startServer(t *testing.T) (*reposerver.Server, *mcp.Client) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping E2E test in short mode")
	}

	rs := reposerver.New("acme", "widgets", testFiles)
	srv := httptest.NewServer(rs)
	t.Cleanup(srv.Close)

	client := mcp.NewClient(
		mcp.NewHTTPTransport(srv.URL, nil),
		mcp.Repository{Workspace: "acme", Repository: "widgets"},
		mcp.WithLogger(zaptest.NewLogger(t)),
		mcp.WithClientInfo("repoctx-e2e", "test"),
	)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := client.Initialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, "repo-test-server", result.ServerInfo.Name)

	return rs, client
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestHandshake(t *testing.T) {
	rs, _ := startServer(t)

	assert.Equal(t, int64(1), rs.Count("initialize"))
	assert.Equal(t, int64(1), rs.Count("notifications/initialized"))
}

func TestListAndReadResources(t *testing.T) {
	rs, client := startServer(t)
	ctx := testContext(t)

	resources, err := client.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, len(testFiles))

	byName := map[string]mcp.Resource{}
	for _, r := range resources {
		byName[r.Name] = r
	}
	require.Contains(t, byName, "parser/json.go")
	assert.Equal(t, rs.URI("parser/json.go"), byName["parser/json.go"].URI)
	assert.Equal(t, "JSON parser", byName["parser/json.go"].Description)

	text, err := client.ReadResource(ctx, rs.URI("widget.go"))
	require.NoError(t, err)
	assert.Equal(t, "package parser\n\ntype Widget struct{}\n", text)
}

func TestReadUnknownResource(t *testing.T) {
	rs, client := startServer(t)

	_, err := client.ReadResource(testContext(t), rs.URI("missing.go"))
	require.Error(t, err)

	var perr *mcp.ProtocolError
	assert.True(t, errors.As(err, &perr), "want ProtocolError, got %T: %v", err, err)
}

func TestSearchAndFileExtensions(t *testing.T) {
	rs, client := startServer(t)
	ctx := testContext(t)

	files, err := client.SearchCodeInRepo(ctx, "json", "go")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "parser/json.go", files[0].Name)
	assert.Equal(t, "parser/json_test.go", files[1].Name)
	assert.Equal(t, int64(1), rs.Count("bitbucket/search"))

	none, err := client.SearchCodeInRepo(ctx, "nothing-matches-this", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	content, err := client.GetFileContent(ctx, "README.md")
	require.NoError(t, err)
	assert.Equal(t, "# widgets\n", content)

	_, err = client.GetFileContent(ctx, "nope.txt")
	var perr *mcp.ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Message, "file not found")
}

func TestRelevantCode(t *testing.T) {
	_, client := startServer(t)
	agg := aggregator.New(client, aggregator.WithLogger(zaptest.NewLogger(t)))

	out := agg.CollectRelevantCode(testContext(t), "parse json", "go")
	require.NoError(t, out.Err)
	assert.Empty(t, out.Failures)

	names := make([]string, 0, len(out.Blocks))
	for _, b := range out.Blocks {
		names = append(names, b.Resource.Name)
	}
	assert.Equal(t, []string{"parser/json.go", "parser/json_test.go", "widget.go"}, names)
	assert.True(t, strings.HasPrefix(out.Text, "\n\n// File: parser/json.go\npackage parser\n"))
	assert.Equal(t, 3, strings.Count(out.Text, "// File: "))
}

func TestRelevantCode_Concurrent(t *testing.T) {
	_, client := startServer(t)
	sequential := aggregator.New(client).RelevantCode(testContext(t), "parse json", "")
	concurrent := aggregator.New(client, aggregator.WithConcurrency(4)).RelevantCode(testContext(t), "parse json", "")

	assert.NotEmpty(t, sequential)
	assert.Equal(t, sequential, concurrent)
}

func TestFileStructure(t *testing.T) {
	_, client := startServer(t)

	text := aggregator.New(client).FileStructure(testContext(t))
	assert.True(t, strings.HasPrefix(text, "Repository Structure:\n"))
	assert.Contains(t, text, "- README.md: Project overview")
	assert.Contains(t, text, "- parser/json_test.go: No description")
	assert.Equal(t, len(testFiles), strings.Count(text, "\n- "))
}

func TestAssistOverview(t *testing.T) {
	_, client := startServer(t)
	h := assist.NewHandler(aggregator.New(client), zaptest.NewLogger(t))

	resp := h.Handle(testContext(t), assist.Request{Prompt: "give me an overview of the json parser", Language: "go"})
	require.Empty(t, resp.Error)
	assert.Equal(t, assist.CommandAssist, resp.Command)
	require.NotEmpty(t, resp.Messages)
	assert.Equal(t, assist.RoleSystem, resp.Messages[0].Role)
	assert.Contains(t, resp.Messages[0].Content, "Repository Structure:")
	assert.Contains(t, resp.Messages[0].Content, "// File: parser/json.go")
}
