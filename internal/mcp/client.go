package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// maxListPages bounds resources/list pagination against servers that never
// stop handing out cursors.
const maxListPages = 100

// Repository scopes the repository extension methods.
type Repository struct {
	Workspace  string
	Repository string
}

// Observer is notified after every call the client makes.
type Observer interface {
	ObserveCall(method string, elapsed time.Duration, err error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for debug output and ignored failures.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an Observer for call metrics.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// WithClientInfo overrides the name and version sent in the handshake.
func WithClientInfo(name, version string) ClientOption {
	return func(c *Client) {
		c.info = ClientInfo{Name: name, Version: version}
	}
}

// Client is a high-level MCP protocol client that uses a Transport to
// communicate with an MCP server. It is safe for concurrent use.
type Client struct {
	transport Transport
	repo      Repository
	info      ClientInfo
	logger    *zap.Logger
	observer  Observer
	lastID    atomic.Int64
}

// NewClient creates a new MCP client using the given transport. Search and
// file calls are scoped to repo.
func NewClient(transport Transport, repo Repository, opts ...ClientOption) *Client {
	c := &Client{
		transport: transport,
		repo:      repo,
		info:      ClientInfo{Name: "repoctx", Version: "dev"},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// allocID returns the next request ID. The first ID handed out is 1.
func (c *Client) allocID() int64 {
	return c.lastID.Add(1)
}

// call sends one request and decodes its result into out. A nil or absent
// result leaves out untouched.
func (c *Client) call(ctx context.Context, method string, params, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveCall(method, time.Since(start), err)
		}
	}()

	req := &JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      c.allocID(),
		Method:  method,
		Params:  params,
	}

	c.logger.Debug("sending request", zap.String("method", method), zap.Int64("id", req.ID))

	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	if !resp.MatchesID(req.ID) && !resp.Unaddressed() {
		return fmt.Errorf("%s: %w", method, &MismatchedIDError{Want: req.ID, Got: resp.ID})
	}

	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, &ProtocolError{
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
			Data:    resp.Error.Data,
		})
	}

	if out == nil || len(resp.Result) == 0 || bytes.Equal(resp.Result, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: %w", method, &ParseError{What: "result", Err: err})
	}
	return nil
}

// Initialize performs the MCP initialize handshake, declaring resource
// subscription support, then sends the notifications/initialized
// notification. It may be called again to refresh the connection.
func (c *Client) Initialize(ctx context.Context) (*InitializeResult, error) {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ClientCapabilities{
			Resources: &ResourceCapabilities{Subscribe: true, ListChanged: true},
		},
		ClientInfo: c.info,
	}

	var result InitializeResult
	if err := c.call(ctx, MethodInitialize, params, &result); err != nil {
		return nil, err
	}

	// Fire-and-forget; some servers do not accept notifications over HTTP.
	notif := &JSONRPCNotification{JSONRPC: "2.0", Method: MethodInitialized}
	if err := c.transport.Notify(ctx, notif); err != nil {
		c.logger.Debug("initialized notification failed", zap.Error(err))
	}

	return &result, nil
}

// ListResources returns the full resource catalog, following pagination
// cursors. An empty catalog yields an empty, non-nil slice.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	resources := []Resource{}
	seen := map[string]bool{}
	var params *ListResourcesParams

	for page := 0; page < maxListPages; page++ {
		var result ListResourcesResult
		var p any
		if params != nil {
			p = params
		}
		if err := c.call(ctx, MethodResourcesList, p, &result); err != nil {
			return nil, err
		}
		resources = append(resources, result.Resources...)

		next := result.NextCursor
		if next == "" || seen[next] {
			break
		}
		seen[next] = true
		params = &ListResourcesParams{Cursor: next}
	}

	return resources, nil
}

// ReadResource returns the text of the resource at uri, or "" when the
// server reports no content.
func (c *Client) ReadResource(ctx context.Context, uri string) (string, error) {
	var result ReadResourceResult
	if err := c.call(ctx, MethodResourcesRead, ReadResourceParams{URI: uri}, &result); err != nil {
		return "", err
	}
	if len(result.Contents) == 0 {
		return "", nil
	}
	return result.Contents[0].Text, nil
}

// SearchCodeInRepo runs a server-side search scoped to the configured
// repository. Results keep the server's ranking. fileType is omitted from the
// request when empty.
func (c *Client) SearchCodeInRepo(ctx context.Context, query, fileType string) ([]Resource, error) {
	params := SearchParams{
		Workspace:  c.repo.Workspace,
		Repository: c.repo.Repository,
		Query:      query,
		FileType:   fileType,
	}

	var result SearchResult
	if err := c.call(ctx, MethodRepoSearch, params, &result); err != nil {
		return nil, err
	}
	if result.Files == nil {
		return []Resource{}, nil
	}
	return result.Files, nil
}

// GetFileContent fetches a file by repository-relative path.
func (c *Client) GetFileContent(ctx context.Context, path string) (string, error) {
	params := FileParams{
		Workspace:  c.repo.Workspace,
		Repository: c.repo.Repository,
		Path:       path,
	}

	var result FileResult
	if err := c.call(ctx, MethodRepoFile, params, &result); err != nil {
		return "", err
	}
	return result.Content, nil
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
