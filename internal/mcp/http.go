package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// maxErrorBody bounds how much of a failed response body is kept in a
// TransportError.
const maxErrorBody = 4 << 10

// HTTPTransport implements the Transport interface using Streamable HTTP.
// It sends JSON-RPC requests as HTTP POST requests and handles both
// application/json and text/event-stream responses.
type HTTPTransport struct {
	URL        string
	httpClient *http.Client

	mu        sync.RWMutex
	sessionID string
}

// NewHTTPTransport creates a new HTTPTransport targeting the given URL.
// If tokens is non-nil, every request carries its token in an
// Authorization header; otherwise no Authorization header is sent.
func NewHTTPTransport(url string, tokens oauth2.TokenSource) *HTTPTransport {
	client := &http.Client{}
	if tokens != nil {
		client.Transport = &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, tokens),
			Base:   http.DefaultTransport,
		}
	}
	return NewHTTPTransportWithClient(url, client)
}

// NewHTTPTransportWithClient creates an HTTPTransport that uses the given
// http.Client as is.
func NewHTTPTransportWithClient(url string, client *http.Client) *HTTPTransport {
	return &HTTPTransport{
		URL:        url,
		httpClient: client,
	}
}

// Send sends a JSON-RPC request over HTTP and returns the response.
func (t *HTTPTransport) Send(ctx context.Context, req *JSONRPCRequest) (*JSONRPCResponse, error) {
	resp, err := t.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "text/event-stream") {
		return t.parseSSE(resp.Body, req.ID)
	}

	// Default: parse as application/json.
	var rpcResp JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, &ParseError{What: "response", Err: err}
	}

	return &rpcResp, nil
}

// Notify posts a notification and discards whatever body the server returns.
func (t *HTTPTransport) Notify(ctx context.Context, n *JSONRPCNotification) error {
	resp, err := t.post(ctx, n)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// post marshals msg, sends it and checks the HTTP status. The caller owns
// the returned body.
func (t *HTTPTransport) post(ctx context.Context, msg any) (*http.Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")

	if sid := t.session(); sid != "" {
		httpReq.Header.Set("Mcp-Session-Id", sid)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	// Capture session ID from the response if present.
	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
		t.setSession(sid)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		status := http.StatusText(resp.StatusCode)
		if status == "" {
			status = strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
		}
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Status:     status,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	return resp, nil
}

// parseSSE reads an SSE stream and extracts the JSON-RPC response matching the
// given request ID.
func (t *HTTPTransport) parseSSE(r io.Reader, requestID int64) (*JSONRPCResponse, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 16<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		var rpcResp JSONRPCResponse
		if err := json.Unmarshal([]byte(data), &rpcResp); err != nil {
			// Skip lines that aren't valid JSON-RPC.
			continue
		}
		if rpcResp.MatchesID(requestID) || rpcResp.Unaddressed() {
			return &rpcResp, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read sse stream: %w", err)}
	}
	return nil, &ParseError{What: "sse stream", Err: fmt.Errorf("no response for request id %d", requestID)}
}

func (t *HTTPTransport) session() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

func (t *HTTPTransport) setSession(id string) {
	t.mu.Lock()
	t.sessionID = id
	t.mu.Unlock()
}

// Close is a no-op for HTTP transport since each request is independent.
func (t *HTTPTransport) Close() error {
	return nil
}
