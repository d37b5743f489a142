package mcp

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ProtocolVersion is the MCP protocol revision sent in the initialize handshake.
const ProtocolVersion = "2024-11-05"

// Method names used by the client.
const (
	MethodInitialize    = "initialize"
	MethodInitialized   = "notifications/initialized"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
	MethodRepoSearch    = "bitbucket/search"
	MethodRepoFile      = "bitbucket/file"
)

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// JSONRPCNotification is a JSON-RPC 2.0 request without an id. The server
// does not answer it.
type JSONRPCNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response. The id is kept raw
// because servers may answer with either a number or a string.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// MatchesID reports whether the response answers the request with the given id.
func (r *JSONRPCResponse) MatchesID(id int64) bool {
	var n int64
	if err := json.Unmarshal(r.ID, &n); err == nil {
		return n == id
	}
	var s string
	if err := json.Unmarshal(r.ID, &s); err == nil {
		return s == strconv.FormatInt(id, 10)
	}
	return false
}

// Unaddressed reports whether the response is an error the server could not
// tie to a request, sent with a null or missing id.
func (r *JSONRPCResponse) Unaddressed() bool {
	if r.Error == nil {
		return false
	}
	id := bytes.TrimSpace(r.ID)
	return len(id) == 0 || bytes.Equal(id, []byte("null"))
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// InitializeParams holds the parameters for the MCP initialize request.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ClientInfo         `json:"clientInfo"`
}

// ClientCapabilities declares what the client supports.
type ClientCapabilities struct {
	Resources *ResourceCapabilities `json:"resources,omitempty"`
}

// ResourceCapabilities declares resource subscription support.
type ResourceCapabilities struct {
	Subscribe   bool `json:"subscribe"`
	ListChanged bool `json:"listChanged"`
}

// ClientInfo identifies the MCP client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult holds the result of a successful initialize request.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ServerInfo identifies the MCP server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Resource describes a fetchable remote artifact. URI is the stable key used
// to read its content; Content is only set when the server inlines it.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
	Content     string `json:"content,omitempty"`
}

// ListResourcesParams holds the parameters for resources/list.
type ListResourcesParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListResourcesResult holds the result of a resources/list request.
type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// ReadResourceParams holds the parameters for resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ResourceContents is one entry of a resources/read result.
type ResourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ReadResourceResult holds the result of a resources/read request.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// SearchParams holds the parameters for the repository search extension.
type SearchParams struct {
	Workspace  string `json:"workspace"`
	Repository string `json:"repository"`
	Query      string `json:"query"`
	FileType   string `json:"fileType,omitempty"`
}

// SearchResult holds the ranked files returned by a repository search.
type SearchResult struct {
	Files []Resource `json:"files"`
}

// FileParams holds the parameters for the path-addressed file extension.
type FileParams struct {
	Workspace  string `json:"workspace"`
	Repository string `json:"repository"`
	Path       string `json:"path"`
}

// FileResult holds the content returned for a repository path.
type FileResult struct {
	Content string `json:"content"`
}
