// Package reposerver is an in-process MCP server over streamable HTTP that
// fronts a fixed set of repository files. Standard resource methods are
// served by mcp-go; the bitbucket/search and bitbucket/file extensions are
// answered directly.
package reposerver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// File is one repository file served by the test server.
type File struct {
	Path        string
	Description string
	Content     string
}

// Server serves one workspace/repository pair.
type Server struct {
	Workspace  string
	Repository string

	files   []File
	handler http.Handler

	// requests counts JSON-RPC messages received, by method.
	requests map[string]*atomic.Int64
}

var extensionMethods = []string{"bitbucket/search", "bitbucket/file"}

// New builds a server exposing files as MCP resources.
func New(workspace, repository string, files []File) *Server {
	s := server.NewMCPServer("repo-test-server", "1.0.0",
		server.WithResourceCapabilities(true, true),
	)

	rs := &Server{
		Workspace:  workspace,
		Repository: repository,
		files:      files,
		requests:   make(map[string]*atomic.Int64),
	}
	for _, m := range append([]string{"initialize", "notifications/initialized", "resources/list", "resources/read"}, extensionMethods...) {
		rs.requests[m] = new(atomic.Int64)
	}

	for _, f := range files {
		uri := rs.URI(f.Path)
		content := f.Content
		opts := []mcp.ResourceOption{mcp.WithMIMEType(mimeType(f.Path))}
		if f.Description != "" {
			opts = append(opts, mcp.WithResourceDescription(f.Description))
		}
		s.AddResource(mcp.NewResource(uri, f.Path, opts...),
			func(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
				return []mcp.ResourceContents{
					mcp.TextResourceContents{URI: uri, MIMEType: mimeType(f.Path), Text: content},
				}, nil
			},
		)
	}

	rs.handler = server.NewStreamableHTTPServer(s, server.WithStateLess(true))
	return rs
}

// URI returns the resource URI for a repository path.
func (s *Server) URI(p string) string {
	return fmt.Sprintf("bitbucket://%s/%s/%s", s.Workspace, s.Repository, p)
}

// Count reports how many messages with method were received.
func (s *Server) Count(method string) int64 {
	if c, ok := s.requests[method]; ok {
		return c.Load()
	}
	return 0
}

type rpcMessage struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.handler.ServeHTTP(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	var msg rpcMessage
	if err := json.Unmarshal(body, &msg); err == nil {
		if c, ok := s.requests[msg.Method]; ok {
			c.Add(1)
		}
		switch msg.Method {
		case "bitbucket/search":
			s.reply(w, msg.ID, s.search(msg.Params))
			return
		case "bitbucket/file":
			s.reply(w, msg.ID, s.file(msg.Params))
			return
		}
	}
	s.handler.ServeHTTP(w, r)
}

func (s *Server) reply(w http.ResponseWriter, id json.RawMessage, result any) {
	resp := rpcResponse{JSONRPC: "2.0", ID: id}
	if e, ok := result.(*rpcError); ok {
		resp.Error = e
	} else {
		resp.Result = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) checkRepo(workspace, repository string) *rpcError {
	if workspace != s.Workspace || repository != s.Repository {
		return &rpcError{Code: -32602, Message: fmt.Sprintf("unknown repository %s/%s", workspace, repository)}
	}
	return nil
}

// search matches the query against file paths and contents. Path matches
// rank ahead of content matches.
func (s *Server) search(raw json.RawMessage) any {
	var p struct {
		Workspace  string `json:"workspace"`
		Repository string `json:"repository"`
		Query      string `json:"query"`
		FileType   string `json:"fileType"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return &rpcError{Code: -32602, Message: err.Error()}
	}
	if e := s.checkRepo(p.Workspace, p.Repository); e != nil {
		return e
	}

	terms := strings.Fields(strings.ToLower(p.Query))
	var byPath, byContent []map[string]string
	for _, f := range s.files {
		if p.FileType != "" && !matchesType(f.Path, p.FileType) {
			continue
		}
		hit := map[string]string{"uri": s.URI(f.Path), "name": f.Path}
		if f.Description != "" {
			hit["description"] = f.Description
		}
		switch {
		case containsAny(strings.ToLower(f.Path), terms):
			byPath = append(byPath, hit)
		case containsAny(strings.ToLower(f.Content), terms):
			byContent = append(byContent, hit)
		}
	}
	files := append(byPath, byContent...)
	if files == nil {
		files = []map[string]string{}
	}
	return map[string]any{"files": files}
}

func (s *Server) file(raw json.RawMessage) any {
	var p struct {
		Workspace  string `json:"workspace"`
		Repository string `json:"repository"`
		Path       string `json:"path"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return &rpcError{Code: -32602, Message: err.Error()}
	}
	if e := s.checkRepo(p.Workspace, p.Repository); e != nil {
		return e
	}
	for _, f := range s.files {
		if f.Path == p.Path {
			return map[string]string{"content": f.Content}
		}
	}
	return &rpcError{Code: -32602, Message: "file not found: " + p.Path}
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func matchesType(p, fileType string) bool {
	return strings.TrimPrefix(path.Ext(p), ".") == strings.TrimPrefix(strings.ToLower(fileType), ".")
}

func mimeType(p string) string {
	switch path.Ext(p) {
	case ".go":
		return "text/x-go"
	case ".md":
		return "text/markdown"
	case ".json":
		return "application/json"
	default:
		return "text/plain"
	}
}
