// Package assist assembles the messages an assistant needs to answer a
// question about the configured repository.
package assist

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/thellimist/repoctx/internal/aggregator"
)

// Command tags attached to a Response.
const (
	CommandAssist = "repo-assist"
	CommandError  = "error"
)

// Role is the author of a Message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one entry of the conversation handed to a language model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is what the host supplies for one question. CurrentFile is used
// verbatim and never fetched remotely.
type Request struct {
	Prompt          string `json:"prompt"`
	Language        string `json:"language,omitempty"`
	CurrentFile     string `json:"currentFile,omitempty"`
	CurrentFileName string `json:"currentFileName,omitempty"`
}

// Response carries the assembled messages and what was skipped on the way.
type Response struct {
	Messages []Message `json:"messages"`
	Command  string    `json:"command"`
	Skipped  []string  `json:"skipped,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Source is the aggregation surface the handler uses.
type Source interface {
	CollectRelevantCode(ctx context.Context, query, language string) aggregator.CodeContext
	CollectFileStructure(ctx context.Context) aggregator.Structure
}

// Handler builds assistant context for host requests.
type Handler struct {
	source Source
	logger *zap.Logger

	// Progress, if set, receives short status lines while a request is
	// being handled.
	Progress func(msg string)
}

// NewHandler creates a Handler on top of source.
func NewHandler(source Source, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{source: source, logger: logger}
}

// Handle assembles the conversation for req. Aggregation problems never
// fail the request; a canceled context yields an error response.
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	h.progress("Fetching relevant code from repository...")
	code := h.source.CollectRelevantCode(ctx, req.Prompt, req.Language)

	var structure string
	if WantsStructure(req.Prompt) {
		h.progress("Analyzing repository structure...")
		structure = h.source.CollectFileStructure(ctx).Text
	}

	if err := ctx.Err(); err != nil {
		h.logger.Info("request abandoned", zap.Error(err))
		return Response{Command: CommandError, Error: fmt.Sprintf("Failed to process request: %v", err)}
	}

	language := req.Language
	if language == "" {
		language = "unknown"
	}

	messages := []Message{{
		Role:    RoleSystem,
		Content: systemPrompt(structure, code.Text, language),
	}}

	if req.CurrentFile != "" {
		name := req.CurrentFileName
		if name == "" {
			name = "untitled"
		}
		messages = append(messages, Message{
			Role:    RoleUser,
			Content: fmt.Sprintf("Current file (%s):\n```%s\n%s\n```", name, req.Language, req.CurrentFile),
		})
	}

	messages = append(messages, Message{Role: RoleUser, Content: req.Prompt})

	h.progress("Generating response...")

	resp := Response{Messages: messages, Command: CommandAssist}
	for _, f := range code.Failures {
		resp.Skipped = append(resp.Skipped, f.Resource.Name)
	}
	return resp
}

func (h *Handler) progress(msg string) {
	if h.Progress != nil {
		h.Progress(msg)
	}
}

// WantsStructure reports whether the prompt asks about the repository
// layout.
func WantsStructure(prompt string) bool {
	p := strings.ToLower(prompt)
	return strings.Contains(p, "structure") || strings.Contains(p, "overview")
}

func systemPrompt(structure, code, language string) string {
	var sb strings.Builder
	sb.WriteString("You are a code assistant with access to a remote repository.\n")
	sb.WriteString("Use the following repository context to help answer questions and generate code:\n\n")
	if structure != "" {
		sb.WriteString(structure)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Relevant code from repository:")
	sb.WriteString(code)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Current file language: %s\n\n", language)
	sb.WriteString("Provide helpful, accurate responses based on the repository context and best practices.")
	return sb.String()
}
