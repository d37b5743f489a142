// Package aggregator turns a free-text query into a bounded bundle of
// repository file contents, absorbing partial failures along the way.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thellimist/repoctx/internal/mcp"
)

// MaxCandidates is the fan-out cap: at most this many search hits are
// fetched per query.
const MaxCandidates = 5

const (
	structureHeader    = "Repository Structure:\n"
	structureFallback  = "Unable to fetch repository structure"
	missingDescription = "No description"
)

// ResourceClient is the subset of the MCP client the aggregator needs.
type ResourceClient interface {
	SearchCodeInRepo(ctx context.Context, query, fileType string) ([]mcp.Resource, error)
	ReadResource(ctx context.Context, uri string) (string, error)
	ListResources(ctx context.Context) ([]mcp.Resource, error)
}

// Block is one successfully fetched candidate.
type Block struct {
	Resource mcp.Resource
	Content  string
}

// Failure records a candidate that could not be fetched.
type Failure struct {
	Resource mcp.Resource
	Err      error
}

// CodeContext is the outcome of CollectRelevantCode. Text is always
// well-formed; Err is set when the search failed or the context was
// canceled, in which case Text may be empty.
type CodeContext struct {
	Text     string
	Blocks   []Block
	Failures []Failure
	Err      error
}

// Structure is the outcome of CollectFileStructure.
type Structure struct {
	Text      string
	Resources []mcp.Resource
	Err       error
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the diagnostics logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithConcurrency lets up to n candidate fetches run at once. Output order
// still follows search rank.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// Aggregator assembles repository context on top of a ResourceClient. It
// holds no state between calls and never returns errors to its caller.
type Aggregator struct {
	client      ResourceClient
	logger      *zap.Logger
	concurrency int
}

// New creates an Aggregator. Fetches are sequential unless WithConcurrency
// is given.
func New(client ResourceClient, opts ...Option) *Aggregator {
	a := &Aggregator{
		client:      client,
		logger:      zap.NewNop(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RelevantCode returns the concatenated contents of the top search hits
// for query, or "" when the search itself fails.
func (a *Aggregator) RelevantCode(ctx context.Context, query, language string) string {
	return a.CollectRelevantCode(ctx, query, language).Text
}

// CollectRelevantCode searches the repository, fetches up to MaxCandidates
// hits and concatenates the ones that could be read, in rank order.
func (a *Aggregator) CollectRelevantCode(ctx context.Context, query, language string) CodeContext {
	resources, err := a.client.SearchCodeInRepo(ctx, query, language)
	if err != nil {
		a.logger.Error("failed to get relevant code", zap.String("query", query), zap.Error(err))
		return CodeContext{Err: err}
	}

	candidates := lo.Slice(resources, 0, MaxCandidates)
	a.logger.Debug("search returned candidates",
		zap.String("query", query),
		zap.Int("hits", len(resources)),
		zap.Int("candidates", len(candidates)),
	)

	contents, errs := a.fetch(ctx, candidates)

	var out CodeContext
	var sb strings.Builder
	for i, r := range candidates {
		if errs[i] != nil {
			if ctx.Err() != nil && isCancellation(errs[i]) {
				// Canceled fetches are not per-candidate failures.
				continue
			}
			a.logger.Warn("failed to fetch candidate",
				zap.String("name", r.Name),
				zap.String("uri", r.URI),
				zap.Error(errs[i]),
			)
			out.Failures = append(out.Failures, Failure{Resource: r, Err: errs[i]})
			continue
		}
		if contents[i] == nil {
			continue
		}
		out.Blocks = append(out.Blocks, Block{Resource: r, Content: *contents[i]})
		fmt.Fprintf(&sb, "\n\n// File: %s\n%s", r.Name, *contents[i])
	}
	out.Text = sb.String()

	if err := ctx.Err(); err != nil {
		a.logger.Info("relevant code collection stopped", zap.Error(err))
		out.Err = err
	}
	return out
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// fetch reads every candidate. contents[i] stays nil for candidates that
// were skipped because ctx was done before they started.
func (a *Aggregator) fetch(ctx context.Context, candidates []mcp.Resource) ([]*string, []error) {
	contents := make([]*string, len(candidates))
	errs := make([]error, len(candidates))

	read := func(ctx context.Context, i int) {
		text, err := a.client.ReadResource(ctx, candidates[i].URI)
		if err != nil {
			errs[i] = err
			return
		}
		a.logger.Debug("fetched candidate",
			zap.String("name", candidates[i].Name),
			zap.String("size", humanize.Bytes(uint64(len(text)))),
		)
		contents[i] = &text
	}

	if a.concurrency <= 1 {
		for i := range candidates {
			if ctx.Err() != nil {
				break
			}
			read(ctx, i)
		}
		return contents, errs
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			read(gctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return contents, errs
}

// FileStructure lists the repository resources one per line, or returns a
// fixed fallback message when the listing fails.
func (a *Aggregator) FileStructure(ctx context.Context) string {
	return a.CollectFileStructure(ctx).Text
}

// CollectFileStructure renders the resource catalog as a structure
// overview.
func (a *Aggregator) CollectFileStructure(ctx context.Context) Structure {
	resources, err := a.client.ListResources(ctx)
	if err != nil {
		a.logger.Error("failed to get file structure", zap.Error(err))
		return Structure{Text: structureFallback, Err: err}
	}

	lines := lo.Map(resources, func(r mcp.Resource, _ int) string {
		desc := lo.Ternary(r.Description != "", r.Description, missingDescription)
		return fmt.Sprintf("- %s: %s", r.Name, desc)
	})

	return Structure{
		Text:      structureHeader + strings.Join(lines, "\n"),
		Resources: resources,
	}
}
