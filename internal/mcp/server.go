package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/edm/internal/search"
	"github.com/Aman-CERP/edm/internal/store"
	"github.com/Aman-CERP/edm/pkg/version"
)

// ServerName is reported to clients during initialization.
const ServerName = "edm"

// Result limits of the search tool.
const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// SearchEngine is the query surface served as tools.
type SearchEngine interface {
	SearchWithOptions(ctx context.Context, pattern string, opts search.SearchOptions) (*search.Results, error)
	Suggest(ctx context.Context, prefix string) ([]store.Document, error)
	Aggregations(ctx context.Context, pattern string) map[string][]store.Bucket
	TopTerms(ctx context.Context, pattern string) []store.Bucket
}

var _ SearchEngine = (*search.Engine)(nil)

// SourceLister lists crawled sources for the sources resource.
type SourceLister interface {
	ListSources(ctx context.Context) ([]store.SourceInfo, error)
}

// DocumentGetter loads one document for the document resource.
type DocumentGetter interface {
	Get(ctx context.Context, id string) (*store.Document, error)
}

var (
	_ SourceLister   = (*store.Catalog)(nil)
	_ DocumentGetter = (*store.BleveIndex)(nil)
)

// Server is the MCP server bridging AI clients and the search engine.
type Server struct {
	mcp       *mcp.Server
	engine    SearchEngine
	catalog   SourceLister
	documents DocumentGetter
	logger    *slog.Logger
}

// ServerOption configures optional dependencies of a Server.
type ServerOption func(*Server)

// WithCatalog exposes the sources resource.
func WithCatalog(catalog SourceLister) ServerOption {
	return func(s *Server) { s.catalog = catalog }
}

// WithDocuments exposes the document resource template.
func WithDocuments(documents DocumentGetter) ServerOption {
	return func(s *Server) { s.documents = documents }
}

// WithLogger replaces slog.Default.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Full-text search over crawled documents. Matches every term against name, description, content and path, ranked by relevance with highlighted fragments. Supports \"quoted phrases\", -excluded terms and prefix* terms.",
	},
	{
		Name:        "suggest",
		Description: "Type-ahead suggestions. Returns documents where any word of the input matches a word prefix in name, description, content or path.",
	},
	{
		Name:        "facets",
		Description: "Document counts by file extension, by cumulative file date range (last month to until now) and by category, for all documents or those matching a pattern.",
	},
	{
		Name:        "top_terms",
		Description: "Most frequent path terms of matching documents, excluding file extensions and administratively excluded words.",
	},
}

// NewServer creates an MCP server over engine.
func NewServer(engine SearchEngine, opts ...ServerOption) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}

	s := &Server{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpSuggestHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpFacetsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description}, s.mcpTopTermsHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool by name and returns its markdown rendering.
// Arguments are decoded into the tool's input type.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "search":
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		text, _, err := s.search(ctx, in)
		return text, err
	case "suggest":
		var in SuggestInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		text, _, err := s.suggest(ctx, in)
		return text, err
	case "facets":
		var in FacetsInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		text, _ := s.facets(ctx, in)
		return text, nil
	case "top_terms":
		var in TopTermsInput
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		text, _ := s.topTerms(ctx, in)
		return text, nil
	default:
		return "", NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, into any) error {
	if len(args) == 0 {
		return nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) search(ctx context.Context, in SearchInput) (string, SearchOutput, error) {
	if in.Offset < 0 {
		return "", SearchOutput{}, NewInvalidParamsError("offset must not be negative")
	}
	limit := clampLimit(in.Limit, defaultSearchLimit, 1, maxSearchLimit)

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.String("pattern", in.Pattern),
		slog.Int("limit", limit),
		slog.Int("offset", in.Offset))

	res, err := s.engine.SearchWithOptions(ctx, in.Pattern, search.SearchOptions{Limit: limit, Offset: in.Offset})
	if err != nil {
		s.logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return "", SearchOutput{}, MapError(err)
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("hits", len(res.Hits)),
		slog.Uint64("total", res.Total))

	out := SearchOutput{Pattern: in.Pattern, Total: res.Total, Hits: make([]HitOutput, 0, len(res.Hits))}
	for _, h := range res.Hits {
		out.Hits = append(out.Hits, ToHitOutput(h))
	}
	return FormatSearchResults(res, in.Offset), out, nil
}

func (s *Server) suggest(ctx context.Context, in SuggestInput) (string, SuggestOutput, error) {
	requestID := generateRequestID()

	docs, err := s.engine.Suggest(ctx, in.Prefix)
	if err != nil {
		s.logger.Error("mcp_suggest_failed",
			slog.String("request_id", requestID),
			slog.String("prefix", in.Prefix),
			slog.String("error", err.Error()))
		return "", SuggestOutput{}, MapError(err)
	}
	s.logger.Debug("mcp_suggest_completed",
		slog.String("request_id", requestID),
		slog.Int("documents", len(docs)))

	out := SuggestOutput{Documents: make([]DocumentOutput, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, DocumentOutput{ID: d.ID, Name: d.Name, Path: d.NodePath})
	}
	return FormatSuggestions(strings.TrimSpace(in.Prefix), docs), out, nil
}

// facets never fails: each facet degrades to empty inside the engine.
func (s *Server) facets(ctx context.Context, in FacetsInput) (string, FacetsOutput) {
	aggs := s.engine.Aggregations(ctx, in.Pattern)
	out := FacetsOutput{
		FileExtension: ToBucketOutputs(aggs[search.FacetFileExtension]),
		FileDate:      ToBucketOutputs(aggs[search.FacetFileDate]),
		FileCategory:  ToBucketOutputs(aggs[search.FacetFileCategory]),
	}
	return FormatFacets(in.Pattern, out), out
}

func (s *Server) topTerms(ctx context.Context, in TopTermsInput) (string, TopTermsOutput) {
	out := TopTermsOutput{Terms: ToBucketOutputs(s.engine.TopTerms(ctx, in.Pattern))}
	return FormatTerms(in.Pattern, out.Terms), out
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	text, out, err := s.search(ctx, in)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return textResult(text), out, nil
}

func (s *Server) mcpSuggestHandler(ctx context.Context, _ *mcp.CallToolRequest, in SuggestInput) (*mcp.CallToolResult, SuggestOutput, error) {
	text, out, err := s.suggest(ctx, in)
	if err != nil {
		return nil, SuggestOutput{}, err
	}
	return textResult(text), out, nil
}

func (s *Server) mcpFacetsHandler(ctx context.Context, _ *mcp.CallToolRequest, in FacetsInput) (*mcp.CallToolResult, FacetsOutput, error) {
	text, out := s.facets(ctx, in)
	return textResult(text), out, nil
}

func (s *Server) mcpTopTermsHandler(ctx context.Context, _ *mcp.CallToolRequest, in TopTermsInput) (*mcp.CallToolResult, TopTermsOutput, error) {
	text, out := s.topTerms(ctx, in)
	return textResult(text), out, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// Serve runs the server on transport until ctx is canceled. Only stdio is
// supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	if transport != "stdio" {
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}

	s.logger.Info("mcp_server_started", slog.String("transport", transport))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_failed", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

// generateRequestID creates a short id for log correlation.
func generateRequestID() string {
	return uuid.NewString()[:8]
}
