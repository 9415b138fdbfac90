package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/edm/internal/store"
)

// Resource URIs.
const (
	SourcesURI          = "edm://sources"
	DocumentURIPrefix   = "edm://documents/"
	DocumentURITemplate = DocumentURIPrefix + "{id}"
)

// registerResources adds the sources list when a catalog is configured and
// the document template when the index supports lookups.
func (s *Server) registerResources() {
	if s.catalog != nil {
		s.mcp.AddResource(&mcp.Resource{
			Name:        "sources",
			URI:         SourcesURI,
			Description: "Crawled sources with their category and latest crawl run",
			MIMEType:    "application/json",
		}, s.handleSourcesResource)
	}
	if s.documents != nil {
		s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
			Name:        "document",
			URITemplate: DocumentURITemplate,
			Description: "Metadata record of an indexed document by id",
			MIMEType:    "application/json",
		}, s.handleDocumentResource)
	}
}

func (s *Server) handleSourcesResource(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return s.readSources(ctx)
}

func (s *Server) readSources(ctx context.Context) (*mcp.ReadResourceResult, error) {
	if s.catalog == nil {
		return nil, NewResourceNotFoundError(SourcesURI)
	}
	sources, err := s.catalog.ListSources(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	return jsonResource(SourcesURI, sources)
}

func (s *Server) handleDocumentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return s.readDocument(ctx, req.Params.URI)
}

func (s *Server) readDocument(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	id, ok := strings.CutPrefix(uri, DocumentURIPrefix)
	if !ok || id == "" || strings.Contains(id, "/") || s.documents == nil {
		return nil, NewResourceNotFoundError(uri)
	}
	doc, err := s.documents.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NewResourceNotFoundError(uri)
	}
	if err != nil {
		return nil, MapError(err)
	}
	return jsonResource(uri, doc)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}
