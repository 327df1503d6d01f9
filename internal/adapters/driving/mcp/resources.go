package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

const (
	documentsURI = "docqa://documents"
	healthURI    = "docqa://health"
)

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         documentsURI,
		Name:        "documents",
		Description: "Every uploaded document with its processing status, newest first",
		MIMEType:    "application/json",
	}, s.readDocuments)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: documentsURI + "/{documentId}",
		Name:        "document",
		Description: "One document's metadata, status and chunk count",
		MIMEType:    "application/json",
	}, s.readDocument)

	if s.ports.Health != nil {
		s.server.AddResource(&mcp.Resource{
			URI:         healthURI,
			Name:        "health",
			Description: "Reachability of the embedding, generation, index and metadata backends",
			MIMEType:    "application/json",
		}, s.readHealth)
	}
}

func (s *Server) readDocuments(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	docs, err := s.ports.Documents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	out := make([]DocumentOutput, 0, len(docs))
	for i := range docs {
		out = append(out, documentOutput(&docs[i]))
	}
	return jsonContents(req.Params.URI, out)
}

func (s *Server) readDocument(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	id, ok := documentIDFromURI(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	doc, err := s.ports.Documents.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	case err != nil:
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return jsonContents(req.Params.URI, documentOutput(doc))
}

func (s *Server) readHealth(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonContents(req.Params.URI, healthOutput(s.ports.Health.Check(ctx)))
}

func jsonContents(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: "application/json", Text: string(data)}},
	}, nil
}

// documentIDFromURI parses docqa://documents/{id}. Ids never contain a slash.
func documentIDFromURI(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "docqa" || u.Host != "documents" {
		return "", false
	}
	id := strings.TrimPrefix(u.Path, "/")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
