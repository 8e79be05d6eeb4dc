package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Resource URIs.
const (
	StatusResourceURI     = "foldersearch://status"
	StatusJSONResourceURI = "foldersearch://status.json"
)

func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "status",
			URI:         StatusResourceURI,
			Description: "Index status for the served folder",
			MIMEType:    "text/markdown",
		},
		s.resourceHandler(StatusResourceURI),
	)
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "status.json",
			URI:         StatusJSONResourceURI,
			Description: "Index status for the served folder as JSON",
			MIMEType:    "application/json",
		},
		s.resourceHandler(StatusJSONResourceURI),
	)
	s.logger.Debug("mcp_resources_registered", slog.Int("count", 2))
}

func (s *Server) resourceHandler(uri string) mcp.ResourceHandler {
	return func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		text, mimeType, err := s.ReadResource(uri)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      uri,
				MIMEType: mimeType,
				Text:     text,
			}},
		}, nil
	}
}

// ReadResource renders the resource at uri, returning its text and MIME type.
func (s *Server) ReadResource(uri string) (text, mimeType string, err error) {
	st, err := s.status()
	if err != nil {
		return "", "", err
	}
	switch uri {
	case StatusResourceURI:
		return FormatStatus(st), "text/markdown", nil
	case StatusJSONResourceURI:
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return "", "", MapError(err)
		}
		return string(data), "application/json", nil
	default:
		return "", "", NewResourceNotFoundError(uri)
	}
}
