// Package mcpserver exposes internal/engine's Query operation as a single
// MCP tool, corpus_query, for MCP-speaking assistants (SPEC_FULL §6).
package mcpserver

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/latintext/corpusquery/internal/engine"
)

// Server wraps an open Engine and the MCP server it's registered against.
type Server struct {
	eng    *engine.Engine
	server *mcp.Server
}

// New builds a Server around eng and registers its tools.
func New(eng *engine.Engine) *Server {
	s := &Server{
		eng: eng,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "corpusquery-mcp",
			Version: "0.1.0",
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves the registered tools over stdio until ctx is cancelled or the
// transport closes.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "corpus_query",
		Description: "Run a corpus query against the Latin text index and return one page of matches with metadata, context, pagination, and did-you-mean suggestions.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Query string, e.g. \"[Cicero] @lemma:amor 1~> @case:acc\"",
				},
				"page_start": {
					Type:        "string",
					Description: "Opaque page token from a previous result's next_page, empty for the first page",
				},
				"page_size": {
					Type:        "integer",
					Description: "Maximum matches to return, default 25",
				},
				"context_len": {
					Type:        "integer",
					Description: "Tokens of surrounding context per match, default 25, clamped to [1,100]",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleCorpusQuery)
}
