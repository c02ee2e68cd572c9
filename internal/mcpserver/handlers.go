package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/latintext/corpusquery/internal/idcodec"
	"github.com/latintext/corpusquery/internal/types"
)

// corpusQueryParams is the corpus_query tool's decoded input.
type corpusQueryParams struct {
	Query      string `json:"query"`
	PageStart  string `json:"page_start,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`
	ContextLen int    `json:"context_len,omitempty"`
}

func (s *Server) handleCorpusQuery(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params corpusQueryParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResult("corpus_query", fmt.Errorf("invalid parameters: %w", err)), nil
	}

	pageStart, err := idcodec.DecodeCursor(params.PageStart)
	if err != nil {
		return errorResult("corpus_query", fmt.Errorf("invalid page_start: %w", err)), nil
	}

	result, err := s.eng.Query(ctx, params.Query, pageStart, params.PageSize, params.ContextLen)
	if err != nil {
		return errorResult("corpus_query", err), nil
	}

	return jsonResult(queryResponse{
		Matches:     result.Matches,
		Stats:       result.Stats,
		NextPage:    encodeNextPage(result.NextPage),
		Timing:      result.Timing,
		Suggestions: result.Suggestions,
	})
}

func encodeNextPage(c *types.Cursor) string {
	if c == nil {
		return ""
	}
	return idcodec.EncodeCursor(*c)
}
