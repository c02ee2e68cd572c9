package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/latintext/corpusquery/internal/engine"
	"github.com/latintext/corpusquery/internal/resolver"
	"github.com/latintext/corpusquery/internal/suggest"
)

// queryResponse is the corpus_query tool's JSON result shape: the Engine's
// QueryResult with NextPage re-expressed as an opaque string token instead
// of a raw cursor.
type queryResponse struct {
	Matches     []resolver.Match     `json:"matches"`
	Stats       engine.ResultStats   `json:"stats"`
	NextPage    string               `json:"next_page,omitempty"`
	Timing      []engine.PhaseTiming `json:"timing"`
	Suggestions []suggest.Suggestion `json:"suggestions,omitempty"`
}

// jsonResult marshals data as the tool's sole text content block.
func jsonResult(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: failed to marshal response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

// errorResult reports a tool-level failure per the MCP SDK convention:
// errors originating from the tool are returned as a result with
// IsError set, not as the call's Go error (that's reserved for transport
// failures).
func errorResult(operation string, err error) *mcp.CallToolResult {
	content, marshalErr := json.Marshal(map[string]any{
		"success":   false,
		"operation": operation,
		"error":     err.Error(),
	})
	if marshalErr != nil {
		content = []byte(`{"success":false,"error":"internal: failed to marshal error"}`)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
		IsError: true,
	}
}
