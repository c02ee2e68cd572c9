package idcodec

import (
	"strings"

	"github.com/latintext/corpusquery/internal/types"
)

// cursorSep joins a cursor's three base-63 fields. It cannot appear in the
// base-63 alphabet itself, so splitting is unambiguous.
const cursorSep = "."

// EncodeCursor serialises a types.Cursor into the opaque page token callers
// pass back across the Engine API, CLI, and MCP boundary (spec §6).
func EncodeCursor(c types.Cursor) string {
	return strings.Join([]string{
		Encode(c.ResultIndex),
		Encode(c.ResultID),
		Encode(c.CandidateIndex),
	}, cursorSep)
}

// DecodeCursor parses a page token produced by EncodeCursor. An empty token
// decodes to the zero cursor (the first page).
func DecodeCursor(token string) (types.Cursor, error) {
	if token == "" {
		return types.Cursor{}, nil
	}
	parts := strings.Split(token, cursorSep)
	if len(parts) != 3 {
		return types.Cursor{}, ErrInvalidChar
	}
	resultIndex, err := Decode(parts[0])
	if err != nil {
		return types.Cursor{}, err
	}
	resultID, err := Decode(parts[1])
	if err != nil {
		return types.Cursor{}, err
	}
	candidateIndex, err := Decode(parts[2])
	if err != nil {
		return types.Cursor{}, err
	}
	return types.Cursor{
		ResultIndex:    resultIndex,
		ResultID:       resultID,
		CandidateIndex: candidateIndex,
	}, nil
}
