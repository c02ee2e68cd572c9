package idcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latintext/corpusquery/internal/types"
)

func TestEncodeDecodeCursorRoundTrip(t *testing.T) {
	c := types.Cursor{ResultIndex: 42, ResultID: 7, CandidateIndex: 1000000}

	token := EncodeCursor(c)
	decoded, err := DecodeCursor(token)

	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestEncodeCursorZeroValue(t *testing.T) {
	token := EncodeCursor(types.Cursor{})
	decoded, err := DecodeCursor(token)

	require.NoError(t, err)
	assert.True(t, decoded.IsZero())
}

func TestDecodeCursorEmptyTokenIsZeroCursor(t *testing.T) {
	decoded, err := DecodeCursor("")

	require.NoError(t, err)
	assert.True(t, decoded.IsZero())
}

func TestDecodeCursorRejectsMalformedToken(t *testing.T) {
	_, err := DecodeCursor("not-a-cursor")
	assert.Error(t, err)

	_, err = DecodeCursor("A.B")
	assert.Error(t, err)

	_, err = DecodeCursor("A.B.C.D")
	assert.Error(t, err)
}
