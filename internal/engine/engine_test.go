package engine

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latintext/corpusquery/internal/byteio"
	"github.com/latintext/corpusquery/internal/corpuserr"
	"github.com/latintext/corpusquery/internal/corpusindex"
	"github.com/latintext/corpusquery/internal/types"
)

// buildFixture writes a 10-token, two-work corpus: "a it b it c" (work1,
// Author A, tokens 0-4) then "d it e it f" (work2, AuthorB, tokens 5-9).
// "it" occurs at anchors {1,3,6,8}. A hard break sits at token 3, so the
// two-token span "it c" anchored at 3 (tokens {3,4}) is break-filtered
// out even though it satisfies the word constraints.
func buildFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	words := []string{"a", "it", "b", "it", "c", "d", "it", "e", "it", "f"}
	n := len(words)

	var text string
	tokenStart := make([]int, n)
	breakStart := make([]int, n)
	for i, w := range words {
		tokenStart[i] = len(text)
		text += w
		breakStart[i] = len(text)
		text += " "
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "text.bin"), []byte(text), 0o644))

	starts := make([]byte, n*8)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(starts[i*8:i*8+4], uint32(tokenStart[i]))
		binary.LittleEndian.PutUint32(starts[i*8+4:i*8+8], uint32(breakStart[i]))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "starts.bin"), starts, 0o644))

	// buffer: "it" list {1,3,6,8} at offset 0 (16 bytes), "b" list {2} at
	// offset 16 (4 bytes), "c" list {4} at offset 20 (4 bytes), then a
	// breaks:hard bitmap (1 word, bit 3 set) at offset 24.
	buf := make([]byte, 32)
	for i, id := range []uint32{1, 3, 6, 8} {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], id)
	}
	binary.LittleEndian.PutUint32(buf[16:20], 2)
	binary.LittleEndian.PutUint32(buf[20:24], 4)
	var word uint64
	word |= 1 << (63 - uint(3))
	binary.LittleEndian.PutUint64(buf[24:32], word)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "buffer.bin"), buf, 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "infloff.bin"), make([]byte, n*4), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "infldata.bin"), []byte{}, 0o644))

	desc := corpusindex.Descriptor{
		WorkLookup: []corpusindex.WorkEntry{
			{ID: 1, Name: "W1", Author: "Author A", FirstToken: 0, TokenCount: 5},
			{ID: 2, Name: "W2", Author: "AuthorB", FirstToken: 5, TokenCount: 5},
		},
		AuthorLookup:             map[string][]uint32{"Author A": {1}, "AuthorB": {2}},
		Stats:                    corpusindex.Stats{TotalWords: uint64(n), TotalWorks: 2},
		RawTextPath:              filepath.Join(dir, "text.bin"),
		RawBufferPath:            filepath.Join(dir, "buffer.bin"),
		TokenStartsPath:          filepath.Join(dir, "starts.bin"),
		InflectionsRawBufferPath: filepath.Join(dir, "infldata.bin"),
		InflectionsOffsetsPath:   filepath.Join(dir, "infloff.bin"),
		Indices: map[string]map[string]corpusindex.IndexEntry{
			"word":   {"it": {Offset: 0, Len: 4, Kind: "list"}, "b": {Offset: 16, Len: 1, Kind: "list"}, "c": {Offset: 20, Len: 1, Kind: "list"}},
			"breaks": {"hard": {Offset: 24, NumSet: 1, Kind: "bitmap"}},
		},
		IDTable:   map[string]map[string]uint32{},
		NumTokens: uint64(n),
	}
	raw, err := json.Marshal(desc)
	require.NoError(t, err)
	descPath := filepath.Join(dir, "descriptor.json")
	require.NoError(t, os.WriteFile(descPath, raw, 0o644))
	return descPath
}

func openFixture(t *testing.T) *Engine {
	t.Helper()
	descPath := buildFixture(t)
	e, err := Open(context.Background(), descPath, byteio.ModeInMemory)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestQuerySingleTermReturnsOneMatchWithMetadata(t *testing.T) {
	e := openFixture(t)
	res, err := e.Query(context.Background(), "@word:b", types.Cursor{}, 10, 1)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, types.WorkID(1), res.Matches[0].Metadata.WorkID)
	assert.Equal(t, "Author A", res.Matches[0].Metadata.Author)
	assert.Equal(t, uint64(1), res.Stats.TotalResults)
	assert.True(t, res.Stats.ExactCount)
	assert.Nil(t, res.NextPage)
}

func TestQueryProximityJoinsTwoSpans(t *testing.T) {
	e := openFixture(t)
	res, err := e.Query(context.Background(), "@word:it 1~> @word:b", types.Cursor{}, 10, 1)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, types.WorkID(1), res.Matches[0].Metadata.WorkID)
}

func TestQueryBreakFilterRejectsSpanStraddlingHardBreak(t *testing.T) {
	e := openFixture(t)
	// Anchored at 3, covering tokens {3,4} = "it c": satisfies the word
	// constraints but token 3 is a hard break position.
	res, err := e.Query(context.Background(), "@word:it @word:c", types.Cursor{}, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.True(t, res.Stats.ExactCount)
	assert.Equal(t, uint64(0), res.Stats.TotalResults)
}

func TestQueryPaginatesOnePerPageAndResumes(t *testing.T) {
	e := openFixture(t)

	var cur types.Cursor
	var offsets []int
	for i := 0; i < 4; i++ {
		res, err := e.Query(context.Background(), "@word:it", cur, 1, 1)
		require.NoError(t, err)
		require.Lenf(t, res.Matches, 1, "page %d", i)
		offsets = append(offsets, res.Matches[0].Metadata.Offset)
		if i < 3 {
			require.NotNilf(t, res.NextPage, "page %d should report a next page", i)
			cur = *res.NextPage
		} else {
			assert.Nil(t, res.NextPage)
		}
	}
	assert.Equal(t, []int{1, 3, 1, 3}, offsets)
}

func TestQueryFiltersByAuthorRestriction(t *testing.T) {
	e := openFixture(t)
	res, err := e.Query(context.Background(), "[AuthorB] @word:it", types.Cursor{}, 10, 1)
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	for _, m := range res.Matches {
		assert.Equal(t, "AuthorB", m.Metadata.Author)
	}
}

func TestQueryReturnsCancelledWhenContextAlreadyDone(t *testing.T) {
	e := openFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Query(ctx, "@word:it", types.Cursor{}, 10, 1)
	require.Error(t, err)
	var c *corpuserr.Cancelled
	require.ErrorAs(t, err, &c)
}

func TestQueryEmptyStringProducesEmptyResult(t *testing.T) {
	e := openFixture(t)
	res, err := e.Query(context.Background(), "", types.Cursor{}, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.True(t, res.Stats.ExactCount)
}
