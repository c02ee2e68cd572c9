package corpusindex

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
	"github.com/latintext/corpusquery/internal/types"
)

// buildFixture writes a tiny 3-token corpus ("dedit oscula nato ") to a
// temp directory and returns the descriptor path. Token 2 ("nato") is the
// only token with a bitmap posting (word:nato); token 0 ("dedit") is a
// list posting (word:dedit) to exercise both shapes.
func buildFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	text := "dedit oscula nato "
	require.NoError(t, os.WriteFile(filepath.Join(dir, "text.bin"), []byte(text), 0o644))

	// tokens: dedit[0,5) break[5,6); oscula[6,12) break[12,13);
	// nato[13,17) break[17,18); numTokens=3
	tokenStarts := make([]byte, 0, 24)
	pairs := [][2]uint32{{0, 5}, {6, 12}, {13, 17}}
	for _, p := range pairs {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint32(b[0:4], p[0])
		binary.LittleEndian.PutUint32(b[4:8], p[1])
		tokenStarts = append(tokenStarts, b...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "starts.bin"), tokenStarts, 0o644))

	// buffer: list posting for word:dedit = [0] at offset 0 (4 bytes),
	// then padding to 8-byte boundary, then bitmap posting for word:nato
	// (3 tokens -> 1 word) with bit 2 set, at offset 8.
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], 0) // list element: token 0
	// bits MSB-first: bit 2 of word 0 -> word |= 1<<(63-2)
	word := uint64(1) << (63 - 2)
	binary.LittleEndian.PutUint64(buf[8:16], word)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "buffer.bin"), buf, 0o644))

	// inflection offsets: token 0 -> offset 0, length 2 (one analysis);
	// tokens 1,2 -> no analyses.
	offsets := make([]byte, 12)
	packed0 := uint32(0)<<8 | uint32(2)
	binary.LittleEndian.PutUint32(offsets[0:4], packed0)
	binary.LittleEndian.PutUint32(offsets[4:8], 0)
	binary.LittleEndian.PutUint32(offsets[8:12], 0)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "infloff.bin"), offsets, 0o644))

	// inflection data: one (mask, lemma) pair for token 0.
	infldata := make([]byte, 8)
	binary.LittleEndian.PutUint32(infldata[0:4], 0xAB) // mask
	binary.LittleEndian.PutUint32(infldata[4:8], 42)    // lemma
	require.NoError(t, os.WriteFile(filepath.Join(dir, "infldata.bin"), infldata, 0o644))

	desc := Descriptor{
		WorkLookup: []WorkEntry{
			{ID: 1, Name: "Test Work", Author: "Testus", FirstToken: 0, TokenCount: 3,
				Rows: []RowEntry{{Section: "1.1", FirstToken: 0, TokenCount: 3}}},
		},
		AuthorLookup: map[string][]uint32{"Testus": {1}},
		Stats:        Stats{TotalWords: 3, TotalWorks: 1, UniqueWords: 3, UniqueLemmata: 1},
		RawTextPath:              filepath.Join(dir, "text.bin"),
		RawBufferPath:            filepath.Join(dir, "buffer.bin"),
		TokenStartsPath:          filepath.Join(dir, "starts.bin"),
		InflectionsRawBufferPath: filepath.Join(dir, "infldata.bin"),
		InflectionsOffsetsPath:   filepath.Join(dir, "infloff.bin"),
		Indices: map[string]map[string]IndexEntry{
			"word": {
				"dedit": {Offset: 0, Len: 1, Kind: "list"},
				"nato":  {Offset: 8, NumSet: 1, Kind: "bitmap"},
			},
		},
		IDTable:   map[string]map[string]uint32{"word": {"dedit": 1, "oscula": 2, "nato": 3}},
		NumTokens: 3,
	}
	raw, err := json.Marshal(desc)
	require.NoError(t, err)
	descPath := filepath.Join(dir, "descriptor.json")
	require.NoError(t, os.WriteFile(descPath, raw, 0o644))
	return descPath
}

func TestOpenAndTokenOffsets(t *testing.T) {
	descPath := buildFixture(t)
	idx, err := Open(context.Background(), descPath, byteio.ModeInMemory)
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, 3, idx.NumTokens())

	start, err := idx.TokenStart(1)
	require.NoError(t, err)
	assert.Equal(t, 6, start)

	brk, err := idx.BreakStart(1)
	require.NoError(t, err)
	assert.Equal(t, 12, brk)

	slice, err := idx.TextSlice(6, 12)
	require.NoError(t, err)
	assert.Equal(t, "oscula", string(slice))
}

func TestResolveIndexListShape(t *testing.T) {
	descPath := buildFixture(t)
	idx, err := Open(context.Background(), descPath, byteio.ModeInMemory)
	require.NoError(t, err)
	defer idx.Close()

	p, err := idx.ResolveIndex("word", "dedit", 0)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, p.List)

	// Second lookup should hit the cache and still be correct.
	p2, err := idx.ResolveIndex("word", "dedit", 0)
	require.NoError(t, err)
	assert.Equal(t, p.List, p2.List)
}

func TestResolveIndexBitmapShape(t *testing.T) {
	descPath := buildFixture(t)
	idx, err := Open(context.Background(), descPath, byteio.ModeInMemory)
	require.NoError(t, err)
	defer idx.Close()

	p, err := idx.ResolveIndex("word", "nato", 0)
	require.NoError(t, err)
	require.Equal(t, 1, p.Bitmap.PopCount())
	assert.True(t, p.Bitmap.Bit(2))
	assert.False(t, p.Bitmap.Bit(0))
}

func TestResolveIndexUnknownAtomIsEmptyNotError(t *testing.T) {
	descPath := buildFixture(t)
	idx, err := Open(context.Background(), descPath, byteio.ModeInMemory)
	require.NoError(t, err)
	defer idx.Close()

	p, err := idx.ResolveIndex("word", "nonexistent", 0)
	require.NoError(t, err)
	assert.True(t, p.IsEmpty())
}

func TestInflectionData(t *testing.T) {
	descPath := buildFixture(t)
	idx, err := Open(context.Background(), descPath, byteio.ModeInMemory)
	require.NoError(t, err)
	defer idx.Close()

	analyses, err := idx.InflectionData(0)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.Equal(t, types.LemmaID(42), analyses[0].Lemma)
	assert.Equal(t, uint32(0xAB), analyses[0].Mask)

	none, err := idx.InflectionData(1)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWorkAtAndRowAt(t *testing.T) {
	descPath := buildFixture(t)
	idx, err := Open(context.Background(), descPath, byteio.ModeInMemory)
	require.NoError(t, err)
	defer idx.Close()

	w, ok := idx.WorkAt(1)
	require.True(t, ok)
	assert.Equal(t, "Test Work", w.Name)

	row, ok := idx.RowAt(w, 2)
	require.True(t, ok)
	assert.Equal(t, "1.1", row.Section)
}

func TestLoadDescriptorRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadDescriptor(path)
	assert.Error(t, err)
}

func TestLoadDescriptorRejectsMissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "incomplete.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"workLookup":[]}`), 0o644))

	_, err := LoadDescriptor(path)
	assert.Error(t, err)
}
