// Package testfixture builds small on-disk corpora for integration tests,
// in the same descriptor/blob layout internal/engine's own hand-written
// fixtures use, so every caller exercises the real descriptor loader and
// byte readers instead of a mock (spec §3, §6).
package testfixture

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latintext/corpusquery/internal/corpusindex"
)

// WorkSpec is one work's token range and metadata.
type WorkSpec struct {
	ID         uint32
	Name       string
	Author     string
	FirstToken uint32
	TokenCount uint32
}

// Corpus is a declarative corpus definition: a flat token stream (surface
// word forms), its works, and the list-shaped (category, value) -> token-id
// postings every query atom resolves against. HardBreaks lists token ids
// that are hard sentence-break positions; Build always emits the
// "breaks":"hard" bitmap entry breakfilter.ComputeMask requires for any
// span longer than one term, even when HardBreaks is empty.
type Corpus struct {
	Words      []string
	Works      []WorkSpec
	Indices    map[string]map[string][]uint32
	HardBreaks []uint32
}

// Build writes c to a temp directory and returns the descriptor path.
func Build(t *testing.T, c Corpus) string {
	t.Helper()
	dir := t.TempDir()
	n := len(c.Words)

	var text string
	tokenStart := make([]int, n)
	breakStart := make([]int, n)
	for i, w := range c.Words {
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

	var buf []byte
	indices := map[string]map[string]corpusindex.IndexEntry{}
	for _, category := range sortedKeys(c.Indices) {
		values := c.Indices[category]
		indices[category] = map[string]corpusindex.IndexEntry{}
		for _, value := range sortedKeys(values) {
			ids := values[value]
			offset := len(buf)
			for _, id := range ids {
				var b [4]byte
				binary.LittleEndian.PutUint32(b[:], id)
				buf = append(buf, b[:]...)
			}
			indices[category][value] = corpusindex.IndexEntry{
				Offset: uint64(offset),
				Len:    uint64(len(ids)),
				Kind:   "list",
			}
		}
	}

	breakWords := (n + 63) / 64
	if breakWords == 0 {
		breakWords = 1
	}
	breakBitmap := make([]uint64, breakWords)
	for _, id := range c.HardBreaks {
		breakBitmap[id/64] |= 1 << (63 - (id % 64))
	}
	breakOffset := len(buf)
	for _, word := range breakBitmap {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], word)
		buf = append(buf, b[:]...)
	}
	indices["breaks"] = map[string]corpusindex.IndexEntry{
		"hard": {Offset: uint64(breakOffset), NumSet: uint64(len(c.HardBreaks)), Kind: "bitmap"},
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "buffer.bin"), buf, 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "infloff.bin"), make([]byte, n*4), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "infldata.bin"), []byte{}, 0o644))

	authorLookup := map[string][]uint32{}
	workLookup := make([]corpusindex.WorkEntry, len(c.Works))
	for i, w := range c.Works {
		workLookup[i] = corpusindex.WorkEntry{
			ID: w.ID, Name: w.Name, Author: w.Author,
			FirstToken: w.FirstToken, TokenCount: w.TokenCount,
		}
		authorLookup[w.Author] = append(authorLookup[w.Author], w.ID)
	}

	desc := corpusindex.Descriptor{
		WorkLookup:               workLookup,
		AuthorLookup:             authorLookup,
		Stats:                    corpusindex.Stats{TotalWords: uint64(n), TotalWorks: uint64(len(c.Works))},
		RawTextPath:              filepath.Join(dir, "text.bin"),
		RawBufferPath:            filepath.Join(dir, "buffer.bin"),
		TokenStartsPath:          filepath.Join(dir, "starts.bin"),
		InflectionsRawBufferPath: filepath.Join(dir, "infldata.bin"),
		InflectionsOffsetsPath:   filepath.Join(dir, "infloff.bin"),
		Indices:                  indices,
		IDTable:                  map[string]map[string]uint32{},
		NumTokens:                uint64(n),
	}
	raw, err := json.Marshal(desc)
	require.NoError(t, err)
	descPath := filepath.Join(dir, "descriptor.json")
	require.NoError(t, os.WriteFile(descPath, raw, 0o644))
	return descPath
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Latin builds the corpus exercised by the end-to-end scenarios (spec §8):
// gift-giving couplets for the lemma/case span test, a declension triple
// for the three-case span test, a love-poem pair for the proximity tests
// (one in amo-then-puella order within range, one in reverse order to
// distinguish directed from undirected proximity), and a Cicero/non-Cicero
// pair of "est" occurrences for the author-restriction test. Four-token
// "et et et et" fillers separate every section so a span's proximity
// window (max distance 3 in these scenarios) never leaks into the
// neighbouring section's candidates.
func Latin() Corpus {
	words := []string{
		"dedit", "oscula", "nato", // 0-2: Gift I — do + oscula + dat
		"donavit", "oscula", "patri", // 3-5: Gift II — do + oscula + dat
		"mater", "oscula", "fert", // 6-8: Distractor — bare "oscula"
		"et", "et", "et", "et", // 9-12: filler
		"puella", "matri", "rosam", // 13-15: Declension — nom, dat, acc
		"et", "et", "et", "et", // 16-19: filler
		"amat", "puer", "puella", "ridet", "cras", // 20-24: Love I — amo .. puella (dist 2, forward)
		"et", "et", "et", "et", // 25-28: filler
		"puella", "canit", "amat", "hodie", // 29-32: Love II — puella .. amo (dist 2, reverse)
		"et", "et", "et", "et", // 33-36: filler
		"oratio", "est", // 37-38: Cicero
		"et", "et", "et", "et", // 39-42: filler
		"navis", "est", // 43-44: non-Cicero
	}

	return Corpus{
		Words: words,
		Works: []WorkSpec{
			{ID: 1, Name: "Gift I", Author: "Anonymous", FirstToken: 0, TokenCount: 3},
			{ID: 2, Name: "Gift II", Author: "Anonymous", FirstToken: 3, TokenCount: 3},
			{ID: 3, Name: "Distractor", Author: "Anonymous", FirstToken: 6, TokenCount: 3},
			{ID: 4, Name: "Filler I", Author: "Anonymous", FirstToken: 9, TokenCount: 4},
			{ID: 5, Name: "Declension", Author: "Anonymous", FirstToken: 13, TokenCount: 3},
			{ID: 6, Name: "Filler II", Author: "Anonymous", FirstToken: 16, TokenCount: 4},
			{ID: 7, Name: "Love I", Author: "Anonymous", FirstToken: 20, TokenCount: 5},
			{ID: 8, Name: "Filler III", Author: "Anonymous", FirstToken: 25, TokenCount: 4},
			{ID: 9, Name: "Love II", Author: "Anonymous", FirstToken: 29, TokenCount: 4},
			{ID: 10, Name: "Filler IV", Author: "Anonymous", FirstToken: 33, TokenCount: 4},
			{ID: 11, Name: "Cicero I", Author: "Cicero", FirstToken: 37, TokenCount: 2},
			{ID: 12, Name: "Filler V", Author: "Anonymous", FirstToken: 39, TokenCount: 4},
			{ID: 13, Name: "Anonymous I", Author: "Anonymous", FirstToken: 43, TokenCount: 2},
		},
		Indices: map[string]map[string][]uint32{
			"word": {
				"dedit": {0}, "oscula": {1, 4, 7}, "nato": {2},
				"donavit": {3}, "patri": {5},
				"mater": {6}, "fert": {8},
				"matri": {14}, "rosam": {15},
				"puer": {21}, "ridet": {23}, "cras": {24},
				"canit": {30}, "hodie": {32},
				"oratio": {37}, "est": {38, 44}, "navis": {43},
			},
			"lemma": {
				"do":     {0, 3},
				"amo":    {20, 31},
				"puella": {13, 22, 29},
			},
			"case": {
				"nom": {13},
				"dat": {2, 5, 14},
				"acc": {15},
			},
		},
	}
}
