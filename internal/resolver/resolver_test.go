package resolver

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latintext/corpusquery/internal/byteio"
	"github.com/latintext/corpusquery/internal/corpusindex"
	"github.com/latintext/corpusquery/internal/posting"
	"github.com/latintext/corpusquery/internal/queryparse"
	"github.com/latintext/corpusquery/internal/types"
)

// buildFixture writes a 10-token, two-work corpus ("w0 w1 ... w9 "),
// work1 spanning tokens [0,5), work2 spanning [5,10). Token 1 carries two
// ambiguous analyses that individually satisfy either the lemma or the
// case constraint used by the cross-validation tests but never both at
// once; token 2 carries a single analysis satisfying both.
func buildFixture(t *testing.T) *corpusindex.Index {
	t.Helper()
	dir := t.TempDir()
	n := 10

	var text string
	tokenStart := make([]int, n)
	breakStart := make([]int, n)
	for i := 0; i < n; i++ {
		tokenStart[i] = len(text)
		text += fmt.Sprintf("w%d", i)
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

	require.NoError(t, os.WriteFile(filepath.Join(dir, "buffer.bin"), []byte{}, 0o644))

	// inflection offsets: packed (offset<<8 | length), both in u32 units.
	infloff := make([]byte, n*4)
	binary.LittleEndian.PutUint32(infloff[1*4:1*4+4], (0<<8)|4) // token1: offset 0, 2 analyses
	binary.LittleEndian.PutUint32(infloff[2*4:2*4+4], (4<<8)|2) // token2: offset 4, 1 analysis
	require.NoError(t, os.WriteFile(filepath.Join(dir, "infloff.bin"), infloff, 0o644))

	infldata := make([]byte, 24)
	putPair := func(at int, mask, lemma uint32) {
		binary.LittleEndian.PutUint32(infldata[at:at+4], mask)
		binary.LittleEndian.PutUint32(infldata[at+4:at+8], lemma)
	}
	putPair(0, 1, 7)  // token1 analysis 1: case-code1 (not dat), lemma 7 (amo)
	putPair(8, 4, 9)  // token1 analysis 2: case-code3 (dat), lemma 9 (not amo)
	putPair(16, 4, 7) // token2: case-code3 (dat) AND lemma 7 (amo) together
	require.NoError(t, os.WriteFile(filepath.Join(dir, "infldata.bin"), infldata, 0o644))

	desc := corpusindex.Descriptor{
		WorkLookup: []corpusindex.WorkEntry{
			{ID: 1, Name: "W1", Author: "Author A", FirstToken: 0, TokenCount: 5},
			{ID: 2, Name: "W2", Author: "Author B", FirstToken: 5, TokenCount: 5},
		},
		AuthorLookup:             map[string][]uint32{"Author A": {1}, "Author B": {2}},
		Stats:                    corpusindex.Stats{TotalWords: uint64(n), TotalWorks: 2},
		RawTextPath:              filepath.Join(dir, "text.bin"),
		RawBufferPath:            filepath.Join(dir, "buffer.bin"),
		TokenStartsPath:          filepath.Join(dir, "starts.bin"),
		InflectionsRawBufferPath: filepath.Join(dir, "infldata.bin"),
		InflectionsOffsetsPath:   filepath.Join(dir, "infloff.bin"),
		Indices:                  map[string]map[string]corpusindex.IndexEntry{},
		IDTable: map[string]map[string]uint32{
			"lemma": {"amo": 7},
			"case":  {"dat": 3},
		},
		NumTokens: uint64(n),
	}
	raw, err := json.Marshal(desc)
	require.NoError(t, err)
	descPath := filepath.Join(dir, "descriptor.json")
	require.NoError(t, os.WriteFile(descPath, raw, 0o644))

	idx, err := corpusindex.Open(context.Background(), descPath, byteio.ModeInMemory)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func wordTerm(value string) queryparse.QueryTerm {
	return queryparse.QueryTerm{Constraint: queryparse.Atom{Category: types.CategoryWord, Value: value}}
}

func TestResolveSingleSpanProducesOneMatchPerAnchor(t *testing.T) {
	idx := buildFixture(t)
	spans := []SpanCandidate{
		{Terms: []queryparse.QueryTerm{wordTerm("x")}, Data: posting.FromList(0, []uint32{1, 2, 3}), Length: 1},
	}

	res, err := Resolve(spans, idx, types.Cursor{}, 10, nil)
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{res.Matches[0].Anchor, res.Matches[1].Anchor, res.Matches[2].Anchor})
	assert.Equal(t, 0, res.Skipped)
}

func TestResolveRejectsSpanCrossingWorkBoundary(t *testing.T) {
	idx := buildFixture(t)
	// Length 2 anchored at token 4 covers tokens {4,5}, straddling the
	// work1/work2 boundary at token 5.
	spans := []SpanCandidate{
		{Terms: []queryparse.QueryTerm{wordTerm("x"), wordTerm("y")}, Data: posting.FromList(0, []uint32{4}), Length: 2},
	}

	res, err := Resolve(spans, idx, types.Cursor{}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Equal(t, 1, res.Skipped)
}

func TestFindLeadersRespectsProximityWindow(t *testing.T) {
	idx := buildFixture(t)
	spans := []SpanCandidate{
		{Terms: []queryparse.QueryTerm{wordTerm("a")}, Data: posting.FromList(0, []uint32{2}), Length: 1},
		{
			Terms:            []queryparse.QueryTerm{wordTerm("b")},
			RelationFromPrev: queryparse.Relation{Kind: queryparse.Proximity, Dist: 2, Directed: true},
			Data:             posting.FromList(0, []uint32{3, 4, 7}),
			Length:           1,
		},
	}

	tuples := buildTuples(2, spans)
	assert.Equal(t, [][]int{{2, 3}, {2, 4}}, tuples)

	res, err := Resolve(spans, idx, types.Cursor{}, 1, nil)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, []int{2, 3}, res.Matches[0].Leaders)
}

func TestValidateTupleRequiresSingleAnalysisToSatisfyBothConstraints(t *testing.T) {
	idx := buildFixture(t)
	term := queryparse.QueryTerm{Constraint: queryparse.And{Children: []queryparse.Constraint{
		queryparse.Atom{Category: types.CategoryLemma, Value: "amo"},
		queryparse.Atom{Category: types.CategoryCase, Value: "dat"},
	}}}

	rejected := []SpanCandidate{{Terms: []queryparse.QueryTerm{term}, Data: posting.FromList(0, []uint32{1}), Length: 1}}
	res, err := Resolve(rejected, idx, types.Cursor{}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Equal(t, 1, res.Skipped)

	accepted := []SpanCandidate{{Terms: []queryparse.QueryTerm{term}, Data: posting.FromList(0, []uint32{2}), Length: 1}}
	res2, err := Resolve(accepted, idx, types.Cursor{}, 10, nil)
	require.NoError(t, err)
	require.Len(t, res2.Matches, 1)
	assert.Equal(t, 2, res2.Matches[0].Anchor)
}

func TestResolveCursorResultIndexCountsOnlyValidatedMatches(t *testing.T) {
	idx := buildFixture(t)
	term := queryparse.QueryTerm{Constraint: queryparse.And{Children: []queryparse.Constraint{
		queryparse.Atom{Category: types.CategoryLemma, Value: "amo"},
		queryparse.Atom{Category: types.CategoryCase, Value: "dat"},
	}}}
	// token1 has two analyses that separately satisfy lemma/case but never
	// jointly, so it's scanned and rejected; token2 jointly satisfies both.
	spans := []SpanCandidate{{Terms: []queryparse.QueryTerm{term}, Data: posting.FromList(0, []uint32{1, 2, 3, 4}), Length: 1}}

	page, err := Resolve(spans, idx, types.Cursor{}, 1, nil)
	require.NoError(t, err)
	require.Len(t, page.Matches, 1)
	assert.Equal(t, 2, page.Matches[0].Anchor)
	assert.Equal(t, 1, page.Skipped)
	// One candidate (token1) was scanned and rejected before the match at
	// token2, so the raw scan position is ahead of the validated count.
	assert.EqualValues(t, 1, page.Next.ResultIndex)
	assert.EqualValues(t, 2, page.Next.CandidateIndex)

	next, err := Resolve(spans, idx, page.Next, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, next.Matches)
	assert.EqualValues(t, 1, next.Next.ResultIndex)
}

func TestResolveFiltersByAuthorRestriction(t *testing.T) {
	idx := buildFixture(t)
	spans := []SpanCandidate{
		// anchors 2 (work1, Author A) and 7 (work2, Author B)
		{Terms: []queryparse.QueryTerm{wordTerm("x")}, Data: posting.FromList(0, []uint32{2, 7}), Length: 1},
	}

	res, err := Resolve(spans, idx, types.Cursor{}, 10, []string{"Author B"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 7, res.Matches[0].Anchor)
	assert.Equal(t, 1, res.Skipped)
}

func TestAssembleMatchBuildsCoreAndContextSegments(t *testing.T) {
	idx := buildFixture(t)
	spans := []SpanCandidate{
		{Terms: []queryparse.QueryTerm{wordTerm("x")}, Data: posting.FromList(0, []uint32{2}), Length: 1},
	}
	cand := MatchCandidate{Anchor: 2, Leaders: []int{2}}

	m, err := AssembleMatch(cand, spans, idx, 1)
	require.NoError(t, err)
	assert.Equal(t, types.WorkID(1), m.Metadata.WorkID)
	assert.Equal(t, "W1", m.Metadata.WorkName)
	assert.Equal(t, "Author A", m.Metadata.Author)
	assert.Equal(t, 2, m.Metadata.Offset)

	require.NotEmpty(t, m.Text)
	var core []string
	for _, seg := range m.Text {
		if seg.IsCore {
			core = append(core, seg.Text)
		}
	}
	assert.Equal(t, []string{"w2"}, core)
}
