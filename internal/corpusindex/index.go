package corpusindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/latintext/corpusquery/internal/bitmask"
	"github.com/latintext/corpusquery/internal/byteio"
	"github.com/latintext/corpusquery/internal/cache"
	"github.com/latintext/corpusquery/internal/corpuserr"
	"github.com/latintext/corpusquery/internal/posting"
	"github.com/latintext/corpusquery/internal/types"
)

// Index is the open, immutable view over one corpus's on-disk files: the
// decoded descriptor plus the byte readers for text, token starts, the
// postings buffer, and the inflection tables (spec §4.4).
type Index struct {
	Descriptor *Descriptor

	text          byteio.Reader
	tokenStarts   byteio.Reader
	buffer        byteio.Reader
	inflOffsets   byteio.Reader
	inflData      byteio.Reader

	numTokens int
	cache     *cache.PostingCache

	works []types.Work // built from Descriptor.WorkLookup, sorted ascending by FirstToken
}

// Open reads the descriptor at descriptorPath, validates it, and opens
// its backing files concurrently (SPEC_FULL §4.3 — each mmap is
// independent and dominated by syscall latency, not CPU).
func Open(ctx context.Context, descriptorPath string, mode byteio.Mode) (*Index, error) {
	d, err := LoadDescriptor(descriptorPath)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		Descriptor: d,
		numTokens:  int(d.NumTokens),
		cache:      cache.New(cache.DefaultMaxEntries),
	}

	type opened = struct {
		target *byteio.Reader
		path   string
	}
	targets := []opened{
		{&idx.text, d.RawTextPath},
		{&idx.tokenStarts, d.TokenStartsPath},
		{&idx.buffer, d.RawBufferPath},
		{&idx.inflOffsets, d.InflectionsOffsetsPath},
		{&idx.inflData, d.InflectionsRawBufferPath},
	}

	g, _ := errgroup.WithContext(ctx)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			r, err := byteio.Open(t.path, mode)
			if err != nil {
				return corpuserr.NewIndexOpenError(t.path, "failed to open backing file", err)
			}
			*t.target = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		idx.closeOpened(targets)
		return nil, err
	}

	idx.works = buildWorks(d.WorkLookup)
	return idx, nil
}

func (idx *Index) closeOpened(targets []struct {
	target *byteio.Reader
	path   string
}) {
	for _, t := range targets {
		if *t.target != nil {
			(*t.target).Close()
		}
	}
}

func buildWorks(entries []WorkEntry) []types.Work {
	out := make([]types.Work, len(entries))
	for i, e := range entries {
		out[i] = types.Work{
			ID:         types.WorkID(e.ID),
			Name:       e.Name,
			Author:     e.Author,
			FirstToken: types.TokenID(e.FirstToken),
			TokenCount: e.TokenCount,
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FirstToken < out[j].FirstToken })
	return out
}

// Close releases all backing file readers.
func (idx *Index) Close() error {
	var errs []error
	for _, r := range []byteio.Reader{idx.text, idx.tokenStarts, idx.buffer, idx.inflOffsets, idx.inflData} {
		if r != nil {
			if err := r.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return corpuserr.NewMultiError(errs)
}

// NumTokens returns N, the corpus-wide token count.
func (idx *Index) NumTokens() int { return idx.numTokens }

// TokenStart returns token_start[i]: the byte offset in the text file
// where token i begins.
func (idx *Index) TokenStart(i types.TokenID) (int, error) {
	return idx.readPairedOffset(i, 0)
}

// BreakStart returns break_start[i]: the byte offset where token i's
// trailing break begins.
func (idx *Index) BreakStart(i types.TokenID) (int, error) {
	return idx.readPairedOffset(i, 1)
}

func (idx *Index) readPairedOffset(i types.TokenID, slot int) (int, error) {
	if int(i) < 0 || int(i) >= idx.numTokens {
		return 0, corpuserr.NewInvariantFailure(fmt.Sprintf("token id %d out of range [0,%d)", i, idx.numTokens))
	}
	byteOff := (int(i)*2 + slot) * 4
	raw, err := idx.tokenStarts.Bytes(byteOff, byteOff+4)
	if err != nil {
		return 0, corpuserr.NewMalformedIndex(fmt.Sprintf("token-starts file too short for token %d: %v", i, err))
	}
	return int(binary.LittleEndian.Uint32(raw)), nil
}

// TextSlice returns the raw UTF-8 bytes of the text file in [lo, hi).
func (idx *Index) TextSlice(lo, hi int) ([]byte, error) {
	b, err := idx.text.Bytes(lo, hi)
	if err != nil {
		return nil, corpuserr.NewMalformedIndex(fmt.Sprintf("text slice [%d,%d) out of bounds: %v", lo, hi, err))
	}
	return b, nil
}

// AdviseTextWillNeed hints the OS to read ahead the text file range,
// used once per page before fetching match context chunks (spec §4.10).
func (idx *Index) AdviseTextWillNeed(lo, hi int) error {
	if lo >= hi {
		return nil
	}
	return idx.text.AdviseWillNeed(lo, hi)
}

// ResolveIndex materialises the posting for (category, value), consulting
// and populating the decode cache (SPEC_FULL §4.4). pos is the query-term
// position the caller will tag the returned posting with.
func (idx *Index) ResolveIndex(category, value string, pos int) (posting.Posting, error) {
	key := category + ":" + value
	if cached, ok := idx.cache.Get(key); ok {
		cached.Pos = pos
		return cached, nil
	}

	entry, ok := idx.Descriptor.LookupEntry(category, value)
	if !ok {
		// Unknown atom: empty posting, not an error (spec §7).
		empty := posting.FromList(pos, nil)
		return empty, nil
	}

	p, err := idx.resolveEntry(entry, pos)
	if err != nil {
		return posting.Posting{}, err
	}
	idx.cache.Put(key, p)
	return p, nil
}

func (idx *Index) resolveEntry(entry IndexEntry, pos int) (posting.Posting, error) {
	switch entry.Kind {
	case "bitmap":
		return idx.resolveBitmap(entry, pos)
	default:
		return idx.resolveList(entry, pos)
	}
}

func (idx *Index) resolveList(entry IndexEntry, pos int) (posting.Posting, error) {
	n := int(entry.Len)
	start := int(entry.Offset)
	end := start + n*4
	raw, err := idx.buffer.Bytes(start, end)
	if err != nil {
		return posting.Posting{}, corpuserr.NewMalformedIndex(fmt.Sprintf("list posting at offset %d/len %d overruns buffer: %v", start, n, err))
	}
	if start%4 != 0 {
		return posting.Posting{}, corpuserr.NewMalformedIndex(fmt.Sprintf("list posting at offset %d is not 4-byte aligned", start))
	}
	list := make([]uint32, n)
	for i := 0; i < n; i++ {
		list[i] = binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
	}
	return posting.FromList(pos, list), nil
}

func (idx *Index) resolveBitmap(entry IndexEntry, pos int) (posting.Posting, error) {
	words := bitmask.WordsFor(idx.numTokens)
	start := int(entry.Offset)
	if start%8 != 0 {
		return posting.Posting{}, corpuserr.NewMalformedIndex(fmt.Sprintf("bitmap posting at offset %d is not 8-byte aligned", start))
	}
	end := start + words*8
	raw, err := idx.buffer.Bytes(start, end)
	if err != nil {
		return posting.Posting{}, corpuserr.NewMalformedIndex(fmt.Sprintf("bitmap posting at offset %d overruns buffer: %v", start, err))
	}
	m := bitmask.New(idx.numTokens)
	for i := 0; i < words; i++ {
		m.Words[i] = binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
	}
	return posting.FromBitmap(pos, m), nil
}

// NumElements returns a posting's cardinality without fully decoding it
// when a precomputed count is available (list length or bitmap popcount).
func (idx *Index) NumElements(entry IndexEntry) int {
	if entry.Kind == "bitmap" {
		return int(entry.NumSet)
	}
	return int(entry.Len)
}

// InflectionData returns the decoded (lemma, mask) analyses recorded for
// token i. The offsets-file record packs a u32-count offset (high 24
// bits) and record length in u32s (low 8 bits); the data file stores
// (mask, lemma) pairs in that order (spec §3, §6).
func (idx *Index) InflectionData(i types.TokenID) ([]types.Analysis, error) {
	if int(i) < 0 || int(i) >= idx.numTokens {
		return nil, corpuserr.NewInvariantFailure(fmt.Sprintf("token id %d out of range [0,%d)", i, idx.numTokens))
	}
	offRaw, err := idx.inflOffsets.Bytes(int(i)*4, int(i)*4+4)
	if err != nil {
		return nil, corpuserr.NewMalformedIndex(fmt.Sprintf("inflection offsets file too short for token %d: %v", i, err))
	}
	packed := binary.LittleEndian.Uint32(offRaw)
	offset := packed >> 8
	length := packed & 0xFF // length in u32s; consumed in (mask,lemma) pairs

	if length%2 != 0 {
		return nil, corpuserr.NewMalformedIndex(fmt.Sprintf("inflection record length %d for token %d is not a multiple of 2", length, i))
	}

	start := int(offset) * 4
	end := start + int(length)*4
	raw, err := idx.inflData.Bytes(start, end)
	if err != nil {
		return nil, corpuserr.NewMalformedIndex(fmt.Sprintf("inflection data for token %d overruns buffer: %v", i, err))
	}

	n := int(length) / 2
	out := make([]types.Analysis, n)
	for k := 0; k < n; k++ {
		mask := binary.LittleEndian.Uint32(raw[k*8 : k*8+4])
		lemma := binary.LittleEndian.Uint32(raw[k*8+4 : k*8+8])
		out[k] = types.Analysis{Lemma: types.LemmaID(lemma), Mask: mask}
	}
	return out, nil
}

// WorkAt returns the work containing token i via binary search over work
// ranges (spec §4.10 "metadata resolved by binary search over work ranges").
func (idx *Index) WorkAt(i types.TokenID) (types.Work, bool) {
	works := idx.works
	n := len(works)
	j := sort.Search(n, func(k int) bool { return works[k].End() > i })
	if j == n || works[j].FirstToken > i {
		return types.Work{}, false
	}
	return works[j], true
}

// RowAt returns the row within work w containing token i via binary
// search over that work's row ranges.
func (idx *Index) RowAt(w types.Work, i types.TokenID) (types.Row, bool) {
	var rows []RowEntry
	for _, e := range idx.Descriptor.WorkLookup {
		if types.WorkID(e.ID) == w.ID {
			rows = e.Rows
			break
		}
	}
	j := sort.Search(len(rows), func(k int) bool {
		end := rows[k].FirstToken + rows[k].TokenCount
		return types.TokenID(end) > i
	})
	if j == len(rows) || types.TokenID(rows[j].FirstToken) > i {
		return types.Row{}, false
	}
	r := rows[j]
	return types.Row{Section: r.Section, FirstToken: types.TokenID(r.FirstToken), TokenCount: r.TokenCount}, true
}

// WorkBounds returns the sorted work start-token boundaries, used by the
// resolver's "does a span cross a work boundary" check (spec §4.10).
func (idx *Index) WorkBounds() []types.TokenID {
	out := make([]types.TokenID, len(idx.works))
	for i, w := range idx.works {
		out[i] = w.FirstToken
	}
	return out
}
