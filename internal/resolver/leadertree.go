package resolver

import (
	"sort"

	"github.com/latintext/corpusquery/internal/alloc"
	"github.com/latintext/corpusquery/internal/bitmask"
	"github.com/latintext/corpusquery/internal/corpusindex"
	"github.com/latintext/corpusquery/internal/posting"
	"github.com/latintext/corpusquery/internal/types"
)

// pathPool pools the small []int path slices buildTuples extends one
// leader at a time. Span counts per query are small, so the default
// tier set (smallest tier capacity 8) comfortably covers them.
var pathPool = alloc.NewSlabAllocatorWithDefaults[int]()

// findLeaders returns the legal leader ids for span (normalised to its
// own coordinate space) that lie within the proximity window around
// prevLeader (spec §4.10 "find-leader primitive").
func findLeaders(prevLeader int, span SpanCandidate) []int {
	rel := span.RelationFromPrev
	lo, hi := prevLeader, prevLeader+rel.Dist+1
	if !rel.Directed {
		lo = prevLeader - rel.Dist
	}
	return enumerateWindow(span.Data, lo, hi)
}

func enumerateWindow(p posting.Posting, lo, hi int) []int {
	if p.Shape == posting.BitmapShape {
		return enumerateBitmapWindow(p, lo, hi)
	}
	return enumerateListWindow(p, lo, hi)
}

func enumerateListWindow(p posting.Posting, lo, hi int) []int {
	rawLo := int64(lo) + int64(p.Pos)
	rawHi := int64(hi) + int64(p.Pos)
	list := p.List
	start := sort.Search(len(list), func(i int) bool { return int64(list[i]) >= rawLo })
	end := sort.Search(len(list), func(i int) bool { return int64(list[i]) >= rawHi })
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, int(list[i])-p.Pos)
	}
	return out
}

func enumerateBitmapWindow(p posting.Posting, lo, hi int) []int {
	rawLo := lo + p.Pos
	if rawLo < 0 {
		rawLo = 0
	}
	rawHi := hi + p.Pos
	if rawHi > p.Bitmap.N {
		rawHi = p.Bitmap.N
	}
	var out []int
	pos := rawLo
	for pos < rawHi {
		bit, ok := bitmask.NextOneBit(p.Bitmap, pos)
		if !ok || bit >= rawHi {
			break
		}
		out = append(out, bit-p.Pos)
		pos = bit + 1
	}
	return out
}

// buildTuples enumerates every root-to-leaf path of the span-leader tree
// rooted at anchor, one tuple per path (spec §4.10 "tree construction" +
// "path extraction"). The tree is built breadth-first — each queued item
// already carries the full path to it, so collecting every item whose
// path reaches the last span is equivalent to a depth-first leaf walk.
func buildTuples(anchor int, spans []SpanCandidate) [][]int {
	if len(spans) == 1 {
		return [][]int{{anchor}}
	}

	var leaves [][]int
	queue := [][]int{{anchor}}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		if len(path) == len(spans) {
			leaves = append(leaves, path)
			continue
		}
		leaders := findLeaders(path[len(path)-1], spans[len(path)])
		for _, l := range leaders {
			next := pathPool.Get(len(path) + 1)
			next = append(next, path...)
			next = append(next, l)
			queue = append(queue, next)
		}
		if len(leaders) > 0 {
			pathPool.Put(path)
		}
	}
	return leaves
}

type leaderEntry struct {
	spanIdx int
	start   int
	length  int
}

// validateTuple runs the three path-extraction checks of spec §4.10 in
// order: span overlap (after sorting by start id), work-boundary
// crossing, and per-term morphological cross-validation; plus the
// query's author restriction, if any, checked against the anchor span's
// work.
func validateTuple(tuple []int, spans []SpanCandidate, idx *corpusindex.Index, authors []string) (bool, error) {
	entries := make([]leaderEntry, len(tuple))
	for i, leader := range tuple {
		entries[i] = leaderEntry{spanIdx: i, start: leader, length: spans[i].Length}
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].start < entries[b].start })
	for k := 1; k < len(entries); k++ {
		prev, cur := entries[k-1], entries[k]
		if cur.start < prev.start+prev.length {
			return false, nil
		}
	}

	for i, span := range spans {
		if crossesWorkBoundary(tuple[i], span.Length, idx) {
			return false, nil
		}
	}

	for i, span := range spans {
		leader := tuple[i]
		for t, term := range span.Terms {
			desc, err := BuildValidation(term.Constraint, idx)
			if err != nil {
				return false, err
			}
			if !desc.Needed() {
				continue
			}
			analyses, err := idx.InflectionData(types.TokenID(leader + t))
			if err != nil {
				return false, err
			}
			if !desc.Satisfied(analyses) {
				return false, nil
			}
		}
	}

	if len(authors) > 0 {
		w, ok := idx.WorkAt(types.TokenID(tuple[0]))
		if !ok || !containsAuthor(authors, w.Author) {
			return false, nil
		}
	}
	return true, nil
}

func containsAuthor(authors []string, author string) bool {
	for _, a := range authors {
		if a == author {
			return true
		}
	}
	return false
}

func crossesWorkBoundary(start, length int, idx *corpusindex.Index) bool {
	w1, ok := idx.WorkAt(types.TokenID(start))
	if !ok {
		return true
	}
	end := start + length - 1
	w2, ok := idx.WorkAt(types.TokenID(end))
	if !ok || w2.ID != w1.ID {
		return true
	}
	return false
}
