// Package resolver turns a query's filtered span candidates into
// validated, paginated matches: it enumerates span-leader tuples under
// the proximity graph, cross-validates ambiguous-analysis terms, and
// assembles the surrounding text and citation metadata for each
// surviving match (spec §4.10).
package resolver

import (
	"github.com/latintext/corpusquery/internal/corpusindex"
	"github.com/latintext/corpusquery/internal/pageiter"
	"github.com/latintext/corpusquery/internal/posting"
	"github.com/latintext/corpusquery/internal/queryparse"
	"github.com/latintext/corpusquery/internal/types"
)

// SpanCandidate is one query span together with its evaluated,
// break-filtered candidate posting.
type SpanCandidate struct {
	Terms            []queryparse.QueryTerm
	RelationFromPrev queryparse.Relation
	Data             posting.Posting
	Length           int
}

// MatchCandidate is one validated span-leader tuple: Anchor is the
// leading span's leader (a normalised token id), Leaders holds one
// leader per span in original span order.
type MatchCandidate struct {
	Anchor  int
	Leaders []int
}

// Result is one page of validated matches plus the cursor to resume
// scanning from and a count of candidates rejected along the way.
type Result struct {
	Matches []MatchCandidate
	Next    types.Cursor
	Skipped int
}

// Resolve scans spans[0]'s candidate posting from cur, producing up to
// pageSize validated matches (spec §4.10 "pagination"). Every rejected
// anchor increments Skipped rather than stopping the scan. authors, if
// non-empty, restricts matches to those anchored in a work by one of
// those author codes (the query's `[Author]` restriction prefix).
//
// pageiter.Next's own Cursor.ResultIndex just counts the raw items it
// returned per call, which resolver always calls with one candidate at
// a time — so that field alone conflates candidates scanned with
// matches actually found. Resolve tracks the validated count itself,
// bumping it only on a validated match, and keeps CandidateIndex (the
// raw scan position pageiter reports) as the separate resume point.
func Resolve(spans []SpanCandidate, idx *corpusindex.Index, cur types.Cursor, pageSize int, authors []string) (Result, error) {
	var res Result
	c := cur
	resultIndex := cur.ResultIndex
	nextCursor := func(raw types.Cursor) types.Cursor {
		return types.Cursor{ResultIndex: resultIndex, ResultID: raw.ResultID, CandidateIndex: raw.CandidateIndex}
	}

	for len(res.Matches) < pageSize {
		page := pageiter.Next(spans[0].Data, c, 1)
		if len(page.AnchorIDs) == 0 {
			res.Next = nextCursor(page.Next)
			return res, nil
		}
		anchor := int(page.AnchorIDs[0])
		c = page.Next

		ok, tuple, err := firstValidTuple(anchor, spans, idx, authors)
		if err != nil {
			return Result{}, err
		}
		if ok {
			resultIndex++
			res.Matches = append(res.Matches, MatchCandidate{Anchor: anchor, Leaders: tuple})
		} else {
			res.Skipped++
		}

		if page.Exhausted {
			res.Next = nextCursor(page.Next)
			return res, nil
		}
	}
	res.Next = nextCursor(c)
	return res, nil
}

func firstValidTuple(anchor int, spans []SpanCandidate, idx *corpusindex.Index, authors []string) (bool, []int, error) {
	for _, tuple := range buildTuples(anchor, spans) {
		ok, err := validateTuple(tuple, spans, idx, authors)
		if err != nil {
			return false, nil, err
		}
		if ok {
			return true, tuple, nil
		}
	}
	return false, nil, nil
}
