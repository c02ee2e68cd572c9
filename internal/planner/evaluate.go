package planner

import (
	"context"
	"sort"

	"github.com/latintext/corpusquery/internal/corpuserr"
	"github.com/latintext/corpusquery/internal/corpusindex"
	"github.com/latintext/corpusquery/internal/posting"
	"github.com/latintext/corpusquery/internal/queryparse"
)

// SpanResult is one span's candidate posting, its tracked position (the
// term index whose coordinate space Data is expressed in), and its
// length in tokens (spec §4.7 step 5).
type SpanResult struct {
	Data     posting.Posting
	Position int
	Length   int
}

// IsEmpty reports whether the span produced no candidates, which per
// spec §4.7 means the whole query has no matches.
func (s SpanResult) IsEmpty() bool { return s.Data.IsEmpty() }

type termRealisation struct {
	localPos int
	p        posting.Posting
	bounds   Bounds
}

// EvaluateSpan realises every term in span, orders them by ascending
// upper bound (ties by original position), and folds them with
// AND-with-offset (spec §4.7 steps 1-5).
func EvaluateSpan(span Span, idx *corpusindex.Index, n int) (SpanResult, error) {
	terms := make([]termRealisation, len(span.Terms))
	for i, term := range span.Terms {
		p, err := Realise(term.Constraint, idx, n, i)
		if err != nil {
			return SpanResult{}, err
		}
		terms[i] = termRealisation{localPos: i, p: p, bounds: ComputeBounds(term.Constraint, idx, n)}
		if p.IsEmpty() {
			return SpanResult{Data: posting.FromList(0, nil), Position: 0, Length: len(span.Terms)}, nil
		}
	}

	order := make([]int, len(terms))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return terms[order[a]].bounds.Upper < terms[order[b]].bounds.Upper
	})

	acc := terms[order[0]].p
	for _, i := range order[1:] {
		next, err := posting.ApplyAnd(acc, terms[i].p)
		if err != nil {
			return SpanResult{}, err
		}
		acc = next
	}

	return SpanResult{Data: acc, Position: acc.Pos, Length: len(span.Terms)}, nil
}

// EvaluateQuery splits q into spans and evaluates each, checking ctx
// between spans (spec §4.7 "checks a cancellation signal between
// phases").
func EvaluateQuery(ctx context.Context, q *queryparse.Query, idx *corpusindex.Index, n int) ([]SpanResult, error) {
	spans := SplitSpans(q)
	results := make([]SpanResult, len(spans))
	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			return nil, corpuserr.NewCancelled("Initial candidates")
		}
		r, err := EvaluateSpan(span, idx, n)
		if err != nil {
			return nil, err
		}
		results[i] = r
		if r.IsEmpty() {
			return results[:i+1], nil
		}
	}
	return results, nil
}
