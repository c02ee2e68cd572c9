package planner

import "github.com/latintext/corpusquery/internal/queryparse"

// Span is a maximal contiguous run of query terms joined by After; span
// boundaries are Proximity relations (or the start of the query) (spec
// §4.7). Positions within Terms are 0-based and local to the span: term
// i's posting values are offset from the span's anchor (its first term)
// by exactly i.
type Span struct {
	Terms []queryparse.QueryTerm
	// RelationFromPrev is how this span's anchor relates to the previous
	// span's leader: First for the query's opening span, Proximity for
	// every span after it (by construction, since spans only break on
	// Proximity relations).
	RelationFromPrev queryparse.Relation
}

// Length is the number of terms in the span (its token-count footprint).
func (s Span) Length() int { return len(s.Terms) }

// SplitSpans partitions q's terms into spans (spec §4.7).
func SplitSpans(q *queryparse.Query) []Span {
	if len(q.Terms) == 0 {
		return nil
	}
	var spans []Span
	cur := Span{RelationFromPrev: q.Terms[0].Relation}
	cur.Terms = append(cur.Terms, q.Terms[0])

	for _, term := range q.Terms[1:] {
		if term.Relation.Kind == queryparse.Proximity {
			spans = append(spans, cur)
			cur = Span{RelationFromPrev: term.Relation}
		}
		cur.Terms = append(cur.Terms, term)
	}
	spans = append(spans, cur)
	return spans
}
