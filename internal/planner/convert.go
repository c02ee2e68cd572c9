// Package planner converts parsed constraints into cardinality-bounded
// internal constraints, realises them into postings, splits a query into
// spans, and evaluates each span's candidate posting (spec §4.6, §4.7).
package planner

import (
	"sort"

	"github.com/latintext/corpusquery/internal/corpuserr"
	"github.com/latintext/corpusquery/internal/corpusindex"
	"github.com/latintext/corpusquery/internal/posting"
	"github.com/latintext/corpusquery/internal/queryparse"
)

// Bounds holds the loose, monotone cardinality bounds used purely for
// term-ordering decisions (spec §4.6).
type Bounds struct {
	Upper int
	Lower int
}

// ComputeBounds recursively derives upper/lower bounds for c over a
// corpus of n tokens, per spec §4.6's rules.
func ComputeBounds(c queryparse.Constraint, idx *corpusindex.Index, n int) Bounds {
	switch v := c.(type) {
	case queryparse.Atom:
		count := atomCount(v, idx)
		return Bounds{Upper: count, Lower: count}

	case queryparse.And:
		upper := n
		for _, child := range v.Children {
			b := ComputeBounds(child, idx, n)
			if b.Upper < upper {
				upper = b.Upper
			}
		}
		return Bounds{Upper: upper, Lower: 0}

	case queryparse.Or:
		upper, lower := 0, 0
		for _, child := range v.Children {
			b := ComputeBounds(child, idx, n)
			if b.Upper > upper {
				upper = b.Upper
			}
			if b.Lower > lower {
				lower = b.Lower
			}
		}
		return Bounds{Upper: upper, Lower: lower}

	case queryparse.Not:
		b := ComputeBounds(v.Child, idx, n)
		return Bounds{Upper: n - b.Lower, Lower: n - b.Upper}

	default:
		return Bounds{}
	}
}

func atomCount(a queryparse.Atom, idx *corpusindex.Index) int {
	entry, ok := idx.Descriptor.LookupEntry(string(a.Category), a.Value)
	if !ok {
		return 0
	}
	return idx.NumElements(entry)
}

// Realise materialises c's posting at query-term position pos, sorting
// composed children by bound per spec §4.6 (ascending for AND, ascending
// gives the most selective start; descending for OR favours starting
// from a dense bitmap). A NOT child is only supported directly inside an
// AND at this level — rewritten into an AND-NOT fold — and raises
// Unsupported everywhere else (spec §9).
func Realise(c queryparse.Constraint, idx *corpusindex.Index, n, pos int) (posting.Posting, error) {
	switch v := c.(type) {
	case queryparse.Atom:
		return idx.ResolveIndex(string(v.Category), v.Value, pos)

	case queryparse.And:
		return realiseAnd(v, idx, n, pos)

	case queryparse.Or:
		return realiseOr(v, idx, n, pos)

	case queryparse.Not:
		return posting.Posting{}, corpuserr.NewUnsupported("NOT outside an enclosing AND")

	default:
		return posting.Posting{}, corpuserr.NewInvariantFailure("unknown constraint node type")
	}
}

type boundedChild struct {
	c queryparse.Constraint
	b Bounds
}

func realiseAnd(a queryparse.And, idx *corpusindex.Index, n, pos int) (posting.Posting, error) {
	var positive, negated []boundedChild
	for _, child := range a.Children {
		if not, ok := child.(queryparse.Not); ok {
			negated = append(negated, boundedChild{not.Child, ComputeBounds(not.Child, idx, n)})
			continue
		}
		positive = append(positive, boundedChild{child, ComputeBounds(child, idx, n)})
	}
	if len(positive) == 0 {
		return posting.Posting{}, corpuserr.NewUnsupported("AND composed entirely of negated atoms")
	}

	sort.SliceStable(positive, func(i, j int) bool { return positive[i].b.Upper < positive[j].b.Upper })

	acc, err := Realise(positive[0].c, idx, n, pos)
	if err != nil {
		return posting.Posting{}, err
	}
	for _, child := range positive[1:] {
		p, err := Realise(child.c, idx, n, pos)
		if err != nil {
			return posting.Posting{}, err
		}
		acc, err = posting.ApplyAnd(acc, p)
		if err != nil {
			return posting.Posting{}, err
		}
	}
	for _, child := range negated {
		p, err := Realise(child.c, idx, n, pos)
		if err != nil {
			return posting.Posting{}, err
		}
		acc, err = posting.ApplyAndNot(acc, p)
		if err != nil {
			return posting.Posting{}, err
		}
	}
	return acc, nil
}

func realiseOr(o queryparse.Or, idx *corpusindex.Index, n, pos int) (posting.Posting, error) {
	children := make([]boundedChild, len(o.Children))
	for i, child := range o.Children {
		if _, ok := child.(queryparse.Not); ok {
			return posting.Posting{}, corpuserr.NewUnsupported("NOT inside OR")
		}
		children[i] = boundedChild{child, ComputeBounds(child, idx, n)}
	}
	sort.SliceStable(children, func(i, j int) bool { return children[i].b.Upper > children[j].b.Upper })

	acc, err := Realise(children[0].c, idx, n, pos)
	if err != nil {
		return posting.Posting{}, err
	}
	for _, child := range children[1:] {
		p, err := Realise(child.c, idx, n, pos)
		if err != nil {
			return posting.Posting{}, err
		}
		acc, err = posting.ApplyOr(acc, p)
		if err != nil {
			return posting.Posting{}, err
		}
	}
	return acc, nil
}
