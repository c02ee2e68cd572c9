// Package suggest computes non-normative "did you mean" hints for query
// atoms and author codes that do not resolve against the descriptor,
// using Jaro-Winkler similarity (SPEC_FULL §4.5). Suggestions never
// affect match semantics, ordering, or counts.
package suggest

import (
	edlib "github.com/hbollon/go-edlib"

	"github.com/latintext/corpusquery/internal/corpusindex"
	"github.com/latintext/corpusquery/internal/queryparse"
)

// DefaultThreshold is the minimum Jaro-Winkler similarity a candidate
// must clear to be surfaced.
const DefaultThreshold = 0.85

// Suggestion is one "did you mean" hint for an unresolved atom or
// author code.
type Suggestion struct {
	Atom      string // category label, or "author"
	Got       string
	Suggested string
}

// Compute walks q's constraint tree and author list, and for every
// identifier that fails to resolve against idx's descriptor, proposes
// the closest known identifier in the same category when it clears
// threshold.
func Compute(q *queryparse.Query, idx *corpusindex.Index, threshold float64) []Suggestion {
	var out []Suggestion

	for _, term := range q.Terms {
		walkConstraint(term.Constraint, func(category, value string) {
			if _, ok := idx.Descriptor.LookupEntry(category, value); ok {
				return
			}
			known := idx.Descriptor.KnownValues(category)
			if best, ok := closest(value, known, threshold); ok {
				out = append(out, Suggestion{Atom: category, Got: value, Suggested: best})
			}
		})
	}

	knownAuthors := idx.Descriptor.KnownAuthors()
	for _, author := range q.Authors {
		if _, ok := idx.Descriptor.AuthorLookup[author]; ok {
			continue
		}
		if best, ok := closest(author, knownAuthors, threshold); ok {
			out = append(out, Suggestion{Atom: "author", Got: author, Suggested: best})
		}
	}

	return out
}

func walkConstraint(c queryparse.Constraint, visit func(category, value string)) {
	switch v := c.(type) {
	case queryparse.Atom:
		visit(string(v.Category), v.Value)
	case queryparse.Not:
		walkConstraint(v.Child, visit)
	case queryparse.And:
		for _, child := range v.Children {
			walkConstraint(child, visit)
		}
	case queryparse.Or:
		for _, child := range v.Children {
			walkConstraint(child, visit)
		}
	}
}

// closest returns the candidate in known with the highest Jaro-Winkler
// similarity to value, if any candidate clears threshold.
func closest(value string, known []string, threshold float64) (string, bool) {
	var best string
	var bestScore float64
	for _, candidate := range known {
		if candidate == value {
			continue
		}
		score, err := edlib.StringsSimilarity(value, candidate, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if float64(score) > bestScore {
			bestScore = float64(score)
			best = candidate
		}
	}
	if bestScore >= threshold {
		return best, true
	}
	return "", false
}
