// Package queryparse tokenises and parses the query surface syntax into
// a Query AST (spec §4.5). The parser only knows grammar, not the
// descriptor; unknown atoms are still valid syntax (they resolve to
// empty postings downstream, never a parse failure).
package queryparse

import "github.com/latintext/corpusquery/internal/types"

// RelationKind classifies how a term relates to the one before it.
type RelationKind int

const (
	First RelationKind = iota
	After
	Proximity
)

// Relation describes a term's relation to its predecessor.
type Relation struct {
	Kind     RelationKind
	Dist     int  // meaningful only for Proximity; default 5
	Directed bool // meaningful only for Proximity ('~>' vs '~')
}

// Constraint is the boolean-composition AST for one term's atoms.
type Constraint interface {
	isConstraint()
}

// Atom is a leaf constraint: a surface word, a lemma, or a feature value.
type Atom struct {
	Category types.Category
	Value    string
}

// Not negates a child constraint ('!').
type Not struct {
	Child Constraint
}

// And is a flat conjunction of children parsed at the same level.
type And struct {
	Children []Constraint
}

// Or is a flat disjunction of children parsed at the same level.
type Or struct {
	Children []Constraint
}

func (Atom) isConstraint() {}
func (Not) isConstraint()  {}
func (And) isConstraint()  {}
func (Or) isConstraint()   {}

// QueryTerm is one position in the query: its constraint and its
// relation to the previous term.
type QueryTerm struct {
	Constraint Constraint
	Relation   Relation
}

// Query is a fully parsed query string.
type Query struct {
	Authors []string
	Terms   []QueryTerm
}
