package resolver

import (
	"github.com/latintext/corpusquery/internal/corpuserr"
	"github.com/latintext/corpusquery/internal/corpusindex"
	"github.com/latintext/corpusquery/internal/queryparse"
	"github.com/latintext/corpusquery/internal/types"
)

// ValidationDescriptor is the per-token morphological check a term
// requires: a token's analysis must have every bit of RequiredMask set
// and its lemma must equal every id in RequiredLemmas (spec §4.10).
type ValidationDescriptor struct {
	RequiredMask   uint32
	RequiredLemmas []types.LemmaID
}

// Needed reports whether this descriptor actually constrains anything —
// an empty descriptor is trivially satisfied and callers should skip the
// InflectionData read entirely.
func (d ValidationDescriptor) Needed() bool {
	return d.RequiredMask != 0 || len(d.RequiredLemmas) != 0
}

// Satisfied reports whether any of a token's analyses satisfies d.
func (d ValidationDescriptor) Satisfied(analyses []types.Analysis) bool {
	if !d.Needed() {
		return true
	}
	for _, a := range analyses {
		if a.Satisfies(d.RequiredMask, d.RequiredLemmas) {
			return true
		}
	}
	return false
}

// BuildValidation derives the cross-validation descriptor for a term's
// constraint. Cross-validation is only meaningful when an AND joins two
// or more atoms somewhere in the tree (spec §4.10's "lemma:X and
// case:dat" example): a single atom's identity is already guaranteed
// exactly by posting membership, and a tree with no AND anywhere doesn't
// pin down one required analysis to check. atoms and operators are
// flattened through arbitrary And/Or/Not nesting, the way suggest's
// walkConstraint does, rather than only looking at the immediate
// top-level children. Word atoms contribute nothing to the mask —
// surface-form identity, unlike lemma+feature combinations, can never
// be satisfied by two different analyses of the same token.
func BuildValidation(c queryparse.Constraint, idx *corpusindex.Index) (ValidationDescriptor, error) {
	if !containsAnd(c) {
		return ValidationDescriptor{}, nil
	}

	atoms := flattenAtoms(c, nil)
	if len(atoms) < 2 {
		return ValidationDescriptor{}, nil
	}

	var desc ValidationDescriptor
	for _, a := range atoms {
		switch a.Category {
		case types.CategoryWord:
			// contributes nothing; exact match already guaranteed by the posting.
		case types.CategoryLemma:
			id, ok := idx.Descriptor.LookupID(string(a.Category), a.Value)
			if ok {
				desc.RequiredLemmas = append(desc.RequiredLemmas, types.LemmaID(id))
			}
		case types.CategoryDegree:
			return ValidationDescriptor{}, corpuserr.NewUnsupported("degree constraint in validator")
		default:
			field, ok := types.FieldByCategory(a.Category)
			if !ok {
				continue
			}
			code, ok := idx.Descriptor.LookupID(string(a.Category), a.Value)
			if !ok {
				continue
			}
			desc.RequiredMask |= types.BitForFieldValue(field, code)
		}
	}
	return desc, nil
}

// containsAnd reports whether an And node appears anywhere in c's tree.
func containsAnd(c queryparse.Constraint) bool {
	switch v := c.(type) {
	case queryparse.And:
		return true
	case queryparse.Not:
		return containsAnd(v.Child)
	case queryparse.Or:
		for _, child := range v.Children {
			if containsAnd(child) {
				return true
			}
		}
	}
	return false
}

// flattenAtoms collects every Atom leaf in c's tree, recursing through
// And/Or/Not nesting (mirrors the original Rust validator's atoms_in).
func flattenAtoms(c queryparse.Constraint, atoms []queryparse.Atom) []queryparse.Atom {
	switch v := c.(type) {
	case queryparse.Atom:
		atoms = append(atoms, v)
	case queryparse.Not:
		atoms = flattenAtoms(v.Child, atoms)
	case queryparse.And:
		for _, child := range v.Children {
			atoms = flattenAtoms(child, atoms)
		}
	case queryparse.Or:
		for _, child := range v.Children {
			atoms = flattenAtoms(child, atoms)
		}
	}
	return atoms
}
