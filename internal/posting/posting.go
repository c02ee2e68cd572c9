// Package posting implements the hybrid sorted-list / bitmap posting
// algebra the evaluator runs queries over (spec §4.2). Every posting —
// whichever shape it happens to be stored in — represents a set of
// absolute token ids; the "position" carried alongside it is bookkeeping
// for the query-term index that posting is native to, used to compute
// the relative offset when combining two terms (spec §4.7 step 4).
package posting

import (
	"fmt"

	"github.com/latintext/corpusquery/internal/bitmask"
)

// Shape distinguishes how a Posting's elements are stored.
type Shape int

const (
	ListShape Shape = iota
	BitmapShape
)

// Posting is a set of absolute token ids, in either shape, tagged with
// the query-term position it is native to.
type Posting struct {
	Pos    int
	Shape  Shape
	List   []uint32      // ascending, valid iff Shape == ListShape
	Bitmap bitmask.Mask  // valid iff Shape == BitmapShape
}

// FromList builds a list-shaped posting. list must already be ascending.
func FromList(pos int, list []uint32) Posting {
	return Posting{Pos: pos, Shape: ListShape, List: list}
}

// FromBitmap builds a bitmap-shaped posting.
func FromBitmap(pos int, m bitmask.Mask) Posting {
	return Posting{Pos: pos, Shape: BitmapShape, Bitmap: m}
}

// NumElements returns the posting's cardinality.
func (p Posting) NumElements() int {
	if p.Shape == ListShape {
		return len(p.List)
	}
	return p.Bitmap.PopCount()
}

// IsEmpty reports whether the posting has no elements.
func (p Posting) IsEmpty() bool {
	return p.NumElements() == 0
}

// listToBitmap materialises a list into a freshly allocated n-bit mask
// (used only when a shape must be densified to combine with a bitmap).
func listToBitmap(list []uint32, n int) bitmask.Mask {
	m := bitmask.New(n)
	for _, x := range list {
		if int(x) < n {
			m.Set(int(x))
		}
	}
	return m
}

// ListAnd returns the elements x of a such that x+delta is present in b
// (a strictly ascending two-pointer merge, spec §4.2).
func ListAnd(a, b []uint32, delta int) []uint32 {
	var out []uint32
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		target := int64(a[i]) + int64(delta)
		bv := int64(b[j])
		switch {
		case target == bv:
			out = append(out, a[i])
			i++
			j++
		case target < bv:
			i++
		default:
			j++
		}
	}
	return out
}

// ListOr returns the ascending, deduplicated union of a with {y-delta :
// y in b}, dropping any shifted element that would be negative (spec
// §4.2).
func ListOr(a, b []uint32, delta int) []uint32 {
	shiftedB := make([]uint32, 0, len(b))
	for _, y := range b {
		v := int64(y) - int64(delta)
		if v < 0 {
			continue
		}
		shiftedB = append(shiftedB, uint32(v))
	}

	out := make([]uint32, 0, len(a)+len(shiftedB))
	i, j := 0, 0
	for i < len(a) && j < len(shiftedB) {
		switch {
		case a[i] == shiftedB[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < shiftedB[j]:
			out = append(out, a[i])
			i++
		default:
			out = append(out, shiftedB[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, shiftedB[j:]...)
	return out
}

// ListBitmapAnd returns the elements x of list such that bit x+delta is
// set in bm (spec §4.2: "for each x in list, test bit x+k of bitmap").
func ListBitmapAnd(list []uint32, bm bitmask.Mask, delta int) []uint32 {
	var out []uint32
	for _, x := range list {
		idx := int64(x) + int64(delta)
		if idx >= 0 && idx < int64(bm.N) && bm.Bit(int(idx)) {
			out = append(out, x)
		}
	}
	return out
}

// ListBitmapAndNot returns the elements x of list such that bit x+delta
// is NOT set in bm — the rewritten form of "A and not B" for a negated
// sibling within one AND composition (spec §4.6, §9 "planner must
// rewrite or reject").
func ListBitmapAndNot(list []uint32, bm bitmask.Mask, delta int) []uint32 {
	var out []uint32
	for _, x := range list {
		idx := int64(x) + int64(delta)
		if idx < 0 || idx >= int64(bm.N) || !bm.Bit(int(idx)) {
			out = append(out, x)
		}
	}
	return out
}

// ListAndNot returns the elements x of a such that x+delta is absent
// from b.
func ListAndNot(a, b []uint32, delta int) []uint32 {
	var out []uint32
	i, j := 0, 0
	for i < len(a) {
		target := int64(a[i]) + int64(delta)
		for j < len(b) && int64(b[j]) < target {
			j++
		}
		if j < len(b) && int64(b[j]) == target {
			j++
		} else {
			out = append(out, a[i])
		}
		i++
	}
	return out
}

// ApplyAndNot computes the elements of a not matched (after offset
// alignment) by b, preserving a's shape and coordinate space.
func ApplyAndNot(a, b Posting) (Posting, error) {
	delta := b.Pos - a.Pos
	switch {
	case a.Shape == ListShape && b.Shape == ListShape:
		return FromList(a.Pos, ListAndNot(a.List, b.List, delta)), nil
	case a.Shape == ListShape && b.Shape == BitmapShape:
		return FromList(a.Pos, ListBitmapAndNot(a.List, b.Bitmap, delta)), nil
	default:
		// Bitmap a: materialise b (densify), align it to a's coordinate
		// space with an all-ones AND, then clear those bits from a.
		var bMask bitmask.Mask
		if b.Shape == BitmapShape {
			bMask = b.Bitmap
		} else {
			bMask = listToBitmap(b.List, a.Bitmap.N)
		}
		bitOffset := a.Pos - b.Pos
		ones := bitmask.New(a.Bitmap.N)
		for w := range ones.Words {
			ones.Words[w] = ^uint64(0)
		}
		aligned, err := bitmask.And(ones, bMask, bitOffset)
		if err != nil {
			return Posting{}, fmt.Errorf("posting.ApplyAndNot: %w", err)
		}
		r := a.Bitmap.Clone()
		for i := range r.Words {
			r.Words[i] &^= aligned.Words[i]
		}
		return FromBitmap(a.Pos, r), nil
	}
}

// ApplyAnd intersects two postings, aligning their coordinate spaces by
// the difference of their query-term positions (spec §4.7 step 4). The
// result's position matches whichever operand's coordinate space the
// result is expressed in.
func ApplyAnd(a, b Posting) (Posting, error) {
	delta := b.Pos - a.Pos

	switch {
	case a.Shape == ListShape && b.Shape == ListShape:
		return FromList(a.Pos, ListAnd(a.List, b.List, delta)), nil

	case a.Shape == ListShape && b.Shape == BitmapShape:
		return FromList(a.Pos, ListBitmapAnd(a.List, b.Bitmap, delta)), nil

	case a.Shape == BitmapShape && b.Shape == ListShape:
		return FromList(b.Pos, ListBitmapAnd(b.List, a.Bitmap, -delta)), nil

	default: // both bitmap
		bitOffset := a.Pos - b.Pos
		m, err := bitmask.And(a.Bitmap, b.Bitmap, bitOffset)
		if err != nil {
			return Posting{}, fmt.Errorf("posting.ApplyAnd: %w", err)
		}
		return FromBitmap(a.Pos, m), nil
	}
}

// ApplyOr unions two postings the same way ApplyAnd intersects them.
// Shape rule: list+list stays a list; any combination touching a bitmap
// materialises to a bitmap (spec §4.2 "materialise bitmap, set bit x+k
// for each x"). The result is always expressed in a's coordinate space.
func ApplyOr(a, b Posting) (Posting, error) {
	delta := b.Pos - a.Pos

	if a.Shape == ListShape && b.Shape == ListShape {
		return FromList(a.Pos, ListOr(a.List, b.List, delta)), nil
	}

	bitOffset := a.Pos - b.Pos
	var aMask, bMask bitmask.Mask
	switch a.Shape {
	case BitmapShape:
		aMask = a.Bitmap
	default:
		aMask = listToBitmap(a.List, bitmapN(a, b))
	}
	switch b.Shape {
	case BitmapShape:
		bMask = b.Bitmap
	default:
		bMask = listToBitmap(b.List, bitmapN(a, b))
	}
	m, err := bitmask.Or(aMask, bMask, bitOffset)
	if err != nil {
		return Posting{}, fmt.Errorf("posting.ApplyOr: %w", err)
	}
	return FromBitmap(a.Pos, m), nil
}

func bitmapN(a, b Posting) int {
	if a.Shape == BitmapShape {
		return a.Bitmap.N
	}
	if b.Shape == BitmapShape {
		return b.Bitmap.N
	}
	// both lists never reaches here; defensive fallback only.
	return 0
}
