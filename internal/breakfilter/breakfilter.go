// Package breakfilter rejects span candidates that would straddle a
// hard sentence break (spec §4.8).
package breakfilter

import (
	"github.com/latintext/corpusquery/internal/bitmask"
	"github.com/latintext/corpusquery/internal/corpusindex"
	"github.com/latintext/corpusquery/internal/corpuserr"
	"github.com/latintext/corpusquery/internal/planner"
	"github.com/latintext/corpusquery/internal/posting"
)

// Apply ANDs span's candidate posting against the hard-break mask, for
// spans of length greater than one. A span of length one has no adjacent
// token to straddle a break with and is returned unchanged.
//
// For a candidate anchor a to remain, none of tokens a..a+L-2 may be a
// hard-break position: a window of L-1 tokens. A two-token span checks
// only the anchor itself (~hard); a longer span widens that check by
// smearing hard leftward L-2 positions before complementing it, so bit a
// of the mask records "no hard break anywhere in a..a+L-2" in one test.
func Apply(span planner.SpanResult, idx *corpusindex.Index) (planner.SpanResult, error) {
	mask, err := ComputeMask(span.Length, idx)
	if err != nil {
		return planner.SpanResult{}, err
	}
	return ApplyMask(span, mask)
}

// ComputeMask builds the break mask for a span of the given length (spec
// §4.8 steps 1-2). Lengths <= 1 need no mask and return the zero Mask,
// which ApplyMask treats as a pass-through. Split out from Apply so a
// caller profiling "compute break mask" and "apply break mask" as
// separate phases across many spans can time each independently.
func ComputeMask(length int, idx *corpusindex.Index) (bitmask.Mask, error) {
	if length <= 1 {
		return bitmask.Mask{}, nil
	}

	hard, err := idx.ResolveIndex("breaks", "hard", 0)
	if err != nil {
		return bitmask.Mask{}, err
	}
	if hard.Shape != posting.BitmapShape {
		return bitmask.Mask{}, corpuserr.NewMalformedIndex("breaks:hard posting must be bitmap-shaped")
	}

	if length == 2 {
		return bitmask.Not(hard.Bitmap), nil
	}
	return bitmask.Not(bitmask.Smear(hard.Bitmap, length-2, bitmask.Left)), nil
}

// ApplyMask ANDs a precomputed break mask against span's candidate
// posting (spec §4.8 step 3). Spans of length <= 1 pass through
// unchanged regardless of mask.
func ApplyMask(span planner.SpanResult, mask bitmask.Mask) (planner.SpanResult, error) {
	if span.Length <= 1 {
		return span, nil
	}
	filtered, err := posting.ApplyAnd(span.Data, posting.FromBitmap(0, mask))
	if err != nil {
		return planner.SpanResult{}, err
	}
	return planner.SpanResult{Data: filtered, Position: span.Position, Length: span.Length}, nil
}
