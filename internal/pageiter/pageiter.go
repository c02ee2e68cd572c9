// Package pageiter walks a filtered span result page by page, resuming
// from an opaque cursor (spec §4.9).
package pageiter

import (
	"github.com/latintext/corpusquery/internal/bitmask"
	"github.com/latintext/corpusquery/internal/posting"
	"github.com/latintext/corpusquery/internal/types"
)

// Page is up to pageSize span-local anchor ids, normalised by
// subtracting the posting's position, plus the cursor to resume from.
type Page struct {
	AnchorIDs []uint32
	Next      types.Cursor
	Exhausted bool
}

// Next emits the next page of anchor ids from data, starting at cur.
// CandidateIndex is a list index for list-shaped postings, or a bit
// position to resume next_one_bit from for bitmaps.
func Next(data posting.Posting, cur types.Cursor, pageSize int) Page {
	if data.Shape == posting.BitmapShape {
		return nextBitmap(data, cur, pageSize)
	}
	return nextList(data, cur, pageSize)
}

func nextList(data posting.Posting, cur types.Cursor, pageSize int) Page {
	list := data.List
	i := int(cur.CandidateIndex)
	ids := make([]uint32, 0, pageSize)
	lastRaw := uint32(cur.ResultID)
	for i < len(list) && len(ids) < pageSize {
		raw := list[i]
		ids = append(ids, raw-uint32(data.Pos))
		lastRaw = raw
		i++
	}
	return Page{
		AnchorIDs: ids,
		Next: types.Cursor{
			ResultIndex:    cur.ResultIndex + uint64(len(ids)),
			ResultID:       uint64(lastRaw),
			CandidateIndex: uint64(i),
		},
		Exhausted: i >= len(list),
	}
}

func nextBitmap(data posting.Posting, cur types.Cursor, pageSize int) Page {
	m := data.Bitmap
	pos := int(cur.CandidateIndex)
	ids := make([]uint32, 0, pageSize)
	lastRaw := uint32(cur.ResultID)
	exhausted := false
	for len(ids) < pageSize {
		bit, ok := bitmask.NextOneBit(m, pos)
		if !ok {
			exhausted = true
			pos = m.N
			break
		}
		ids = append(ids, uint32(bit)-uint32(data.Pos))
		lastRaw = uint32(bit)
		pos = bit + 1
	}
	return Page{
		AnchorIDs: ids,
		Next: types.Cursor{
			ResultIndex:    cur.ResultIndex + uint64(len(ids)),
			ResultID:       uint64(lastRaw),
			CandidateIndex: uint64(pos),
		},
		Exhausted: exhausted,
	}
}
