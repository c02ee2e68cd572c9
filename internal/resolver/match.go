package resolver

import (
	"sort"

	"github.com/latintext/corpusquery/internal/corpusindex"
	"github.com/latintext/corpusquery/internal/corpuserr"
	"github.com/latintext/corpusquery/internal/types"
)

// MatchMetadata identifies where a match occurs in the corpus.
type MatchMetadata struct {
	WorkID   types.WorkID
	WorkName string
	Author   string
	Section  string
	Offset   int // token offset within the section
}

// TextSegment is one contiguous chunk of surrounding text: core segments
// fall within a matched span, the rest is left/inter-span/right context.
type TextSegment struct {
	Text   string
	IsCore bool
}

// Match is one fully assembled query result (spec §6).
type Match struct {
	Metadata MatchMetadata
	Text     []TextSegment
}

// AssembleMatch builds the byte ranges and metadata for one validated
// tuple: left context, each span's core text (with any non-core text
// between spans), and right context, all clamped to the enclosing
// work's byte range (spec §4.10 "match assembly").
func AssembleMatch(cand MatchCandidate, spans []SpanCandidate, idx *corpusindex.Index, contextLen int) (Match, error) {
	entries := make([]leaderEntry, len(cand.Leaders))
	for i, leader := range cand.Leaders {
		entries[i] = leaderEntry{spanIdx: i, start: leader, length: spans[i].Length}
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].start < entries[b].start })

	first := entries[0].start
	lastEntry := entries[len(entries)-1]
	last := lastEntry.start + lastEntry.length - 1

	work, ok := idx.WorkAt(types.TokenID(first))
	if !ok {
		return Match{}, corpuserr.NewInvariantFailure("match anchor does not resolve to any work")
	}
	n := idx.NumTokens()

	workByteLo, err := idx.TokenStart(work.FirstToken)
	if err != nil {
		return Match{}, err
	}
	workByteHi, err := idx.BreakStart(types.TokenID(int(work.End()) - 1))
	if err != nil {
		return Match{}, err
	}

	var segments []TextSegment
	addSegment := func(lo, hi int, isCore bool) error {
		if lo >= hi {
			return nil
		}
		if lo < workByteLo {
			lo = workByteLo
		}
		if hi > workByteHi {
			hi = workByteHi
		}
		if lo >= hi {
			return nil
		}
		b, err := idx.TextSlice(lo, hi)
		if err != nil {
			return err
		}
		segments = append(segments, TextSegment{Text: string(b), IsCore: isCore})
		return nil
	}

	leftLoTok := max(0, first-contextLen)
	leftLoByte, err := idx.TokenStart(types.TokenID(leftLoTok))
	if err != nil {
		return Match{}, err
	}
	leftHiByte, err := idx.TokenStart(types.TokenID(first))
	if err != nil {
		return Match{}, err
	}
	if err := addSegment(leftLoByte, leftHiByte, false); err != nil {
		return Match{}, err
	}

	for i, e := range entries {
		coreLo, err := idx.TokenStart(types.TokenID(e.start))
		if err != nil {
			return Match{}, err
		}
		coreHi, err := idx.BreakStart(types.TokenID(e.start + e.length - 1))
		if err != nil {
			return Match{}, err
		}
		if err := addSegment(coreLo, coreHi, true); err != nil {
			return Match{}, err
		}

		if i+1 < len(entries) {
			next := entries[i+1]
			gapLo, err := idx.BreakStart(types.TokenID(e.start + e.length - 1))
			if err != nil {
				return Match{}, err
			}
			gapHi, err := idx.TokenStart(types.TokenID(next.start))
			if err != nil {
				return Match{}, err
			}
			if err := addSegment(gapLo, gapHi, false); err != nil {
				return Match{}, err
			}
		}
	}

	rightHiTok := min(n-1, last+contextLen)
	rightLoByte, err := idx.BreakStart(types.TokenID(last))
	if err != nil {
		return Match{}, err
	}
	rightHiByte, err := idx.BreakStart(types.TokenID(rightHiTok))
	if err != nil {
		return Match{}, err
	}
	if err := addSegment(rightLoByte, rightHiByte, false); err != nil {
		return Match{}, err
	}

	section, offset := "", first-int(work.FirstToken)
	if row, ok := idx.RowAt(work, types.TokenID(first)); ok {
		section = row.Section
		offset = first - int(row.FirstToken)
	}

	return Match{
		Metadata: MatchMetadata{
			WorkID:   work.ID,
			WorkName: work.Name,
			Author:   work.Author,
			Section:  section,
			Offset:   offset,
		},
		Text: segments,
	}, nil
}
