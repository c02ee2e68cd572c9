// Package engine is the top-level entry point that a caller (CLI, MCP
// server) drives: it owns an open corpus index and turns a query string
// plus a page cursor into one page of assembled matches (spec §4.11, §6).
package engine

import (
	"context"
	"math"

	"github.com/latintext/corpusquery/internal/bitmask"
	"github.com/latintext/corpusquery/internal/breakfilter"
	"github.com/latintext/corpusquery/internal/byteio"
	"github.com/latintext/corpusquery/internal/corpusindex"
	"github.com/latintext/corpusquery/internal/corpuserr"
	"github.com/latintext/corpusquery/internal/planner"
	"github.com/latintext/corpusquery/internal/queryparse"
	"github.com/latintext/corpusquery/internal/resolver"
	"github.com/latintext/corpusquery/internal/suggest"
	"github.com/latintext/corpusquery/internal/types"
)

const (
	defaultPageSize   = 25
	defaultContextLen = 25
	minContextLen     = 1
	maxContextLen     = 100
)

// Engine wraps an open corpus index and exposes the query operation.
type Engine struct {
	idx *corpusindex.Index
}

// Open opens the descriptor at descriptorPath under mode and returns a
// ready-to-query Engine.
func Open(ctx context.Context, descriptorPath string, mode byteio.Mode) (*Engine, error) {
	idx, err := corpusindex.Open(ctx, descriptorPath, mode)
	if err != nil {
		return nil, err
	}
	return &Engine{idx: idx}, nil
}

// Close releases the underlying index's open files and mappings.
func (e *Engine) Close() error {
	return e.idx.Close()
}

// ResultStats reports the query's total-hits estimate (spec §4.10
// "pagination and estimated totals").
type ResultStats struct {
	TotalResults uint64
	ExactCount   bool
}

// QueryResult is one page of a query's results (spec §6).
type QueryResult struct {
	Matches     []resolver.Match
	Stats       ResultStats
	NextPage    *types.Cursor
	Timing      []PhaseTiming
	Suggestions []suggest.Suggestion
}

// Query parses queryStr, evaluates it against the index, and returns the
// page of matches starting at pageStart (spec §4.11's "Query" pipeline:
// parse, initial candidates, break filter, pagination, match assembly).
// pageSize <= 0 defaults to 25; contextLen clamps to [1, 100], defaulting
// to 25 when <= 0.
func (e *Engine) Query(ctx context.Context, queryStr string, pageStart types.Cursor, pageSize, contextLen int) (QueryResult, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	contextLen = clampContextLen(contextLen)

	prof := newProfiler()
	prof.start()

	q, err := queryparse.Parse(queryStr)
	if err != nil {
		return QueryResult{}, err
	}
	suggestions := suggest.Compute(q, e.idx, suggest.DefaultThreshold)
	prof.mark("Parse query")

	n := e.idx.NumTokens()
	spans := planner.SplitSpans(q)
	if len(spans) == 0 {
		prof.mark("Initial candidates")
		return QueryResult{Stats: ResultStats{ExactCount: true}, Timing: prof.timings(), Suggestions: suggestions}, nil
	}

	results := make([]planner.SpanResult, len(spans))
	empty := false
	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			return QueryResult{}, corpuserr.NewCancelled("Initial candidates")
		}
		r, err := planner.EvaluateSpan(span, e.idx, n)
		if err != nil {
			return QueryResult{}, err
		}
		results[i] = r
		if r.IsEmpty() {
			empty = true
			break
		}
	}
	prof.mark("Initial candidates")

	if empty {
		return QueryResult{Stats: ResultStats{ExactCount: true}, Timing: prof.timings(), Suggestions: suggestions}, nil
	}

	if err := ctx.Err(); err != nil {
		return QueryResult{}, corpuserr.NewCancelled("Compute break mask")
	}
	masks := make([]bitmask.Mask, len(results))
	for i, r := range results {
		m, err := breakfilter.ComputeMask(r.Length, e.idx)
		if err != nil {
			return QueryResult{}, err
		}
		masks[i] = m
	}
	prof.mark("Compute break mask")

	if err := ctx.Err(); err != nil {
		return QueryResult{}, corpuserr.NewCancelled("Apply break mask")
	}
	filtered := make([]planner.SpanResult, len(results))
	for i, r := range results {
		f, err := breakfilter.ApplyMask(r, masks[i])
		if err != nil {
			return QueryResult{}, err
		}
		filtered[i] = f
		if f.IsEmpty() {
			empty = true
		}
	}
	prof.mark("Apply break mask")

	if empty {
		return QueryResult{Stats: ResultStats{ExactCount: true}, Timing: prof.timings(), Suggestions: suggestions}, nil
	}

	candidates := make([]resolver.SpanCandidate, len(spans))
	for i, span := range spans {
		candidates[i] = resolver.SpanCandidate{
			Terms:            span.Terms,
			RelationFromPrev: span.RelationFromPrev,
			Data:             filtered[i].Data,
			Length:           filtered[i].Length,
		}
	}

	if err := ctx.Err(); err != nil {
		return QueryResult{}, corpuserr.NewCancelled("Compute page token IDs")
	}
	page, err := resolver.Resolve(candidates, e.idx, pageStart, pageSize, q.Authors)
	if err != nil {
		return QueryResult{}, err
	}
	stats, nextPage, err := e.estimateTotals(candidates, pageStart, page, q.Authors)
	if err != nil {
		return QueryResult{}, err
	}
	prof.mark("Compute page token IDs")

	if err := ctx.Err(); err != nil {
		return QueryResult{}, corpuserr.NewCancelled("Build matches")
	}
	matches, err := e.buildMatches(page.Matches, candidates, contextLen)
	if err != nil {
		return QueryResult{}, err
	}
	prof.mark("Build matches")

	return QueryResult{
		Matches:     matches,
		Stats:       stats,
		NextPage:    nextPage,
		Timing:      prof.timings(),
		Suggestions: suggestions,
	}, nil
}

func clampContextLen(n int) int {
	if n <= 0 {
		return defaultContextLen
	}
	if n < minContextLen {
		return minContextLen
	}
	if n > maxContextLen {
		return maxContextLen
	}
	return n
}

// estimateTotals peeks one further validated match past page to derive
// the exact-or-estimated total (spec §4.10 "pagination and estimated
// totals"). cur is the cursor the page started from.
func (e *Engine) estimateTotals(candidates []resolver.SpanCandidate, cur types.Cursor, page resolver.Result, authors []string) (ResultStats, *types.Cursor, error) {
	peek, err := resolver.Resolve(candidates, e.idx, page.Next, 1, authors)
	if err != nil {
		return ResultStats{}, nil, err
	}
	base := cur.ResultIndex + uint64(len(page.Matches))
	if len(peek.Matches) == 0 {
		return ResultStats{TotalResults: base, ExactCount: true}, nil, nil
	}

	totalCandidates := uint64(candidates[0].Data.NumElements())
	next := peek.Next
	cursor := page.Next
	var remaining uint64
	if next.CandidateIndex > 0 && totalCandidates > next.CandidateIndex {
		r := float64(next.ResultIndex) / float64(next.CandidateIndex)
		remaining = uint64(math.Ceil(float64(totalCandidates-next.CandidateIndex) * r))
	}
	total := base + remaining
	return ResultStats{TotalResults: total, ExactCount: false}, &cursor, nil
}

func (e *Engine) buildMatches(cands []resolver.MatchCandidate, spans []resolver.SpanCandidate, contextLen int) ([]resolver.Match, error) {
	if len(cands) == 0 {
		return nil, nil
	}

	lo, hi := -1, -1
	for _, c := range cands {
		for i, leader := range c.Leaders {
			start, err := e.idx.TokenStart(types.TokenID(leader))
			if err != nil {
				return nil, err
			}
			end, err := e.idx.BreakStart(types.TokenID(leader + spans[i].Length - 1))
			if err != nil {
				return nil, err
			}
			if lo == -1 || start < lo {
				lo = start
			}
			if hi == -1 || end > hi {
				hi = end
			}
		}
	}
	if lo != -1 {
		if err := e.idx.AdviseTextWillNeed(lo, hi); err != nil {
			return nil, err
		}
	}

	matches := make([]resolver.Match, len(cands))
	for i, c := range cands {
		m, err := resolver.AssembleMatch(c, spans, e.idx, contextLen)
		if err != nil {
			return nil, err
		}
		matches[i] = m
	}
	return matches, nil
}
