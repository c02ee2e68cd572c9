// Command corpusquery runs one query against a corpus index and prints the
// resulting page of matches (spec §6).
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v2"

	"github.com/latintext/corpusquery/internal/byteio"
	"github.com/latintext/corpusquery/internal/config"
	"github.com/latintext/corpusquery/internal/engine"
	"github.com/latintext/corpusquery/internal/idcodec"
	"github.com/latintext/corpusquery/internal/resolver"
	"github.com/latintext/corpusquery/internal/suggest"
	"github.com/latintext/corpusquery/internal/types"
	"github.com/latintext/corpusquery/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "corpusquery",
		Usage:   "query a Latin corpus index",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Query string"},
			&cli.IntFlag{Name: "limit", Value: 25, Usage: "Maximum matches per page"},
			&cli.IntFlag{Name: "context", Value: 25, Usage: "Tokens of surrounding context per match"},
			&cli.BoolFlag{Name: "quiet", Usage: "Suppress timing and suggestion output"},
			&cli.BoolFlag{Name: "mem", Usage: "Report memory obtained from the OS (runtime.MemStats.Sys) after the query"},
			&cli.StringFlag{Name: "index", Aliases: []string{"i"}, Usage: "Descriptor path or glob"},
			&cli.StringFlag{Name: "reader", Usage: "Byte reader mode: auto, memory, mmap, mmap-populate", Value: "auto"},
			&cli.StringFlag{Name: "page-start", Usage: "Opaque page token from a previous run's next_page"},
			&cli.StringFlag{Name: "config-dir", Usage: "Directory to look for corpusquery.kdl in", Value: "."},
		},
		Action: runQuery,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "corpusquery:", err)
		os.Exit(1)
	}
}

func runQuery(c *cli.Context) error {
	queryStr := c.String("query")
	if queryStr == "" {
		return errors.New("--query is required")
	}

	cfg, _, err := config.LoadKDL(c.String("config-dir"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if idx := c.String("index"); idx != "" {
		resolved, err := resolveIndexPath(idx)
		if err != nil {
			return err
		}
		cfg.Descriptor = resolved
	}
	if c.IsSet("reader") {
		if mode, ok := parseReaderFlag(c.String("reader")); ok {
			cfg.ReaderMode = mode
		}
	}
	if c.IsSet("limit") {
		cfg.DefaultPageSize = c.Int("limit")
	}
	if c.IsSet("context") {
		cfg.DefaultContextLen = c.Int("context")
	}
	if err := config.ValidateConfig(&cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	pageStart, err := idcodec.DecodeCursor(c.String("page-start"))
	if err != nil {
		return fmt.Errorf("invalid --page-start: %w", err)
	}

	eng, err := engine.Open(c.Context, cfg.Descriptor, cfg.ReaderMode)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer eng.Close()

	result, err := eng.Query(c.Context, queryStr, pageStart, cfg.DefaultPageSize, cfg.DefaultContextLen)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	printMatches(result.Matches)
	printStats(result.Stats, result.NextPage)
	if !c.Bool("quiet") {
		printSuggestions(result.Suggestions)
		printTimings(result.Timing)
	}
	if c.Bool("mem") {
		printMemStats()
	}
	return nil
}

func printMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("memory from OS: %.1f MiB\n", float64(m.Sys)/(1<<20))
}

func resolveIndexPath(pattern string) (string, error) {
	if _, err := os.Stat(pattern); err == nil {
		return pattern, nil
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid --index glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("--index %q matched no files", pattern)
	}
	return matches[0], nil
}

func parseReaderFlag(v string) (byteio.Mode, bool) {
	switch strings.ToLower(v) {
	case "memory", "in-memory":
		return byteio.ModeInMemory, true
	case "mmap":
		return byteio.ModeMmap, true
	case "mmap-populate", "mmap-populated":
		return byteio.ModeMmapPopulated, true
	case "auto", "":
		return byteio.ModeFromEnv(), true
	default:
		return 0, false
	}
}

func printMatches(matches []resolver.Match) {
	for _, m := range matches {
		fmt.Printf("%s (%s), offset %d:\n", m.Metadata.WorkName, m.Metadata.Author, m.Metadata.Offset)
		var b strings.Builder
		for _, seg := range m.Text {
			if seg.IsCore {
				b.WriteString("[")
				b.WriteString(seg.Text)
				b.WriteString("]")
			} else {
				b.WriteString(seg.Text)
			}
		}
		fmt.Println(strings.TrimSpace(b.String()))
		fmt.Println()
	}
}

func printStats(stats engine.ResultStats, next *types.Cursor) {
	if stats.ExactCount {
		fmt.Printf("%d results (exact)\n", stats.TotalResults)
	} else {
		fmt.Printf("~%d results (estimated)\n", stats.TotalResults)
	}
	if next != nil {
		fmt.Printf("next page: %s\n", idcodec.EncodeCursor(*next))
	}
}

func printSuggestions(suggestions []suggest.Suggestion) {
	for _, s := range suggestions {
		fmt.Printf("did you mean %s:%s instead of %s:%s?\n", s.Atom, s.Suggested, s.Atom, s.Got)
	}
}

func printTimings(timings []engine.PhaseTiming) {
	for _, t := range timings {
		fmt.Printf("  %s: %.2fms\n", t.Phase, t.Ms)
	}
}
