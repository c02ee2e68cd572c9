// Command corpusquery-mcp serves the corpus_query MCP tool over stdio
// (SPEC_FULL §6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/latintext/corpusquery/internal/config"
	"github.com/latintext/corpusquery/internal/engine"
	"github.com/latintext/corpusquery/internal/mcpserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "corpusquery-mcp:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configDir := "."
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}
	cfg, _, err := config.LoadKDL(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.ValidateConfig(&cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	eng, err := engine.Open(ctx, cfg.Descriptor, cfg.ReaderMode)
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	defer eng.Close()

	return mcpserver.New(eng).Run(ctx)
}
