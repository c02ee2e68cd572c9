// Package config loads the corpus engine's runtime settings from a KDL
// config file (SPEC_FULL §2 row 12). The byte-reader mode defaults to the
// one selected by the environment (byteio.ModeFromEnv); a KDL reader
// block overrides it.
package config

import "github.com/latintext/corpusquery/internal/byteio"

// Config is the fully resolved runtime configuration for one engine
// instance.
type Config struct {
	// Descriptor is the path to the corpus descriptor JSON file.
	Descriptor string

	// ReaderMode selects how the backing files are opened.
	ReaderMode byteio.Mode

	// DefaultPageSize is used when a query omits page_size.
	DefaultPageSize int

	// DefaultContextLen is used when a query omits context_len.
	DefaultContextLen int

	// SuggestThreshold is the minimum Jaro-Winkler similarity a "did you
	// mean" candidate must clear to be surfaced. It is validated but not
	// passed to the engine: Engine.Query always uses
	// suggest.DefaultThreshold.
	SuggestThreshold float64
}

// Default returns the configuration used when no KDL file is present. Its
// reader mode is the environment's selection, which is populated mmap
// when none of the reader variables is set.
func Default() Config {
	return Config{
		ReaderMode:        byteio.ModeFromEnv(),
		DefaultPageSize:   25,
		DefaultContextLen: 25,
		SuggestThreshold:  0.85,
	}
}
