package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latintext/corpusquery/internal/byteio"
)

func TestLoadKDLReturnsDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, found, err := LoadKDL(dir)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, Default(), cfg)
}

func TestLoadKDLOverlaysSettings(t *testing.T) {
	dir := t.TempDir()
	content := `
descriptor "corpus/descriptor.json"
reader {
    mode "in-memory"
}
query {
    page_size 50
    context_len 10
}
suggest {
    threshold 0.9
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpusquery.kdl"), []byte(content), 0o644))

	cfg, found, err := LoadKDL(dir)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, filepath.Join(dir, "corpus/descriptor.json"), cfg.Descriptor)
	assert.Equal(t, byteio.ModeInMemory, cfg.ReaderMode)
	assert.Equal(t, 50, cfg.DefaultPageSize)
	assert.Equal(t, 10, cfg.DefaultContextLen)
	assert.InDelta(t, 0.9, cfg.SuggestThreshold, 1e-9)
}

func TestLoadKDLKeepsAbsoluteDescriptorPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpusquery.kdl"), []byte(`descriptor "/data/descriptor.json"`), 0o644))

	cfg, _, err := LoadKDL(dir)
	require.NoError(t, err)
	assert.Equal(t, "/data/descriptor.json", cfg.Descriptor)
}
