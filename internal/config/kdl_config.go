package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/latintext/corpusquery/internal/byteio"
)

// LoadKDL reads configDir/corpusquery.kdl, if present, and overlays its
// settings onto the defaults. A missing file is not an error — it
// reports (Default(), false, nil).
func LoadKDL(configDir string) (Config, bool, error) {
	path := filepath.Join(configDir, "corpusquery.kdl")
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), false, nil
	}
	if err != nil {
		return Config{}, false, fmt.Errorf("read %s: %w", path, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return Config{}, false, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Descriptor != "" && !filepath.IsAbs(cfg.Descriptor) {
		cfg.Descriptor = filepath.Join(configDir, cfg.Descriptor)
	}
	return cfg, true, nil
}

func parseKDL(content string) (Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return Config{}, err
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "descriptor":
			if s, ok := firstStringArg(n); ok {
				cfg.Descriptor = s
			}
		case "reader":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "mode":
					if s, ok := firstStringArg(cn); ok {
						if m, ok := parseReaderMode(s); ok {
							cfg.ReaderMode = m
						}
					}
				}
			}
		case "query":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "page_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.DefaultPageSize = v
					}
				case "context_len":
					if v, ok := firstIntArg(cn); ok {
						cfg.DefaultContextLen = v
					}
				}
			}
		case "suggest":
			for _, cn := range n.Children {
				if nodeName(cn) == "threshold" {
					if f, ok := firstFloatArg(cn); ok {
						cfg.SuggestThreshold = f
					}
				}
			}
		}
	}

	return cfg, nil
}

func parseReaderMode(s string) (byteio.Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mmap-populated", "mmap_populated", "":
		return byteio.ModeMmapPopulated, true
	case "mmap":
		return byteio.ModeMmap, true
	case "in-memory", "in_memory", "memory":
		return byteio.ModeInMemory, true
	default:
		return 0, false
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
