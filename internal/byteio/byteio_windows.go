//go:build windows

// Package byteio provides the three interchangeable byte-reader variants
// the engine opens its backing files through (spec §4.3). The Windows
// build maps the same API but has no madvise equivalent, so
// AdviseWillNeed is a no-op on this platform.
package byteio

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

type Reader interface {
	Bytes(start, end int) ([]byte, error)
	AdviseWillNeed(start, end int) error
	Len() int
	Close() error
}

func checkRange(n, start, end int) error {
	if start < 0 || end < start || end > n {
		return fmt.Errorf("byteio: range [%d,%d) out of bounds for length %d", start, end, n)
	}
	return nil
}

type InMemory struct {
	data []byte
}

func OpenInMemory(path string) (*InMemory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &InMemory{data: data}, nil
}

func (r *InMemory) Bytes(start, end int) ([]byte, error) {
	if err := checkRange(len(r.data), start, end); err != nil {
		return nil, err
	}
	return r.data[start:end], nil
}

func (r *InMemory) AdviseWillNeed(start, end int) error { return nil }
func (r *InMemory) Len() int                            { return len(r.data) }
func (r *InMemory) Close() error                        { return nil }

type Mmap struct {
	file   *os.File
	data   mmap.MMap
	length int
}

func openMmap(path string) (*Mmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Mmap{file: f, data: m, length: len(m)}, nil
}

func OpenMmap(path string) (*Mmap, error) {
	return openMmap(path)
}

func OpenMmapPopulated(path string) (*Mmap, error) {
	return openMmap(path)
}

func (r *Mmap) Bytes(start, end int) ([]byte, error) {
	if err := checkRange(r.length, start, end); err != nil {
		return nil, err
	}
	return r.data[start:end], nil
}

func (r *Mmap) AdviseWillNeed(start, end int) error {
	return checkRange(r.length, start, end)
}

func (r *Mmap) Len() int { return r.length }

func (r *Mmap) Close() error {
	if err := r.data.Unmap(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

type Mode int

const (
	ModeMmapPopulated Mode = iota
	ModeMmap
	ModeInMemory
)

func ModeFromEnv() Mode {
	if isSet("IN_MEMORY_BUFFERS") {
		return ModeInMemory
	}
	if isSet("MMAP_NO_POPULATE") {
		return ModeMmap
	}
	return ModeMmapPopulated
}

func isSet(name string) bool {
	v, ok := os.LookupEnv(name)
	return ok && v != "" && v != "0" && v != "false"
}

func Open(path string, mode Mode) (Reader, error) {
	switch mode {
	case ModeInMemory:
		return OpenInMemory(path)
	default:
		return OpenMmap(path)
	}
}
