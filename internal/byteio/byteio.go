//go:build !windows

// Package byteio provides the three interchangeable byte-reader variants
// the engine opens its backing files through: an in-memory copy, a
// read-only mmap, and a pre-faulted ("populated") mmap (spec §4.3).
package byteio

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

// Reader is the read contract every backing-file variant implements.
// Bytes returns a borrowed view into the underlying storage — callers
// must not retain it past the reader's lifetime.
type Reader interface {
	Bytes(start, end int) ([]byte, error)
	// AdviseWillNeed hints the OS to read ahead [start, end). A no-op for
	// the in-memory variant.
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

// InMemory owns a single read-once copy of the file's contents.
type InMemory struct {
	data []byte
}

// OpenInMemory reads the whole file into a owned buffer.
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

// Mmap is a read-only memory-mapped view of a file, optionally with its
// pages pre-faulted at open time (MmapPopulated).
type Mmap struct {
	file   *os.File
	data   mmap.MMap
	length int
}

func openMmap(path string, populate bool) (*Mmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	r := &Mmap{file: f, data: m, length: len(m)}
	if populate && len(m) > 0 {
		// edsrzf/mmap-go has no MAP_POPULATE flag; fault pages in
		// eagerly with an immediate willneed hint instead.
		_ = unix.Madvise(m, unix.MADV_WILLNEED)
	}
	return r, nil
}

// OpenMmap maps path read-only without eagerly faulting pages in.
func OpenMmap(path string) (*Mmap, error) {
	return openMmap(path, false)
}

// OpenMmapPopulated maps path read-only and immediately advises the OS
// to fault its pages in.
func OpenMmapPopulated(path string) (*Mmap, error) {
	return openMmap(path, true)
}

func (r *Mmap) Bytes(start, end int) ([]byte, error) {
	if err := checkRange(r.length, start, end); err != nil {
		return nil, err
	}
	return r.data[start:end], nil
}

func (r *Mmap) AdviseWillNeed(start, end int) error {
	if err := checkRange(r.length, start, end); err != nil {
		return err
	}
	if start == end {
		return nil
	}
	return unix.Madvise(r.data[start:end], unix.MADV_WILLNEED)
}

func (r *Mmap) Len() int { return r.length }

func (r *Mmap) Close() error {
	if err := r.data.Unmap(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Mode selects which Reader variant Open constructs.
type Mode int

const (
	ModeMmapPopulated Mode = iota // default
	ModeMmap
	ModeInMemory
)

// ModeFromEnv resolves the reader variant from IN_MEMORY_BUFFERS,
// MMAP_NO_POPULATE, and MMAP_POPULATE. The three are mutually exclusive;
// spec §6 says "last-set wins" — since only one should be set in
// practice, we apply the priority IN_MEMORY_BUFFERS > MMAP_NO_POPULATE >
// MMAP_POPULATE so an explicit in-memory request always wins, falling
// back to the populated mmap default when none are set.
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

// Open opens path using the reader variant selected by mode.
func Open(path string, mode Mode) (Reader, error) {
	switch mode {
	case ModeInMemory:
		return OpenInMemory(path)
	case ModeMmap:
		return OpenMmap(path)
	default:
		return OpenMmapPopulated(path)
	}
}
