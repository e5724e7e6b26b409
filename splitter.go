// Splitter configuration and the offset finder.
//
// A Splitter binds a FileSystem and read limits. It is stateless between
// calls and safe for concurrent use: every operation opens its own file
// handle. The package-level FindOffsets and Lines use a Splitter over the
// host file system with default limits.
package linechunk

import (
	"fmt"
	"iter"
)

// Config holds Splitter configuration options.
type Config struct {
	FS          FileSystem // File system backend (default Local)
	ReadBuffer  int        // Buffer size for reading (default 64KB)
	MaxLineSize int        // Maximum single line size (default 16MB)
}

// Splitter computes line-aligned chunk offsets and reads chunks back.
type Splitter struct {
	fsys   FileSystem
	config Config
}

// New returns a Splitter with zero-valued options replaced by defaults.
func New(config Config) *Splitter {
	if config.FS == nil {
		config.FS = Local{}
	}
	if config.ReadBuffer <= 0 {
		config.ReadBuffer = 64 * 1024
	}
	if config.MaxLineSize <= 0 {
		config.MaxLineSize = 16 * 1024 * 1024
	}
	return &Splitter{fsys: config.FS, config: config}
}

// FS returns the file system the Splitter reads through.
func (s *Splitter) FS() FileSystem {
	return s.fsys
}

var std = New(Config{})

// FindOffsets computes chunk offsets for a file on the host file system.
// See Splitter.Offsets.
func FindOffsets(name string, chunks int) ([]int64, error) {
	return std.Offsets(name, chunks)
}

// Lines reads a chunk of a file on the host file system. See
// Splitter.Lines.
func Lines(name string, start, end int64) iter.Seq2[string, error] {
	return std.Lines(name, start, end)
}

// Offsets returns chunks+1 byte offsets that partition the file into
// chunks ranges. The first offset is 0 and the last is the file size. Each
// inner offset is found by seeking to i*(size/chunks) and moving past the
// line that covers that byte, so every inner offset is a line start and no
// boundary splits a UTF-8 sequence. When chunks exceeds the number of
// lines, trailing offsets collapse to the file size and the corresponding
// chunks are empty.
func (s *Splitter) Offsets(name string, chunks int) ([]int64, error) {
	if chunks < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunks, chunks)
	}

	f, err := s.fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("offsets: open: %w", err)
	}
	defer f.Close()

	sz, err := size(f)
	if err != nil {
		return nil, fmt.Errorf("offsets: stat: %w", err)
	}

	width := sz / int64(chunks)
	offsets := make([]int64, chunks+1)
	for i := 1; i < chunks; i++ {
		pos, err := skipLine(f, int64(i)*width, sz, s.config.ReadBuffer, s.config.MaxLineSize)
		if err != nil {
			return nil, fmt.Errorf("offsets: chunk %d: %w", i, err)
		}
		offsets[i] = pos
	}
	offsets[chunks] = sz
	return offsets, nil
}

// Ranges converts an offset list into per-chunk [start, end) pairs. The
// last pair's end is 0, the read-to-EOF sentinel understood by Lines.
func Ranges(offsets []int64) [][2]int64 {
	if len(offsets) < 2 {
		return nil
	}
	out := make([][2]int64, len(offsets)-1)
	for i := range out {
		out[i] = [2]int64{offsets[i], offsets[i+1]}
	}
	out[len(out)-1][1] = 0
	return out
}
