// Chunk reading.
//
// A chunk is the byte range [start, end) of a file, normally taken from
// adjacent entries of an offset list. Reading starts exactly at start and
// yields whole lines. A line is part of the chunk when it begins before end,
// so a line straddling end is yielded in full and the line that begins at
// end belongs to the next chunk. An end of 0 means "to EOF".
//
// Lines are produced lazily through iter.Seq2. Splitter.Lines opens the
// file when the range loop begins and closes it when the loop ends, whether
// by exhaustion, break, error or panic. Splitter.Open hands out the handle
// explicitly for callers that want to range the same chunk more than once.
package linechunk

import (
	"fmt"
	"io"
	"iter"
)

// Chunk is an open handle over one chunk of a file. It is not safe for
// concurrent use; open one Chunk per goroutine.
type Chunk struct {
	name   string
	file   File
	start  int64
	end    int64
	size   int64
	config Config
}

// Open acquires a handle over [start, end) of name. The caller must Close
// it.
func (s *Splitter) Open(name string, start, end int64) (*Chunk, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}

	f, err := s.fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("chunk: open: %w", err)
	}

	sz, err := size(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("chunk: stat: %w", err)
	}

	return &Chunk{
		name:   name,
		file:   f,
		start:  start,
		end:    end,
		size:   sz,
		config: s.config,
	}, nil
}

// Lines yields the lines of [start, end) of name, each including its
// terminator. Every range over the returned sequence opens the file afresh
// and closes it before the loop completes.
func (s *Splitter) Lines(name string, start, end int64) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		c, err := s.Open(name, start, end)
		if err != nil {
			yield("", err)
			return
		}
		defer c.Close()
		c.each(yield)
	}
}

// Lines yields the chunk's lines. Each range restarts at the chunk start.
// After Close the sequence yields ErrClosed.
func (c *Chunk) Lines() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if c.file == nil {
			yield("", ErrClosed)
			return
		}
		c.each(yield)
	}
}

// Range returns the chunk's byte range as given to Open.
func (c *Chunk) Range() (start, end int64) {
	return c.start, c.end
}

// Close releases the file handle. Closing twice is a no-op.
func (c *Chunk) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}

func (c *Chunk) each(yield func(string, error) bool) {
	err := c.scan(func(_ int64, line []byte) bool {
		return yield(string(line), nil)
	})
	if err != nil {
		yield("", err)
	}
}

// scan calls fn with the offset and bytes of each line in the chunk until
// fn returns false. The line slice is only valid for the duration of the
// call.
func (c *Chunk) scan(fn func(pos int64, line []byte) bool) error {
	first, err := runeStart(c.file, c.start)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", c.name, err)
	}

	lr := newLineReader(c.file, first, c.size, c.config.ReadBuffer, c.config.MaxLineSize)
	for {
		if c.end > 0 && lr.pos >= c.end {
			return nil
		}
		pos := lr.pos
		data, err := lr.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("chunk %s: %w", c.name, err)
		}
		if !fn(pos, data) {
			return nil
		}
	}
}

func checkRange(start, end int64) error {
	if start < 0 || end < 0 || (end != 0 && end < start) {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, start, end)
	}
	return nil
}
