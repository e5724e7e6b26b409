// Low-level read primitives for newline-delimited UTF-8 text.
//
// All reads go through io.SectionReader over an io.ReaderAt, so a reader
// never touches a shared file position and positions are exact byte
// offsets. A seek to an arbitrary byte may land inside a multi-byte UTF-8
// sequence; runeStart walks back to the first byte of that sequence before
// any line is decoded. The walk is bounded by utf8.UTFMax, so malformed
// input fails with ErrInvalidUTF8 instead of searching indefinitely.
package linechunk

import (
	"bufio"
	"fmt"
	"io"
	"unicode/utf8"
)

// size returns the length of f in bytes.
func size(f File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// runeStart returns the offset of the first byte of the UTF-8 sequence that
// covers offset. It only steps over continuation bytes, so it never moves
// into the previous line. Offsets at or past EOF are returned unchanged.
func runeStart(r io.ReaderAt, offset int64) (int64, error) {
	var buf [1]byte
	pos := offset
	for i := 0; i < utf8.UTFMax-1 && pos > 0; i++ {
		if _, err := r.ReadAt(buf[:], pos); err != nil {
			if err == io.EOF {
				return pos, nil
			}
			return 0, err
		}
		if utf8.RuneStart(buf[0]) {
			return pos, nil
		}
		pos--
	}
	return pos, nil
}

// lineReader reads '\n'-terminated lines from a fixed start offset while
// tracking the exact byte position of the next unread line.
type lineReader struct {
	r   *bufio.Reader
	pos int64 // offset of the next unread byte
	max int
}

func newLineReader(f io.ReaderAt, offset, end int64, bufSize, maxLine int) *lineReader {
	section := io.NewSectionReader(f, offset, max(end-offset, 0))
	return &lineReader{
		r:   bufio.NewReaderSize(section, bufSize),
		pos: offset,
		max: maxLine,
	}
}

// next returns the next line including its terminator. The final line of a
// file may lack the terminator. io.EOF is returned once nothing remains.
// The returned slice is owned by the caller.
func (lr *lineReader) next() ([]byte, error) {
	var line []byte
	for {
		frag, err := lr.r.ReadSlice('\n')
		if len(line)+len(frag) > lr.max {
			return nil, fmt.Errorf("%w: at offset %d", ErrLineTooLong, lr.pos)
		}
		line = append(line, frag...)
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		if len(line) == 0 {
			return nil, io.EOF
		}
		break
	}

	if !utf8.Valid(line) {
		return nil, fmt.Errorf("%w: at offset %d", ErrInvalidUTF8, lr.pos)
	}
	lr.pos += int64(len(line))
	return line, nil
}

// skipLine performs a line-boundary-safe read at offset and returns the
// position just past that line: the start of the following line, or end if
// the line runs to EOF.
func skipLine(f io.ReaderAt, offset, end int64, bufSize, maxLine int) (int64, error) {
	if offset >= end {
		return end, nil
	}

	start, err := runeStart(f, offset)
	if err != nil {
		return 0, err
	}

	lr := newLineReader(f, start, end, bufSize, maxLine)
	if _, err := lr.next(); err != nil {
		if err == io.EOF {
			return end, nil
		}
		return 0, err
	}
	return lr.pos, nil
}
