// Pattern search over a chunk.
//
// Search streams the lines of one chunk and yields those matching a
// pattern together with their byte offset, so a hit can be located in the
// source or mapped back to its shard via the manifest. Searching a whole
// corpus in parallel is a matter of calling Search once per range from
// FindOffsets.
//
// Literal patterns (no regex metacharacters) take a fast path through
// bytes.Contains. Case-insensitive literal search lowers both needle and
// line, which allocates a copy per line; search terms are short and the
// copy is bounded by MaxLineSize. Patterns with metacharacters are
// compiled with regexp, prefixed with (?i) when case-insensitive.
package linechunk

import (
	"bytes"
	"fmt"
	"iter"
	"regexp"
)

// SearchOptions configures Search behaviour. Callers control result count
// by breaking out of the range loop.
type SearchOptions struct {
	CaseSensitive bool
}

// Match is a single search result.
type Match struct {
	Offset int64  // Byte offset of the line in the source
	Line   string // The line, including its terminator
}

// Search yields the lines of [start, end) of name that match pattern.
// The file is opened when the range loop begins and closed when it ends.
func (s *Splitter) Search(name string, start, end int64, pattern string, opts SearchOptions) iter.Seq2[Match, error] {
	return func(yield func(Match, error) bool) {
		match, err := matcher(pattern, opts)
		if err != nil {
			yield(Match{}, err)
			return
		}

		c, err := s.Open(name, start, end)
		if err != nil {
			yield(Match{}, err)
			return
		}
		defer c.Close()

		err = c.scan(func(pos int64, line []byte) bool {
			if !match(line) {
				return true
			}
			return yield(Match{Offset: pos, Line: string(line)}, nil)
		})
		if err != nil {
			yield(Match{}, err)
		}
	}
}

func matcher(pattern string, opts SearchOptions) (func([]byte) bool, error) {
	if regexp.QuoteMeta(pattern) == pattern {
		needle := []byte(pattern)
		if opts.CaseSensitive {
			return func(line []byte) bool {
				return bytes.Contains(line, needle)
			}, nil
		}
		lower := bytes.ToLower(needle)
		return func(line []byte) bool {
			return bytes.Contains(bytes.ToLower(line), lower)
		}, nil
	}

	expr := pattern
	if !opts.CaseSensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return re.Match, nil
}
