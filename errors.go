// Package linechunk splits line-oriented UTF-8 text corpora into line-aligned
// byte ranges and reads those ranges back lazily, one line at a time.
//
// A corpus is treated as a flat sequence of newline-terminated lines. The
// offset finder picks N+1 byte positions that partition the file into N
// chunks whose boundaries all fall on line starts, so independent readers can
// consume the chunks in parallel without coordinating. Every read goes
// through io.ReaderAt, which means readers never share seek state even when
// they read the same file. The Sharder builds on these primitives to tokenize
// a corpus in parallel and write compressed JSONL shards plus a manifest.
package linechunk

import "errors"

// Sentinel errors for programmatic handling. I/O failures from the
// underlying FileSystem are wrapped rather than replaced, so callers can
// still test them with errors.Is(err, fs.ErrNotExist) and friends.
var (
	ErrInvalidChunks      = errors.New("chunk count must be at least 1")
	ErrInvalidRange       = errors.New("invalid chunk range")
	ErrInvalidUTF8        = errors.New("line is not valid UTF-8")
	ErrLineTooLong        = errors.New("line exceeds maximum size")
	ErrClosed             = errors.New("chunk is closed")
	ErrExists             = errors.New("output already exists")
	ErrUnknownAlgorithm   = errors.New("unknown checksum algorithm")
	ErrUnknownCompression = errors.New("unknown compression")
	ErrCorruptManifest    = errors.New("corrupt manifest")
	ErrCorruptShard       = errors.New("corrupt shard")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
)
