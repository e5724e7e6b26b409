// Compression for shard files.
//
// Shards are JSONL streams wrapped in an optional compression frame chosen
// by ShardOptions.Compression. The frame is recorded in the shard's file
// extension (.zst, .lz4 or none) so ReadShard can pick the decoder without
// consulting the manifest.
//
// Zstd runs at SpeedFastest: sharding is write-heavy and token JSON
// compresses well even at the lowest level.
package linechunk

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd" // Default
	CompressionLZ4  = "lz4"
)

// extension returns the file suffix for a compression, including the dot.
func extension(compression string) (string, error) {
	switch compression {
	case CompressionNone:
		return "", nil
	case CompressionZstd:
		return ".zst", nil
	case CompressionLZ4:
		return ".lz4", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCompression, compression)
	}
}

// compressionOf infers the compression of a shard from its file name.
func compressionOf(name string) string {
	switch {
	case strings.HasSuffix(name, ".zst"):
		return CompressionZstd
	case strings.HasSuffix(name, ".lz4"):
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// compressor wraps w in the named compression frame. Closing the result
// flushes the frame but does not close w.
func compressor(w io.Writer, compression string) (io.WriteCloser, error) {
	switch compression {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, err
		}
		return enc, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, compression)
	}
}

// decompressor unwraps the named compression frame from r. Closing the
// result releases decoder state but does not close r.
func decompressor(r io.Reader, compression string) (io.ReadCloser, error) {
	switch compression {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorruptShard, err)
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCompression, compression)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
