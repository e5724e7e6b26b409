// Manifest verification.
//
// Verify re-reads every chunk of the source named in a manifest and
// compares line counts and checksums with what was recorded at sharding
// time. A mismatch means the source changed after sharding and the shards
// no longer describe it. Each shard file is also decoded in full and its
// record and token counts compared with the manifest, so a damaged or
// truncated shard is caught as well. Chunks are checked in parallel, each through its
// own handle, exactly as they were produced.
package linechunk

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jpl-au/linechunk/internal/logger"
)

// Verify checks the source and shards referenced by the manifest at name.
// It returns the manifest on success. Mismatches wrap ErrChecksumMismatch and
// undecodable shards wrap ErrCorruptShard.
func (s *Splitter) Verify(ctx context.Context, name string) (*Manifest, error) {
	lock, err := acquireLock(s.fsys, lockPath(name), LockShared, false)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	defer lock.release()

	m, err := LoadManifest(s.fsys, name)
	if err != nil {
		return nil, err
	}

	f, err := s.fsys.Open(m.Source)
	if err != nil {
		return nil, fmt.Errorf("verify: open source: %w", err)
	}
	sz, err := size(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("verify: stat source: %w", err)
	}
	if sz != m.Size {
		return nil, fmt.Errorf("%w: source is %d bytes, manifest says %d", ErrChecksumMismatch, sz, m.Size)
	}

	dir := filepath.Dir(name)
	ranges := Ranges(m.Offsets)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, info := range m.Shards {
		g.Go(func() error {
			if err := s.checkShard(gctx, filepath.Join(dir, info.Path), info); err != nil {
				return err
			}

			sum, err := newChecksum(m.Algorithm)
			if err != nil {
				return err
			}
			var lines int64
			for line, err := range s.Lines(m.Source, ranges[i][0], ranges[i][1]) {
				if err != nil {
					return fmt.Errorf("verify: shard %d: %w", i, err)
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				io.WriteString(sum, line)
				lines++
			}

			if lines != info.Lines {
				return fmt.Errorf("%w: shard %d has %d lines, manifest says %d", ErrChecksumMismatch, i, lines, info.Lines)
			}
			if got := digest(sum); got != info.Checksum {
				return fmt.Errorf("%w: shard %d checksum %s, manifest says %s", ErrChecksumMismatch, i, got, info.Checksum)
			}
			logger.Debug("verified chunk %d of %s", i, m.Source)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// checkShard decodes the shard file described by info and compares its
// record and token counts with the manifest.
func (s *Splitter) checkShard(ctx context.Context, path string, info ShardInfo) error {
	if !s.fsys.IsFile(path) {
		return fmt.Errorf("verify: shard %d: missing %s", info.Index, info.Path)
	}

	var lines, tokens int64
	for rec, err := range s.ReadShard(path) {
		if err != nil {
			return fmt.Errorf("verify: shard %d: %w", info.Index, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.Line != lines {
			return fmt.Errorf("%w: %s: record %d numbered %d", ErrCorruptShard, info.Path, lines, rec.Line)
		}
		lines++
		tokens += int64(len(rec.Tokens))
	}

	if lines != info.Lines {
		return fmt.Errorf("%w: shard %d file holds %d records, manifest says %d", ErrChecksumMismatch, info.Index, lines, info.Lines)
	}
	if tokens != info.Tokens {
		return fmt.Errorf("%w: shard %d file holds %d tokens, manifest says %d", ErrChecksumMismatch, info.Index, tokens, info.Tokens)
	}
	return nil
}
