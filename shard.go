// Parallel sharding of a corpus into tokenized JSONL files.
//
// Shard is the in-process consumer the offset finder exists for. The
// source is split into line-aligned chunks; a bounded pool of workers
// reads each chunk through its own handle, tokenizes every line, and
// streams one JSON record per line into that chunk's shard. Workers share
// nothing but the progress counter. The first worker error cancels the
// rest, partial shards are removed, and no manifest is written.
//
// Shards and any staged copy of the source are written under a .tmp suffix
// and renamed into place only once every chunk has succeeded, so a failed
// run with Overwrite leaves the previous shard set and manifest intact.
//
// Shard files are named <source>.<index>.jsonl with a compression suffix,
// e.g. corpus.en.00003.jsonl.zst, and sit beside the manifest.
package linechunk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/jpl-au/linechunk/internal/logger"
)

// ProgressFunc reports bytes processed so far out of total. Calls are
// serialised.
type ProgressFunc func(done, total int64)

// ShardOptions configures Shard.
type ShardOptions struct {
	Chunks      int          `json:"chunks"`      // Number of chunks (default NumCPU)
	Workers     int          `json:"workers"`     // Concurrent chunks (default min(Chunks, NumCPU))
	Compression string       `json:"compression"` // none, zstd, lz4 (default zstd)
	Algorithm   string       `json:"algorithm"`   // xxh3, fnv1a, blake2b (default xxh3)
	Mode        fs.FileMode  `json:"mode"`        // Shard permissions, 0 leaves the default
	Overwrite   bool         `json:"overwrite"`   // Replace an existing manifest
	Stage       bool         `json:"stage"`       // Copy the source into the output dir first
	Progress    ProgressFunc `json:"-"`
}

func (o *ShardOptions) defaults() error {
	if o.Chunks <= 0 {
		o.Chunks = runtime.NumCPU()
	}
	if o.Workers <= 0 {
		o.Workers = min(o.Chunks, runtime.NumCPU())
	}
	if o.Compression == "" {
		o.Compression = CompressionZstd
	}
	if o.Algorithm == "" {
		o.Algorithm = AlgXXHash3
	}
	if _, err := extension(o.Compression); err != nil {
		return err
	}
	if _, err := newChecksum(o.Algorithm); err != nil {
		return err
	}
	return nil
}

// Record is one tokenized line in a shard.
type Record struct {
	Line   int64    `json:"n"` // Line index within the chunk
	Tokens []string `json:"t"`
}

type progress struct {
	mu    sync.Mutex
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progress) add(n int64) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	p.done += n
	p.fn(p.done, p.total)
	p.mu.Unlock()
}

// Shard splits src into opts.Chunks line-aligned chunks, tokenizes them in
// parallel, and writes one shard per chunk plus a manifest into dir.
func (s *Splitter) Shard(ctx context.Context, src, dir string, opts ShardOptions) (*Manifest, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	ext, _ := extension(opts.Compression)

	if err := s.fsys.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("shard: mkdir: %w", err)
	}

	manifestPath := ManifestPath(dir, src)
	lock, err := acquireLock(s.fsys, lockPath(manifestPath), LockExclusive, true)
	if err != nil {
		return nil, fmt.Errorf("shard: %w", err)
	}
	defer lock.release()

	if !opts.Overwrite && s.fsys.Exists(manifestPath) {
		return nil, fmt.Errorf("%w: %s", ErrExists, manifestPath)
	}

	// read is where chunks are read from; src is what the manifest records.
	read := src
	var pending []string // temp files renamed into place on success
	var final []string
	fail := func(err error) (*Manifest, error) {
		for _, tmp := range pending {
			s.fsys.Remove(tmp)
		}
		logger.Debug("sharding %s failed: %v", src, err)
		return nil, err
	}

	if opts.Stage {
		staged := filepath.Join(dir, filepath.Base(src))
		if filepath.Clean(staged) != filepath.Clean(src) {
			if !opts.Overwrite && s.fsys.Exists(staged) {
				return nil, fmt.Errorf("shard: stage: %w: %s", ErrExists, staged)
			}
			logger.Info("staging %s to %s", src, staged)
			read = staged + ".tmp"
			pending = append(pending, read)
			final = append(final, staged)
			if err := s.fsys.Copy(src, read, true); err != nil {
				return fail(fmt.Errorf("shard: stage: %w", err))
			}
			src = staged
		}
	}

	offsets, err := s.Offsets(read, opts.Chunks)
	if err != nil {
		return fail(err)
	}
	total := offsets[len(offsets)-1]
	logger.Info("sharding %s (%d bytes) into %d chunks with %d workers", src, total, opts.Chunks, opts.Workers)

	m := &Manifest{
		Source:      src,
		Size:        total,
		Chunks:      opts.Chunks,
		Algorithm:   opts.Algorithm,
		Compression: opts.Compression,
		Created:     time.Now().UnixMilli(),
		Offsets:     offsets,
		Shards:      make([]ShardInfo, opts.Chunks),
	}

	p := &progress{total: total, fn: opts.Progress}
	if p.fn != nil {
		p.fn(0, total)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, r := range Ranges(offsets) {
		info := &m.Shards[i]
		info.Index = i
		info.Start = offsets[i]
		info.End = offsets[i+1]
		info.Path = shardName(src, i, ext)

		path := filepath.Join(dir, info.Path)
		pending = append(pending, path+".tmp")
		final = append(final, path)

		if info.Start == info.End {
			logger.Warn("chunk %d of %s is empty", i, src)
		}

		g.Go(func() error {
			start := time.Now()
			if err := s.shardChunk(gctx, read, path+".tmp", r[1], info, opts, p); err != nil {
				return err
			}
			logger.Debug("chunk %d: %d lines, %d tokens in %s", i, info.Lines, info.Tokens, time.Since(start))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fail(err)
	}

	if opts.Mode != 0 {
		for _, tmp := range pending[len(pending)-len(m.Shards):] {
			if err := s.fsys.Chmod(tmp, opts.Mode); err != nil {
				return fail(fmt.Errorf("shard: chmod: %w", err))
			}
		}
	}

	if err := s.commit(dir, manifestPath, m, pending, final); err != nil {
		return nil, err
	}
	logger.Info("wrote %s", manifestPath)
	return m, nil
}

// commit moves a finished run into place. The previous manifest is removed
// first, so a crash part way through leaves no manifest rather than one
// describing a mix of old and new shards.
func (s *Splitter) commit(dir, manifestPath string, m *Manifest, pending, final []string) error {
	if s.fsys.Exists(manifestPath) {
		if err := s.fsys.Remove(manifestPath); err != nil {
			return fmt.Errorf("shard: remove old manifest: %w", err)
		}
	}
	for i, tmp := range pending {
		if err := s.fsys.Rename(tmp, final[i]); err != nil {
			return fmt.Errorf("shard: rename: %w", err)
		}
	}
	s.prune(dir, m)
	return writeManifest(s.fsys, manifestPath, m)
}

// prune removes shards of earlier runs of the same source that m does not
// list, such as high-index shards left by a run with more chunks or shards
// written with a different compression.
func (s *Splitter) prune(dir string, m *Manifest) {
	entries, err := s.fsys.List(dir)
	if err != nil {
		logger.Warn("prune %s: %v", dir, err)
		return
	}
	keep := make(map[string]bool, len(m.Shards))
	for _, info := range m.Shards {
		keep[info.Path] = true
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(filepath.Base(m.Source)) + `\.\d{5}\.jsonl(\.zst|\.lz4)?$`)
	for _, name := range entries {
		if keep[name] || !pattern.MatchString(name) {
			continue
		}
		if err := s.fsys.Remove(filepath.Join(dir, name)); err != nil {
			logger.Warn("prune %s: %v", name, err)
			continue
		}
		logger.Debug("removed stale shard %s", name)
	}
}

func shardName(src string, index int, ext string) string {
	return fmt.Sprintf("%s.%05d.jsonl%s", filepath.Base(src), index, ext)
}

// shardChunk tokenizes [info.Start, end) of src into the shard at path,
// filling in the counts and checksum of info.
func (s *Splitter) shardChunk(ctx context.Context, src, path string, end int64, info *ShardInfo, opts ShardOptions, p *progress) (err error) {
	sum, err := newChecksum(opts.Algorithm)
	if err != nil {
		return err
	}

	out, err := s.fsys.Create(path)
	if err != nil {
		return fmt.Errorf("shard %d: create: %w", info.Index, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("shard %d: close: %w", info.Index, cerr)
		}
	}()

	bw := bufio.NewWriterSize(out, s.config.ReadBuffer)
	cw, err := compressor(bw, opts.Compression)
	if err != nil {
		return err
	}
	flushed := false
	defer func() {
		if !flushed {
			cw.Close()
		}
	}()

	enc := json.NewEncoder(cw)
	for line, err := range s.Lines(src, info.Start, end) {
		if err != nil {
			return fmt.Errorf("shard %d: %w", info.Index, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		io.WriteString(sum, line)
		tokens := Tokenize(line)
		if err := enc.Encode(Record{Line: info.Lines, Tokens: tokens}); err != nil {
			return fmt.Errorf("shard %d: encode: %w", info.Index, err)
		}
		info.Lines++
		info.Tokens += int64(len(tokens))
		p.add(int64(len(line)))
	}

	flushed = true
	if err := cw.Close(); err != nil {
		return fmt.Errorf("shard %d: compress: %w", info.Index, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("shard %d: flush: %w", info.Index, err)
	}
	info.Checksum = digest(sum)
	return nil
}

// ReadShard yields the records of a shard file. The compression is taken
// from the file extension.
func (s *Splitter) ReadShard(name string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		f, err := s.fsys.Open(name)
		if err != nil {
			yield(Record{}, fmt.Errorf("shard: open: %w", err))
			return
		}
		defer f.Close()

		sz, err := size(f)
		if err != nil {
			yield(Record{}, fmt.Errorf("shard: stat: %w", err))
			return
		}

		br := bufio.NewReaderSize(io.NewSectionReader(f, 0, sz), s.config.ReadBuffer)
		dr, err := decompressor(br, compressionOf(name))
		if err != nil {
			yield(Record{}, err)
			return
		}
		defer dr.Close()

		dec := json.NewDecoder(dr)
		for {
			var rec Record
			err := dec.Decode(&rec)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Record{}, fmt.Errorf("%w: %s: %w", ErrCorruptShard, name, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
