// Shard manifest.
//
// A manifest records how a source file was split: its size at the time,
// the offset list, and per-shard line and token counts plus a checksum of
// the raw chunk bytes. It is a single indented JSON document written next
// to the shards. Writes go to a .tmp file first and are renamed into place,
// so a crash mid-write leaves either the previous manifest or none at all,
// never a truncated one.
package linechunk

import (
	"fmt"
	"io"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// Manifest describes one sharding run.
type Manifest struct {
	Source      string      `json:"source"`      // Source path as read
	Size        int64       `json:"size"`        // Source size in bytes
	Chunks      int         `json:"chunks"`      // Number of chunks
	Algorithm   string      `json:"algorithm"`   // Checksum algorithm
	Compression string      `json:"compression"` // Shard compression
	Created     int64       `json:"created"`     // Unix milliseconds
	Offsets     []int64     `json:"offsets"`     // Chunks+1 line-aligned offsets
	Shards      []ShardInfo `json:"shards"`
}

// ShardInfo describes one chunk and the shard file produced from it.
type ShardInfo struct {
	Index    int    `json:"index"`
	Start    int64  `json:"start"`    // Inclusive byte offset in source
	End      int64  `json:"end"`      // Exclusive byte offset in source
	Lines    int64  `json:"lines"`    // Lines read from the chunk
	Tokens   int64  `json:"tokens"`   // Tokens written to the shard
	Checksum string `json:"checksum"` // Hex digest of the chunk bytes
	Path     string `json:"path"`     // Shard file, relative to the manifest
}

// ManifestPath returns the manifest location for a source sharded into dir.
func ManifestPath(dir, source string) string {
	return filepath.Join(dir, filepath.Base(source)+".manifest.json")
}

// LoadManifest reads and validates a manifest.
func LoadManifest(fsys FileSystem, name string) (*Manifest, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("manifest: open: %w", err)
	}
	defer f.Close()

	sz, err := size(f)
	if err != nil {
		return nil, fmt.Errorf("manifest: stat: %w", err)
	}

	data, err := io.ReadAll(io.NewSectionReader(f, 0, sz))
	if err != nil {
		return nil, fmt.Errorf("manifest: read: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptManifest, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Chunks < 1 {
		return fmt.Errorf("%w: chunks = %d", ErrCorruptManifest, m.Chunks)
	}
	if len(m.Offsets) != m.Chunks+1 {
		return fmt.Errorf("%w: %d offsets for %d chunks", ErrCorruptManifest, len(m.Offsets), m.Chunks)
	}
	if len(m.Shards) != m.Chunks {
		return fmt.Errorf("%w: %d shards for %d chunks", ErrCorruptManifest, len(m.Shards), m.Chunks)
	}
	if m.Offsets[0] != 0 || m.Offsets[m.Chunks] != m.Size {
		return fmt.Errorf("%w: offsets do not span [0, %d]", ErrCorruptManifest, m.Size)
	}
	for i := 1; i < len(m.Offsets); i++ {
		if m.Offsets[i] < m.Offsets[i-1] {
			return fmt.Errorf("%w: offsets decrease at %d", ErrCorruptManifest, i)
		}
	}
	for i, sh := range m.Shards {
		if sh.Index != i || sh.Start != m.Offsets[i] || sh.End != m.Offsets[i+1] {
			return fmt.Errorf("%w: shard %d does not match offsets", ErrCorruptManifest, i)
		}
		if !filepath.IsLocal(sh.Path) {
			return fmt.Errorf("%w: shard %d path %q", ErrCorruptManifest, i, sh.Path)
		}
	}
	return nil
}

// writeManifest writes m to name via a temporary file and rename.
func writeManifest(fsys FileSystem, name string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode: %w", err)
	}
	data = append(data, '\n')

	tmp := name + ".tmp"
	w, err := fsys.Create(tmp)
	if err != nil {
		return fmt.Errorf("manifest: create temp: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		fsys.Remove(tmp)
		return fmt.Errorf("manifest: write: %w", err)
	}
	if err := w.Close(); err != nil {
		fsys.Remove(tmp)
		return fmt.Errorf("manifest: close: %w", err)
	}
	if err := fsys.Rename(tmp, name); err != nil {
		fsys.Remove(tmp)
		return fmt.Errorf("manifest: rename: %w", err)
	}
	return nil
}
