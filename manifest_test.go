// Manifest tests.
//
// LoadManifest is the only gate between a file on disk and Verify, which
// indexes Offsets and Shards by position. A manifest that decodes but is
// internally inconsistent must be rejected up front, not discovered as an
// index panic halfway through verification.
package linechunk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func validManifest() *Manifest {
	return &Manifest{
		Source:      "corpus.txt",
		Size:        200,
		Chunks:      2,
		Algorithm:   AlgXXHash3,
		Compression: CompressionZstd,
		Offsets:     []int64{0, 120, 200},
		Shards: []ShardInfo{
			{Index: 0, Start: 0, End: 120, Lines: 6, Path: "corpus.txt.00000.jsonl.zst"},
			{Index: 1, Start: 120, End: 200, Lines: 4, Path: "corpus.txt.00001.jsonl.zst"},
		},
	}
}

func TestManifestPath(t *testing.T) {
	got := ManifestPath("out", "/data/corpus.en")
	if want := filepath.Join("out", "corpus.en.manifest.json"); got != want {
		t.Errorf("ManifestPath = %q, want %q", got, want)
	}
}

// TestManifestWriteLoad verifies a written manifest loads back unchanged
// and that no temporary file is left beside it.
func TestManifestWriteLoad(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "corpus.txt.manifest.json")
	m := validManifest()

	if err := writeManifest(Local{}, name, m); err != nil {
		t.Fatalf("writeManifest: %v", err)
	}
	if _, err := os.Stat(name + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary file left behind: %v", err)
	}

	got, err := LoadManifest(Local{}, name)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if got.Size != m.Size || got.Chunks != m.Chunks || len(got.Shards) != 2 {
		t.Errorf("loaded = %+v", got)
	}
	if got.Shards[1].Path != m.Shards[1].Path || got.Shards[1].Lines != 4 {
		t.Errorf("shard 1 = %+v", got.Shards[1])
	}
}

// TestManifestCorruptJSON verifies undecodable content is reported as
// ErrCorruptManifest.
func TestManifestCorruptJSON(t *testing.T) {
	name := filepath.Join(t.TempDir(), "m.json")
	if err := os.WriteFile(name, []byte(`{"source": "x", "chunks": `), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(Local{}, name); !errors.Is(err, ErrCorruptManifest) {
		t.Errorf("LoadManifest = %v, want ErrCorruptManifest", err)
	}
}

// TestManifestValidate covers each inconsistency validate rejects.
func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Manifest)
	}{
		{"zero chunks", func(m *Manifest) { m.Chunks = 0 }},
		{"offset count", func(m *Manifest) { m.Offsets = m.Offsets[:2] }},
		{"shard count", func(m *Manifest) { m.Shards = m.Shards[:1] }},
		{"first offset", func(m *Manifest) { m.Offsets[0] = 5 }},
		{"last offset", func(m *Manifest) { m.Size = 300 }},
		{"decreasing", func(m *Manifest) { m.Offsets[1] = 250; m.Offsets[2] = 200 }},
		{"shard start", func(m *Manifest) { m.Shards[1].Start = 100 }},
		{"shard index", func(m *Manifest) { m.Shards[0].Index = 1 }},
		{"absolute path", func(m *Manifest) { m.Shards[0].Path = "/etc/passwd" }},
		{"escaping path", func(m *Manifest) { m.Shards[1].Path = "../shard.jsonl" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			tt.mutate(m)
			if err := m.validate(); !errors.Is(err, ErrCorruptManifest) {
				t.Errorf("validate = %v, want ErrCorruptManifest", err)
			}
		})
	}

	if err := validManifest().validate(); err != nil {
		t.Errorf("valid manifest rejected: %v", err)
	}
}

func TestManifestMissing(t *testing.T) {
	_, err := LoadManifest(Local{}, filepath.Join(t.TempDir(), "none.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadManifest = %v, want os.ErrNotExist", err)
	}
}
