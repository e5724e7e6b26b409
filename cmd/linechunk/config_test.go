package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/jpl-au/linechunk"
)

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Chunks != 0 || cfg.Compression != "" || cfg.LogLevel != "" {
		t.Errorf("empty path should give zero config, got %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linechunk.json")
	data := `{
		"chunks": 16,
		"workers": 4,
		"compression": "lz4",
		"algorithm": "blake2b",
		"mode": 384,
		"read_buffer": 131072,
		"log_level": "debug"
	}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Chunks != 16 || cfg.Workers != 4 {
		t.Errorf("chunks/workers = %d/%d, want 16/4", cfg.Chunks, cfg.Workers)
	}
	if cfg.Compression != "lz4" || cfg.Algorithm != "blake2b" {
		t.Errorf("compression/algorithm = %s/%s", cfg.Compression, cfg.Algorithm)
	}
	if cfg.Mode != 0600 {
		t.Errorf("mode = %o, want 600", cfg.Mode)
	}
	if cfg.ReadBuffer != 131072 || cfg.LogLevel != "debug" {
		t.Errorf("read_buffer/log_level = %d/%s", cfg.ReadBuffer, cfg.LogLevel)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte(`{"chunks": "many"}`), 0644)

	if _, err := loadConfig(path); err == nil {
		t.Error("expected error for mistyped field")
	}
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestOverlay verifies that only flags given on the command line replace
// values from the config file.
func TestOverlay(t *testing.T) {
	cmd := &cobra.Command{Use: "shard"}
	cmd.Flags().IntVar(&shardChunks, "chunks", 0, "")
	cmd.Flags().IntVar(&shardWorkers, "workers", 0, "")
	cmd.Flags().StringVar(&shardCompression, "compression", "zstd", "")
	cmd.Flags().StringVar(&shardAlgorithm, "algorithm", "xxh3", "")
	cmd.Flags().BoolVar(&shardOverwrite, "overwrite", false, "")
	cmd.Flags().BoolVar(&shardStage, "stage", false, "")

	if err := cmd.ParseFlags([]string{"--chunks", "3", "--overwrite"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg := &fileConfig{}
	cfg.Chunks = 16
	cfg.Compression = "lz4"
	cfg.overlay(cmd)

	if cfg.Chunks != 3 {
		t.Errorf("chunks = %d, want 3 from flag", cfg.Chunks)
	}
	if cfg.Compression != "lz4" {
		t.Errorf("compression = %q, want lz4 from file", cfg.Compression)
	}
	if !cfg.Overwrite {
		t.Error("overwrite flag not applied")
	}
	if cfg.Stage {
		t.Error("stage set without flag")
	}
}

// TestNewSplitterReleasesRoot verifies that the --root directory handle is
// closed by the release func returned alongside the Splitter.
func TestNewSplitterReleasesRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "corpus.txt"), []byte("a\n"), 0644); err != nil {
		t.Fatal(err)
	}
	prev := rootDir
	rootDir = dir
	t.Cleanup(func() { rootDir = prev })

	s, release := newSplitter(&fileConfig{})
	if !s.FS().Exists("corpus.txt") {
		t.Fatal("file not visible through --root")
	}
	release()
	if s.FS().Exists("corpus.txt") {
		t.Error("root still usable after release")
	}
}

func TestNewSplitterNoRoot(t *testing.T) {
	prev := rootDir
	rootDir = ""
	t.Cleanup(func() { rootDir = prev })

	s, release := newSplitter(&fileConfig{})
	defer release()
	if _, ok := s.FS().(linechunk.Local); !ok {
		t.Errorf("FS = %T, want linechunk.Local", s.FS())
	}
}
