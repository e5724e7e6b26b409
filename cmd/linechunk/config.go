package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/jpl-au/linechunk"
)

// fileConfig is the JSON document accepted by --config. Flags given on the
// command line take precedence over values from the file.
type fileConfig struct {
	linechunk.ShardOptions
	ReadBuffer  int    `json:"read_buffer"`
	MaxLineSize int    `json:"max_line_size"`
	LogLevel    string `json:"log_level"`
}

func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// overlay copies explicitly set shard flags over cfg.
func (cfg *fileConfig) overlay(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("chunks") {
		cfg.Chunks = shardChunks
	}
	if flags.Changed("workers") {
		cfg.Workers = shardWorkers
	}
	if flags.Changed("compression") {
		cfg.Compression = shardCompression
	}
	if flags.Changed("algorithm") {
		cfg.Algorithm = shardAlgorithm
	}
	if flags.Changed("overwrite") {
		cfg.Overwrite = shardOverwrite
	}
	if flags.Changed("stage") {
		cfg.Stage = shardStage
	}
}
