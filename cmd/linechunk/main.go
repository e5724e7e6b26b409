package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jpl-au/linechunk"
	"github.com/jpl-au/linechunk/internal/logger"
)

var (
	verbose    bool
	rootDir    string
	configPath string

	shardChunks      int
	shardWorkers     int
	shardCompression string
	shardAlgorithm   string
	shardOverwrite   bool
	shardStage       bool
	noProgress       bool

	searchCase bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "linechunk",
		Short: "Split, read and shard line-oriented text corpora",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(logger.LevelDebug)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Resolve all paths inside this directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON config file")

	offsetsCmd := &cobra.Command{
		Use:   "offsets <FILE> <CHUNKS>",
		Short: "Print line-aligned chunk offsets",
		Args:  cobra.ExactArgs(2),
		Run:   runOffsets,
	}

	readCmd := &cobra.Command{
		Use:   "read <FILE> <START> <END>",
		Short: "Print the lines of a chunk. END of 0 reads to end of file",
		Args:  cobra.ExactArgs(3),
		Run:   runRead,
	}

	tokenizeCmd := &cobra.Command{
		Use:   "tokenize <FILE>",
		Short: "Print each line's whitespace tokens",
		Args:  cobra.ExactArgs(1),
		Run:   runTokenize,
	}

	shardCmd := &cobra.Command{
		Use:   "shard <FILE> <OUTPUT_DIR>",
		Short: "Tokenize a corpus in parallel into compressed JSONL shards",
		Args:  cobra.ExactArgs(2),
		Run:   runShard,
	}
	shardCmd.Flags().IntVar(&shardChunks, "chunks", 0, "Number of chunks (default: number of CPUs)")
	shardCmd.Flags().IntVar(&shardWorkers, "workers", 0, "Chunks processed concurrently (default: number of CPUs)")
	shardCmd.Flags().StringVar(&shardCompression, "compression", linechunk.CompressionZstd, "Shard compression: none, zstd, lz4")
	shardCmd.Flags().StringVar(&shardAlgorithm, "algorithm", linechunk.AlgXXHash3, "Checksum algorithm: xxh3, fnv1a, blake2b")
	shardCmd.Flags().BoolVar(&shardOverwrite, "overwrite", false, "Replace an existing manifest")
	shardCmd.Flags().BoolVar(&shardStage, "stage", false, "Copy the source into OUTPUT_DIR before sharding")
	shardCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress bar (progress is enabled by default)")

	verifyCmd := &cobra.Command{
		Use:   "verify <MANIFEST>",
		Short: "Check that a source file still matches its shard manifest",
		Args:  cobra.ExactArgs(1),
		Run:   runVerify,
	}

	searchCmd := &cobra.Command{
		Use:   "search <FILE> <PATTERN> [START END]",
		Short: "Print matching lines with their byte offsets",
		Args:  cobra.RangeArgs(2, 4),
		Run:   runSearch,
	}
	searchCmd.Flags().BoolVarP(&searchCase, "case-sensitive", "c", false, "Match case exactly")

	rootCmd.AddCommand(offsetsCmd, readCmd, tokenizeCmd, shardCmd, verifyCmd, searchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// newSplitter builds a Splitter from --root and the config file. The
// returned func releases the --root directory handle.
func newSplitter(cfg *fileConfig) (*linechunk.Splitter, func()) {
	if cfg.LogLevel != "" && !verbose {
		lvl, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			fail("%v", err)
		}
		logger.SetLevel(lvl)
	}

	config := linechunk.Config{
		ReadBuffer:  cfg.ReadBuffer,
		MaxLineSize: cfg.MaxLineSize,
	}
	release := func() {}
	if rootDir != "" {
		root, err := linechunk.OpenRoot(rootDir)
		if err != nil {
			fail("%v", err)
		}
		config.FS = root
		release = func() { root.Close() }
	}
	return linechunk.New(config), release
}

func mustConfig() *fileConfig {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fail("%v", err)
	}
	return cfg
}

func runOffsets(cmd *cobra.Command, args []string) {
	chunks, err := strconv.Atoi(args[1])
	if err != nil {
		fail("invalid chunk count %q", args[1])
	}

	splitter, release := newSplitter(mustConfig())
	defer release()
	offsets, err := splitter.Offsets(args[0], chunks)
	if err != nil {
		fail("%v", err)
	}
	for _, off := range offsets {
		fmt.Println(off)
	}
}

func runRead(cmd *cobra.Command, args []string) {
	start, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fail("invalid start offset %q", args[1])
	}
	end, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		fail("invalid end offset %q", args[2])
	}

	splitter, release := newSplitter(mustConfig())
	defer release()
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for line, err := range splitter.Lines(args[0], start, end) {
		if err != nil {
			out.Flush()
			fail("%v", err)
		}
		out.WriteString(line)
	}
}

func runTokenize(cmd *cobra.Command, args []string) {
	splitter, release := newSplitter(mustConfig())
	defer release()
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for line, err := range splitter.Lines(args[0], 0, 0) {
		if err != nil {
			out.Flush()
			fail("%v", err)
		}
		out.WriteString(strings.Join(linechunk.Tokenize(line), " "))
		out.WriteByte('\n')
	}
}

func runShard(cmd *cobra.Command, args []string) {
	cfg := mustConfig()
	cfg.overlay(cmd)
	splitter, release := newSplitter(cfg)
	defer release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := cfg.ShardOptions
	var bar *progressbar.ProgressBar
	if !noProgress {
		opts.Progress = func(done, total int64) {
			if bar == nil && total > 0 {
				bar = progressbar.DefaultBytes(total, fmt.Sprintf("Sharding %s", args[0]))
			}
			if bar != nil {
				bar.Set64(done)
			}
		}
	}

	m, err := splitter.Shard(ctx, args[0], args[1], opts)
	if bar != nil {
		bar.Finish()
		fmt.Println()
	}
	if err != nil {
		fail("%v", err)
	}

	var lines, tokens int64
	for _, sh := range m.Shards {
		lines += sh.Lines
		tokens += sh.Tokens
	}
	fmt.Printf("Wrote %d shards (%d lines, %d tokens) to %s\n", len(m.Shards), lines, tokens, args[1])
}

func runVerify(cmd *cobra.Command, args []string) {
	splitter, release := newSplitter(mustConfig())
	defer release()
	m, err := splitter.Verify(context.Background(), args[0])
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("OK: %s matches %d shards\n", m.Source, len(m.Shards))
}

func runSearch(cmd *cobra.Command, args []string) {
	var start, end int64
	if len(args) == 4 {
		var err error
		if start, err = strconv.ParseInt(args[2], 10, 64); err != nil {
			fail("invalid start offset %q", args[2])
		}
		if end, err = strconv.ParseInt(args[3], 10, 64); err != nil {
			fail("invalid end offset %q", args[3])
		}
	} else if len(args) == 3 {
		fail("START and END must be given together")
	}

	splitter, release := newSplitter(mustConfig())
	defer release()
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	opts := linechunk.SearchOptions{CaseSensitive: searchCase}
	for m, err := range splitter.Search(args[0], start, end, args[1], opts) {
		if err != nil {
			out.Flush()
			fail("%v", err)
		}
		fmt.Fprintf(out, "%d:%s", m.Offset, m.Line)
	}
}
