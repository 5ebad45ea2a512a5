package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/FBalzerMPE/vw-explorer/internal/frameindex"
)

var (
	indexForce   bool
	indexMissing bool
	indexWatch   bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or update the guide-frame index",
	Long: `Scans the guide-frame directory (and its immediate subdirectories) for
FITS files and merges them into the cached timestamp index. Only files not
yet in the cache get their headers read, so re-running is cheap.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force-reload", false, "ignore the cache and re-read every header")
	indexCmd.Flags().BoolVar(&indexMissing, "remove-missing", false, "drop cache entries whose files are gone")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "keep running and re-index as frames arrive")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts := frameindex.Options{ForceReload: indexForce, RemoveMissing: indexMissing}
	ix, err := frameindex.Build(cfg.GuiderDir, opts)
	if err != nil {
		return err
	}
	printIndex(cmd, ix)
	if !indexWatch {
		return nil
	}

	ctx, stop := signalContext()
	defer stop()
	err = frameindex.Watch(ctx, cfg.GuiderDir,
		frameindex.Options{RemoveMissing: indexMissing},
		func(ix *frameindex.Index) { printIndex(cmd, ix) })
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printIndex(cmd *cobra.Command, ix *frameindex.Index) {
	if len(ix.Entries) == 0 {
		cmd.Printf("%s: no frames indexed\n", ix.Dir)
		return
	}
	first := ix.Entries[0].Timestamp
	last := ix.Entries[len(ix.Entries)-1].Timestamp
	cmd.Printf("%s: %d frames, %s .. %s\n", ix.Dir, len(ix.Entries),
		first.Format(time.RFC3339), last.Format(time.RFC3339))
}
