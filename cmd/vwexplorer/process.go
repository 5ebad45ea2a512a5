package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/FBalzerMPE/vw-explorer/internal/frameindex"
	"github.com/FBalzerMPE/vw-explorer/internal/guider"
	"github.com/FBalzerMPE/vw-explorer/internal/obslog"
	"github.com/FBalzerMPE/vw-explorer/internal/store"
)

var (
	processWorkers int
	processChained bool
	processNotes   string
	processReport  bool
)

var processCmd = &cobra.Command{
	Use:   "process <logfile>",
	Short: "Fit guide stars for every exposure in a night log",
	Long: `Parses the observer log, associates each science exposure with the guide
frames captured during it, fits a 2-D Gaussian to every frame, and stores
the per-exposure statistics and the dither-chunk breakdown as a new run in
the results database.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().IntVar(&processWorkers, "workers", 0, "concurrent exposures (0 = from config)")
	processCmd.Flags().BoolVar(&processChained, "chained", false, "seed each fit with the previous accepted centroid")
	processCmd.Flags().StringVar(&processNotes, "notes", "", "free-text note stored with the run")
	processCmd.Flags().BoolVar(&processReport, "report", false, "render the night summary after processing")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	in := cfg.GuiderInstrument()

	exposures, err := obslog.ParseFile(args[0], in)
	if err != nil {
		return err
	}
	exposures = skyExposures(exposures, in)
	if len(exposures) == 0 {
		return fmt.Errorf("%s: no science exposures in log", args[0])
	}

	ix, err := frameindex.Build(cfg.GuiderDir, frameindex.Options{})
	if err != nil {
		return err
	}
	frames := ix.FrameSources()
	cmd.Printf("%d science exposures, %d indexed frames\n", len(exposures), len(frames))

	workers := processWorkers
	if workers <= 0 {
		workers = cfg.Workers
	}
	opts := guider.BatchOptions{Workers: workers}
	if processChained {
		opts.Sequence.Strategy = guider.GuessChained
	}

	ctx, stop := signalContext()
	defer stop()
	res, err := guider.ProcessExposures(ctx, exposures, frames, in, opts)
	if err != nil {
		return err
	}

	guider.SortExposuresByStart(exposures)
	chunks, err := guider.ChunkAllTargets(exposures)
	if err != nil {
		return err
	}
	records := make([]guider.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = c.Record()
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.CreateRun(args[0], processNotes)
	if err != nil {
		return err
	}
	if err := st.SaveExposureStats(run.ID, res.Stats); err != nil {
		return err
	}
	if err := st.SaveChunks(run.ID, records); err != nil {
		return err
	}
	cmd.Printf("run %s: %d exposures processed, %d skipped, %d dither chunks\n",
		run.ID, res.Processed, res.Skipped, len(records))

	if processReport {
		return writeNightReport(cmd, filepath.Join(cfg.OutputDir, run.ID), res.Stats, records)
	}
	return nil
}
