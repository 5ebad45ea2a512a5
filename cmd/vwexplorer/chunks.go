package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/FBalzerMPE/vw-explorer/internal/guider"
	"github.com/FBalzerMPE/vw-explorer/internal/obslog"
)

var chunksCmd = &cobra.Command{
	Use:   "chunks <logfile>",
	Short: "Show the dither-chunk breakdown of a night log",
	Long: `Groups each target's science exposures into maximal runs of strictly
consecutive dither positions and prints the breakdown. Nothing is stored;
use "process" to persist chunk records with a run.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunks,
}

func init() {
	rootCmd.AddCommand(chunksCmd)
}

func runChunks(cmd *cobra.Command, args []string) error {
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
	guider.SortExposuresByStart(exposures)

	chunks, err := guider.ChunkAllTargets(exposures)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		start, end := c.TimeRange()
		cmd.Printf("%-16s %2d exposures  %s .. %s", c.Name(), c.Len(),
			start.Format("15:04"), end.Format("15:04"))
		if fid, ok := c.MeanFiducial(); ok {
			cmd.Printf("  fiducial (%.1f, %.1f)", fid.X, fid.Y)
		}
		cmd.Printf("\n    %s\n", strings.Join(c.Filenames(), " "))
	}
	return nil
}
