package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/FBalzerMPE/vw-explorer/internal/fits"
	"github.com/FBalzerMPE/vw-explorer/internal/frameindex"
	"github.com/FBalzerMPE/vw-explorer/internal/guider"
	"github.com/FBalzerMPE/vw-explorer/internal/obslog"
	"github.com/FBalzerMPE/vw-explorer/internal/report"
)

var (
	stackTarget  string
	stackChained bool
)

var stackCmd = &cobra.Command{
	Use:   "stack <logfile> [filename...]",
	Short: "Shift-and-add the guide frames of selected exposures",
	Long: `Aligns each selected exposure's guide frames on their fitted centroids
and co-adds them into one exposure-time-normalised image, written as a FITS
file plus a heatmap PNG under <output>/stacks/. With no filenames and no
--target every science exposure is stacked.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStack,
}

func init() {
	stackCmd.Flags().StringVar(&stackTarget, "target", "", "stack every exposure of this target")
	stackCmd.Flags().BoolVar(&stackChained, "chained", false, "seed each fit with the previous accepted centroid")
	rootCmd.AddCommand(stackCmd)
}

func runStack(cmd *cobra.Command, args []string) error {
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

	wanted := make(map[string]bool)
	for _, name := range args[1:] {
		wanted[name] = true
	}
	var selected []*guider.Exposure
	for _, e := range exposures {
		switch {
		case len(wanted) > 0:
			if wanted[e.Filename] {
				selected = append(selected, e)
			}
		case stackTarget != "":
			if e.Target == stackTarget {
				selected = append(selected, e)
			}
		default:
			selected = append(selected, e)
		}
	}
	if len(selected) == 0 {
		return fmt.Errorf("%s: no matching exposures", args[0])
	}

	ix, err := frameindex.Build(cfg.GuiderDir, frameindex.Options{})
	if err != nil {
		return err
	}
	frames := ix.FrameSources()

	outDir := filepath.Join(cfg.OutputDir, "stacks")
	if err := report.EnsureDir(outDir); err != nil {
		return err
	}

	seqOpts := guider.SequenceOptions{}
	if stackChained {
		seqOpts.Strategy = guider.GuessChained
	}
	sigma := cfg.ClipSigmaPtr()

	stacked := 0
	for _, exp := range selected {
		seq, err := guider.NewExposureGuideSequence(exp, frames, in, seqOpts)
		if err != nil {
			log.Printf("stack: skipping %s: %v", exp.LongName(), err)
			continue
		}
		img, err := seq.StackedImage(sigma)
		if err != nil {
			log.Printf("stack: skipping %s: %v", exp.LongName(), err)
			continue
		}

		base := filepath.Join(outDir, exp.Filename+"_stack")
		out := &fits.File{Width: img.Width, Height: img.Height, Data: img.Pix}
		out.Header.Set("OBJECT", exp.Target, "target name")
		out.Header.Set("EXPNAME", exp.Filename, "source exposure")
		out.Header.Set("NFRAMES", strconv.Itoa(seq.Len()), "guide frames co-added")
		if err := fits.WriteFile(base+".fits", out); err != nil {
			return err
		}
		if err := report.StackedImagePNG(img, exp.LongName(), base+".png"); err != nil {
			return err
		}
		if err := report.CentroidScatterPNG(seq, sigma, base+"_centroids.png"); err != nil {
			log.Printf("stack: centroid plot for %s: %v", exp.Filename, err)
		}
		cmd.Printf("%s: stacked %d frames -> %s.fits\n", exp.Filename, seq.Len(), base)
		stacked++
	}
	if stacked == 0 {
		return fmt.Errorf("no exposure could be stacked")
	}
	return nil
}
