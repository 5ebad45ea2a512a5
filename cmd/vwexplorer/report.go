package main

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/FBalzerMPE/vw-explorer/internal/guider"
	"github.com/FBalzerMPE/vw-explorer/internal/report"
	"github.com/FBalzerMPE/vw-explorer/internal/store"
)

var (
	reportRunID string
	reportList  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the night summary for a stored run",
	Long: `Loads a run's exposure statistics and dither chunks from the results
database and writes the interactive HTML summary plus the FWHM and flux-rate
series plots into the output directory. Defaults to the most recent run.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "run id (default: most recent)")
	reportCmd.Flags().BoolVar(&reportList, "list", false, "list recorded runs and exit")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if reportList {
		runs, err := st.Runs()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			cmd.Println("no runs recorded")
			return nil
		}
		for _, r := range runs {
			cmd.Printf("%s  %s  %s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Logfile)
		}
		return nil
	}

	runID := reportRunID
	if runID == "" {
		runs, err := st.Runs()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs recorded in %s", cfg.Database)
		}
		runID = runs[0].ID
	}

	stats, err := st.ExposureStatsForRun(runID)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		return fmt.Errorf("run %s has no exposure statistics", runID)
	}
	chunks, err := st.ChunksForRun(runID)
	if err != nil {
		return err
	}
	return writeNightReport(cmd, filepath.Join(cfg.OutputDir, runID), stats, chunks)
}

// writeNightReport renders the summary page and the standard night series.
// Series with no finite values (a fully clouded-out night) are skipped with a
// log line rather than failing the report.
func writeNightReport(cmd *cobra.Command, dir string, stats []guider.ExposureStats, chunks []guider.ChunkRecord) error {
	if err := report.EnsureDir(dir); err != nil {
		return err
	}
	summary := filepath.Join(dir, "summary.html")
	if err := report.NightSummaryHTML(stats, chunks, summary); err != nil {
		return err
	}
	cmd.Printf("wrote %s\n", summary)

	series := []struct {
		name   string
		render func([]guider.ExposureStats, string) error
	}{
		{"fwhm.png", report.FWHMSeriesPNG},
		{"flux_rate.png", report.FluxSeriesPNG},
	}
	for _, s := range series {
		path := filepath.Join(dir, s.name)
		if err := s.render(stats, path); err != nil {
			log.Printf("report: %s: %v", s.name, err)
			continue
		}
		cmd.Printf("wrote %s\n", path)
	}
	return nil
}
