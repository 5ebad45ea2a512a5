// Package store persists processing results in sqlite. Every invocation of
// the pipeline is a run keyed by a generated id, so reprocessing a night
// never clobbers earlier results and runs can be compared.
package store

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/FBalzerMPE/vw-explorer/internal/guider"
)

type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the results database and applies pending
// migrations.
func Open(path string) (*Store, error) {
	s, err := OpenRaw(path)
	if err != nil {
		return nil, err
	}
	if err := s.MigrateUp(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// OpenRaw opens the database without touching the schema, for callers that
// manage migrations explicitly.
func OpenRaw(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	return &Store{db}, nil
}

// Run is one recorded processing invocation.
type Run struct {
	ID        string
	CreatedAt time.Time
	Logfile   string
	Notes     string
}

// CreateRun records a new processing run and returns its generated id.
func (s *Store) CreateRun(logfile, notes string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Logfile:   logfile,
		Notes:     notes,
	}
	_, err := s.Exec(
		"INSERT INTO runs (id, created_at, logfile, notes) VALUES (?, ?, ?, ?)",
		run.ID, run.CreatedAt, run.Logfile, run.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// Runs lists recorded runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.Query("SELECT id, created_at, logfile, notes FROM runs ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Logfile, &r.Notes); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveExposureStats stores per-exposure aggregate records under the run.
func (s *Store) SaveExposureStats(runID string, stats []guider.ExposureStats) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO exposure_stats (
		run_id, filename, target, dither, start_time, exptime, airmass,
		frame_count, failed_fits,
		centroid_mean_x, centroid_mean_y, centroid_std_x, centroid_std_y,
		fwhm_mean_pix, fwhm_std_pix, fwhm_mean_arcsec,
		flux_rate_mean, flux_rate_std
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, st := range stats {
		_, err := stmt.Exec(
			runID, st.Filename, st.Target, st.Dither, st.StartTime,
			nullFloat(st.ExpTime), nullFloat(st.Airmass),
			st.FrameCount, st.FailedFits,
			nullFloat(st.CentroidMean.X), nullFloat(st.CentroidMean.Y),
			nullFloat(st.CentroidStd.X), nullFloat(st.CentroidStd.Y),
			nullFloat(st.FWHMMeanPix), nullFloat(st.FWHMStdPix), nullFloat(st.FWHMMeanArcsec),
			nullFloat(st.FluxRateMean), nullFloat(st.FluxRateStd),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("save stats for %s: %w", st.Filename, err)
		}
	}
	return tx.Commit()
}

// ExposureStatsForRun loads a run's per-exposure records in start-time order.
func (s *Store) ExposureStatsForRun(runID string) ([]guider.ExposureStats, error) {
	rows, err := s.Query(`SELECT
		filename, target, dither, start_time, exptime, airmass,
		frame_count, failed_fits,
		centroid_mean_x, centroid_mean_y, centroid_std_x, centroid_std_y,
		fwhm_mean_pix, fwhm_std_pix, fwhm_mean_arcsec,
		flux_rate_mean, flux_rate_std
	FROM exposure_stats WHERE run_id = ? ORDER BY start_time`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []guider.ExposureStats
	for rows.Next() {
		var st guider.ExposureStats
		var expTime, airmass, cmx, cmy, csx, csy, fm, fs, fa, rm, rs sql.NullFloat64
		if err := rows.Scan(
			&st.Filename, &st.Target, &st.Dither, &st.StartTime, &expTime, &airmass,
			&st.FrameCount, &st.FailedFits,
			&cmx, &cmy, &csx, &csy, &fm, &fs, &fa, &rm, &rs,
		); err != nil {
			return nil, err
		}
		st.ExpTime = floatOrNaN(expTime)
		st.Airmass = floatOrNaN(airmass)
		st.CentroidMean = guider.Point{X: floatOrNaN(cmx), Y: floatOrNaN(cmy)}
		st.CentroidStd = guider.Point{X: floatOrNaN(csx), Y: floatOrNaN(csy)}
		st.FWHMMeanPix = floatOrNaN(fm)
		st.FWHMStdPix = floatOrNaN(fs)
		st.FWHMMeanArcsec = floatOrNaN(fa)
		st.FluxRateMean = floatOrNaN(rm)
		st.FluxRateStd = floatOrNaN(rs)
		out = append(out, st)
	}
	return out, rows.Err()
}

// SaveChunks stores dither-chunk records under the run.
func (s *Store) SaveChunks(runID string, chunks []guider.ChunkRecord) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO dither_chunks (
		run_id, target, chunk_index, exposure_count,
		start_time, end_time, fiducial_x, fiducial_y, filenames
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		_, err := stmt.Exec(
			runID, c.Target, c.Index, c.ExposureCount,
			c.Start, c.End,
			nullFloat(c.MeanFiducial.X), nullFloat(c.MeanFiducial.Y),
			strings.Join(c.Filenames, ","),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("save chunk %s#%d: %w", c.Target, c.Index, err)
		}
	}
	return tx.Commit()
}

// ChunksForRun loads a run's dither chunks ordered by target and index.
func (s *Store) ChunksForRun(runID string) ([]guider.ChunkRecord, error) {
	rows, err := s.Query(`SELECT
		target, chunk_index, exposure_count, start_time, end_time,
		fiducial_x, fiducial_y, filenames
	FROM dither_chunks WHERE run_id = ? ORDER BY target, chunk_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []guider.ChunkRecord
	for rows.Next() {
		var c guider.ChunkRecord
		var fx, fy sql.NullFloat64
		var filenames string
		if err := rows.Scan(&c.Target, &c.Index, &c.ExposureCount,
			&c.Start, &c.End, &fx, &fy, &filenames); err != nil {
			return nil, err
		}
		c.MeanFiducial = guider.Point{X: floatOrNaN(fx), Y: floatOrNaN(fy)}
		if filenames != "" {
			c.Filenames = strings.Split(filenames, ",")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// nullFloat maps NaN to NULL; sqlite has no NaN representation.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
