// Package pairdb persists pairing runs and their candidate cells to SQLite
// so runs can be listed, compared and re-exported without re-reading the
// TrackMate XML.
package pairdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mitosis-data/spindle.report/internal/spindle"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the run database at path and brings the
// schema up to date.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	db := &DB{sqlDB}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Run is one invocation of the pairing engine over one TrackMate export.
type Run struct {
	ID         string
	SourceXML  string
	Params     spindle.PairerConfig
	Bounds     spindle.Bounds
	StartedAt  time.Time
	FinishedAt time.Time
	TrackCount int
	CellCount  int
}

// NewRun stamps a fresh run record with a uuid and start time.
func NewRun(sourceXML string, params spindle.PairerConfig, bounds spindle.Bounds) Run {
	return Run{
		ID:        uuid.NewString(),
		SourceXML: sourceXML,
		Params:    params,
		Bounds:    bounds,
		StartedAt: time.Now().UTC(),
	}
}

type runParams struct {
	Params spindle.PairerConfig `json:"params"`
	Bounds spindle.Bounds       `json:"bounds"`
}

// SaveRun writes the run record and its cells in one transaction.
func (db *DB) SaveRun(run Run, cells []spindle.Cell) error {
	params, err := json.Marshal(runParams{Params: run.Params, Bounds: run.Bounds})
	if err != nil {
		return fmt.Errorf("marshal run params: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (run_id, source_xml, params_json, started_at, finished_at, track_count, cell_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SourceXML, string(params),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.TrackCount, run.CellCount)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO cells (run_id, cent_id_i, cent_id_j, t_overlap,
			sl_i, sl_f, sl_min, sl_max,
			center_x, center_y, center_z, center_stdev, normal_stdev,
			t_cong, dist_to_border, contrast, intensity, diameter)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cell insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cells {
		if _, err := stmt.Exec(run.ID, c.CentIDI, c.CentIDJ, c.TOverlap,
			c.SLI, c.SLF, c.SLMin, c.SLMax,
			c.Center.X, c.Center.Y, c.Center.Z, c.CenterStdev, c.NormalStdev,
			c.TCong, c.DistToBorder, c.Contrast, c.Intensity, c.Diameter); err != nil {
			return fmt.Errorf("insert cell %d/%d: %w", c.CentIDI, c.CentIDJ, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns() ([]Run, error) {
	rows, err := db.Query(`
		SELECT run_id, source_xml, params_json, started_at, finished_at, track_count, cell_count
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var params, started, finished string
		if err := rows.Scan(&r.ID, &r.SourceXML, &params, &started, &finished, &r.TrackCount, &r.CellCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		var p runParams
		if err := json.Unmarshal([]byte(params), &p); err != nil {
			return nil, fmt.Errorf("unmarshal params for run %s: %w", r.ID, err)
		}
		r.Params, r.Bounds = p.Params, p.Bounds
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", r.ID, err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at for run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CellsForRun returns a run's cells in insertion order.
func (db *DB) CellsForRun(runID string) ([]spindle.Cell, error) {
	rows, err := db.Query(`
		SELECT cent_id_i, cent_id_j, t_overlap, sl_i, sl_f, sl_min, sl_max,
			center_x, center_y, center_z, center_stdev, normal_stdev,
			t_cong, dist_to_border, contrast, intensity, diameter
		FROM cells WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("cells for run %s: %w", runID, err)
	}
	defer rows.Close()

	var cells []spindle.Cell
	for rows.Next() {
		var c spindle.Cell
		if err := rows.Scan(&c.CentIDI, &c.CentIDJ, &c.TOverlap, &c.SLI, &c.SLF, &c.SLMin, &c.SLMax,
			&c.Center.X, &c.Center.Y, &c.Center.Z, &c.CenterStdev, &c.NormalStdev,
			&c.TCong, &c.DistToBorder, &c.Contrast, &c.Intensity, &c.Diameter); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}
