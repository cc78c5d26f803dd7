// Package history keeps a local record of reconciliation runs so losses can
// be compared over time without querying the warehouse.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"vaultrecon/internal/common"
	"vaultrecon/internal/recon"
	"vaultrecon/pkg/errors"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at      INTEGER NOT NULL,
	finished_at     INTEGER NOT NULL,
	config_file     TEXT NOT NULL DEFAULT '',
	revision        TEXT NOT NULL DEFAULT '',
	table_count     INTEGER NOT NULL DEFAULT 0,
	total_rows_lost INTEGER NOT NULL DEFAULT 0
)`, `
CREATE TABLE IF NOT EXISTS run_tables (
	run_id                  INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	table_name              TEXT NOT NULL,
	source_table            TEXT NOT NULL,
	source_count            INTEGER NOT NULL,
	hub_count               INTEGER NOT NULL,
	link_count              INTEGER NOT NULL,
	current_satellite_count INTEGER NOT NULL,
	bizview_count           INTEGER NOT NULL,
	source_to_hub_loss      INTEGER NOT NULL,
	hub_to_link_loss        INTEGER NOT NULL,
	hub_to_sat_loss         INTEGER NOT NULL,
	link_to_sat_loss        INTEGER NOT NULL,
	sat_to_bizview_loss     INTEGER NOT NULL,
	total_rows_lost         INTEGER NOT NULL,
	deleted_records         INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_run_tables_name ON run_tables(table_name, run_id)`,
}

// Run is one reconciliation run. Results are only populated when saving.
type Run struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    time.Time
	ConfigFile    string
	Revision      string
	TableCount    int
	TotalRowsLost int64
	Results       []recon.Result
}

// TrendPoint is one table's outcome in one run.
type TrendPoint struct {
	RunID          int64
	StartedAt      time.Time
	Revision       string
	SourceCount    int64
	HubCount       int64
	SourceToHub    int64
	TotalRowsLost  int64
	DeletedRecords int64
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	path, err := common.CleanPath(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Invalid history path")
	}
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to create history directory").
			WithContext("path", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to open history database").
			WithContext("path", path)
	}
	// a single writer avoids SQLITE_BUSY between the CLI's statements
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to configure history database").
				WithContext("pragma", pragma)
		}
	}

	for _, ddl := range schema {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to create history schema").
				WithContext("path", path)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records a run and its per-table rows, returning the run ID.
func (s *Store) SaveRun(ctx context.Context, run Run) (int64, error) {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	var total int64
	for _, r := range run.Results {
		total += r.TotalRowsLost
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to begin history transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, finished_at, config_file, revision, table_count, total_rows_lost)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(), run.ConfigFile, run.Revision,
		len(run.Results), total)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to record run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to read run id")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_tables (
			run_id, table_name, source_table, source_count, hub_count, link_count,
			current_satellite_count, bizview_count, source_to_hub_loss, hub_to_link_loss,
			hub_to_sat_loss, link_to_sat_loss, sat_to_bizview_loss, total_rows_lost, deleted_records
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to prepare table insert")
	}
	defer stmt.Close()

	for _, r := range run.Results {
		if _, err := stmt.ExecContext(ctx,
			id, r.TableName, r.SourceTable, r.SourceCount, r.HubCount, r.LinkCount,
			r.CurrentSatelliteCount, r.BizviewCount, r.SourceToHubLoss, r.HubToLinkLoss,
			r.HubToSatLoss, r.LinkToSatLoss, r.SatToBizviewLoss, r.TotalRowsLost, r.DeletedRecords,
		); err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to record table result").
				WithContext("table", r.TableName)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to commit run")
	}
	return id, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, config_file, revision, table_count, total_rows_lost
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished int64
		if err := rows.Scan(&run.ID, &started, &finished, &run.ConfigFile, &run.Revision,
			&run.TableCount, &run.TotalRowsLost); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to read run")
		}
		run.StartedAt = time.Unix(0, started)
		run.FinishedAt = time.Unix(0, finished)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to list runs")
	}
	return runs, nil
}

// TableTrend returns a table's results across the most recent runs, newest first.
func (s *Store) TableTrend(ctx context.Context, table string, limit int) ([]TrendPoint, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.started_at, r.revision, t.source_count, t.hub_count,
		        t.source_to_hub_loss, t.total_rows_lost, t.deleted_records
		 FROM run_tables t
		 JOIN runs r ON r.id = t.run_id
		 WHERE t.table_name = ? COLLATE NOCASE
		 ORDER BY r.id DESC
		 LIMIT ?`, table, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to query table trend").
			WithContext("table", table)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		var started int64
		if err := rows.Scan(&p.RunID, &started, &p.Revision, &p.SourceCount, &p.HubCount,
			&p.SourceToHub, &p.TotalRowsLost, &p.DeletedRecords); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to read trend row")
		}
		p.StartedAt = time.Unix(0, started)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeHistoryFailed, "Failed to query table trend")
	}
	return points, nil
}
