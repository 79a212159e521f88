// Package store persists analysis runs in a SQL database. SQLite (modernc) and
// PostgreSQL (lib/pq) are supported.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/1F47E/shoreline-transects/pkg/series"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout is fixed width so that text order matches time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	// ErrUnsupportedDriver is returned for drivers other than sqlite and postgres
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	// ErrRunNotFound is returned when a run id is unknown
	ErrRunNotFound = errors.New("run not found")
	// ErrShapeMismatch is returned when raw and corrected tables differ in shape
	ErrShapeMismatch = errors.New("raw and corrected tables differ in shape")
)

// Run describes one stored analysis
type Run struct {
	ID        string
	CreatedAt time.Time
	Label     string
	Settings  string
}

// Store wraps a database holding analysis runs
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to the database and checks the connection
func Open(driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY on concurrent inserts
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return &Store{db: db, driver: driver, now: time.Now}, nil
}

// bind returns the placeholder for the n-th (1-based) query argument
func (s *Store) bind(n int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.bind(i + 1)
	}
	return strings.Join(parts, ", ")
}

// InitSchema creates the tables if they do not exist
func (s *Store) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			label TEXT NOT NULL,
			settings TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transect_distances (
			run_id TEXT NOT NULL REFERENCES analysis_runs(id),
			row_idx INTEGER NOT NULL,
			transect TEXT NOT NULL,
			date TEXT NOT NULL,
			satname TEXT NOT NULL,
			distance DOUBLE PRECISION,
			corrected DOUBLE PRECISION,
			PRIMARY KEY (run_id, transect, row_idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transect_distances_run ON transect_distances (run_id, row_idx);`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}

	return nil
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func sameShape(a, b *series.Table) bool {
	if len(a.Dates) != len(b.Dates) || len(a.Names) != len(b.Names) {
		return false
	}
	for i := range a.Names {
		if a.Names[i] != b.Names[i] {
			return false
		}
	}
	for i := range a.Dates {
		if !a.Dates[i].Equal(b.Dates[i]) {
			return false
		}
	}
	return true
}

// SaveRun stores one analysis in a single transaction and returns its id.
// corrected may be nil; NaN cells are stored as NULL.
func (s *Store) SaveRun(ctx context.Context, label, settings string, raw, corrected *series.Table) (string, error) {
	if corrected != nil && !sameShape(raw, corrected) {
		return "", ErrShapeMismatch
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO analysis_runs (id, created_at, label, settings) VALUES (%s)`, s.placeholders(4)),
		id, s.now().UTC().Format(timeLayout), label, settings)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO transect_distances (run_id, row_idx, transect, date, satname, distance, corrected)
		VALUES (%s)`, s.placeholders(7)))
	if err != nil {
		return "", fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for r, d := range raw.Dates {
		sensor := ""
		if len(raw.Sensors) > 0 {
			sensor = raw.Sensors[r]
		}
		for c, name := range raw.Names {
			corr := sql.NullFloat64{}
			if corrected != nil {
				corr = nullable(corrected.Values[c][r])
			}
			_, err := stmt.ExecContext(ctx, id, r, name, d.UTC().Format(timeLayout), sensor,
				nullable(raw.Values[c][r]), corr)
			if err != nil {
				return "", fmt.Errorf("failed to insert %s row %d: %w", name, r, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// LoadRun reads a stored analysis back as raw and corrected tables
func (s *Store) LoadRun(ctx context.Context, id string) (*Run, *series.Table, *series.Table, error) {
	run := &Run{ID: id}
	var created string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT created_at, label, settings FROM analysis_runs WHERE id = %s`, s.bind(1)), id).
		Scan(&created, &run.Label, &run.Settings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse run time: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT row_idx, transect, date, satname, distance, corrected
		FROM transect_distances
		WHERE run_id = %s
		ORDER BY row_idx, transect`, s.bind(1)), id)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var (
		dates     []time.Time
		sensors   []string
		raw       = make(map[string][]float64)
		corrected = make(map[string][]float64)
		anyCorr   bool
	)
	for rows.Next() {
		var (
			r             int
			name, date    string
			sensor        string
			dist, corrVal sql.NullFloat64
		)
		if err := rows.Scan(&r, &name, &date, &sensor, &dist, &corrVal); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if r == len(dates) {
			d, err := time.Parse(time.RFC3339Nano, date)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("failed to parse date: %w", err)
			}
			dates = append(dates, d)
			sensors = append(sensors, sensor)
		}
		raw[name] = append(raw[name], fromNullable(dist))
		corrected[name] = append(corrected[name], fromNullable(corrVal))
		anyCorr = anyCorr || corrVal.Valid
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("rows error: %w", err)
	}

	if allEmpty(sensors) {
		sensors = nil
	}
	rawTable, err := series.Assemble(dates, sensors, raw)
	if err != nil {
		return nil, nil, nil, err
	}
	if !anyCorr {
		return run, rawTable, nil, nil
	}
	corrTable, err := series.Assemble(dates, sensors, corrected)
	if err != nil {
		return nil, nil, nil, err
	}
	return run, rawTable, corrTable, nil
}

func allEmpty(values []string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}

// ListRuns returns every stored run, newest first
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, label, settings FROM analysis_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var created string
		if err := rows.Scan(&run.ID, &created, &run.Label, &run.Settings); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("failed to parse run time: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return runs, nil
}

// Count returns the number of distance cells stored for a run
func (s *Store) Count(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM transect_distances WHERE run_id = %s", s.bind(1)), runID).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count distances: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
