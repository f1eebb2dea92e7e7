/*
Package sqlite archives billing runs in a SQLite database.

A run is stored once and never updated: recomputing a month creates a new
run. Monetary values are stored as decimal strings so they read back exactly.

KEY TABLES:

	runs:           one row per computed month
	run_summaries:  one row per duty, in input order
	run_blocks:     one row per priced block, in ledger order

USAGE:

	store, err := sqlite.New("./data/duty-pay.db")
	if err != nil {
		return err
	}
	defer store.Close()
	id, err := store.SaveRun(ctx, sqlite.RunFromResult(2025, time.September, result))
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/username/duty-pay/internal/billing"
	"github.com/username/duty-pay/internal/calendar"
	"github.com/username/duty-pay/internal/tariff"
)

const timeLayout = "2006-01-02 15:04:05.999999999"

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("run not found")

// Run is an archived billing result
type Run struct {
	ID        string
	Year      int
	Month     time.Month
	CreatedAt time.Time
	Result    *billing.Result
}

// RunInfo is the listing view of a run
type RunInfo struct {
	ID                 string          `json:"id"`
	Year               int             `json:"year"`
	Month              time.Month      `json:"month"`
	Mode               tariff.Mode     `json:"mode"`
	WithholdingPercent decimal.Decimal `json:"withholding_percent"`
	Duties             int             `json:"duties"`
	Gross              decimal.Decimal `json:"gross"`
	Net                decimal.Decimal `json:"net"`
	CreatedAt          time.Time       `json:"created_at"`
}

// RunFromResult wraps a result for archiving
func RunFromResult(year int, month time.Month, result *billing.Result) Run {
	return Run{Year: year, Month: month, Result: result}
}

// Store implements the run archive using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		mode TEXT NOT NULL,
		withholding_pct TEXT NOT NULL,
		duties INTEGER NOT NULL,
		gross TEXT NOT NULL,
		net TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_period ON runs(year, month);

	CREATE TABLE IF NOT EXISTS run_summaries (
		run_id TEXT NOT NULL REFERENCES runs(id),
		duty_index INTEGER NOT NULL,
		grade TEXT NOT NULL,
		duty_type TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		blocks INTEGER NOT NULL,
		gross TEXT NOT NULL,
		withholding_pct TEXT NOT NULL,
		net TEXT NOT NULL,
		municipality TEXT NOT NULL,
		notes TEXT NOT NULL,
		PRIMARY KEY (run_id, duty_index)
	);

	CREATE TABLE IF NOT EXISTS run_blocks (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		duty_index INTEGER NOT NULL,
		block_start TEXT NOT NULL,
		block_end TEXT NOT NULL,
		municipality TEXT NOT NULL,
		grade TEXT NOT NULL,
		duty_type TEXT NOT NULL,
		day_type TEXT NOT NULL,
		overridden INTEGER NOT NULL,
		hours TEXT NOT NULL,
		hourly_rate TEXT NOT NULL,
		amount TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a run atomically and returns its id. An empty id is
// replaced by a new UUID.
func (s *Store) SaveRun(ctx context.Context, run Run) (string, error) {
	if run.Result == nil {
		return "", fmt.Errorf("run has no result")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	r := run.Result
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, year, month, mode, withholding_pct, duties, gross, net, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Year, int(run.Month), string(r.Mode), r.WithholdingPercent.String(),
		len(r.Summaries), r.TotalGross().String(), r.TotalNet().String(),
		run.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, sm := range r.Summaries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_summaries (run_id, duty_index, grade, duty_type, start_at, end_at, blocks,
				gross, withholding_pct, net, municipality, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, sm.DutyIndex, string(sm.Grade), sm.DutyType,
			sm.Start.Format(timeLayout), sm.End.Format(timeLayout), sm.Blocks,
			sm.Gross.String(), sm.WithholdingPercent.String(), sm.Net.String(),
			sm.Municipality, sm.Notes)
		if err != nil {
			return "", fmt.Errorf("failed to insert summary %d: %w", sm.DutyIndex, err)
		}
	}

	for seq, b := range r.Ledger {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_blocks (run_id, seq, duty_index, block_start, block_end, municipality, grade,
				duty_type, day_type, overridden, hours, hourly_rate, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, seq, b.DutyIndex, b.Block.Start.Format(timeLayout), b.Block.End.Format(timeLayout),
			b.Municipality, string(b.Grade), b.DutyType, b.DayType.String(), b.Overridden,
			b.Hours.String(), b.HourlyRate.String(), b.Amount.String())
		if err != nil {
			return "", fmt.Errorf("failed to insert block %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}

	return run.ID, nil
}

// ListRuns returns archived runs, newest first
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, year, month, mode, withholding_pct, duties, gross, net, created_at
		FROM runs
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var info RunInfo
		var month int
		var mode, pct, gross, net, created string
		if err := rows.Scan(&info.ID, &info.Year, &month, &mode, &pct, &info.Duties, &gross, &net, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		info.Month = time.Month(month)
		info.Mode = tariff.Mode(mode)
		if info.WithholdingPercent, err = decimal.NewFromString(pct); err != nil {
			return nil, err
		}
		if info.Gross, err = decimal.NewFromString(gross); err != nil {
			return nil, err
		}
		if info.Net, err = decimal.NewFromString(net); err != nil {
			return nil, err
		}
		if info.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, err
		}
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// LoadRun reads a run back with its summaries, ledger and rollup
func (s *Store) LoadRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run := &Run{ID: id, Result: &billing.Result{}}
	var month int
	var mode, pct, created string
	err := s.db.QueryRowContext(ctx, `
		SELECT year, month, mode, withholding_pct, created_at FROM runs WHERE id = ?
	`, id).Scan(&run.Year, &month, &mode, &pct, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.Month = time.Month(month)
	run.Result.Mode = tariff.Mode(mode)
	if run.Result.WithholdingPercent, err = decimal.NewFromString(pct); err != nil {
		return nil, err
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, err
	}

	if run.Result.Summaries, err = s.loadSummaries(ctx, id); err != nil {
		return nil, err
	}
	if run.Result.Ledger, err = s.loadBlocks(ctx, id); err != nil {
		return nil, err
	}
	run.Result.Rollup = billing.Rollup(run.Result.Mode, run.Result.Ledger)

	return run, nil
}

func (s *Store) loadSummaries(ctx context.Context, id string) ([]billing.DutySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT duty_index, grade, duty_type, start_at, end_at, blocks, gross, withholding_pct, net, municipality, notes
		FROM run_summaries WHERE run_id = ? ORDER BY duty_index
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}
	defer rows.Close()

	summaries := []billing.DutySummary{}
	for rows.Next() {
		var sm billing.DutySummary
		var grade, start, end, gross, pct, net string
		if err := rows.Scan(&sm.DutyIndex, &grade, &sm.DutyType, &start, &end, &sm.Blocks,
			&gross, &pct, &net, &sm.Municipality, &sm.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		sm.Grade = tariff.Grade(grade)
		if sm.Start, err = time.Parse(timeLayout, start); err != nil {
			return nil, err
		}
		if sm.End, err = time.Parse(timeLayout, end); err != nil {
			return nil, err
		}
		if sm.Gross, err = decimal.NewFromString(gross); err != nil {
			return nil, err
		}
		if sm.WithholdingPercent, err = decimal.NewFromString(pct); err != nil {
			return nil, err
		}
		if sm.Net, err = decimal.NewFromString(net); err != nil {
			return nil, err
		}
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}

func (s *Store) loadBlocks(ctx context.Context, id string) ([]billing.PricedBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT duty_index, block_start, block_end, municipality, grade, duty_type, day_type, overridden,
			hours, hourly_rate, amount
		FROM run_blocks WHERE run_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}
	defer rows.Close()

	blocks := []billing.PricedBlock{}
	for rows.Next() {
		var b billing.PricedBlock
		var start, end, grade, dayType, hours, rate, amount string
		if err := rows.Scan(&b.DutyIndex, &start, &end, &b.Municipality, &grade, &b.DutyType, &dayType,
			&b.Overridden, &hours, &rate, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		b.Grade = tariff.Grade(grade)
		if b.Block.Start, err = time.Parse(timeLayout, start); err != nil {
			return nil, err
		}
		if b.Block.End, err = time.Parse(timeLayout, end); err != nil {
			return nil, err
		}
		if b.DayType, err = calendar.ParseDayType(dayType); err != nil {
			return nil, err
		}
		if b.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, err
		}
		if b.HourlyRate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
