package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/ugoku-core/internal/sequencer"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("journal: run not found")

// Repository persists runs and their task outcomes.
type Repository interface {
	CreateRun(ctx context.Context, exec sequencer.Execution) error
	FinishRun(ctx context.Context, exec sequencer.Execution) error
	AddOutcome(ctx context.Context, o sequencer.Outcome) error
	GetRun(ctx context.Context, id string) (*sequencer.Execution, error)
	ListRuns(ctx context.Context, limit int) ([]sequencer.Execution, error)
	ListOutcomes(ctx context.Context, runID string) ([]sequencer.Outcome, error)
}

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

const runColumns = `id, source, dry_run, state, total, completed,
			halt_task_id, halt_row, halt_reason, started_at, finished_at`

// SQLiteRepository implements Repository on the journal schema.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an already migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateRun inserts the run row when a run starts.
func (r *SQLiteRepository) CreateRun(ctx context.Context, exec sequencer.Execution) error {
	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		exec.ID,
		exec.Source,
		boolToInt(exec.DryRun),
		string(exec.State),
		exec.Total,
		exec.Completed,
		nullableString(exec.HaltTaskID),
		nullableInt(exec.HaltRow),
		nullableString(exec.HaltReason),
		formatTime(exec.StartedAt),
		nullableTime(exec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// FinishRun records a run's final state.
func (r *SQLiteRepository) FinishRun(ctx context.Context, exec sequencer.Execution) error {
	query := `
		UPDATE runs SET
			state = ?, completed = ?, halt_task_id = ?, halt_row = ?, halt_reason = ?, finished_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(exec.State),
		exec.Completed,
		nullableString(exec.HaltTaskID),
		nullableInt(exec.HaltRow),
		nullableString(exec.HaltReason),
		nullableTime(exec.FinishedAt),
		exec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// AddOutcome appends one task outcome to its run.
func (r *SQLiteRepository) AddOutcome(ctx context.Context, o sequencer.Outcome) error {
	query := `
		INSERT INTO task_outcomes (
			run_id, row_index, task_id, target, action, status, reason, attempts, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		o.RunID,
		o.Row,
		o.TaskID,
		o.Target,
		o.Action,
		string(o.Status),
		o.Reason,
		o.Attempts,
		formatTime(o.Started),
		formatTime(o.Finished),
	)
	if err != nil {
		return fmt.Errorf("inserting outcome: %w", err)
	}
	return nil
}

// GetRun returns one run by ID.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*sequencer.Execution, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	exec, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return exec, nil
}

// ListRuns returns the most recent runs, newest first. limit is clamped
// to 1..100 with a default of 10.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]sequencer.Execution, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []sequencer.Execution
	for rows.Next() {
		exec, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning run: %w", scanErr)
		}
		runs = append(runs, *exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// ListOutcomes returns a run's outcomes in row order.
func (r *SQLiteRepository) ListOutcomes(ctx context.Context, runID string) ([]sequencer.Outcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, row_index, task_id, target, action, status, reason, attempts, started_at, finished_at
		FROM task_outcomes
		WHERE run_id = ?
		ORDER BY row_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var out []sequencer.Outcome
	for rows.Next() {
		var (
			o                 sequencer.Outcome
			status            string
			started, finished string
		)
		if err := rows.Scan(&o.RunID, &o.Row, &o.TaskID, &o.Target, &o.Action,
			&status, &o.Reason, &o.Attempts, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.Status = sequencer.Status(status)
		o.Started = parseTime(started)
		o.Finished = parseTime(finished)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outcomes: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(scanner rowScanner) (*sequencer.Execution, error) {
	var (
		e                   sequencer.Execution
		dryRun              int
		state, startedAt    string
		haltTaskID, haltRsn sql.NullString
		finishedAt          sql.NullString
		haltRow             sql.NullInt64
	)
	if err := scanner.Scan(&e.ID, &e.Source, &dryRun, &state, &e.Total, &e.Completed,
		&haltTaskID, &haltRow, &haltRsn, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	e.DryRun = dryRun != 0
	e.State = sequencer.State(state)
	e.HaltTaskID = haltTaskID.String
	e.HaltReason = haltRsn.String
	if haltRow.Valid {
		row := int(haltRow.Int64)
		e.HaltRow = &row
	}
	e.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		e.FinishedAt = &t
	}
	return &e, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

// timeLayout is fixed-width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime ignores errors: every stored time is written by formatTime.
func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s) //nolint:errcheck // format is controlled
	return t
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
