package scoreboard

import (
	"context"
	"encoding/json"
	"time"

	"eduoj/internal/common/db"
	"eduoj/internal/judge/verdict"
	appErr "eduoj/pkg/errors"
)

// Schema is the scoreboard DDL, executed by the restore flow.
const Schema = `
CREATE TABLE IF NOT EXISTS score_boards (
    id                   BIGSERIAL PRIMARY KEY,
    student_id           TEXT NOT NULL UNIQUE,
    student_name         TEXT NOT NULL DEFAULT '',
    last_submit_time     TIMESTAMPTZ,
    puzzle_amount        INTEGER NOT NULL DEFAULT 0,
    passed_puzzle_amount INTEGER NOT NULL DEFAULT 0,
    puzzle_results       JSONB NOT NULL DEFAULT '{}'::jsonb
)`

// Entry is one student's scoreboard row. PuzzleResults maps
// "{problemID}-{testCaseID}" to a per-case verdict and "{problemID}_status"
// to the problem's overall pass flag.
type Entry struct {
	StudentID          string          `json:"studentId"`
	StudentName        string          `json:"studentName"`
	LastSubmitTime     *time.Time      `json:"lastSubmitTime"`
	PuzzleAmount       int             `json:"puzzleAmount"`
	PassedPuzzleAmount int             `json:"passedPuzzleAmount"`
	PuzzleResults      json.RawMessage `json:"puzzleResults"`
}

// statusKeySuffix marks the per-problem pass flag inside puzzle_results.
const statusKeySuffix = "_status"

// Repository persists scoreboard rows.
type Repository interface {
	EnsureStudent(ctx context.Context, tx db.Transaction, studentID, studentName string, puzzleAmount int) error
	Get(ctx context.Context, tx db.Transaction, studentID string) (*Entry, error)
	List(ctx context.Context, tx db.Transaction) ([]Entry, error)
	RecordResults(ctx context.Context, tx db.Transaction, studentID, problemID string, verdicts []verdict.Verdict, puzzleAmount int) error
	Reset(ctx context.Context, tx db.Transaction) error
}

type PostgresRepository struct {
	dbProvider db.Provider
}

// NewRepository creates a scoreboard repository over the given provider.
func NewRepository(provider db.Provider) Repository {
	return &PostgresRepository{dbProvider: provider}
}

const entryColumns = "student_id, student_name, last_submit_time, puzzle_amount, passed_puzzle_amount, puzzle_results"

// EnsureStudent creates the student's row if it does not exist yet and keeps
// the configured problem count current.
func (r *PostgresRepository) EnsureStudent(ctx context.Context, tx db.Transaction, studentID, studentName string, puzzleAmount int) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return appErr.Wrap(err, appErr.ScoreWriteFailed)
	}
	query := `
		INSERT INTO score_boards (student_id, student_name, puzzle_amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id)
		DO UPDATE SET student_name = EXCLUDED.student_name, puzzle_amount = EXCLUDED.puzzle_amount`
	if _, err := querier.Exec(ctx, query, studentID, studentName, puzzleAmount); err != nil {
		return appErr.Wrapf(err, appErr.ScoreWriteFailed, "ensure scoreboard row for %s failed", studentID)
	}
	return nil
}

// Get returns one student's row, or nil when the student has no row yet.
func (r *PostgresRepository) Get(ctx context.Context, tx db.Transaction, studentID string) (*Entry, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.ScoreWriteFailed)
	}
	row := querier.QueryRow(ctx, "SELECT "+entryColumns+" FROM score_boards WHERE student_id = $1", studentID)
	entry, err := scanEntry(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, appErr.Wrapf(err, appErr.ScoreWriteFailed, "load scoreboard row for %s failed", studentID)
	}
	return entry, nil
}

// List returns every row ordered by passed count descending, then by the
// earliest last submission so faster solvers rank higher on ties.
func (r *PostgresRepository) List(ctx context.Context, tx db.Transaction) ([]Entry, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.ScoreWriteFailed)
	}
	rows, err := querier.Query(ctx, "SELECT "+entryColumns+" FROM score_boards ORDER BY passed_puzzle_amount DESC, last_submit_time ASC NULLS LAST")
	if err != nil {
		return nil, appErr.Wrap(err, appErr.ScoreWriteFailed)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, appErr.Wrap(err, appErr.ScoreWriteFailed)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, appErr.Wrap(err, appErr.ScoreWriteFailed)
	}
	return entries, nil
}

// RecordResults merges one judged problem into the student's puzzle_results
// and recomputes the passed count. When no transaction is supplied it opens
// its own, since the merge is a read-modify-write.
func (r *PostgresRepository) RecordResults(ctx context.Context, tx db.Transaction, studentID, problemID string, verdicts []verdict.Verdict, puzzleAmount int) error {
	if tx != nil {
		return r.recordResults(ctx, tx, studentID, problemID, verdicts, puzzleAmount)
	}
	database, err := db.CurrentDatabase(r.dbProvider)
	if err != nil {
		return appErr.Wrap(err, appErr.ScoreWriteFailed)
	}
	return database.Transaction(ctx, func(inner db.Transaction) error {
		return r.recordResults(ctx, inner, studentID, problemID, verdicts, puzzleAmount)
	})
}

func (r *PostgresRepository) recordResults(ctx context.Context, tx db.Transaction, studentID, problemID string, verdicts []verdict.Verdict, puzzleAmount int) error {
	row := tx.QueryRow(ctx, "SELECT puzzle_results FROM score_boards WHERE student_id = $1 FOR UPDATE", studentID)

	var raw []byte
	results := map[string]json.RawMessage{}
	exists := true
	if err := row.Scan(&raw); err != nil {
		if !db.IsNoRows(err) {
			return appErr.Wrapf(err, appErr.ScoreWriteFailed, "lock scoreboard row for %s failed", studentID)
		}
		exists = false
	} else if len(raw) > 0 {
		if err := json.Unmarshal(raw, &results); err != nil {
			return appErr.Wrapf(err, appErr.ScoreWriteFailed, "decode puzzle results for %s failed", studentID)
		}
	}

	passed := len(verdicts) > 0
	for _, v := range verdicts {
		cell, err := json.Marshal(v)
		if err != nil {
			return appErr.Wrap(err, appErr.ScoreWriteFailed)
		}
		results[problemID+"-"+v.TestCaseID] = cell
		if !v.Correct {
			passed = false
		}
	}
	status, err := json.Marshal(passed)
	if err != nil {
		return appErr.Wrap(err, appErr.ScoreWriteFailed)
	}
	results[problemID+statusKeySuffix] = status

	merged, err := json.Marshal(results)
	if err != nil {
		return appErr.Wrap(err, appErr.ScoreWriteFailed)
	}
	passedCount := countPassed(results)
	now := time.Now()

	if exists {
		query := `
			UPDATE score_boards
			SET puzzle_results = $2, passed_puzzle_amount = $3, puzzle_amount = $4, last_submit_time = $5
			WHERE student_id = $1`
		if _, err := tx.Exec(ctx, query, studentID, merged, passedCount, puzzleAmount, now); err != nil {
			return appErr.Wrapf(err, appErr.ScoreWriteFailed, "update scoreboard row for %s failed", studentID)
		}
		return nil
	}
	query := `
		INSERT INTO score_boards (student_id, puzzle_results, passed_puzzle_amount, puzzle_amount, last_submit_time)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, query, studentID, merged, passedCount, puzzleAmount, now); err != nil {
		return appErr.Wrapf(err, appErr.ScoreWriteFailed, "insert scoreboard row for %s failed", studentID)
	}
	return nil
}

// Reset removes every scoreboard row.
func (r *PostgresRepository) Reset(ctx context.Context, tx db.Transaction) error {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return appErr.Wrap(err, appErr.ScoreWriteFailed)
	}
	if _, err := querier.Exec(ctx, "DELETE FROM score_boards"); err != nil {
		return appErr.Wrap(err, appErr.ScoreWriteFailed)
	}
	return nil
}

// countPassed counts problems whose status flag is true.
func countPassed(results map[string]json.RawMessage) int {
	count := 0
	for key, raw := range results {
		if len(key) <= len(statusKeySuffix) || key[len(key)-len(statusKeySuffix):] != statusKeySuffix {
			continue
		}
		var passed bool
		if err := json.Unmarshal(raw, &passed); err == nil && passed {
			count++
		}
	}
	return count
}

func scanEntry(row db.Row) (*Entry, error) {
	var (
		entry      Entry
		submitTime *time.Time
		raw        []byte
	)
	if err := row.Scan(&entry.StudentID, &entry.StudentName, &submitTime, &entry.PuzzleAmount, &entry.PassedPuzzleAmount, &raw); err != nil {
		return nil, err
	}
	entry.LastSubmitTime = submitTime
	if len(raw) > 0 {
		entry.PuzzleResults = json.RawMessage(raw)
	} else {
		entry.PuzzleResults = json.RawMessage("{}")
	}
	return &entry, nil
}
