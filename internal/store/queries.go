package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeLayout sorts lexically; timestamps are stored in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Run operations

// BeginRun records the start of a run and returns it with a fresh ID.
func (s *Store) BeginRun(command, target, provider string, dryRun bool) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Command:   command,
		Target:    target,
		Provider:  provider,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO runs (id, command, target, provider, dry_run, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, run.ID, run.Command, run.Target, run.Provider, run.DryRun, formatTime(run.StartedAt))
	if err != nil {
		return nil, wrapQueryErr("failed to insert run", err)
	}

	return run, nil
}

// FinishRun stamps the run's finish time.
func (s *Store) FinishRun(id string) error {
	result, err := s.db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, formatTime(time.Now()), id)
	if err != nil {
		return wrapQueryErr(fmt.Sprintf("failed to finish run %s", id), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s not found", id)
	}

	return nil
}

const runSelect = `
	SELECT r.id, r.command, COALESCE(r.target, ''), COALESCE(r.provider, ''), r.dry_run,
	       r.started_at, r.finished_at,
	       COUNT(res.seq),
	       COALESCE(SUM(CASE WHEN res.status = 'Failed' THEN 1 ELSE 0 END), 0)
	FROM runs r
	LEFT JOIN results res ON res.run_id = r.id
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString

	err := row.Scan(
		&run.ID,
		&run.Command,
		&run.Target,
		&run.Provider,
		&run.DryRun,
		&startedAt,
		&finishedAt,
		&run.ResultCount,
		&run.FailedCount,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at for run %s: %w", run.ID, err)
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at for run %s: %w", run.ID, err)
		}
		run.FinishedAt = &t
	}

	return &run, nil
}

// GetRun retrieves a run by ID or unique ID prefix.
func (s *Store) GetRun(id string) (*Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("run id is required")
	}

	query := runSelect + `
		WHERE r.id LIKE ? || '%'
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT 2
	`
	rows, err := s.db.Query(query, id)
	if err != nil {
		return nil, wrapQueryErr(fmt.Sprintf("failed to get run %s", id), err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("run %s not found", id)
	case 1:
		return runs[0], nil
	default:
		return nil, fmt.Errorf("run id %s is ambiguous", id)
	}
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := runSelect + `
		GROUP BY r.id
		ORDER BY r.started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapQueryErr("failed to list runs", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// DeleteRunsBefore removes runs started before cutoff along with their
// results, and returns how many runs were deleted.
func (s *Store) DeleteRunsBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, wrapQueryErr("failed to prune runs", err)
	}
	return result.RowsAffected()
}

// Result operations

// InsertResult appends a result to a run. Seq is assigned when zero.
func (s *Store) InsertResult(res *Result) error {
	if res.Seq == 0 {
		var next int
		err := s.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM results WHERE run_id = ?`, res.RunID).Scan(&next)
		if err != nil {
			return wrapQueryErr("failed to allocate result sequence", err)
		}
		res.Seq = next
	}

	query := `
		INSERT INTO results (run_id, seq, name, version, path, action, status, message, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		res.RunID,
		res.Seq,
		res.Name,
		res.Version,
		res.Path,
		res.Action,
		res.Status,
		res.Message,
		res.SizeBytes,
	)
	if err != nil {
		return wrapQueryErr(fmt.Sprintf("failed to insert result for %s", res.Name), err)
	}

	return nil
}

// GetResults returns a run's results in insertion order.
func (s *Store) GetResults(runID string) ([]*Result, error) {
	query := `
		SELECT run_id, seq, name, COALESCE(version, ''), COALESCE(path, ''), action, status,
		       COALESCE(message, ''), size_bytes
		FROM results
		WHERE run_id = ?
		ORDER BY seq
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, wrapQueryErr(fmt.Sprintf("failed to get results for run %s", runID), err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		var res Result
		err := rows.Scan(
			&res.RunID,
			&res.Seq,
			&res.Name,
			&res.Version,
			&res.Path,
			&res.Action,
			&res.Status,
			&res.Message,
			&res.SizeBytes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results = append(results, &res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// BytesReclaimed sums the size of every removed version across all runs.
func (s *Store) BytesReclaimed() (int64, error) {
	var total int64
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(res.size_bytes), 0)
		FROM results res
		JOIN runs r ON r.id = res.run_id
		WHERE res.status = 'Removed' AND r.dry_run = 0
	`).Scan(&total)
	if err != nil {
		return 0, wrapQueryErr("failed to sum reclaimed bytes", err)
	}
	return total, nil
}
