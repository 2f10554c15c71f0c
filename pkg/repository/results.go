package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"

	"github.com/verist/marketbrief/pkg/domain"
)

// runRow is the database representation of a pipeline run
type runRow struct {
	ID         int64     `db:"id"`
	CreatedAt  time.Time `db:"created_at"`
	Success    bool      `db:"success"`
	Error      string    `db:"error"`
	Collected  int       `db:"collected"`
	Analyzed   int       `db:"analyzed"`
	Ranked     int       `db:"ranked"`
	Translated int       `db:"translated"`
	Message    string    `db:"message"`
	ElapsedMs  int64     `db:"elapsed_ms"`
	Stats      string    `db:"stats"`
}

// SaveResult persists a completed pipeline run, retrying on lock contention
func (s *Store) SaveResult(ctx context.Context, result domain.PipelineResult) error {
	stats, err := json.Marshal(result.Stats)
	if err != nil {
		return fmt.Errorf("marshal run stats: %w", err)
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		_, err := s.conn.ExecContext(ctx, `
			INSERT INTO runs (created_at, success, error, collected, analyzed, ranked, translated, message, elapsed_ms, stats)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.Timestamp, result.Success, result.Error,
			result.Collected, result.Analyzed, result.Ranked, result.Translated,
			result.Message, result.Elapsed.Milliseconds(), string(stats))
		if err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("insert run: %w", err)}
		}
		return nil
	})
}

// LastResult returns the most recent run, nil when no runs are recorded yet
func (s *Store) LastResult(ctx context.Context) (*domain.PipelineResult, error) {
	var row runRow
	err := s.conn.GetContext(ctx, &row, "SELECT * FROM runs ORDER BY created_at DESC, id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last run: %w", err)
	}
	result, err := toResult(&row)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListResults returns the most recent runs, newest first
func (s *Store) ListResults(ctx context.Context, limit int) ([]domain.PipelineResult, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []runRow
	err := s.conn.SelectContext(ctx, &rows, "SELECT * FROM runs ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	results := make([]domain.PipelineResult, 0, len(rows))
	for i := range rows {
		result, err := toResult(&rows[i])
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

func toResult(row *runRow) (*domain.PipelineResult, error) {
	result := domain.PipelineResult{
		Success:    row.Success,
		Error:      row.Error,
		Collected:  row.Collected,
		Analyzed:   row.Analyzed,
		Ranked:     row.Ranked,
		Translated: row.Translated,
		Message:    row.Message,
		Elapsed:    time.Duration(row.ElapsedMs) * time.Millisecond,
		Timestamp:  row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.Stats), &result.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal run stats: %w", err)
	}
	return &result, nil
}
