// Package audit keeps an opt-in SQLite log of relay outcomes. Only the
// outcome, channel, reel id and latency are stored, never message text.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"reelbot/internal/domain"
	"reelbot/internal/pipeline"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.AuditStore.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Record(ctx context.Context, entry domain.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relay_outcomes (channel, outcome, reel_id, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Channel, string(entry.Outcome), entry.ReelID, entry.LatencyMs, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// CountByOutcome returns how many requests ended in each outcome since the given time.
func (s *SQLiteStore) CountByOutcome(ctx context.Context, since time.Time) (map[domain.Outcome]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM relay_outcomes
		 WHERE created_at >= ?
		 GROUP BY outcome`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Outcome]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[domain.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

// Recent returns the latest entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, outcome, reel_id, latency_ms, created_at
		 FROM relay_outcomes ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent outcomes: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var outcome string
		var reelID sql.NullString
		if err := rows.Scan(&e.ID, &e.Channel, &outcome, &reelID, &e.LatencyMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Outcome = domain.Outcome(outcome)
		e.ReelID = reelID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Observe implements pipeline.Observer. Write failures are logged and dropped.
func (s *SQLiteStore) Observe(ctx context.Context, ev pipeline.Event) {
	err := s.Record(context.WithoutCancel(ctx), domain.AuditEntry{
		Channel:   ev.Channel,
		Outcome:   ev.Outcome,
		ReelID:    ev.ReelID,
		LatencyMs: ev.Duration.Milliseconds(),
	})
	if err != nil {
		s.logger.Warn("audit write failed", "outcome", ev.Outcome, "err", err)
	}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var (
	_ domain.AuditStore = (*SQLiteStore)(nil)
	_ pipeline.Observer = (*SQLiteStore)(nil)
)
