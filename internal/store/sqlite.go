package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/lesson-bot/internal/domain"
)

// lessonRow is one row of the lessons table.
type lessonRow struct {
	UserID   string `db:"user_id"`
	Position int    `db:"position"`
	lessonRecord
}

// SQLiteBackend implements Backend using an embedded SQLite database.
type SQLiteBackend struct{ db *sqlx.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a backend.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db := sqlx.NewDb(raw, "sqlite")

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// LoadAll returns every user's lessons in stored order.
func (b *SQLiteBackend) LoadAll(ctx context.Context) (map[string][]domain.Lesson, error) {
	var rows []lessonRow
	if err := b.db.SelectContext(ctx, &rows, `
		SELECT user_id, position, day, time, subject, notification_time, last_notified
		FROM lessons
		ORDER BY user_id, position`); err != nil {
		return nil, err
	}

	grouped := make(map[string][]lessonRecord)
	for _, r := range rows {
		grouped[r.UserID] = append(grouped[r.UserID], r.lessonRecord)
	}
	res := make(map[string][]domain.Lesson, len(grouped))
	for user, rs := range grouped {
		res[user] = fromRecords(rs)
	}
	return res, nil
}

// LoadUser returns one user's lessons in stored order.
func (b *SQLiteBackend) LoadUser(ctx context.Context, user string) ([]domain.Lesson, error) {
	var rows []lessonRow
	if err := b.db.SelectContext(ctx, &rows, `
		SELECT user_id, position, day, time, subject, notification_time, last_notified
		FROM lessons
		WHERE user_id = ?
		ORDER BY position`, user); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rs := make([]lessonRecord, len(rows))
	for i, r := range rows {
		rs[i] = r.lessonRecord
	}
	return fromRecords(rs), nil
}

// SaveUser replaces the user's rows in a single transaction. Rows that do
// not decode are rewritten unchanged.
func (b *SQLiteBackend) SaveUser(ctx context.Context, user string, lessons []domain.Lesson) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	var rows []lessonRow
	if err := tx.SelectContext(ctx, &rows, `
		SELECT user_id, position, day, time, subject, notification_time, last_notified
		FROM lessons
		WHERE user_id = ?
		ORDER BY position`, user); err != nil {
		_ = tx.Rollback()
		return err
	}
	stored := make([]lessonRecord, len(rows))
	for i, r := range rows {
		stored[i] = r.lessonRecord
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM lessons WHERE user_id = ?`, user); err != nil {
		_ = tx.Rollback()
		return err
	}
	for i, rec := range mergeRecords(stored, lessons) {
		row := lessonRow{UserID: user, Position: i, lessonRecord: rec}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO lessons (
				user_id, position, day, time, subject, notification_time, last_notified
			) VALUES (
				:user_id, :position, :day, :time, :subject, :notification_time, :last_notified
			)`, row); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
