package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
)

const sqliteQuotaSchema = `
CREATE TABLE IF NOT EXISTS quota_snapshot (
	user_id        INTEGER PRIMARY KEY,
	questions_used INTEGER NOT NULL DEFAULT 0,
	documents_used INTEGER NOT NULL DEFAULT 0,
	day_anchor     TEXT    NOT NULL
);`

// SQLiteSnapshotter keeps the quota table in a local SQLite file.
type SQLiteSnapshotter struct {
	db *sql.DB
}

func NewSQLiteSnapshotter(ctx context.Context, db *sql.DB) (*SQLiteSnapshotter, error) {
	if _, err := db.ExecContext(ctx, sqliteQuotaSchema); err != nil {
		return nil, fmt.Errorf("create quota_snapshot table: %w", err)
	}
	return &SQLiteSnapshotter{db: db}, nil
}

func (s *SQLiteSnapshotter) Load(ctx context.Context) (map[int64]entities.UserQuota, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, questions_used, documents_used, day_anchor FROM quota_snapshot`)
	if err != nil {
		return nil, fmt.Errorf("query quota_snapshot: %w", err)
	}
	defer rows.Close()

	out := map[int64]entities.UserQuota{}
	for rows.Next() {
		var q entities.UserQuota
		if err := rows.Scan(&q.UserID, &q.QuestionsUsed, &q.DocumentsUsed, &q.DayAnchor); err != nil {
			return nil, fmt.Errorf("scan quota_snapshot: %w", err)
		}
		out[q.UserID] = q
	}
	return out, rows.Err()
}

func (s *SQLiteSnapshotter) Save(ctx context.Context, quotas map[int64]entities.UserQuota) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quota snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM quota_snapshot`); err != nil {
		return fmt.Errorf("clear quota_snapshot: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO quota_snapshot (user_id, questions_used, documents_used, day_anchor) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare quota insert: %w", err)
	}
	defer stmt.Close()

	for id, q := range quotas {
		if _, err := stmt.ExecContext(ctx, id, q.QuestionsUsed, q.DocumentsUsed, q.DayAnchor); err != nil {
			return fmt.Errorf("insert quota for %d: %w", id, err)
		}
	}
	return tx.Commit()
}
