package repository

import (
	"context"
	"fmt"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSnapshotter keeps the quota table in the quota_snapshot table
// created by infrastructure.PostgresClient.Migrate.
type PostgresSnapshotter struct {
	db *pgxpool.Pool
}

func NewPostgresSnapshotter(db *pgxpool.Pool) *PostgresSnapshotter {
	return &PostgresSnapshotter{db: db}
}

func (r *PostgresSnapshotter) Load(ctx context.Context) (map[int64]entities.UserQuota, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, questions_used, documents_used, day_anchor
		FROM quota_snapshot
	`)
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

// Save replaces the table contents in one transaction.
func (r *PostgresSnapshotter) Save(ctx context.Context, quotas map[int64]entities.UserQuota) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin quota snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM quota_snapshot`); err != nil {
		return fmt.Errorf("clear quota_snapshot: %w", err)
	}

	rows := make([][]any, 0, len(quotas))
	for id, q := range quotas {
		rows = append(rows, []any{id, q.QuestionsUsed, q.DocumentsUsed, q.DayAnchor})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"quota_snapshot"},
		[]string{"user_id", "questions_used", "documents_used", "day_anchor"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy quota_snapshot: %w", err)
	}
	return tx.Commit(ctx)
}
