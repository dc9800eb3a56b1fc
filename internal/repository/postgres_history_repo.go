package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/localgov/internal/model"
)

// PostgresSearchHistoryRepo はPostgreSQLを使用した質問履歴リポジトリ。
type PostgresSearchHistoryRepo struct {
	db *sql.DB
}

// NewPostgresSearchHistoryRepo はPostgresSearchHistoryRepoを生成する。
func NewPostgresSearchHistoryRepo(db *sql.DB) *PostgresSearchHistoryRepo {
	return &PostgresSearchHistoryRepo{db: db}
}

// Create は履歴を1件追加する。
func (r *PostgresSearchHistoryRepo) Create(ctx context.Context, record *model.SearchHistoryRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO search_history (id, user_id, query, location, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.UserID, record.Query, record.Location, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert search history: %w", err)
	}
	return nil
}

// ListRecentByUserID はユーザーの履歴を新しい順に最大limit件返す。
func (r *PostgresSearchHistoryRepo) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]*model.SearchHistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, query, location, created_at
		 FROM search_history
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list search history: %w", err)
	}
	defer rows.Close()

	records := make([]*model.SearchHistoryRecord, 0, limit)
	for rows.Next() {
		rec := &model.SearchHistoryRecord{}
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Query, &rec.Location, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search history: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search history: %w", err)
	}

	return records, nil
}

// DeleteByIDAndUserID は所有者の履歴を1件削除する。
func (r *PostgresSearchHistoryRepo) DeleteByIDAndUserID(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM search_history WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete search history: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("search history %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteByUserID はユーザーの全履歴を削除する。
func (r *PostgresSearchHistoryRepo) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM search_history WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete search history by user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ SearchHistoryRepository = (*PostgresSearchHistoryRepo)(nil)
