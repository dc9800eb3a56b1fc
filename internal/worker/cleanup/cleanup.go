// Package cleanup は検索履歴の自動削除ジョブを提供する。
// 保持期間（デフォルト365日）を超過したsearch_historyの行を
// 日次バッチで削除する。ブックマークはユーザーが明示的に保存したものなので対象外。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は検索履歴のデフォルト保持日数。
const DefaultRetentionDays = 365

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PurgeRecorder は削除件数の記録先。metrics.MetricsCollectorが実装する。
type PurgeRecorder interface {
	RecordHistoryPurged(count int64)
}

// CleanupJob は保持期間を超過した検索履歴の自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	recorder      PurgeRecorder
	RetentionDays int // 検索履歴の保持日数。0以下の場合は削除しない
}

// NewCleanupJob は新しいCleanupJobを生成する。
// retentionDaysが0の場合はデフォルトの365日を使用する。
// recorderはnilでもよい。
func NewCleanupJob(db Executor, logger *slog.Logger, recorder PurgeRecorder, retentionDays int) *CleanupJob {
	if retentionDays == 0 {
		retentionDays = DefaultRetentionDays
	}
	return &CleanupJob{
		db:            db,
		logger:        logger,
		recorder:      recorder,
		RetentionDays: retentionDays,
	}
}

// Run は保持期間を超過した検索履歴を削除し、削除件数を返す。
// created_atがRetentionDays日前より古い行をDELETEする。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	if j.RetentionDays < 0 {
		j.logger.Info("検索履歴の自動削除は無効です")
		return 0, nil
	}

	start := time.Now()
	interval := fmt.Sprintf("%d days", j.RetentionDays)
	query := `DELETE FROM search_history WHERE created_at < now() - $1::interval`

	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("検索履歴クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("検索履歴クリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordHistoryPurged(deletedCount)
	}

	j.logger.Info("検索履歴クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deletedCount, nil
}

// Start は指定間隔のティッカーでジョブを繰り返し実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	j.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *CleanupJob) runLogged(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}
