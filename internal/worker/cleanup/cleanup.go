// Package cleanup は放置された匿名ユーザーの削除ジョブを提供する。
// 匿名CookieはAnonymousCookieMaxAgeで失効するため、それより長く
// アクセスの無い匿名ユーザーには二度と到達できない。
// 所有するtodosはON DELETE CASCADEで同時に削除される。
// subjectのみのベアラーユーザーもis_anonymousを持つため対象になる。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は匿名Cookieの有効期間と同じ365日。
const DefaultRetentionDays = 365

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// AnonymousUserJob は保持期間を超えて更新の無い匿名ユーザーを削除する。
// 冪等で、削除対象が無くてもエラーにならない。
type AnonymousUserJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int
}

// NewAnonymousUserJob は新しいAnonymousUserJobを生成する。
func NewAnonymousUserJob(db Executor, logger *slog.Logger) *AnonymousUserJob {
	return &AnonymousUserJob{
		db:            db,
		logger:        logger,
		RetentionDays: DefaultRetentionDays,
	}
}

// Run はupdated_atがRetentionDays日前より古い匿名ユーザーをDELETEし、削除件数を返す。
// 認証済みユーザー（is_anonymous = false）は対象外。
func (j *AnonymousUserJob) Run(ctx context.Context) (int64, error) {
	if j.RetentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", j.RetentionDays)
	}

	start := time.Now()
	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM users WHERE is_anonymous = true AND updated_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("anonymous user cleanup failed",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("failed to delete stale anonymous users: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("failed to read deleted row count",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}

	j.logger.Info("anonymous user cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deletedCount, nil
}
