// Package cleanup は失効した駐車メモの自動削除ジョブを提供する。
// 失効時刻から保持期間（デフォルト30日）を超過したメモを定期的に削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/parknote/internal/metrics"
)

// DefaultRetention は失効後にメモを保持する期間のデフォルト値。
const DefaultRetention = 30 * 24 * time.Hour

// NotePurger は失効済みメモの一括削除を抽象化するインターフェース。
// repository.ParkingNoteRepositoryが実装する。
type NotePurger interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は保持期間を超過した駐車メモの自動削除ジョブ。
// 削除条件は時刻のみで決まるため、何度実行しても結果は変わらない。
type CleanupJob struct {
	purger    NotePurger
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	now       func() time.Time
	Retention time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持期間は30日。collectorがnilの場合はメトリクスを記録しない。
func NewCleanupJob(purger NotePurger, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		purger:    purger,
		logger:    logger,
		metrics:   collector,
		now:       time.Now,
		Retention: DefaultRetention,
	}
}

// Run は失効時刻が現在時刻からRetentionより前のメモを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().UTC().Add(-j.Retention)

	deleted, err := j.purger.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("駐車メモのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("retention", j.Retention),
		)
		return fmt.Errorf("駐車メモのクリーンアップに失敗: %w", err)
	}

	j.metrics.RecordNotesPurged(deleted)

	duration := time.Since(start)
	j.logger.Info("駐車メモのクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Duration("retention", j.Retention),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。実行失敗はログのみで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.logger.Info("クリーンアップジョブを開始します",
		slog.Duration("interval", interval),
		slog.Duration("retention", j.Retention),
	)

	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
