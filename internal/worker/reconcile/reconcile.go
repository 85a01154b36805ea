// Package reconcile は複数のテーブルにまたがる不整合を定期的に修復するジョブを提供する。
// フォローと主催者購読の対応、店舗の評価集計とレビューの対応を修復する。
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sundays/internal/repository"
)

// 修復種別。メトリクスのラベルとログに使う。
const (
	KindMissingSubscription = "missing_organizer_subscription"
	KindOrphanSubscription  = "orphan_organizer_subscription"
	KindLocationRating      = "location_rating"
)

// Recorder は修復結果のメトリクス記録先。
type Recorder interface {
	RecordReconcileRepairs(kind string, count int64)
	RecordReconcileLatency(duration time.Duration)
}

// Reconciler は整合性修復ジョブ。
type Reconciler struct {
	repo     repository.ReconcileRepository
	recorder Recorder
	logger   *slog.Logger
}

// NewReconciler はReconcilerの新しいインスタンスを生成する。
func NewReconciler(repo repository.ReconcileRepository, recorder Recorder, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
	}
}

type repair struct {
	kind string
	fn   func(ctx context.Context) (int64, error)
}

// Start は interval ごとに修復を実行する。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *Reconciler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("整合性修復ジョブを開始しました", slog.Duration("interval", interval))

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.logger.Error("整合性修復の実行に失敗しました", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			r.logger.Info("整合性修復ジョブを停止しました")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce は全ての修復を1回ずつ実行する。
// ある修復が失敗しても残りは実行し、失敗をまとめて返す。
func (r *Reconciler) RunOnce(ctx context.Context) error {
	start := time.Now()
	defer func() { r.recorder.RecordReconcileLatency(time.Since(start)) }()

	// 欠落の作成を孤立の削除より先に行う
	repairs := []repair{
		{KindMissingSubscription, r.repo.InsertMissingOrganizerSubscriptions},
		{KindOrphanSubscription, r.repo.DeleteOrphanOrganizerSubscriptions},
		{KindLocationRating, r.repo.RepairLocationRatings},
	}

	var errs []error
	var total int64
	for _, rp := range repairs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := rp.fn(ctx)
		if err != nil {
			r.logger.Error("修復に失敗しました",
				slog.String("kind", rp.kind),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", rp.kind, err))
			continue
		}
		r.recorder.RecordReconcileRepairs(rp.kind, n)
		total += n
		if n > 0 {
			r.logger.Warn("不整合を修復しました",
				slog.String("kind", rp.kind),
				slog.Int64("count", n),
			)
		}
	}

	r.logger.Info("整合性修復が完了しました",
		slog.Int64("repaired_count", total),
		slog.Int("failed", len(errs)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return errors.Join(errs...)
}
