package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresReconcileRepo はPostgreSQLを使用した整合性修復リポジトリ。
type PostgresReconcileRepo struct {
	db *sql.DB
}

// NewPostgresReconcileRepo はPostgresReconcileRepoを生成する。
func NewPostgresReconcileRepo(db *sql.DB) *PostgresReconcileRepo {
	return &PostgresReconcileRepo{db: db}
}

// InsertMissingOrganizerSubscriptions はフォローに対応する購読が欠けているものを作成する。
func (r *PostgresReconcileRepo) InsertMissingOrganizerSubscriptions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO event_subscriptions (id, user_email, subscription_type, organizer_email, category, created_at)
		 SELECT gen_random_uuid(), f.follower_email, 'organizer', f.organizer_email, '', now()
		 FROM organizer_follows f
		 WHERE NOT EXISTS (
			SELECT 1 FROM event_subscriptions s
			WHERE s.subscription_type = 'organizer'
				AND s.user_email = f.follower_email
				AND s.organizer_email = f.organizer_email
		 )
		 ON CONFLICT DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("欠落した主催者購読の作成に失敗しました: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOrphanOrganizerSubscriptions はフォローが存在しない organizer 種別の購読を削除する。
func (r *PostgresReconcileRepo) DeleteOrphanOrganizerSubscriptions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM event_subscriptions s
		 WHERE s.subscription_type = 'organizer'
			AND NOT EXISTS (
				SELECT 1 FROM organizer_follows f
				WHERE f.follower_email = s.user_email AND f.organizer_email = s.organizer_email
			)`)
	if err != nil {
		return 0, fmt.Errorf("孤立した主催者購読の削除に失敗しました: %w", err)
	}
	return res.RowsAffected()
}

// RepairLocationRatings はレビューの実数と一致しない店舗の評価集計を再計算する。
func (r *PostgresReconcileRepo) RepairLocationRatings(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`WITH actual AS (
			SELECT l.id,
				COALESCE(SUM(rv.rating), 0)::int AS rating_sum,
				COUNT(rv.id)::int AS total_reviews
			FROM locations l
			LEFT JOIN reviews rv ON rv.location_id = l.id
			GROUP BY l.id
		)
		UPDATE locations l SET
			rating_sum = a.rating_sum,
			total_reviews = a.total_reviews,
			average_rating = CASE WHEN a.total_reviews > 0
				THEN a.rating_sum::double precision / a.total_reviews ELSE 0 END,
			updated_at = now()
		FROM actual a
		WHERE l.id = a.id
			AND (l.rating_sum <> a.rating_sum OR l.total_reviews <> a.total_reviews)`)
	if err != nil {
		return 0, fmt.Errorf("評価集計の修復に失敗しました: %w", err)
	}
	return res.RowsAffected()
}

// compile-time interface check
var _ ReconcileRepository = (*PostgresReconcileRepo)(nil)
