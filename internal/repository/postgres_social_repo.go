package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sundays/internal/model"
)

// PostgresFollowRepo はPostgreSQLを使用した主催者フォローリポジトリ。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// Toggle はフォロー状態を反転する。
// 解除時はフォローと購読を削除し、フォロー時は両方を作成する。いずれも1トランザクション。
func (r *PostgresFollowRepo) Toggle(ctx context.Context, followerEmail, organizerEmail string) (*model.FollowResult, error) {
	result := &model.FollowResult{OrganizerEmail: organizerEmail}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM organizer_follows WHERE follower_email = $1 AND organizer_email = $2`,
			followerEmail, organizerEmail)
		if err != nil {
			return fmt.Errorf("フォローの削除に失敗しました: %w", err)
		}
		removed, err := affected(res)
		if err != nil {
			return err
		}
		if removed {
			return deleteOrganizerSubscription(ctx, tx, followerEmail, organizerEmail)
		}

		follow, err := insertFollow(ctx, tx, followerEmail, organizerEmail)
		if err != nil {
			return err
		}
		sub, err := insertOrganizerSubscription(ctx, tx, followerEmail, organizerEmail)
		if err != nil {
			return err
		}
		result.Following = true
		result.Follow = follow
		result.Subscription = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Unfollow はフォローと対応する購読を削除する。
func (r *PostgresFollowRepo) Unfollow(ctx context.Context, followerEmail, organizerEmail string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM organizer_follows WHERE follower_email = $1 AND organizer_email = $2`,
			followerEmail, organizerEmail)
		if err != nil {
			return fmt.Errorf("フォローの削除に失敗しました: %w", err)
		}
		return deleteOrganizerSubscription(ctx, tx, followerEmail, organizerEmail)
	})
}

// IsFollowing はフォロー中かどうかを返す。
func (r *PostgresFollowRepo) IsFollowing(ctx context.Context, followerEmail, organizerEmail string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM organizer_follows WHERE follower_email = $1 AND organizer_email = $2)`,
		followerEmail, organizerEmail,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("フォロー状態の取得に失敗しました: %w", err)
	}
	return exists, nil
}

// CountFollowers は主催者のフォロワー数を返す。
func (r *PostgresFollowRepo) CountFollowers(ctx context.Context, organizerEmail string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM organizer_follows WHERE organizer_email = $1`, organizerEmail,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("フォロワー数の取得に失敗しました: %w", err)
	}
	return count, nil
}

func insertFollow(ctx context.Context, tx *sql.Tx, followerEmail, organizerEmail string) (*model.OrganizerFollow, error) {
	f := &model.OrganizerFollow{}
	err := tx.QueryRowContext(ctx,
		`INSERT INTO organizer_follows (id, follower_email, organizer_email, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (follower_email, organizer_email) DO UPDATE SET follower_email = EXCLUDED.follower_email
		 RETURNING id, follower_email, organizer_email, created_at`,
		newRecordID(), followerEmail, organizerEmail, now(),
	).Scan(&f.ID, &f.FollowerEmail, &f.OrganizerEmail, &f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("フォローの作成に失敗しました: %w", err)
	}
	return f, nil
}

func insertOrganizerSubscription(ctx context.Context, tx *sql.Tx, userEmail, organizerEmail string) (*model.EventSubscription, error) {
	s, err := scanSubscription(tx.QueryRowContext(ctx,
		`INSERT INTO event_subscriptions (id, user_email, subscription_type, organizer_email, category, created_at)
		 VALUES ($1, $2, 'organizer', $3, '', $4)
		 ON CONFLICT (user_email, organizer_email) WHERE subscription_type = 'organizer'
		 DO UPDATE SET user_email = EXCLUDED.user_email
		 RETURNING `+subscriptionColumns,
		newRecordID(), userEmail, organizerEmail, now(),
	))
	if err != nil {
		return nil, fmt.Errorf("主催者購読の作成に失敗しました: %w", err)
	}
	return s, nil
}

func deleteOrganizerSubscription(ctx context.Context, tx *sql.Tx, userEmail, organizerEmail string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM event_subscriptions
		 WHERE user_email = $1 AND subscription_type = 'organizer' AND organizer_email = $2`,
		userEmail, organizerEmail)
	if err != nil {
		return fmt.Errorf("主催者購読の削除に失敗しました: %w", err)
	}
	return nil
}

const subscriptionColumns = `id, user_email, subscription_type, organizer_email, category, created_at`

func scanSubscription(s rowScanner) (*model.EventSubscription, error) {
	sub := &model.EventSubscription{}
	if err := s.Scan(&sub.ID, &sub.UserEmail, &sub.SubscriptionType, &sub.OrganizerEmail, &sub.Category, &sub.CreatedAt); err != nil {
		return nil, err
	}
	return sub, nil
}

// PostgresEventSubscriptionRepo はPostgreSQLを使用したイベント購読リポジトリ。
type PostgresEventSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresEventSubscriptionRepo はPostgresEventSubscriptionRepoを生成する。
func NewPostgresEventSubscriptionRepo(db *sql.DB) *PostgresEventSubscriptionRepo {
	return &PostgresEventSubscriptionRepo{db: db}
}

// SubscribeCategory はカテゴリ購読を作成する。既存の場合はそのレコードを返す。
func (r *PostgresEventSubscriptionRepo) SubscribeCategory(ctx context.Context, userEmail, category string) (*model.EventSubscription, error) {
	sub, err := scanSubscription(r.db.QueryRowContext(ctx,
		`INSERT INTO event_subscriptions (id, user_email, subscription_type, organizer_email, category, created_at)
		 VALUES ($1, $2, 'category', '', $3, $4)
		 ON CONFLICT (user_email, category) WHERE subscription_type = 'category'
		 DO UPDATE SET user_email = EXCLUDED.user_email
		 RETURNING `+subscriptionColumns,
		newRecordID(), userEmail, category, now(),
	))
	if err != nil {
		return nil, fmt.Errorf("カテゴリ購読の作成に失敗しました: %w", err)
	}
	return sub, nil
}

// FindByID は指定IDの購読を取得する。
func (r *PostgresEventSubscriptionRepo) FindByID(ctx context.Context, id string) (*model.EventSubscription, error) {
	if !isRecordID(id) {
		return nil, nil
	}
	sub, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM event_subscriptions WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購読の取得に失敗しました: %w", err)
	}
	return sub, nil
}

// DeleteByID は指定IDの購読を削除する。
func (r *PostgresEventSubscriptionRepo) DeleteByID(ctx context.Context, id string) error {
	if !isRecordID(id) {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM event_subscriptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("購読の削除に失敗しました: %w", err)
	}
	return nil
}

// ListByUser はユーザーの購読一覧を返す。
func (r *PostgresEventSubscriptionRepo) ListByUser(ctx context.Context, userEmail string) ([]model.EventSubscription, error) {
	b := psql.Select(subscriptionColumns).
		From("event_subscriptions").
		Where("user_email = ?", userEmail).
		OrderBy("subscription_type ASC", "created_at DESC")

	var subs []model.EventSubscription
	err := queryRows(ctx, r.db, b, func(s rowScanner) error {
		sub, err := scanSubscription(s)
		if err != nil {
			return err
		}
		subs = append(subs, *sub)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}
	return subs, nil
}

// ListSubscriberEmails は主催者またはカテゴリの購読者を重複なく返す。
func (r *PostgresEventSubscriptionRepo) ListSubscriberEmails(ctx context.Context, organizerEmail, category string) ([]string, error) {
	b := psql.Select("DISTINCT user_email").
		From("event_subscriptions").
		Where("(subscription_type = 'organizer' AND organizer_email = ?) OR (subscription_type = 'category' AND category = ?)",
			organizerEmail, category).
		OrderBy("user_email")

	var emails []string
	err := queryRows(ctx, r.db, b, func(s rowScanner) error {
		var email string
		if err := s.Scan(&email); err != nil {
			return err
		}
		emails = append(emails, email)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("購読者の取得に失敗しました: %w", err)
	}
	return emails, nil
}

// compile-time interface check
var (
	_ FollowRepository            = (*PostgresFollowRepo)(nil)
	_ EventSubscriptionRepository = (*PostgresEventSubscriptionRepo)(nil)
)
