package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/hitoshi/sundays/internal/model"
)

// PostgresLocationClaimRepo はPostgreSQLを使用した店舗オーナー対応付けリポジトリ。
type PostgresLocationClaimRepo struct {
	db *sql.DB
}

// NewPostgresLocationClaimRepo はPostgresLocationClaimRepoを生成する。
func NewPostgresLocationClaimRepo(db *sql.DB) *PostgresLocationClaimRepo {
	return &PostgresLocationClaimRepo{db: db}
}

// Assign はユーザーを店舗のオーナーにする。
// user_email と location_id のどちらにも一意制約があるため、ユーザー側の既存行を消してから店舗側でupsertする。
func (r *PostgresLocationClaimRepo) Assign(ctx context.Context, claim *model.LocationClaim) error {
	claim.CreatedAt = now()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM location_claims WHERE user_email = $1 AND location_id <> $2`,
			claim.UserEmail, claim.LocationID,
		); err != nil {
			return fmt.Errorf("既存の店舗オーナー設定の解除に失敗しました: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO location_claims (location_id, user_email, created_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (location_id) DO UPDATE SET user_email = EXCLUDED.user_email, created_at = EXCLUDED.created_at`,
			claim.LocationID, claim.UserEmail, claim.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("店舗オーナーの設定に失敗しました: %w", err)
		}
		return nil
	})
}

// FindByUser はユーザーが保有する店舗の対応付けを返す。
func (r *PostgresLocationClaimRepo) FindByUser(ctx context.Context, userEmail string) (*model.LocationClaim, error) {
	c := &model.LocationClaim{}
	err := r.db.QueryRowContext(ctx,
		`SELECT location_id, user_email, created_at FROM location_claims WHERE lower(user_email) = lower($1)`,
		userEmail,
	).Scan(&c.LocationID, &c.UserEmail, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("店舗オーナー設定の取得に失敗しました: %w", err)
	}
	return c, nil
}

// PostgresDealRepo はPostgreSQLを使用した特典リポジトリ。
type PostgresDealRepo struct {
	db *sql.DB
}

// NewPostgresDealRepo はPostgresDealRepoを生成する。
func NewPostgresDealRepo(db *sql.DB) *PostgresDealRepo {
	return &PostgresDealRepo{db: db}
}

// CreateWithActivity は特典とフィードアクティビティを同一トランザクションで作成する。
func (r *PostgresDealRepo) CreateWithActivity(ctx context.Context, deal *model.Deal, activity *model.FeedActivity) error {
	deal.ID = newRecordID()
	deal.CreatedAt = now()
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO deals (id, location_id, title, description, valid_until, is_active, created_by, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			deal.ID, deal.LocationID, deal.Title, deal.Description, deal.ValidUntil, deal.IsActive,
			deal.CreatedBy, deal.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("特典の作成に失敗しました: %w", err)
		}
		activity.LocationID = deal.LocationID
		return insertActivity(ctx, tx, activity)
	})
}

// ListAvailable は時刻atの時点で有効な店舗の特典を新しい順に返す。
func (r *PostgresDealRepo) ListAvailable(ctx context.Context, locationID string, at time.Time) ([]model.Deal, error) {
	if !isRecordID(locationID) {
		return nil, nil
	}
	b := psql.Select("id", "location_id", "title", "description", "valid_until", "is_active", "created_by", "created_at").
		From("deals").
		Where(sq.Eq{"location_id": locationID, "is_active": true}).
		Where(sq.Or{sq.Eq{"valid_until": nil}, sq.GtOrEq{"valid_until": at}}).
		OrderBy("created_at DESC")

	var list []model.Deal
	err := queryRows(ctx, r.db, b, func(s rowScanner) error {
		var d model.Deal
		var validUntil sql.NullTime
		if err := s.Scan(&d.ID, &d.LocationID, &d.Title, &d.Description, &validUntil, &d.IsActive, &d.CreatedBy, &d.CreatedAt); err != nil {
			return err
		}
		if validUntil.Valid {
			d.ValidUntil = &validUntil.Time
		}
		list = append(list, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("特典一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// DeleteByID は特典を削除する。
func (r *PostgresDealRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "deals", id)
}

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// Create はコメントを作成する。
func (r *PostgresCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	c.ID = newRecordID()
	c.CreatedAt = now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, activity_id, content, user_name, user_email, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.ActivityID, c.Content, c.UserName, c.UserEmail, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}
	return nil
}

// ListByActivity はアクティビティのコメントを返す。既定は新しい順。
func (r *PostgresCommentRepo) ListByActivity(ctx context.Context, activityID string, opts ListOptions) ([]model.Comment, error) {
	if !isRecordID(activityID) {
		return nil, nil
	}
	b := psql.Select("id", "activity_id", "content", "user_name", "user_email", "created_at").
		From("comments").
		Where("activity_id = ?", activityID)
	b, err := applyListOptions(b, opts, "-created_at", "created_at")
	if err != nil {
		return nil, err
	}

	var list []model.Comment
	err = queryRows(ctx, r.db, b, func(s rowScanner) error {
		var c model.Comment
		if err := s.Scan(&c.ID, &c.ActivityID, &c.Content, &c.UserName, &c.UserEmail, &c.CreatedAt); err != nil {
			return err
		}
		list = append(list, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// compile-time interface check
var (
	_ LocationClaimRepository = (*PostgresLocationClaimRepo)(nil)
	_ DealRepository          = (*PostgresDealRepo)(nil)
	_ CommentRepository       = (*PostgresCommentRepo)(nil)
)
