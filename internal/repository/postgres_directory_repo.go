package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/hitoshi/sundays/internal/model"
	"github.com/lib/pq"
)

const locationColumns = `id, name, category, bio, street, city, state, zip, phone, email, website, hours, main_image,
	is_approved, is_featured, rating_sum, total_reviews, average_rating, created_by, created_at, updated_at`

func scanLocation(s rowScanner) (*model.Location, error) {
	l := &model.Location{}
	var hours []byte
	err := s.Scan(&l.ID, &l.Name, &l.Category, &l.Bio,
		&l.Address.Street, &l.Address.City, &l.Address.State, &l.Address.Zip,
		&l.Phone, &l.Email, &l.Website, &hours, &l.MainImage,
		&l.IsApproved, &l.IsFeatured, &l.RatingSum, &l.TotalReviews, &l.AverageRating,
		&l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &l.Hours); err != nil {
			return nil, fmt.Errorf("営業時間の復元に失敗しました: %w", err)
		}
	}
	return l, nil
}

// insertActivity はフィードアクティビティを作成する。
func insertActivity(ctx context.Context, q queryer, a *model.FeedActivity) error {
	a.ID = newRecordID()
	a.CreatedAt = now()
	_, err := q.ExecContext(ctx,
		`INSERT INTO feed_activities (id, activity_type, title, description, location_id, event_id, user_name, user_email, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.ActivityType, a.Title, a.Description, a.LocationID, a.EventID, a.UserName, a.UserEmail, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードアクティビティの作成に失敗しました: %w", err)
	}
	return nil
}

// setFlag は承認・おすすめなどの真偽値列を更新する。
func setFlag(ctx context.Context, q queryer, table, column, id string, value bool) (bool, error) {
	if !isRecordID(id) {
		return false, nil
	}
	query, args, err := psql.Update(table).
		Set(column, value).
		Set("updated_at", now()).
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s.%s の更新に失敗しました: %w", table, column, err)
	}
	return affected(res)
}

func deleteByID(ctx context.Context, q queryer, table, id string) (bool, error) {
	if !isRecordID(id) {
		return false, nil
	}
	res, err := q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return false, fmt.Errorf("%s の削除に失敗しました: %w", table, err)
	}
	return affected(res)
}

// PostgresLocationRepo はPostgreSQLを使用した店舗リポジトリ。
type PostgresLocationRepo struct {
	db *sql.DB
}

// NewPostgresLocationRepo はPostgresLocationRepoを生成する。
func NewPostgresLocationRepo(db *sql.DB) *PostgresLocationRepo {
	return &PostgresLocationRepo{db: db}
}

// CreateWithActivity は店舗とフィードアクティビティを同一トランザクションで作成する。
func (r *PostgresLocationRepo) CreateWithActivity(ctx context.Context, loc *model.Location, activity *model.FeedActivity) error {
	hours := "{}"
	if loc.Hours != nil {
		b, err := json.Marshal(loc.Hours)
		if err != nil {
			return fmt.Errorf("営業時間のシリアライズに失敗しました: %w", err)
		}
		// []byte のままだとbyteaとして送られるため文字列で渡す
		hours = string(b)
	}

	loc.ID = newRecordID()
	loc.CreatedAt = now()
	loc.UpdatedAt = loc.CreatedAt
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO locations (id, name, category, bio, street, city, state, zip, phone, email, website, hours,
				main_image, is_approved, is_featured, created_by, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			loc.ID, loc.Name, loc.Category, loc.Bio,
			loc.Address.Street, loc.Address.City, loc.Address.State, loc.Address.Zip,
			loc.Phone, loc.Email, loc.Website, hours, loc.MainImage,
			loc.IsApproved, loc.IsFeatured, loc.CreatedBy, loc.CreatedAt, loc.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("店舗の作成に失敗しました: %w", err)
		}
		activity.LocationID = loc.ID
		return insertActivity(ctx, tx, activity)
	})
}

// FindByID は指定IDの店舗を取得する。
func (r *PostgresLocationRepo) FindByID(ctx context.Context, id string) (*model.Location, error) {
	if !isRecordID(id) {
		return nil, nil
	}
	l, err := scanLocation(r.db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	return l, nil
}

// List は条件に一致する店舗を返す。
func (r *PostgresLocationRepo) List(ctx context.Context, filter LocationFilter, opts ListOptions) ([]model.Location, error) {
	where := sq.Eq{}
	if filter.CreatedBy != "" {
		where["created_by"] = filter.CreatedBy
	}
	if filter.Category != "" {
		where["category"] = filter.Category
	}
	if filter.Approved != nil {
		where["is_approved"] = *filter.Approved
	}
	if filter.Featured != nil {
		where["is_featured"] = *filter.Featured
	}

	b := psql.Select(locationColumns).From("locations").Where(where)
	b, err := applyListOptions(b, opts, "name", "name", "created_at", "average_rating", "total_reviews")
	if err != nil {
		return nil, err
	}

	var list []model.Location
	err = queryRows(ctx, r.db, b, func(s rowScanner) error {
		l, err := scanLocation(s)
		if err != nil {
			return err
		}
		list = append(list, *l)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("店舗一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// SetApproved は承認状態を更新する。
func (r *PostgresLocationRepo) SetApproved(ctx context.Context, id string, approved bool) (bool, error) {
	return setFlag(ctx, r.db, "locations", "is_approved", id, approved)
}

// SetFeatured はおすすめ表示を更新する。
func (r *PostgresLocationRepo) SetFeatured(ctx context.Context, id string, featured bool) (bool, error) {
	return setFlag(ctx, r.db, "locations", "is_featured", id, featured)
}

// DeleteByID は店舗を削除する。レビューはCASCADE削除される。
func (r *PostgresLocationRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "locations", id)
}

const eventColumns = `id, title, event_type, description, street, city, state, zip, start_date, end_date, image,
	is_approved, is_featured, created_by, created_at, updated_at`

func scanEvent(s rowScanner) (*model.Event, error) {
	e := &model.Event{}
	err := s.Scan(&e.ID, &e.Title, &e.EventType, &e.Description,
		&e.Address.Street, &e.Address.City, &e.Address.State, &e.Address.Zip,
		&e.StartDate, &e.EndDate, &e.Image, &e.IsApproved, &e.IsFeatured,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// PostgresEventRepo はPostgreSQLを使用したイベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// CreateWithActivity はイベントとフィードアクティビティを同一トランザクションで作成する。
func (r *PostgresEventRepo) CreateWithActivity(ctx context.Context, event *model.Event, activity *model.FeedActivity) error {
	event.ID = newRecordID()
	event.CreatedAt = now()
	event.UpdatedAt = event.CreatedAt
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, title, event_type, description, street, city, state, zip, start_date, end_date,
				image, is_approved, is_featured, created_by, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			event.ID, event.Title, event.EventType, event.Description,
			event.Address.Street, event.Address.City, event.Address.State, event.Address.Zip,
			event.StartDate, event.EndDate, event.Image, event.IsApproved, event.IsFeatured,
			event.CreatedBy, event.CreatedAt, event.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("イベントの作成に失敗しました: %w", err)
		}
		activity.EventID = event.ID
		return insertActivity(ctx, tx, activity)
	})
}

// FindByID は指定IDのイベントを取得する。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	if !isRecordID(id) {
		return nil, nil
	}
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	return e, nil
}

// List は条件に一致するイベントを返す。既定は開始日時の昇順。
func (r *PostgresEventRepo) List(ctx context.Context, filter EventFilter, opts ListOptions) ([]model.Event, error) {
	where := sq.And{}
	if filter.CreatedBy != "" {
		where = append(where, sq.Eq{"created_by": filter.CreatedBy})
	}
	if filter.EventType != "" {
		where = append(where, sq.Eq{"event_type": filter.EventType})
	}
	if filter.Approved != nil {
		where = append(where, sq.Eq{"is_approved": *filter.Approved})
	}
	if filter.EndsAfter != nil {
		where = append(where, sq.GtOrEq{"end_date": *filter.EndsAfter})
	}

	b := psql.Select(eventColumns).From("events")
	if len(where) > 0 {
		b = b.Where(where)
	}
	b, err := applyListOptions(b, opts, "start_date", "start_date", "created_at", "title")
	if err != nil {
		return nil, err
	}

	var list []model.Event
	err = queryRows(ctx, r.db, b, func(s rowScanner) error {
		e, err := scanEvent(s)
		if err != nil {
			return err
		}
		list = append(list, *e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// SetApproved は承認状態を更新する。
func (r *PostgresEventRepo) SetApproved(ctx context.Context, id string, approved bool) (bool, error) {
	return setFlag(ctx, r.db, "events", "is_approved", id, approved)
}

// SetFeatured はおすすめ表示を更新する。
func (r *PostgresEventRepo) SetFeatured(ctx context.Context, id string, featured bool) (bool, error) {
	return setFlag(ctx, r.db, "events", "is_featured", id, featured)
}

// DeleteByID はイベントを削除する。
func (r *PostgresEventRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "events", id)
}

var reviewColumns = []string{"id", "location_id", "rating", "comment", "photos", "user_name", "user_email", "created_at"}

func scanReview(s rowScanner) (*model.Review, error) {
	rv := &model.Review{}
	var photos pq.StringArray
	if err := s.Scan(&rv.ID, &rv.LocationID, &rv.Rating, &rv.Comment, &photos, &rv.UserName, &rv.UserEmail, &rv.CreatedAt); err != nil {
		return nil, err
	}
	rv.Photos = []string(photos)
	return rv, nil
}

// PostgresReviewRepo はPostgreSQLを使用したレビューリポジトリ。
type PostgresReviewRepo struct {
	db *sql.DB
}

// NewPostgresReviewRepo はPostgresReviewRepoを生成する。
func NewPostgresReviewRepo(db *sql.DB) *PostgresReviewRepo {
	return &PostgresReviewRepo{db: db}
}

// CreateWithAggregate はレビュー作成、評価集計の増分更新、アクティビティ作成を1トランザクションで行う。
// 集計は全レビューの再取得ではなく rating_sum と total_reviews の加算で維持する。
func (r *PostgresReviewRepo) CreateWithAggregate(ctx context.Context, review *model.Review, activity *model.FeedActivity) (*model.Location, error) {
	var loc *model.Location
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		l, err := scanLocation(tx.QueryRowContext(ctx,
			`UPDATE locations SET
				rating_sum = rating_sum + $2,
				total_reviews = total_reviews + 1,
				average_rating = (rating_sum + $2)::double precision / (total_reviews + 1),
				updated_at = $3
			 WHERE id = $1
			 RETURNING `+locationColumns,
			review.LocationID, review.Rating, now()))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("評価集計の更新に失敗しました: %w", err)
		}
		loc = l

		review.ID = newRecordID()
		review.CreatedAt = now()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO reviews (id, location_id, rating, comment, photos, user_name, user_email, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			review.ID, review.LocationID, review.Rating, review.Comment, pq.StringArray(review.Photos),
			review.UserName, review.UserEmail, review.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("レビューの作成に失敗しました: %w", err)
		}

		activity.LocationID = review.LocationID
		return insertActivity(ctx, tx, activity)
	})
	if err != nil {
		return nil, err
	}
	return loc, nil
}

// ListByLocation は店舗のレビューを返す。既定は新しい順。
func (r *PostgresReviewRepo) ListByLocation(ctx context.Context, locationID string, opts ListOptions) ([]model.Review, error) {
	if !isRecordID(locationID) {
		return nil, nil
	}
	return r.list(ctx, sq.Eq{"location_id": locationID}, opts)
}

// ListByUser は指定ユーザーが投稿したレビューを返す。既定は新しい順。
func (r *PostgresReviewRepo) ListByUser(ctx context.Context, userEmail string, opts ListOptions) ([]model.Review, error) {
	return r.list(ctx, sq.Eq{"user_email": userEmail}, opts)
}

func (r *PostgresReviewRepo) list(ctx context.Context, where sq.Eq, opts ListOptions) ([]model.Review, error) {
	b := psql.Select(reviewColumns...).From("reviews").Where(where)
	b, err := applyListOptions(b, opts, "-created_at", "created_at", "rating")
	if err != nil {
		return nil, err
	}

	var list []model.Review
	err = queryRows(ctx, r.db, b, func(s rowScanner) error {
		rv, err := scanReview(s)
		if err != nil {
			return err
		}
		list = append(list, *rv)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// DeleteByID はレビューを削除し、店舗の評価集計から差し引く。
func (r *PostgresReviewRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	if !isRecordID(id) {
		return false, nil
	}
	var found bool
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var locationID string
		var rating int
		err := tx.QueryRowContext(ctx,
			`DELETE FROM reviews WHERE id = $1 RETURNING location_id, rating`, id,
		).Scan(&locationID, &rating)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("レビューの削除に失敗しました: %w", err)
		}
		found = true

		_, err = tx.ExecContext(ctx,
			`UPDATE locations SET
				rating_sum = rating_sum - $2,
				total_reviews = total_reviews - 1,
				average_rating = CASE WHEN total_reviews - 1 > 0
					THEN (rating_sum - $2)::double precision / (total_reviews - 1) ELSE 0 END,
				updated_at = $3
			 WHERE id = $1`,
			locationID, rating, now())
		if err != nil {
			return fmt.Errorf("評価集計の更新に失敗しました: %w", err)
		}
		return nil
	})
	return found, err
}

const activityColumns = `id, activity_type, title, description, location_id, event_id, user_name, user_email, created_at`

func scanActivity(s rowScanner) (*model.FeedActivity, error) {
	a := &model.FeedActivity{}
	if err := s.Scan(&a.ID, &a.ActivityType, &a.Title, &a.Description, &a.LocationID, &a.EventID, &a.UserName, &a.UserEmail, &a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// PostgresActivityRepo はPostgreSQLを使用したフィードアクティビティリポジトリ。
type PostgresActivityRepo struct {
	db *sql.DB
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(db *sql.DB) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// List はフィードアクティビティを返す。既定は新しい順。
func (r *PostgresActivityRepo) List(ctx context.Context, opts ListOptions) ([]model.FeedActivity, error) {
	b := psql.Select(activityColumns).From("feed_activities")
	b, err := applyListOptions(b, opts, "-created_at", "created_at")
	if err != nil {
		return nil, err
	}

	var list []model.FeedActivity
	err = queryRows(ctx, r.db, b, func(s rowScanner) error {
		a, err := scanActivity(s)
		if err != nil {
			return err
		}
		list = append(list, *a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	return list, nil
}

// FindByID は指定IDのアクティビティを取得する。
func (r *PostgresActivityRepo) FindByID(ctx context.Context, id string) (*model.FeedActivity, error) {
	if !isRecordID(id) {
		return nil, nil
	}
	a, err := scanActivity(r.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM feed_activities WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アクティビティの取得に失敗しました: %w", err)
	}
	return a, nil
}

// DeleteByID はアクティビティを削除する。コメントはCASCADE削除される。
func (r *PostgresActivityRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	return deleteByID(ctx, r.db, "feed_activities", id)
}

// compile-time interface check
var (
	_ LocationRepository = (*PostgresLocationRepo)(nil)
	_ EventRepository    = (*PostgresEventRepo)(nil)
	_ ReviewRepository   = (*PostgresReviewRepo)(nil)
	_ ActivityRepository = (*PostgresActivityRepo)(nil)
)
