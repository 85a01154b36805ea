package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/sundays/internal/model"
)

// membershipTable は (ユーザー, 対象) の有無だけを表すテーブル。
// お気に入りと保存イベントで共有する。
type membershipTable struct {
	name      string
	targetCol string
}

var (
	favoritesTable   = membershipTable{name: "favorites", targetCol: "location_id"}
	savedEventsTable = membershipTable{name: "saved_events", targetCol: "event_id"}
)

// toggleSQL は削除できればそれで終わり、削除対象がなければ挿入する1文のSQLを返す。
// 結果は反転後に存在するかどうか。同時挿入は一意制約で1件に収束する。
func (m membershipTable) toggleSQL() string {
	return fmt.Sprintf(`WITH deleted AS (
	DELETE FROM %[1]s WHERE user_email = $2 AND %[2]s = $3 RETURNING 1
), inserted AS (
	INSERT INTO %[1]s (id, user_email, %[2]s, created_at)
	SELECT $1::uuid, $2::text, $3::text, $4::timestamptz WHERE NOT EXISTS (SELECT 1 FROM deleted)
	ON CONFLICT (user_email, %[2]s) DO NOTHING
	RETURNING 1
)
SELECT NOT EXISTS (SELECT 1 FROM deleted)`, m.name, m.targetCol)
}

func (m membershipTable) toggle(ctx context.Context, q queryer, userEmail, targetID string) (bool, error) {
	var present bool
	err := q.QueryRowContext(ctx, m.toggleSQL(), newRecordID(), userEmail, targetID, now()).Scan(&present)
	if err != nil {
		return false, fmt.Errorf("%s のトグルに失敗しました: %w", m.name, err)
	}
	return present, nil
}

func (m membershipTable) set(ctx context.Context, q queryer, userEmail, targetID string, on bool) error {
	var err error
	if on {
		_, err = q.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %[1]s (id, user_email, %[2]s, created_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (user_email, %[2]s) DO NOTHING`, m.name, m.targetCol),
			newRecordID(), userEmail, targetID, now(),
		)
	} else {
		_, err = q.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE user_email = $1 AND %s = $2`, m.name, m.targetCol),
			userEmail, targetID,
		)
	}
	if err != nil {
		return fmt.Errorf("%s の更新に失敗しました: %w", m.name, err)
	}
	return nil
}

type membershipRow struct {
	ID        string
	UserEmail string
	TargetID  string
	CreatedAt time.Time
}

func (m membershipTable) listByUser(ctx context.Context, q queryer, userEmail string) ([]membershipRow, error) {
	b := psql.Select("id", "user_email", m.targetCol, "created_at").
		From(m.name).
		Where("user_email = ?", userEmail).
		OrderBy("created_at DESC")

	var out []membershipRow
	err := queryRows(ctx, q, b, func(s rowScanner) error {
		var r membershipRow
		if err := s.Scan(&r.ID, &r.UserEmail, &r.TargetID, &r.CreatedAt); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s 一覧の取得に失敗しました: %w", m.name, err)
	}
	return out, nil
}

// PostgresFavoriteRepo はPostgreSQLを使用したお気に入りリポジトリ。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// Toggle はお気に入りの有無を反転する。
func (r *PostgresFavoriteRepo) Toggle(ctx context.Context, userEmail, locationID string) (bool, error) {
	return favoritesTable.toggle(ctx, r.db, userEmail, locationID)
}

// Set はお気に入りの有無を指定した状態にする。
func (r *PostgresFavoriteRepo) Set(ctx context.Context, userEmail, locationID string, on bool) error {
	return favoritesTable.set(ctx, r.db, userEmail, locationID, on)
}

// ListByUser はユーザーのお気に入りを新しい順に返す。
func (r *PostgresFavoriteRepo) ListByUser(ctx context.Context, userEmail string) ([]model.Favorite, error) {
	rows, err := favoritesTable.listByUser(ctx, r.db, userEmail)
	if err != nil {
		return nil, err
	}
	favorites := make([]model.Favorite, 0, len(rows))
	for _, row := range rows {
		favorites = append(favorites, model.Favorite{
			ID:         row.ID,
			UserEmail:  row.UserEmail,
			LocationID: row.TargetID,
			CreatedAt:  row.CreatedAt,
		})
	}
	return favorites, nil
}

// PostgresSavedEventRepo はPostgreSQLを使用した保存イベントリポジトリ。
type PostgresSavedEventRepo struct {
	db *sql.DB
}

// NewPostgresSavedEventRepo はPostgresSavedEventRepoを生成する。
func NewPostgresSavedEventRepo(db *sql.DB) *PostgresSavedEventRepo {
	return &PostgresSavedEventRepo{db: db}
}

// Toggle は保存の有無を反転する。
func (r *PostgresSavedEventRepo) Toggle(ctx context.Context, userEmail, eventID string) (bool, error) {
	return savedEventsTable.toggle(ctx, r.db, userEmail, eventID)
}

// Set は保存の有無を指定した状態にする。
func (r *PostgresSavedEventRepo) Set(ctx context.Context, userEmail, eventID string, on bool) error {
	return savedEventsTable.set(ctx, r.db, userEmail, eventID, on)
}

// ListByUser はユーザーの保存イベントを新しい順に返す。
func (r *PostgresSavedEventRepo) ListByUser(ctx context.Context, userEmail string) ([]model.SavedEvent, error) {
	rows, err := savedEventsTable.listByUser(ctx, r.db, userEmail)
	if err != nil {
		return nil, err
	}
	saved := make([]model.SavedEvent, 0, len(rows))
	for _, row := range rows {
		saved = append(saved, model.SavedEvent{
			ID:        row.ID,
			UserEmail: row.UserEmail,
			EventID:   row.TargetID,
			CreatedAt: row.CreatedAt,
		})
	}
	return saved, nil
}

// compile-time interface check
var (
	_ FavoriteRepository   = (*PostgresFavoriteRepo)(nil)
	_ SavedEventRepository = (*PostgresSavedEventRepo)(nil)
)
