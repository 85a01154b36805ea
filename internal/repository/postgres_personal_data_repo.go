package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// personalDataTables はユーザーのメールアドレスで所有されるテーブルと所有者列。
// 通報・会話・レビュー・コメントは他ユーザーとの共有記録として残す。
var personalDataTables = []struct {
	table  string
	column string
}{
	{"favorites", "user_email"},
	{"saved_events", "user_email"},
	{"organizer_follows", "follower_email"},
	{"event_subscriptions", "user_email"},
	{"hidden_contents", "user_email"},
	{"notifications", "user_email"},
	{"notification_preferences", "user_email"},
	{"location_claims", "user_email"},
}

// PostgresPersonalDataRepo はPostgreSQLを使用した個人データ削除リポジトリ。
type PostgresPersonalDataRepo struct {
	db *sql.DB
}

// NewPostgresPersonalDataRepo はPostgresPersonalDataRepoを生成する。
func NewPostgresPersonalDataRepo(db *sql.DB) *PostgresPersonalDataRepo {
	return &PostgresPersonalDataRepo{db: db}
}

// DeleteByUserEmail はユーザーの個人データを1トランザクションで削除し、削除した行数の合計を返す。
func (r *PostgresPersonalDataRepo) DeleteByUserEmail(ctx context.Context, email string) (int64, error) {
	var total int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, t := range personalDataTables {
			query, args, err := psql.Delete(t.table).Where(sq.Eq{t.column: email}).ToSql()
			if err != nil {
				return fmt.Errorf("クエリの生成に失敗しました: %w", err)
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("%s の削除に失敗しました: %w", t.table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("影響行数の取得に失敗しました: %w", err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// compile-time interface check
var _ PersonalDataRepository = (*PostgresPersonalDataRepo)(nil)
