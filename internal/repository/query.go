package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// psql はPostgreSQL用のプレースホルダ($1, $2...)を使うクエリビルダー。
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ListOptions は一覧取得の並び順と件数上限を指定する。
// OrderBy は列名で、先頭に "-" を付けると降順になる。Limit が0以下の場合は上限なし。
type ListOptions struct {
	OrderBy string
	Limit   int
}

// queryer は *sql.DB と *sql.Tx の共通部分。
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner は *sql.Row と *sql.Rows の共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// orderClause は ListOptions.OrderBy を許可された列に限定してORDER BY句に変換する。
// 空の場合は fallback を使う。
func orderClause(orderBy, fallback string, allowed ...string) (string, error) {
	if orderBy == "" {
		orderBy = fallback
	}
	dir := "ASC"
	col := orderBy
	if strings.HasPrefix(orderBy, "-") {
		dir = "DESC"
		col = orderBy[1:]
	}
	for _, a := range allowed {
		if a == col {
			return col + " " + dir, nil
		}
	}
	return "", fmt.Errorf("並び替えに使用できない列です: %s", col)
}

// applyListOptions はSELECTビルダーに並び順と件数上限を適用する。
func applyListOptions(b sq.SelectBuilder, opts ListOptions, fallback string, allowed ...string) (sq.SelectBuilder, error) {
	order, err := orderClause(opts.OrderBy, fallback, allowed...)
	if err != nil {
		return b, err
	}
	// 同一時刻のレコードの順序を安定させる
	b = b.OrderBy(order, "id ASC")
	if opts.Limit > 0 {
		b = b.Limit(uint64(opts.Limit))
	}
	return b, nil
}

// queryRows はビルダーからSQLを生成して実行し、各行を scan に渡す。
func queryRows(ctx context.Context, q queryer, b sq.Sqlizer, scan func(rowScanner) error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("クエリの生成に失敗しました: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// withTx は fn をトランザクション内で実行し、エラーがなければコミットする。
func withTx(ctx context.Context, db TxBeginner, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// isRecordID はIDがUUIDとして解釈できるかどうかを返す。
// UUID列に解釈できない文字列を渡すとPostgreSQLが 22P02 を返すため、
// 問い合わせる前に判定して該当なしとして扱う。
func isRecordID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// newRecordID はレコードIDを採番する。
func newRecordID() string {
	return uuid.NewString()
}

// affected は更新・削除の影響行数が1以上かどうかを返す。
func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("影響行数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// now はDBに書き込む現在時刻を返す。
func now() time.Time {
	return time.Now().UTC()
}
