package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/hitoshi/sundays/internal/model"
)

const reportColumns = `id, reporter_email, content_type, content_id, content_title, reason, status, created_at, updated_at`

func scanReport(s rowScanner) (*model.Report, error) {
	r := &model.Report{}
	err := s.Scan(&r.ID, &r.ReporterEmail, &r.ContentType, &r.ContentID, &r.ContentTitle,
		&r.Reason, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// PostgresReportRepo はPostgreSQLを使用した通報リポジトリ。
type PostgresReportRepo struct {
	db *sql.DB
}

// NewPostgresReportRepo はPostgresReportRepoを生成する。
func NewPostgresReportRepo(db *sql.DB) *PostgresReportRepo {
	return &PostgresReportRepo{db: db}
}

func insertReport(ctx context.Context, q queryer, report *model.Report) error {
	report.ID = newRecordID()
	report.CreatedAt = now()
	report.UpdatedAt = report.CreatedAt
	if report.Status == "" {
		report.Status = model.ReportPending
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO reports (id, reporter_email, content_type, content_id, content_title, reason, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		report.ID, report.ReporterEmail, report.ContentType, report.ContentID, report.ContentTitle,
		report.Reason, report.Status, report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("通報の作成に失敗しました: %w", err)
	}
	return nil
}

// Create は通報を作成する。同一内容の通報も別レコードとして作成する。
func (r *PostgresReportRepo) Create(ctx context.Context, report *model.Report) error {
	return insertReport(ctx, r.db, report)
}

// CreateWithHide は通報と非表示レコードを同一トランザクションで作成する。
func (r *PostgresReportRepo) CreateWithHide(ctx context.Context, report *model.Report, hidden *model.HiddenContent) (*model.HiddenContent, error) {
	var stored *model.HiddenContent
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertReport(ctx, tx, report); err != nil {
			return err
		}
		h, err := upsertHidden(ctx, tx, hidden)
		if err != nil {
			return err
		}
		stored = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// List は通報一覧を返す。
func (r *PostgresReportRepo) List(ctx context.Context, status model.ReportStatus, opts ListOptions) ([]model.Report, error) {
	b := psql.Select(reportColumns).From("reports")
	if status != "" {
		b = b.Where("status = ?", status)
	}
	return r.list(ctx, b, opts)
}

// ListByReporter は指定ユーザーが行った通報を返す。既定は新しい順。
func (r *PostgresReportRepo) ListByReporter(ctx context.Context, reporterEmail string, opts ListOptions) ([]model.Report, error) {
	return r.list(ctx, psql.Select(reportColumns).From("reports").Where("reporter_email = ?", reporterEmail), opts)
}

func (r *PostgresReportRepo) list(ctx context.Context, b sq.SelectBuilder, opts ListOptions) ([]model.Report, error) {
	b, err := applyListOptions(b, opts, "-created_at", "created_at", "updated_at")
	if err != nil {
		return nil, err
	}

	var reports []model.Report
	err = queryRows(ctx, r.db, b, func(s rowScanner) error {
		rep, err := scanReport(s)
		if err != nil {
			return err
		}
		reports = append(reports, *rep)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("通報一覧の取得に失敗しました: %w", err)
	}
	return reports, nil
}

// UpdateStatus は通報の処理状態を更新する。
func (r *PostgresReportRepo) UpdateStatus(ctx context.Context, id string, status model.ReportStatus) (*model.Report, error) {
	if !isRecordID(id) {
		return nil, nil
	}
	rep, err := scanReport(r.db.QueryRowContext(ctx,
		`UPDATE reports SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+reportColumns,
		id, status, now()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("通報状態の更新に失敗しました: %w", err)
	}
	return rep, nil
}

// PostgresHiddenContentRepo はPostgreSQLを使用した非表示コンテンツリポジトリ。
type PostgresHiddenContentRepo struct {
	db *sql.DB
}

// NewPostgresHiddenContentRepo はPostgresHiddenContentRepoを生成する。
func NewPostgresHiddenContentRepo(db *sql.DB) *PostgresHiddenContentRepo {
	return &PostgresHiddenContentRepo{db: db}
}

// upsertHidden は非表示レコードを作成する。
// 既存の場合は DO UPDATE の空更新で既存行をRETURNINGさせる。
func upsertHidden(ctx context.Context, q queryer, hidden *model.HiddenContent) (*model.HiddenContent, error) {
	stored := &model.HiddenContent{}
	err := q.QueryRowContext(ctx,
		`INSERT INTO hidden_contents (id, user_email, content_type, content_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_email, content_type, content_id)
		 DO UPDATE SET user_email = EXCLUDED.user_email
		 RETURNING id, user_email, content_type, content_id, created_at`,
		newRecordID(), hidden.UserEmail, hidden.ContentType, hidden.ContentID, now(),
	).Scan(&stored.ID, &stored.UserEmail, &stored.ContentType, &stored.ContentID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("非表示レコードの作成に失敗しました: %w", err)
	}
	return stored, nil
}

// Create は非表示レコードを作成する。
func (r *PostgresHiddenContentRepo) Create(ctx context.Context, hidden *model.HiddenContent) (*model.HiddenContent, error) {
	return upsertHidden(ctx, r.db, hidden)
}

// FindByID は指定IDの非表示レコードを取得する。
func (r *PostgresHiddenContentRepo) FindByID(ctx context.Context, id string) (*model.HiddenContent, error) {
	if !isRecordID(id) {
		return nil, nil
	}
	h := &model.HiddenContent{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_email, content_type, content_id, created_at FROM hidden_contents WHERE id = $1`, id,
	).Scan(&h.ID, &h.UserEmail, &h.ContentType, &h.ContentID, &h.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("非表示レコードの取得に失敗しました: %w", err)
	}
	return h, nil
}

// DeleteByID は指定IDの非表示レコードを削除する。
func (r *PostgresHiddenContentRepo) DeleteByID(ctx context.Context, id string) error {
	if !isRecordID(id) {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM hidden_contents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("非表示レコードの削除に失敗しました: %w", err)
	}
	return nil
}

// ListByUser はユーザーの非表示レコードを全件返す。
func (r *PostgresHiddenContentRepo) ListByUser(ctx context.Context, userEmail string) ([]model.HiddenContent, error) {
	b := psql.Select("id", "user_email", "content_type", "content_id", "created_at").
		From("hidden_contents").
		Where("user_email = ?", userEmail).
		OrderBy("created_at DESC")

	var list []model.HiddenContent
	err := queryRows(ctx, r.db, b, func(s rowScanner) error {
		var h model.HiddenContent
		if err := s.Scan(&h.ID, &h.UserEmail, &h.ContentType, &h.ContentID, &h.CreatedAt); err != nil {
			return err
		}
		list = append(list, h)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("非表示レコード一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// compile-time interface check
var (
	_ ReportRepository        = (*PostgresReportRepo)(nil)
	_ HiddenContentRepository = (*PostgresHiddenContentRepo)(nil)
)
