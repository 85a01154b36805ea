package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sundays/internal/model"
)

const notificationColumns = `id, user_email, type, title, message, event_id, is_read, created_at`

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

func scanNotification(s rowScanner) (*model.Notification, error) {
	n := &model.Notification{}
	if err := s.Scan(&n.ID, &n.UserEmail, &n.Type, &n.Title, &n.Message, &n.EventID, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	return n, nil
}

// ListByUser はユーザーの通知を返す。既定は作成日時の降順。
func (r *PostgresNotificationRepo) ListByUser(ctx context.Context, userEmail string, opts ListOptions) ([]model.Notification, error) {
	b := psql.Select(notificationColumns).From("notifications").Where("user_email = ?", userEmail)
	b, err := applyListOptions(b, opts, "-created_at", "created_at")
	if err != nil {
		return nil, err
	}

	var list []model.Notification
	err = queryRows(ctx, r.db, b, func(s rowScanner) error {
		n, err := scanNotification(s)
		if err != nil {
			return err
		}
		list = append(list, *n)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// FindByID は指定IDの通知を取得する。
func (r *PostgresNotificationRepo) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	if !isRecordID(id) {
		return nil, nil
	}
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("通知の取得に失敗しました: %w", err)
	}
	return n, nil
}

// MarkRead は通知を既読にする。既読の通知に対しても成功する。
func (r *PostgresNotificationRepo) MarkRead(ctx context.Context, id string) error {
	if !isRecordID(id) {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = true WHERE id = $1`, id); err != nil {
		return fmt.Errorf("通知の既読化に失敗しました: %w", err)
	}
	return nil
}

// CreateBatch は複数の通知を1回のINSERTで作成する。
func (r *PostgresNotificationRepo) CreateBatch(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	b := psql.Insert("notifications").Columns(notificationColumns)
	createdAt := now()
	for i := range notifications {
		n := &notifications[i]
		n.ID = newRecordID()
		n.CreatedAt = createdAt
		b = b.Values(n.ID, n.UserEmail, n.Type, n.Title, n.Message, n.EventID, n.IsRead, n.CreatedAt)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("通知INSERTの生成に失敗しました: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("通知の一括作成に失敗しました: %w", err)
	}
	return nil
}

// PostgresNotificationPreferenceRepo はPostgreSQLを使用した通知設定リポジトリ。
type PostgresNotificationPreferenceRepo struct {
	db *sql.DB
}

// NewPostgresNotificationPreferenceRepo はPostgresNotificationPreferenceRepoを生成する。
func NewPostgresNotificationPreferenceRepo(db *sql.DB) *PostgresNotificationPreferenceRepo {
	return &PostgresNotificationPreferenceRepo{db: db}
}

// FindByUser はユーザーの通知設定を取得する。
func (r *PostgresNotificationPreferenceRepo) FindByUser(ctx context.Context, userEmail string) (*model.NotificationPreference, error) {
	p := &model.NotificationPreference{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_email, email_new_events, email_reminders, reminder_hours_before, updated_at
		 FROM notification_preferences WHERE user_email = $1`, userEmail,
	).Scan(&p.ID, &p.UserEmail, &p.EmailNewEvents, &p.EmailReminders, &p.ReminderHoursBefore, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("通知設定の取得に失敗しました: %w", err)
	}
	return p, nil
}

// Upsert はuser_emailをキーに通知設定を作成または更新する。
func (r *PostgresNotificationPreferenceRepo) Upsert(ctx context.Context, pref *model.NotificationPreference) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO notification_preferences (id, user_email, email_new_events, email_reminders, reminder_hours_before, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_email) DO UPDATE SET
			email_new_events = EXCLUDED.email_new_events,
			email_reminders = EXCLUDED.email_reminders,
			reminder_hours_before = EXCLUDED.reminder_hours_before,
			updated_at = EXCLUDED.updated_at
		 RETURNING id, updated_at`,
		newRecordID(), pref.UserEmail, pref.EmailNewEvents, pref.EmailReminders, pref.ReminderHoursBefore, now(),
	).Scan(&pref.ID, &pref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("通知設定の保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ NotificationRepository           = (*PostgresNotificationRepo)(nil)
	_ NotificationPreferenceRepository = (*PostgresNotificationPreferenceRepo)(nil)
)
