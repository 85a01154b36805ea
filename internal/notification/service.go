// Package notification は通知フィードと通知設定のドメインロジックを提供する。
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/repository"
)

// DefaultPageSize は通知フィードの1ページの件数。
const DefaultPageSize = 20

// defaultConcurrency は一括既読の同時実行数。
const defaultConcurrency = 8

// SubscriberLister はイベント購読者の取得に使う。
type SubscriberLister interface {
	ListSubscriberEmails(ctx context.Context, organizerEmail, category string) ([]string, error)
}

// Recorder は通知のメトリクス記録先。
type Recorder interface {
	RecordNotificationsCreated(count int)
	RecordNotificationsRead(count int)
	RecordPartialFailure(operation string)
}

// Service は通知フィードのサービス層。
type Service struct {
	repo        repository.NotificationRepository
	prefRepo    repository.NotificationPreferenceRepository
	subscribers SubscriberLister
	recorder    Recorder
	pageSize    int
	concurrency int
}

// NewService はServiceの新しいインスタンスを生成する。
// pageSize, concurrency が0以下の場合は既定値を使う。
func NewService(
	repo repository.NotificationRepository,
	prefRepo repository.NotificationPreferenceRepository,
	subscribers SubscriberLister,
	recorder Recorder,
	pageSize, concurrency int,
) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{
		repo:        repo,
		prefRepo:    prefRepo,
		subscribers: subscribers,
		recorder:    recorder,
		pageSize:    pageSize,
		concurrency: concurrency,
	}
}

// Load は閲覧者の通知を新しい順に1ページ分返す。
// UnreadCount は取得したページ内の未読件数であり、ページ外の未読は数えない。
func (s *Service) Load(ctx context.Context, viewer model.Viewer) (*model.NotificationPage, error) {
	notifications, err := s.repo.ListByUser(ctx, viewer.Email, repository.ListOptions{
		OrderBy: "-created_at",
		Limit:   s.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("通知の取得に失敗しました: %w", err)
	}

	page := &model.NotificationPage{Notifications: notifications}
	for _, n := range notifications {
		if !n.IsRead {
			page.UnreadCount++
		}
	}
	return page, nil
}

// MarkRead は閲覧者の通知を1件既読にし、ページを再取得して返す。
// 他のユーザーの通知は存在しないものとして扱う。
func (s *Service) MarkRead(ctx context.Context, viewer model.Viewer, notificationID string) (*model.NotificationPage, error) {
	n, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("通知の取得に失敗しました: %w", err)
	}
	if n == nil || !strings.EqualFold(n.UserEmail, viewer.Email) {
		return nil, model.NewNotificationNotFoundError(notificationID)
	}

	if !n.IsRead {
		if err := s.repo.MarkRead(ctx, notificationID); err != nil {
			return nil, fmt.Errorf("通知の既読化に失敗しました: %w", err)
		}
		s.recordRead(1)
	}
	return s.Load(ctx, viewer)
}

// MarkAllRead は現在のページの未読通知を並列に既読にし、全て終わってから再取得する。
// 一部が失敗した場合は再取得したページと、失敗した通知IDを列挙したPartialFailureを返す。
func (s *Service) MarkAllRead(ctx context.Context, viewer model.Viewer) (*model.NotificationPage, error) {
	page, err := s.Load(ctx, viewer)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		failed []string
	)
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	updated := 0
	for _, n := range page.Notifications {
		if n.IsRead {
			continue
		}
		id := n.ID
		g.Go(func() error {
			err := s.repo.MarkRead(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("通知の既読化に失敗しました",
					slog.String("notification_id", id),
					slog.String("error", err.Error()),
				)
				failed = append(failed, id)
				return nil
			}
			updated++
			return nil
		})
	}
	// 各処理は失敗をfailedに記録してnilを返すため、Waitは常にnil
	_ = g.Wait()
	s.recordRead(updated)

	reloaded, err := s.Load(ctx, viewer)
	if err != nil {
		return nil, err
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		slog.Warn("一括既読の一部が失敗しました",
			slog.String("user_email", viewer.Email),
			slog.Int("failed", len(failed)),
			slog.Int("updated", updated),
		)
		if s.recorder != nil {
			s.recorder.RecordPartialFailure("mark_all_read")
		}
		return reloaded, model.NewPartialFailureError(
			fmt.Sprintf("%d件の通知を既読にできませんでした。", len(failed)), failed)
	}
	return reloaded, nil
}

// GetPreferences は閲覧者の通知設定を返す。未設定の場合は既定値を返す。
func (s *Service) GetPreferences(ctx context.Context, viewer model.Viewer) (*model.NotificationPreference, error) {
	pref, err := s.prefRepo.FindByUser(ctx, viewer.Email)
	if err != nil {
		return nil, fmt.Errorf("通知設定の取得に失敗しました: %w", err)
	}
	if pref == nil {
		def := model.DefaultNotificationPreference(viewer.Email)
		return &def, nil
	}
	return pref, nil
}

// PreferenceInput は通知設定の更新値。nilのフィールドは現在値を維持する。
type PreferenceInput struct {
	EmailNewEvents      *bool
	EmailReminders      *bool
	ReminderHoursBefore *int
}

// SavePreferences は閲覧者の通知設定を保存する。
func (s *Service) SavePreferences(ctx context.Context, viewer model.Viewer, in PreferenceInput) (*model.NotificationPreference, error) {
	if in.ReminderHoursBefore != nil && !slices.Contains(model.ReminderHourOptions, *in.ReminderHoursBefore) {
		return nil, model.NewValidationError(fmt.Sprintf("リマインダーの時間は %v のいずれかを指定してください。", model.ReminderHourOptions))
	}

	pref, err := s.GetPreferences(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if in.EmailNewEvents != nil {
		pref.EmailNewEvents = *in.EmailNewEvents
	}
	if in.EmailReminders != nil {
		pref.EmailReminders = *in.EmailReminders
	}
	if in.ReminderHoursBefore != nil {
		pref.ReminderHoursBefore = *in.ReminderHoursBefore
	}

	if err := s.prefRepo.Upsert(ctx, pref); err != nil {
		return nil, fmt.Errorf("通知設定の保存に失敗しました: %w", err)
	}
	return pref, nil
}

// NotifyNewEvent は主催者のフォロワーとカテゴリ購読者に new_event 通知を作成し、作成件数を返す。
// 両方を購読しているユーザーにも1件だけ通知し、主催者本人には通知しない。
func (s *Service) NotifyNewEvent(ctx context.Context, event *model.Event) (int, error) {
	emails, err := s.subscribers.ListSubscriberEmails(ctx, event.CreatedBy, event.EventType)
	if err != nil {
		return 0, fmt.Errorf("購読者の取得に失敗しました: %w", err)
	}

	seen := make(map[string]struct{}, len(emails))
	notifications := make([]model.Notification, 0, len(emails))
	for _, email := range emails {
		key := strings.ToLower(email)
		if key == strings.ToLower(event.CreatedBy) {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		notifications = append(notifications, model.Notification{
			UserEmail: email,
			Type:      model.NotificationNewEvent,
			Title:     fmt.Sprintf("新しいイベント: %s", event.Title),
			Message:   newEventMessage(event),
			EventID:   event.ID,
		})
	}
	if len(notifications) == 0 {
		return 0, nil
	}

	if err := s.repo.CreateBatch(ctx, notifications); err != nil {
		return 0, fmt.Errorf("通知の作成に失敗しました: %w", err)
	}

	slog.Info("新着イベントの通知を作成しました",
		slog.String("event_id", event.ID),
		slog.Int("recipients", len(notifications)),
	)
	if s.recorder != nil {
		s.recorder.RecordNotificationsCreated(len(notifications))
	}
	return len(notifications), nil
}

func newEventMessage(event *model.Event) string {
	date := event.StartDate.Format("2006-01-02")
	if event.Address.City != "" {
		return fmt.Sprintf("%s に %s で開催されます。", date, event.Address.City)
	}
	return fmt.Sprintf("%s に開催されます。", date)
}

func (s *Service) recordRead(n int) {
	if s.recorder != nil && n > 0 {
		s.recorder.RecordNotificationsRead(n)
	}
}
