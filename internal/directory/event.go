package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/moderation"
	"github.com/hitoshi/sundays/internal/repository"
)

// EventInput はイベント登録の入力値。
type EventInput struct {
	Title       string
	EventType   string
	Description string
	Address     model.Address
	StartDate   time.Time
	EndDate     time.Time
	Image       string
}

// CreateEvent はイベントを承認待ちで登録し、同じトランザクションで new_event アクティビティを作成する。
// 登録者がイベントの主催者になる。購読者への通知は承認時に行う。
func (s *Service) CreateEvent(ctx context.Context, viewer model.Viewer, in EventInput) (*model.Event, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	title := s.clean(in.Title)
	if title == "" {
		return nil, model.NewValidationError("イベント名を入力してください。")
	}
	if !model.IsEventCategory(in.EventType) {
		return nil, model.NewValidationError(fmt.Sprintf("不明なイベントカテゴリです: %s", in.EventType))
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, model.NewValidationError("開始日時と終了日時を入力してください。")
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, model.NewValidationError("終了日時は開始日時より後にしてください。")
	}

	var image string
	if strings.TrimSpace(in.Image) != "" {
		verified, err := s.photos.VerifyPhotos(ctx, []string{in.Image})
		if err != nil {
			return nil, err
		}
		image = verified[0]
	}

	event := &model.Event{
		Title:       title,
		EventType:   in.EventType,
		Description: s.clean(in.Description),
		Address:     s.cleanAddress(in.Address),
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		Image:       image,
		CreatedBy:   viewer.Email,
	}
	activity := &model.FeedActivity{
		ActivityType: model.ActivityNewEvent,
		Title:        fmt.Sprintf("新しいイベント: %s", title),
		Description:  event.StartDate.Format("2006-01-02"),
		UserName:     viewer.Name,
		UserEmail:    viewer.Email,
	}
	if err := s.events.CreateWithActivity(ctx, event, activity); err != nil {
		return nil, fmt.Errorf("イベントの登録に失敗しました: %w", err)
	}

	slog.Info("イベントを登録しました",
		slog.String("event_id", event.ID),
		slog.String("created_by", viewer.Email),
	)
	return event, nil
}

// ListUpcomingEvents は終了していない承認済みイベントを開始日時の昇順で返す。
// 閲覧者が非表示にしたイベントは除く。
func (s *Service) ListUpcomingEvents(ctx context.Context, viewer model.Viewer, eventType string) ([]model.Event, error) {
	if eventType != "" && !model.IsEventCategory(eventType) {
		return nil, model.NewValidationError(fmt.Sprintf("不明なイベントカテゴリです: %s", eventType))
	}
	now := s.now().UTC()
	events, err := s.events.List(ctx, repository.EventFilter{
		EventType: eventType,
		Approved:  boolPtr(true),
		EndsAfter: &now,
	}, repository.ListOptions{OrderBy: "start_date"})
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}

	visible, err := moderation.VisibleTo(ctx, s.hidden, viewer, events)
	if err != nil {
		return nil, fmt.Errorf("非表示設定の取得に失敗しました: %w", err)
	}
	return visible, nil
}
