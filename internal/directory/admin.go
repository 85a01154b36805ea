package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/repository"
)

// PendingContent は承認待ちの店舗とイベント。
type PendingContent struct {
	Locations []model.Location
	Events    []model.Event
}

// ListPending は承認待ちの店舗とイベントを古い順に返す。
func (s *Service) ListPending(ctx context.Context, viewer model.Viewer) (*PendingContent, error) {
	if !viewer.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	opts := repository.ListOptions{OrderBy: "created_at"}
	locations, err := s.locations.List(ctx, repository.LocationFilter{Approved: boolPtr(false)}, opts)
	if err != nil {
		return nil, fmt.Errorf("承認待ち店舗の取得に失敗しました: %w", err)
	}
	events, err := s.events.List(ctx, repository.EventFilter{Approved: boolPtr(false)}, opts)
	if err != nil {
		return nil, fmt.Errorf("承認待ちイベントの取得に失敗しました: %w", err)
	}
	return &PendingContent{Locations: locations, Events: events}, nil
}

// Approve は店舗またはイベントを承認する。
// イベントの場合は承認後に購読者へ new_event 通知を作成する。
// 承認は成功し通知の作成に失敗した場合はPartialFailureを返す。
func (s *Service) Approve(ctx context.Context, viewer model.Viewer, contentType model.ContentType, id string) error {
	if !viewer.IsAdmin() {
		return model.NewForbiddenError()
	}

	switch contentType {
	case model.ContentLocation:
		ok, err := s.locations.SetApproved(ctx, id, true)
		if err != nil {
			return fmt.Errorf("店舗の承認に失敗しました: %w", err)
		}
		if !ok {
			return model.NewLocationNotFoundError(id)
		}
		slog.Info("店舗を承認しました", slog.String("location_id", id), slog.String("admin_email", viewer.Email))
		return nil

	case model.ContentEvent:
		event, err := s.events.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("イベントの取得に失敗しました: %w", err)
		}
		if event == nil {
			return model.NewEventNotFoundError(id)
		}
		if event.IsApproved {
			return nil
		}
		ok, err := s.events.SetApproved(ctx, id, true)
		if err != nil {
			return fmt.Errorf("イベントの承認に失敗しました: %w", err)
		}
		if !ok {
			return model.NewEventNotFoundError(id)
		}
		event.IsApproved = true

		n, err := s.notifier.NotifyNewEvent(ctx, event)
		if err != nil {
			slog.Error("イベントは承認されましたが通知の作成に失敗しました",
				slog.String("event_id", id),
				slog.String("error", err.Error()),
			)
			s.recordPartialFailure("approve_event")
			return model.NewPartialFailureError("イベントは承認されましたが、購読者への通知に失敗しました。",
				[]string{"notify_subscribers"})
		}
		slog.Info("イベントを承認しました",
			slog.String("event_id", id),
			slog.String("admin_email", viewer.Email),
			slog.Int("notified", n),
		)
		return nil
	}
	return model.NewValidationError(fmt.Sprintf("承認できないコンテンツ種別です: %s", contentType))
}

// SetFeatured は店舗のおすすめ表示を切り替える。
func (s *Service) SetFeatured(ctx context.Context, viewer model.Viewer, locationID string, featured bool) error {
	if !viewer.IsAdmin() {
		return model.NewForbiddenError()
	}
	ok, err := s.locations.SetFeatured(ctx, locationID, featured)
	if err != nil {
		return fmt.Errorf("おすすめ表示の更新に失敗しました: %w", err)
	}
	if !ok {
		return model.NewLocationNotFoundError(locationID)
	}
	return nil
}

// DeleteContent は店舗・イベント・レビュー・アクティビティ・特典を削除する。
// レビューを削除した場合は店舗の評価集計から差し引かれる。
func (s *Service) DeleteContent(ctx context.Context, viewer model.Viewer, contentType model.ContentType, id string) error {
	if !viewer.IsAdmin() {
		return model.NewForbiddenError()
	}

	var (
		ok       bool
		err      error
		notFound *model.APIError
	)
	switch contentType {
	case model.ContentLocation:
		ok, err = s.locations.DeleteByID(ctx, id)
		notFound = model.NewLocationNotFoundError(id)
	case model.ContentEvent:
		ok, err = s.events.DeleteByID(ctx, id)
		notFound = model.NewEventNotFoundError(id)
	case model.ContentReview:
		ok, err = s.reviews.DeleteByID(ctx, id)
		notFound = model.NewNotFoundError(model.ErrCodeReviewNotFound, "レビュー", id)
	case model.ContentActivity:
		ok, err = s.activities.DeleteByID(ctx, id)
		notFound = model.NewNotFoundError(model.ErrCodeActivityNotFound, "アクティビティ", id)
	case model.ContentDeal:
		ok, err = s.deals.DeleteByID(ctx, id)
		notFound = model.NewNotFoundError(model.ErrCodeDealNotFound, "特典", id)
	default:
		return model.NewValidationError(fmt.Sprintf("削除できないコンテンツ種別です: %s", contentType))
	}
	if err != nil {
		return fmt.Errorf("コンテンツの削除に失敗しました: %w", err)
	}
	if !ok {
		return notFound
	}

	slog.Info("コンテンツを削除しました",
		slog.String("content_type", string(contentType)),
		slog.String("content_id", id),
		slog.String("admin_email", viewer.Email),
	)
	return nil
}

// UpdateUserRole はユーザーのロールを変更する。管理者は自分自身のロールを変更できない。
func (s *Service) UpdateUserRole(ctx context.Context, viewer model.Viewer, userID, role string) (*model.User, error) {
	if !viewer.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, model.NewValidationError(fmt.Sprintf("不正なロールです: %s", role))
	}
	if userID == viewer.UserID {
		return nil, model.NewInvalidOperationError("自分自身のロールは変更できません。")
	}

	user, err := s.users.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("ロールの更新に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError(model.ErrCodeUserNotFound, "ユーザー", userID)
	}
	slog.Info("ユーザーのロールを変更しました",
		slog.String("user_id", userID),
		slog.String("role", role),
		slog.String("admin_email", viewer.Email),
	)
	return user, nil
}
