package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/moderation"
	"github.com/hitoshi/sundays/internal/repository"
)

// Feed はホームフィードの最新アクティビティを返す。閲覧者が非表示にしたアクティビティは除く。
func (s *Service) Feed(ctx context.Context, viewer model.Viewer) ([]model.FeedActivity, error) {
	activities, err := s.activities.List(ctx, repository.ListOptions{OrderBy: "-created_at", Limit: FeedSize})
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	visible, err := moderation.VisibleTo(ctx, s.hidden, viewer, activities)
	if err != nil {
		return nil, fmt.Errorf("非表示設定の取得に失敗しました: %w", err)
	}
	return visible, nil
}

// OrganizerProfile は主催者の公開プロフィールを返す。
// イベントは承認済みのもののみで、閲覧者が非表示にしたものは除く。
func (s *Service) OrganizerProfile(ctx context.Context, viewer model.Viewer, organizerEmail string) (*model.OrganizerProfile, error) {
	organizerEmail = strings.ToLower(strings.TrimSpace(organizerEmail))
	organizer, err := s.users.FindByEmail(ctx, organizerEmail)
	if err != nil {
		return nil, fmt.Errorf("主催者の取得に失敗しました: %w", err)
	}
	if organizer == nil {
		return nil, model.NewNotFoundError(model.ErrCodeOrganizerNotFound, "主催者", organizerEmail)
	}

	events, err := s.events.List(ctx, repository.EventFilter{
		CreatedBy: organizerEmail,
		Approved:  boolPtr(true),
	}, repository.ListOptions{OrderBy: "-start_date"})
	if err != nil {
		return nil, fmt.Errorf("主催者のイベント取得に失敗しました: %w", err)
	}
	events, err = moderation.VisibleTo(ctx, s.hidden, viewer, events)
	if err != nil {
		return nil, fmt.Errorf("非表示設定の取得に失敗しました: %w", err)
	}

	count, err := s.follows.FollowerCount(ctx, organizerEmail)
	if err != nil {
		return nil, err
	}
	following, err := s.follows.FollowStatus(ctx, viewer, organizerEmail)
	if err != nil {
		return nil, err
	}

	return &model.OrganizerProfile{
		Organizer:     *organizer,
		Events:        events,
		FollowerCount: count,
		IsFollowing:   following,
	}, nil
}
