package directory

import (
	"context"
	"fmt"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/repository"
)

// MyReviews は閲覧者が投稿したレビューを新しい順に返す。
func (s *Service) MyReviews(ctx context.Context, viewer model.Viewer) ([]model.Review, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	reviews, err := s.reviews.ListByUser(ctx, viewer.Email, repository.ListOptions{OrderBy: "-created_at"})
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}
	return reviews, nil
}

// MySubmissions は閲覧者が登録した店舗とイベントを承認待ちのものも含めて新しい順に返す。
func (s *Service) MySubmissions(ctx context.Context, viewer model.Viewer) (*model.Submissions, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	opts := repository.ListOptions{OrderBy: "-created_at"}
	locations, err := s.locations.List(ctx, repository.LocationFilter{CreatedBy: viewer.Email}, opts)
	if err != nil {
		return nil, fmt.Errorf("登録店舗の取得に失敗しました: %w", err)
	}
	events, err := s.events.List(ctx, repository.EventFilter{CreatedBy: viewer.Email}, opts)
	if err != nil {
		return nil, fmt.Errorf("登録イベントの取得に失敗しました: %w", err)
	}
	return &model.Submissions{Locations: locations, Events: events}, nil
}
