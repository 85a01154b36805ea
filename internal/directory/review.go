package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/moderation"
	"github.com/hitoshi/sundays/internal/repository"
)

// ReviewInput はレビュー投稿の入力値。
type ReviewInput struct {
	Rating  int
	Comment string
	Photos  []string
}

// CreateReview はレビューを投稿する。レビュー作成、店舗の評価集計の更新、
// new_review アクティビティの作成は1トランザクションで行い、更新後の店舗を返す。
func (s *Service) CreateReview(ctx context.Context, viewer model.Viewer, locationID string, in ReviewInput) (*model.Review, *model.Location, error) {
	if viewer.IsAnonymous() {
		return nil, nil, model.NewUserNotFoundError()
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, nil, model.NewValidationError("評価は1から5の間で指定してください。")
	}
	comment := s.clean(in.Comment)
	if comment == "" {
		return nil, nil, model.NewValidationError("レビュー本文を入力してください。")
	}

	target, err := s.locations.FindByID(ctx, locationID)
	if err != nil {
		return nil, nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if target == nil || !target.IsApproved {
		return nil, nil, model.NewLocationNotFoundError(locationID)
	}

	photos, err := s.photos.VerifyPhotos(ctx, in.Photos)
	if err != nil {
		return nil, nil, err
	}

	review := &model.Review{
		LocationID: locationID,
		Rating:     in.Rating,
		Comment:    comment,
		Photos:     photos,
		UserName:   viewer.Name,
		UserEmail:  viewer.Email,
	}
	activity := &model.FeedActivity{
		ActivityType: model.ActivityNewReview,
		Title:        fmt.Sprintf("%s へのレビュー", target.Name),
		Description:  comment,
		UserName:     viewer.Name,
		UserEmail:    viewer.Email,
	}

	loc, err := s.reviews.CreateWithAggregate(ctx, review, activity)
	if err != nil {
		return nil, nil, fmt.Errorf("レビューの投稿に失敗しました: %w", err)
	}
	if loc == nil {
		return nil, nil, model.NewLocationNotFoundError(locationID)
	}

	slog.Info("レビューを投稿しました",
		slog.String("review_id", review.ID),
		slog.String("location_id", locationID),
		slog.Int("rating", review.Rating),
		slog.Float64("average_rating", loc.AverageRating),
	)
	return review, loc, nil
}

// ListReviews は店舗のレビューを新しい順に返す。閲覧者が非表示にしたレビューは除く。
func (s *Service) ListReviews(ctx context.Context, viewer model.Viewer, locationID string) ([]model.Review, error) {
	if _, err := s.GetLocation(ctx, viewer, locationID); err != nil {
		return nil, err
	}
	reviews, err := s.reviews.ListByLocation(ctx, locationID, repository.ListOptions{OrderBy: "-created_at"})
	if err != nil {
		return nil, fmt.Errorf("レビュー一覧の取得に失敗しました: %w", err)
	}
	visible, err := moderation.VisibleTo(ctx, s.hidden, viewer, reviews)
	if err != nil {
		return nil, fmt.Errorf("非表示設定の取得に失敗しました: %w", err)
	}
	return visible, nil
}
