package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/repository"
)

// CommentPageSize はアクティビティごとに返すコメントの上限。
const CommentPageSize = 50

func (s *Service) findActivity(ctx context.Context, id string) (*model.FeedActivity, error) {
	activity, err := s.activities.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("アクティビティの取得に失敗しました: %w", err)
	}
	if activity == nil {
		return nil, model.NewNotFoundError(model.ErrCodeActivityNotFound, "アクティビティ", id)
	}
	return activity, nil
}

// AddComment はフィードアクティビティにコメントを追加する。
func (s *Service) AddComment(ctx context.Context, viewer model.Viewer, activityID, content string) (*model.Comment, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	content = s.clean(content)
	if content == "" {
		return nil, model.NewValidationError("コメントを入力してください。")
	}
	if _, err := s.findActivity(ctx, activityID); err != nil {
		return nil, err
	}

	comment := &model.Comment{
		ActivityID: activityID,
		Content:    content,
		UserName:   viewer.Name,
		UserEmail:  viewer.Email,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("コメントの投稿に失敗しました: %w", err)
	}
	slog.Debug("コメントを投稿しました",
		slog.String("comment_id", comment.ID),
		slog.String("activity_id", activityID),
	)
	return comment, nil
}

// ListComments はアクティビティのコメントを新しい順に返す。
func (s *Service) ListComments(ctx context.Context, activityID string) ([]model.Comment, error) {
	if _, err := s.findActivity(ctx, activityID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByActivity(ctx, activityID, repository.ListOptions{OrderBy: "-created_at", Limit: CommentPageSize})
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	return comments, nil
}
