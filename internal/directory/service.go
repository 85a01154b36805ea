// Package directory は店舗・イベント・レビュー・特典・フィードとそのコメント・主催者プロフィールと
// 管理者による承認のドメインロジックを提供する。
package directory

import (
	"context"
	"time"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/moderation"
	"github.com/hitoshi/sundays/internal/repository"
)

// FeedSize はホームフィードに表示するアクティビティの件数。
const FeedSize = 20

// FollowInfo は主催者のフォロー情報を返す。
type FollowInfo interface {
	FollowStatus(ctx context.Context, viewer model.Viewer, organizerEmail string) (bool, error)
	FollowerCount(ctx context.Context, organizerEmail string) (int, error)
}

// EventNotifier は承認されたイベントを購読者に通知する。
type EventNotifier interface {
	NotifyNewEvent(ctx context.Context, event *model.Event) (int, error)
}

// PhotoVerifier はレビュー写真のURLを検証する。
type PhotoVerifier interface {
	VerifyPhotos(ctx context.Context, urls []string) ([]string, error)
}

// TextSanitizer はユーザー入力からマークアップを除去する。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// UserStore は主催者プロフィールとロール変更に使うユーザー操作。
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateRole(ctx context.Context, id, role string) (*model.User, error)
}

// Recorder は部分失敗のメトリクス記録先。
type Recorder interface {
	RecordPartialFailure(operation string)
}

// Deps はServiceの依存関係。
type Deps struct {
	Locations  repository.LocationRepository
	Events     repository.EventRepository
	Reviews    repository.ReviewRepository
	Activities repository.ActivityRepository
	Deals      repository.DealRepository
	Claims     repository.LocationClaimRepository
	Comments   repository.CommentRepository
	Users      UserStore
	Hidden     moderation.HiddenSetSource
	Follows    FollowInfo
	Notifier   EventNotifier
	Photos     PhotoVerifier
	Sanitizer  TextSanitizer
	Recorder   Recorder
}

// Service はディレクトリのサービス層。
type Service struct {
	locations  repository.LocationRepository
	events     repository.EventRepository
	reviews    repository.ReviewRepository
	activities repository.ActivityRepository
	deals      repository.DealRepository
	claims     repository.LocationClaimRepository
	comments   repository.CommentRepository
	users      UserStore
	hidden     moderation.HiddenSetSource
	follows    FollowInfo
	notifier   EventNotifier
	photos     PhotoVerifier
	sanitizer  TextSanitizer
	recorder   Recorder
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(d Deps) *Service {
	return &Service{
		locations:  d.Locations,
		events:     d.Events,
		reviews:    d.Reviews,
		activities: d.Activities,
		deals:      d.Deals,
		claims:     d.Claims,
		comments:   d.Comments,
		users:      d.Users,
		hidden:     d.Hidden,
		follows:    d.Follows,
		notifier:   d.Notifier,
		photos:     d.Photos,
		sanitizer:  d.Sanitizer,
		recorder:   d.Recorder,
		now:        time.Now,
	}
}

func (s *Service) clean(raw string) string {
	return s.sanitizer.SanitizeText(raw)
}

func (s *Service) cleanAddress(a model.Address) model.Address {
	return model.Address{
		Street: s.clean(a.Street),
		City:   s.clean(a.City),
		State:  s.clean(a.State),
		Zip:    s.clean(a.Zip),
	}
}

func (s *Service) recordPartialFailure(op string) {
	if s.recorder != nil {
		s.recorder.RecordPartialFailure(op)
	}
}

func boolPtr(b bool) *bool { return &b }
