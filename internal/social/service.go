// Package social はお気に入り・イベント保存・主催者フォロー・イベント購読のドメインロジックを提供する。
package social

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/repository"
)

// トグル対象の関係名。メトリクスのラベルに使う。
const (
	RelationFavorite = "favorite"
	RelationSave     = "save"
	RelationFollow   = "follow"
)

// LocationFinder は店舗の存在確認に使う。
type LocationFinder interface {
	FindByID(ctx context.Context, id string) (*model.Location, error)
}

// EventFinder はイベントの存在確認に使う。
type EventFinder interface {
	FindByID(ctx context.Context, id string) (*model.Event, error)
}

// UserFinder はフォロー対象の主催者の存在確認に使う。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// Recorder はトグル操作のメトリクス記録先。
type Recorder interface {
	RecordToggle(relation string, present bool)
}

// Service はソーシャルグラフのサービス層。
// 全ての操作は閲覧者を明示的に受け取り、閲覧者自身の関係のみを変更する。
type Service struct {
	favoriteRepo repository.FavoriteRepository
	savedRepo    repository.SavedEventRepository
	followRepo   repository.FollowRepository
	subRepo      repository.EventSubscriptionRepository
	locations    LocationFinder
	events       EventFinder
	users        UserFinder
	recorder     Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	favoriteRepo repository.FavoriteRepository,
	savedRepo repository.SavedEventRepository,
	followRepo repository.FollowRepository,
	subRepo repository.EventSubscriptionRepository,
	locations LocationFinder,
	events EventFinder,
	users UserFinder,
	recorder Recorder,
) *Service {
	return &Service{
		favoriteRepo: favoriteRepo,
		savedRepo:    savedRepo,
		followRepo:   followRepo,
		subRepo:      subRepo,
		locations:    locations,
		events:       events,
		users:        users,
		recorder:     recorder,
	}
}

// ToggleFavorite はお気に入りを反転し、反転後にお気に入り済みかどうかを返す。
func (s *Service) ToggleFavorite(ctx context.Context, viewer model.Viewer, locationID string) (bool, error) {
	if err := s.requireLocation(ctx, viewer, locationID); err != nil {
		return false, err
	}
	on, err := s.favoriteRepo.Toggle(ctx, viewer.Email, locationID)
	if err != nil {
		return false, fmt.Errorf("お気に入りの切り替えに失敗しました: %w", err)
	}
	s.recordToggle(RelationFavorite, on)
	return on, nil
}

// SetFavorite はお気に入りを指定した状態にする。同じ状態を何度指定しても結果は変わらない。
func (s *Service) SetFavorite(ctx context.Context, viewer model.Viewer, locationID string, on bool) error {
	if err := s.requireLocation(ctx, viewer, locationID); err != nil {
		return err
	}
	if err := s.favoriteRepo.Set(ctx, viewer.Email, locationID, on); err != nil {
		return fmt.Errorf("お気に入りの更新に失敗しました: %w", err)
	}
	return nil
}

// ListFavorites は閲覧者のお気に入りを返す。
func (s *Service) ListFavorites(ctx context.Context, viewer model.Viewer) ([]model.Favorite, error) {
	favorites, err := s.favoriteRepo.ListByUser(ctx, viewer.Email)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	return favorites, nil
}

// ToggleSave はイベントの保存を反転し、反転後に保存済みかどうかを返す。
// 主催者フォローとは独立している。
func (s *Service) ToggleSave(ctx context.Context, viewer model.Viewer, eventID string) (bool, error) {
	if err := s.requireEvent(ctx, viewer, eventID); err != nil {
		return false, err
	}
	on, err := s.savedRepo.Toggle(ctx, viewer.Email, eventID)
	if err != nil {
		return false, fmt.Errorf("イベント保存の切り替えに失敗しました: %w", err)
	}
	s.recordToggle(RelationSave, on)
	return on, nil
}

// SetSaved はイベントの保存を指定した状態にする。
func (s *Service) SetSaved(ctx context.Context, viewer model.Viewer, eventID string, on bool) error {
	if err := s.requireEvent(ctx, viewer, eventID); err != nil {
		return err
	}
	if err := s.savedRepo.Set(ctx, viewer.Email, eventID, on); err != nil {
		return fmt.Errorf("イベント保存の更新に失敗しました: %w", err)
	}
	return nil
}

// ListSavedEvents は閲覧者の保存イベントを返す。
func (s *Service) ListSavedEvents(ctx context.Context, viewer model.Viewer) ([]model.SavedEvent, error) {
	saved, err := s.savedRepo.ListByUser(ctx, viewer.Email)
	if err != nil {
		return nil, fmt.Errorf("保存イベント一覧の取得に失敗しました: %w", err)
	}
	return saved, nil
}

// ToggleFollow は主催者のフォローを反転する。
// 自分自身はフォローできず、その場合は何も書き込まずにInvalidOperationErrorを返す。
// 存在しない主催者は新たにフォローできないが、既存のフォローの解除は受け付ける。
// フォローと organizer 種別の購読は常に揃って作成・削除される。
func (s *Service) ToggleFollow(ctx context.Context, viewer model.Viewer, organizerEmail string) (*model.FollowResult, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	organizerEmail = normalizeEmail(organizerEmail)
	if organizerEmail == "" {
		return nil, model.NewValidationError("フォローする主催者を指定してください。")
	}
	if organizerEmail == normalizeEmail(viewer.Email) {
		return nil, model.NewInvalidOperationError("自分自身はフォローできません。")
	}
	if err := s.requireOrganizer(ctx, viewer, organizerEmail); err != nil {
		return nil, err
	}

	result, err := s.followRepo.Toggle(ctx, viewer.Email, organizerEmail)
	if err != nil {
		return nil, fmt.Errorf("フォローの切り替えに失敗しました: %w", err)
	}

	slog.Info("フォロー状態を変更しました",
		slog.String("follower_email", viewer.Email),
		slog.String("organizer_email", organizerEmail),
		slog.Bool("following", result.Following),
	)
	s.recordToggle(RelationFollow, result.Following)
	return result, nil
}

// FollowStatus は閲覧者が主催者をフォローしているかどうかを返す。匿名の場合は false。
func (s *Service) FollowStatus(ctx context.Context, viewer model.Viewer, organizerEmail string) (bool, error) {
	if viewer.IsAnonymous() {
		return false, nil
	}
	following, err := s.followRepo.IsFollowing(ctx, viewer.Email, normalizeEmail(organizerEmail))
	if err != nil {
		return false, fmt.Errorf("フォロー状態の取得に失敗しました: %w", err)
	}
	return following, nil
}

// FollowerCount は主催者のフォロワー数を返す。
func (s *Service) FollowerCount(ctx context.Context, organizerEmail string) (int, error) {
	n, err := s.followRepo.CountFollowers(ctx, normalizeEmail(organizerEmail))
	if err != nil {
		return 0, fmt.Errorf("フォロワー数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// SubscribeToCategory はカテゴリのイベント通知を購読する。既に購読済みの場合は既存の購読を返す。
func (s *Service) SubscribeToCategory(ctx context.Context, viewer model.Viewer, category string) (*model.EventSubscription, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	category = strings.TrimSpace(category)
	if !model.IsEventCategory(category) {
		return nil, model.NewValidationError(fmt.Sprintf("不明なカテゴリです: %s", category))
	}

	sub, err := s.subRepo.SubscribeCategory(ctx, viewer.Email, category)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ購読の作成に失敗しました: %w", err)
	}
	return sub, nil
}

// Unsubscribe は購読をIDで削除する。他のユーザーの購読は存在しないものとして扱う。
// organizer 種別の場合はフォローも同時に解除し、フォローと購読の対応を保つ。
func (s *Service) Unsubscribe(ctx context.Context, viewer model.Viewer, subscriptionID string) error {
	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("購読の取得に失敗しました: %w", err)
	}
	if sub == nil || !strings.EqualFold(sub.UserEmail, viewer.Email) {
		return model.NewNotFoundError(model.ErrCodeSubscriptionNotFound, "購読", subscriptionID)
	}

	if sub.SubscriptionType == model.SubscriptionOrganizer {
		if err := s.followRepo.Unfollow(ctx, viewer.Email, sub.OrganizerEmail); err != nil {
			return fmt.Errorf("フォローの解除に失敗しました: %w", err)
		}
		s.recordToggle(RelationFollow, false)
		return nil
	}

	if err := s.subRepo.DeleteByID(ctx, subscriptionID); err != nil {
		return fmt.Errorf("購読の削除に失敗しました: %w", err)
	}
	return nil
}

// ListSubscriptions は閲覧者の購読一覧を返す。
func (s *Service) ListSubscriptions(ctx context.Context, viewer model.Viewer) ([]model.EventSubscription, error) {
	subs, err := s.subRepo.ListByUser(ctx, viewer.Email)
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}
	return subs, nil
}

func (s *Service) requireLocation(ctx context.Context, viewer model.Viewer, locationID string) error {
	if viewer.IsAnonymous() {
		return model.NewUserNotFoundError()
	}
	if s.locations == nil {
		return nil
	}
	loc, err := s.locations.FindByID(ctx, locationID)
	if err != nil {
		return fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if loc == nil {
		return model.NewLocationNotFoundError(locationID)
	}
	return nil
}

func (s *Service) requireEvent(ctx context.Context, viewer model.Viewer, eventID string) error {
	if viewer.IsAnonymous() {
		return model.NewUserNotFoundError()
	}
	if s.events == nil {
		return nil
	}
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("イベントの取得に失敗しました: %w", err)
	}
	if event == nil {
		return model.NewEventNotFoundError(eventID)
	}
	return nil
}

// requireOrganizer は主催者がユーザーとして存在することを確認する。
// 退会済みの主催者でもフォロー中であれば解除のために通す。
func (s *Service) requireOrganizer(ctx context.Context, viewer model.Viewer, organizerEmail string) error {
	if s.users == nil {
		return nil
	}
	organizer, err := s.users.FindByEmail(ctx, organizerEmail)
	if err != nil {
		return fmt.Errorf("主催者の取得に失敗しました: %w", err)
	}
	if organizer != nil {
		return nil
	}
	following, err := s.followRepo.IsFollowing(ctx, viewer.Email, organizerEmail)
	if err != nil {
		return fmt.Errorf("フォロー状態の取得に失敗しました: %w", err)
	}
	if !following {
		return model.NewNotFoundError(model.ErrCodeOrganizerNotFound, "主催者", organizerEmail)
	}
	return nil
}

func (s *Service) recordToggle(relation string, present bool) {
	if s.recorder != nil {
		s.recorder.RecordToggle(relation, present)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
