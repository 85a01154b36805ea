package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/moderation"
)

// DealInput は特典掲載の入力値。
type DealInput struct {
	Title       string
	Description string
	ValidUntil  *time.Time
}

// AssignLocationOwner はユーザーを店舗のオーナーとして登録する。管理者のみ実行できる。
// オーナーになったユーザーはその店舗の特典を掲載できる。
func (s *Service) AssignLocationOwner(ctx context.Context, viewer model.Viewer, locationID, userEmail string) (*model.LocationClaim, error) {
	if !viewer.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	userEmail = strings.ToLower(strings.TrimSpace(userEmail))
	if userEmail == "" {
		return nil, model.NewValidationError("オーナーのメールアドレスを入力してください。")
	}

	loc, err := s.locations.FindByID(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if loc == nil {
		return nil, model.NewLocationNotFoundError(locationID)
	}
	owner, err := s.users.FindByEmail(ctx, userEmail)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if owner == nil {
		return nil, model.NewNotFoundError(model.ErrCodeUserNotFound, "ユーザー", userEmail)
	}

	claim := &model.LocationClaim{LocationID: loc.ID, UserEmail: owner.Email}
	if err := s.claims.Assign(ctx, claim); err != nil {
		return nil, fmt.Errorf("店舗オーナーの登録に失敗しました: %w", err)
	}
	slog.Info("店舗オーナーを登録しました",
		slog.String("location_id", loc.ID),
		slog.String("owner_email", owner.Email),
		slog.String("admin_email", viewer.Email),
	)
	return claim, nil
}

// PostDeal は店舗の特典を掲載し、同じトランザクションで deal_posted アクティビティを作成する。
// 掲載できるのはその店舗のオーナーと管理者のみ。
func (s *Service) PostDeal(ctx context.Context, viewer model.Viewer, locationID string, in DealInput) (*model.Deal, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	title := s.clean(in.Title)
	if title == "" {
		return nil, model.NewValidationError("特典のタイトルを入力してください。")
	}
	if in.ValidUntil != nil && in.ValidUntil.Before(s.now()) {
		return nil, model.NewValidationError("有効期限には未来の日時を指定してください。")
	}

	loc, err := s.locations.FindByID(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if loc == nil {
		return nil, model.NewLocationNotFoundError(locationID)
	}
	if !viewer.IsAdmin() {
		claim, err := s.claims.FindByUser(ctx, viewer.Email)
		if err != nil {
			return nil, fmt.Errorf("店舗オーナー設定の取得に失敗しました: %w", err)
		}
		if claim == nil || claim.LocationID != loc.ID {
			return nil, model.NewForbiddenError()
		}
	}

	deal := &model.Deal{
		LocationID:  loc.ID,
		Title:       title,
		Description: s.clean(in.Description),
		ValidUntil:  in.ValidUntil,
		IsActive:    true,
		CreatedBy:   viewer.Email,
	}
	activity := &model.FeedActivity{
		ActivityType: model.ActivityDealPosted,
		Title:        fmt.Sprintf("%s の新しい特典: %s", loc.Name, title),
		Description:  deal.Description,
		UserName:     viewer.Name,
		UserEmail:    viewer.Email,
	}
	if err := s.deals.CreateWithActivity(ctx, deal, activity); err != nil {
		return nil, fmt.Errorf("特典の掲載に失敗しました: %w", err)
	}

	slog.Info("特典を掲載しました",
		slog.String("deal_id", deal.ID),
		slog.String("location_id", loc.ID),
		slog.String("created_by", viewer.Email),
	)
	return deal, nil
}

// ListDeals は店舗の現在有効な特典を新しい順に返す。閲覧者が非表示にした特典は除く。
func (s *Service) ListDeals(ctx context.Context, viewer model.Viewer, locationID string) ([]model.Deal, error) {
	if _, err := s.GetLocation(ctx, viewer, locationID); err != nil {
		return nil, err
	}
	deals, err := s.deals.ListAvailable(ctx, locationID, s.now())
	if err != nil {
		return nil, fmt.Errorf("特典一覧の取得に失敗しました: %w", err)
	}
	visible, err := moderation.VisibleTo(ctx, s.hidden, viewer, deals)
	if err != nil {
		return nil, fmt.Errorf("非表示設定の取得に失敗しました: %w", err)
	}
	return visible, nil
}
