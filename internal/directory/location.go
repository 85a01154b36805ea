package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/moderation"
	"github.com/hitoshi/sundays/internal/repository"
)

// LocationInput は店舗登録の入力値。
type LocationInput struct {
	Name      string
	Category  string
	Bio       string
	Address   model.Address
	Phone     string
	Email     string
	Website   string
	Hours     map[string]string
	MainImage string
}

// CreateLocation は店舗を承認待ちで登録し、同じトランザクションで new_location アクティビティを作成する。
func (s *Service) CreateLocation(ctx context.Context, viewer model.Viewer, in LocationInput) (*model.Location, error) {
	if viewer.IsAnonymous() {
		return nil, model.NewUserNotFoundError()
	}
	name := s.clean(in.Name)
	if name == "" {
		return nil, model.NewValidationError("店舗名を入力してください。")
	}
	if !model.IsLocationCategory(in.Category) {
		return nil, model.NewValidationError(fmt.Sprintf("不明な店舗カテゴリです: %s", in.Category))
	}

	var mainImage string
	if strings.TrimSpace(in.MainImage) != "" {
		verified, err := s.photos.VerifyPhotos(ctx, []string{in.MainImage})
		if err != nil {
			return nil, err
		}
		mainImage = verified[0]
	}

	hours := make(map[string]string, len(in.Hours))
	for day, h := range in.Hours {
		hours[strings.ToLower(strings.TrimSpace(day))] = s.clean(h)
	}

	loc := &model.Location{
		Name:      name,
		Category:  in.Category,
		Bio:       s.clean(in.Bio),
		Address:   s.cleanAddress(in.Address),
		Phone:     s.clean(in.Phone),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Website:   strings.TrimSpace(in.Website),
		Hours:     hours,
		MainImage: mainImage,
		CreatedBy: viewer.Email,
	}
	activity := &model.FeedActivity{
		ActivityType: model.ActivityNewLocation,
		Title:        fmt.Sprintf("新しい店舗: %s", name),
		Description:  loc.Address.City,
		UserName:     viewer.Name,
		UserEmail:    viewer.Email,
	}
	if err := s.locations.CreateWithActivity(ctx, loc, activity); err != nil {
		return nil, fmt.Errorf("店舗の登録に失敗しました: %w", err)
	}

	slog.Info("店舗を登録しました",
		slog.String("location_id", loc.ID),
		slog.String("created_by", viewer.Email),
	)
	return loc, nil
}

// ListLocations は承認済みの店舗を返す。閲覧者が非表示にした店舗は除く。
func (s *Service) ListLocations(ctx context.Context, viewer model.Viewer, category string, featuredOnly bool) ([]model.Location, error) {
	if category != "" && !model.IsLocationCategory(category) {
		return nil, model.NewValidationError(fmt.Sprintf("不明な店舗カテゴリです: %s", category))
	}
	filter := repository.LocationFilter{Category: category, Approved: boolPtr(true)}
	if featuredOnly {
		filter.Featured = boolPtr(true)
	}

	locations, err := s.locations.List(ctx, filter, repository.ListOptions{OrderBy: "name"})
	if err != nil {
		return nil, fmt.Errorf("店舗一覧の取得に失敗しました: %w", err)
	}
	visible, err := moderation.VisibleTo(ctx, s.hidden, viewer, locations)
	if err != nil {
		return nil, fmt.Errorf("非表示設定の取得に失敗しました: %w", err)
	}
	return visible, nil
}

// GetLocation は店舗を返す。未承認の店舗は登録者と管理者のみ参照できる。
func (s *Service) GetLocation(ctx context.Context, viewer model.Viewer, id string) (*model.Location, error) {
	loc, err := s.locations.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if loc == nil {
		return nil, model.NewLocationNotFoundError(id)
	}
	if !loc.IsApproved && !viewer.IsAdmin() && !strings.EqualFold(loc.CreatedBy, viewer.Email) {
		return nil, model.NewLocationNotFoundError(id)
	}
	return loc, nil
}
