package directory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/repository"
)

type mockDealRepo struct {
	createFn        func(ctx context.Context, deal *model.Deal, activity *model.FeedActivity) error
	listAvailableFn func(ctx context.Context, locationID string, at time.Time) ([]model.Deal, error)
	deleteByIDFn    func(ctx context.Context, id string) (bool, error)
}

func (m *mockDealRepo) CreateWithActivity(ctx context.Context, deal *model.Deal, activity *model.FeedActivity) error {
	return m.createFn(ctx, deal, activity)
}
func (m *mockDealRepo) ListAvailable(ctx context.Context, locationID string, at time.Time) ([]model.Deal, error) {
	return m.listAvailableFn(ctx, locationID, at)
}
func (m *mockDealRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	return m.deleteByIDFn(ctx, id)
}

type mockClaimRepo struct {
	claims map[string]string // user_email -> location_id
}

func (m *mockClaimRepo) Assign(ctx context.Context, claim *model.LocationClaim) error {
	if m.claims == nil {
		m.claims = map[string]string{}
	}
	m.claims[claim.UserEmail] = claim.LocationID
	return nil
}
func (m *mockClaimRepo) FindByUser(ctx context.Context, userEmail string) (*model.LocationClaim, error) {
	id, ok := m.claims[userEmail]
	if !ok {
		return nil, nil
	}
	return &model.LocationClaim{LocationID: id, UserEmail: userEmail}, nil
}

type mockCommentRepo struct {
	created []model.Comment
	listFn  func(ctx context.Context, activityID string, opts repository.ListOptions) ([]model.Comment, error)
}

func (m *mockCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	c.ID = "c-1"
	m.created = append(m.created, *c)
	return nil
}
func (m *mockCommentRepo) ListByActivity(ctx context.Context, activityID string, opts repository.ListOptions) ([]model.Comment, error) {
	return m.listFn(ctx, activityID, opts)
}

func bakeryRepo() *mockLocationRepo {
	return &mockLocationRepo{findByIDFn: func(ctx context.Context, id string) (*model.Location, error) {
		if id != "loc-1" {
			return nil, nil
		}
		return &model.Location{ID: "loc-1", Name: "Corner Bakery", IsApproved: true}, nil
	}}
}

func TestService_PostDeal(t *testing.T) {
	var gotDeal *model.Deal
	var gotActivity *model.FeedActivity
	deals := &mockDealRepo{createFn: func(ctx context.Context, deal *model.Deal, activity *model.FeedActivity) error {
		deal.ID = "deal-1"
		gotDeal, gotActivity = deal, activity
		return nil
	}}
	claims := &mockClaimRepo{claims: map[string]string{member.Email: "loc-1"}}
	svc := newService(Deps{Locations: bakeryRepo(), Deals: deals, Claims: claims})

	until := time.Now().Add(48 * time.Hour)
	deal, err := svc.PostDeal(context.Background(), member, "loc-1", DealInput{
		Title:       "  2-for-1 scones ",
		Description: "weekends only",
		ValidUntil:  &until,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deal.ID != "deal-1" || deal.Title != "2-for-1 scones" || !deal.IsActive || deal.CreatedBy != member.Email {
		t.Errorf("deal = %+v", deal)
	}
	if gotDeal.LocationID != "loc-1" {
		t.Errorf("LocationID = %q, want loc-1", gotDeal.LocationID)
	}
	if gotActivity.ActivityType != model.ActivityDealPosted {
		t.Errorf("ActivityType = %q, want %q", gotActivity.ActivityType, model.ActivityDealPosted)
	}
	if !strings.Contains(gotActivity.Title, "Corner Bakery") || !strings.Contains(gotActivity.Title, "2-for-1 scones") {
		t.Errorf("activity title = %q", gotActivity.Title)
	}
	if gotActivity.UserEmail != member.Email {
		t.Errorf("activity UserEmail = %q", gotActivity.UserEmail)
	}
}

func TestService_PostDeal_RequiresClaim(t *testing.T) {
	created := 0
	deals := &mockDealRepo{createFn: func(ctx context.Context, deal *model.Deal, activity *model.FeedActivity) error {
		created++
		return nil
	}}
	claims := &mockClaimRepo{claims: map[string]string{"other@example.com": "loc-1", member.Email: "loc-2"}}
	svc := newService(Deps{Locations: bakeryRepo(), Deals: deals, Claims: claims})
	ctx := context.Background()
	in := DealInput{Title: "free coffee"}

	// 別の店舗のオーナー
	_, err := svc.PostDeal(ctx, member, "loc-1", in)
	assertAPIErrorCode(t, err, model.ErrCodeForbidden)

	// オーナー設定なし
	_, err = svc.PostDeal(ctx, model.Viewer{UserID: "u-3", Email: "nobody@example.com"}, "loc-1", in)
	assertAPIErrorCode(t, err, model.ErrCodeForbidden)

	if created != 0 {
		t.Errorf("権限のない掲載で特典が作成されました: %d", created)
	}

	// 管理者はオーナーでなくても掲載できる
	if _, err := svc.PostDeal(ctx, admin, "loc-1", in); err != nil {
		t.Errorf("admin PostDeal returned error: %v", err)
	}
}

func TestService_PostDeal_Validation(t *testing.T) {
	svc := newService(Deps{Locations: bakeryRepo(), Claims: &mockClaimRepo{}})
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name   string
		viewer model.Viewer
		loc    string
		in     DealInput
		code   string
	}{
		{"未ログイン", model.Viewer{}, "loc-1", DealInput{Title: "x"}, model.ErrCodeUserNotFound},
		{"タイトルなし", admin, "loc-1", DealInput{Title: "   "}, model.ErrCodeValidation},
		{"期限切れ", admin, "loc-1", DealInput{Title: "x", ValidUntil: &past}, model.ErrCodeValidation},
		{"店舗なし", admin, "loc-9", DealInput{Title: "x"}, model.ErrCodeLocationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PostDeal(ctx, tt.viewer, tt.loc, tt.in)
			assertAPIErrorCode(t, err, tt.code)
		})
	}
}

func TestService_ListDeals_FiltersHidden(t *testing.T) {
	var gotAt time.Time
	deals := &mockDealRepo{listAvailableFn: func(ctx context.Context, locationID string, at time.Time) ([]model.Deal, error) {
		gotAt = at
		return []model.Deal{{ID: "d1", LocationID: locationID}, {ID: "d2", LocationID: locationID}}, nil
	}}
	hidden := staticHidden{{Type: model.ContentDeal, ID: "d1"}: {}}
	svc := newService(Deps{Locations: bakeryRepo(), Deals: deals, Hidden: hidden})
	fixed := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	list, err := svc.ListDeals(context.Background(), member, "loc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != "d2" {
		t.Errorf("ListDeals = %+v, want [d2]", list)
	}
	if !gotAt.Equal(fixed) {
		t.Errorf("at = %v, want %v", gotAt, fixed)
	}

	_, err = svc.ListDeals(context.Background(), member, "loc-9")
	assertAPIErrorCode(t, err, model.ErrCodeLocationNotFound)
}

func TestDeal_Available(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		deal model.Deal
		want bool
	}{
		{"期限なし", model.Deal{IsActive: true}, true},
		{"期限内", model.Deal{IsActive: true, ValidUntil: &future}, true},
		{"期限ちょうど", model.Deal{IsActive: true, ValidUntil: &now}, true},
		{"期限切れ", model.Deal{IsActive: true, ValidUntil: &past}, false},
		{"無効", model.Deal{IsActive: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.deal.Available(now); got != tt.want {
				t.Errorf("Available = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_AssignLocationOwner(t *testing.T) {
	claims := &mockClaimRepo{}
	users := &mockUserStore{findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
		if email == "owner@example.com" {
			return &model.User{ID: "u-5", Email: email}, nil
		}
		return nil, nil
	}}
	svc := newService(Deps{Locations: bakeryRepo(), Claims: claims, Users: users})
	ctx := context.Background()

	claim, err := svc.AssignLocationOwner(ctx, admin, "loc-1", " Owner@Example.com ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim.LocationID != "loc-1" || claims.claims["owner@example.com"] != "loc-1" {
		t.Errorf("claim = %+v, stored = %v", claim, claims.claims)
	}

	_, err = svc.AssignLocationOwner(ctx, member, "loc-1", "owner@example.com")
	assertAPIErrorCode(t, err, model.ErrCodeForbidden)
	_, err = svc.AssignLocationOwner(ctx, admin, "loc-9", "owner@example.com")
	assertAPIErrorCode(t, err, model.ErrCodeLocationNotFound)
	_, err = svc.AssignLocationOwner(ctx, admin, "loc-1", "ghost@example.com")
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
	_, err = svc.AssignLocationOwner(ctx, admin, "loc-1", " ")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func activityRepoWith(ids ...string) *mockActivityRepo {
	return &mockActivityRepo{findByIDFn: func(ctx context.Context, id string) (*model.FeedActivity, error) {
		for _, known := range ids {
			if id == known {
				return &model.FeedActivity{ID: id}, nil
			}
		}
		return nil, nil
	}}
}

func TestService_AddComment(t *testing.T) {
	comments := &mockCommentRepo{}
	svc := newService(Deps{Activities: activityRepoWith("act-1"), Comments: comments})
	ctx := context.Background()

	c, err := svc.AddComment(ctx, member, "act-1", "  looks lovely  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Content != "looks lovely" || c.UserEmail != member.Email || c.UserName != member.Name || c.ActivityID != "act-1" {
		t.Errorf("comment = %+v", c)
	}

	_, err = svc.AddComment(ctx, member, "act-1", "   ")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
	_, err = svc.AddComment(ctx, model.Viewer{}, "act-1", "hi")
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
	_, err = svc.AddComment(ctx, member, "act-9", "hi")
	assertAPIErrorCode(t, err, model.ErrCodeActivityNotFound)

	if len(comments.created) != 1 {
		t.Errorf("created = %d, want 1", len(comments.created))
	}
}

func TestService_ListComments(t *testing.T) {
	var gotOpts repository.ListOptions
	comments := &mockCommentRepo{listFn: func(ctx context.Context, activityID string, opts repository.ListOptions) ([]model.Comment, error) {
		gotOpts = opts
		return []model.Comment{{ID: "c2"}, {ID: "c1"}}, nil
	}}
	svc := newService(Deps{Activities: activityRepoWith("act-1"), Comments: comments})

	list, err := svc.ListComments(context.Background(), "act-1")
	if err != nil || len(list) != 2 {
		t.Fatalf("ListComments = %v, %v", list, err)
	}
	if gotOpts.OrderBy != "-created_at" || gotOpts.Limit != CommentPageSize {
		t.Errorf("opts = %+v", gotOpts)
	}

	_, err = svc.ListComments(context.Background(), "act-9")
	assertAPIErrorCode(t, err, model.ErrCodeActivityNotFound)
}

func TestService_MySubmissions(t *testing.T) {
	var locFilter repository.LocationFilter
	var eventFilter repository.EventFilter
	locs := &mockLocationRepo{listFn: func(ctx context.Context, filter repository.LocationFilter, opts repository.ListOptions) ([]model.Location, error) {
		locFilter = filter
		return []model.Location{{ID: "l1", IsApproved: false}}, nil
	}}
	events := &mockEventRepo{listFn: func(ctx context.Context, filter repository.EventFilter, opts repository.ListOptions) ([]model.Event, error) {
		eventFilter = filter
		return []model.Event{{ID: "e1"}}, nil
	}}
	svc := newService(Deps{Locations: locs, Events: events})

	got, err := svc.MySubmissions(context.Background(), member)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Locations) != 1 || len(got.Events) != 1 {
		t.Errorf("submissions = %+v", got)
	}
	if locFilter.CreatedBy != member.Email || locFilter.Approved != nil {
		t.Errorf("location filter = %+v, 承認状態で絞り込まないこと", locFilter)
	}
	if eventFilter.CreatedBy != member.Email || eventFilter.Approved != nil {
		t.Errorf("event filter = %+v", eventFilter)
	}

	_, err = svc.MySubmissions(context.Background(), model.Viewer{})
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestService_MyReviews(t *testing.T) {
	reviews := &mockReviewRepo{listByUserFn: func(ctx context.Context, userEmail string, opts repository.ListOptions) ([]model.Review, error) {
		if userEmail != member.Email {
			t.Errorf("userEmail = %q", userEmail)
		}
		return []model.Review{{ID: "r1", UserEmail: userEmail}}, nil
	}}
	svc := newService(Deps{Reviews: reviews})

	got, err := svc.MyReviews(context.Background(), member)
	if err != nil || len(got) != 1 {
		t.Fatalf("MyReviews = %v, %v", got, err)
	}
	_, err = svc.MyReviews(context.Background(), model.Viewer{})
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestService_DeleteContent_Deal(t *testing.T) {
	deals := &mockDealRepo{deleteByIDFn: func(ctx context.Context, id string) (bool, error) { return id == "d1", nil }}
	svc := newService(Deps{Deals: deals})
	ctx := context.Background()

	if err := svc.DeleteContent(ctx, admin, model.ContentDeal, "d1"); err != nil {
		t.Errorf("DeleteContent(deal) returned error: %v", err)
	}
	assertAPIErrorCode(t, svc.DeleteContent(ctx, admin, model.ContentDeal, "d2"), model.ErrCodeDealNotFound)
}
