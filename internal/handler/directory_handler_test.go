package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/sundays/internal/directory"
	"github.com/hitoshi/sundays/internal/model"
)

// mockDirectoryService はDirectoryServiceInterfaceのモック実装。未設定のメソッドは空の結果を返す。
type mockDirectoryService struct {
	createLocationFn func(ctx context.Context, viewer model.Viewer, in directory.LocationInput) (*model.Location, error)
	listLocationsFn  func(ctx context.Context, viewer model.Viewer, category string, featured bool) ([]model.Location, error)
	getLocationFn    func(ctx context.Context, viewer model.Viewer, id string) (*model.Location, error)
	createEventFn    func(ctx context.Context, viewer model.Viewer, in directory.EventInput) (*model.Event, error)
	listEventsFn     func(ctx context.Context, viewer model.Viewer, eventType string) ([]model.Event, error)
	createReviewFn   func(ctx context.Context, viewer model.Viewer, locationID string, in directory.ReviewInput) (*model.Review, *model.Location, error)
	listReviewsFn    func(ctx context.Context, viewer model.Viewer, locationID string) ([]model.Review, error)
	feedFn           func(ctx context.Context, viewer model.Viewer) ([]model.FeedActivity, error)
	organizerFn      func(ctx context.Context, viewer model.Viewer, email string) (*model.OrganizerProfile, error)
	postDealFn       func(ctx context.Context, viewer model.Viewer, locationID string, in directory.DealInput) (*model.Deal, error)
	listDealsFn      func(ctx context.Context, viewer model.Viewer, locationID string) ([]model.Deal, error)
	addCommentFn     func(ctx context.Context, viewer model.Viewer, activityID, content string) (*model.Comment, error)
	listCommentsFn   func(ctx context.Context, activityID string) ([]model.Comment, error)
	myReviewsFn      func(ctx context.Context, viewer model.Viewer) ([]model.Review, error)
	mySubmissionsFn  func(ctx context.Context, viewer model.Viewer) (*model.Submissions, error)
}

func (m *mockDirectoryService) CreateLocation(ctx context.Context, viewer model.Viewer, in directory.LocationInput) (*model.Location, error) {
	return m.createLocationFn(ctx, viewer, in)
}

func (m *mockDirectoryService) ListLocations(ctx context.Context, viewer model.Viewer, category string, featured bool) ([]model.Location, error) {
	if m.listLocationsFn == nil {
		return nil, nil
	}
	return m.listLocationsFn(ctx, viewer, category, featured)
}

func (m *mockDirectoryService) GetLocation(ctx context.Context, viewer model.Viewer, id string) (*model.Location, error) {
	return m.getLocationFn(ctx, viewer, id)
}

func (m *mockDirectoryService) CreateEvent(ctx context.Context, viewer model.Viewer, in directory.EventInput) (*model.Event, error) {
	return m.createEventFn(ctx, viewer, in)
}

func (m *mockDirectoryService) ListUpcomingEvents(ctx context.Context, viewer model.Viewer, eventType string) ([]model.Event, error) {
	if m.listEventsFn == nil {
		return nil, nil
	}
	return m.listEventsFn(ctx, viewer, eventType)
}

func (m *mockDirectoryService) CreateReview(ctx context.Context, viewer model.Viewer, locationID string, in directory.ReviewInput) (*model.Review, *model.Location, error) {
	return m.createReviewFn(ctx, viewer, locationID, in)
}

func (m *mockDirectoryService) ListReviews(ctx context.Context, viewer model.Viewer, locationID string) ([]model.Review, error) {
	return m.listReviewsFn(ctx, viewer, locationID)
}

func (m *mockDirectoryService) Feed(ctx context.Context, viewer model.Viewer) ([]model.FeedActivity, error) {
	if m.feedFn == nil {
		return nil, nil
	}
	return m.feedFn(ctx, viewer)
}

func (m *mockDirectoryService) OrganizerProfile(ctx context.Context, viewer model.Viewer, email string) (*model.OrganizerProfile, error) {
	return m.organizerFn(ctx, viewer, email)
}

func (m *mockDirectoryService) PostDeal(ctx context.Context, viewer model.Viewer, locationID string, in directory.DealInput) (*model.Deal, error) {
	return m.postDealFn(ctx, viewer, locationID, in)
}

func (m *mockDirectoryService) ListDeals(ctx context.Context, viewer model.Viewer, locationID string) ([]model.Deal, error) {
	if m.listDealsFn == nil {
		return nil, nil
	}
	return m.listDealsFn(ctx, viewer, locationID)
}

func (m *mockDirectoryService) AddComment(ctx context.Context, viewer model.Viewer, activityID, content string) (*model.Comment, error) {
	return m.addCommentFn(ctx, viewer, activityID, content)
}

func (m *mockDirectoryService) ListComments(ctx context.Context, activityID string) ([]model.Comment, error) {
	if m.listCommentsFn == nil {
		return nil, nil
	}
	return m.listCommentsFn(ctx, activityID)
}

func (m *mockDirectoryService) MyReviews(ctx context.Context, viewer model.Viewer) ([]model.Review, error) {
	if m.myReviewsFn == nil {
		return nil, nil
	}
	return m.myReviewsFn(ctx, viewer)
}

func (m *mockDirectoryService) MySubmissions(ctx context.Context, viewer model.Viewer) (*model.Submissions, error) {
	if m.mySubmissionsFn == nil {
		return &model.Submissions{}, nil
	}
	return m.mySubmissionsFn(ctx, viewer)
}

func TestDirectoryHandler_ListLocations_PassesViewerAndFilters(t *testing.T) {
	tests := []struct {
		name       string
		viewer     *model.Viewer
		query      string
		wantCat    string
		wantFeat   bool
		wantViewer string
	}{
		{"匿名", nil, "", "", false, ""},
		{"ログイン中", &testMember, "?category=bakery&featured=true", model.LocationBakery, true, testMember.Email},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDirectoryService{
				listLocationsFn: func(ctx context.Context, viewer model.Viewer, category string, featured bool) ([]model.Location, error) {
					if viewer.Email != tt.wantViewer || category != tt.wantCat || featured != tt.wantFeat {
						t.Errorf("got (%q, %q, %v)", viewer.Email, category, featured)
					}
					return []model.Location{{ID: "loc-1", Name: "Daily Grind", Category: model.LocationCoffeeShop, IsApproved: true}}, nil
				},
			}
			req := httptest.NewRequest(http.MethodGet, "/api/locations"+tt.query, nil)
			if tt.viewer != nil {
				req = withViewer(req, *tt.viewer)
			}
			w := httptest.NewRecorder()
			NewDirectoryHandler(svc).ListLocations(w, req)

			var body []locationResponse
			decodeBody(t, w, &body)
			if len(body) != 1 || body[0].Name != "Daily Grind" {
				t.Errorf("unexpected body: %+v", body)
			}
		})
	}
}

func TestDirectoryHandler_ListLocations_EmptyIsArray(t *testing.T) {
	w := httptest.NewRecorder()
	NewDirectoryHandler(&mockDirectoryService{}).ListLocations(w, httptest.NewRequest(http.MethodGet, "/api/locations", nil))

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestDirectoryHandler_CreateEvent(t *testing.T) {
	start := time.Date(2026, 6, 6, 9, 0, 0, 0, time.UTC)
	svc := &mockDirectoryService{
		createEventFn: func(ctx context.Context, viewer model.Viewer, in directory.EventInput) (*model.Event, error) {
			if !in.StartDate.Equal(start) || in.Address.City != "Portland" {
				t.Errorf("unexpected input: %+v", in)
			}
			return &model.Event{ID: "ev-1", Title: in.Title, EventType: in.EventType, StartDate: in.StartDate, EndDate: in.EndDate, CreatedBy: viewer.Email}, nil
		},
	}
	body := `{"title":"Big Sale","event_type":"garage_sale","address":{"city":"Portland"},
		"start_date":"2026-06-06T09:00:00Z","end_date":"2026-06-06T15:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	NewDirectoryHandler(svc).CreateEvent(w, withViewer(req, testMember))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp eventResponse
	decodeBody(t, w, &resp)
	if resp.IsApproved || resp.CreatedBy != testMember.Email {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestDirectoryHandler_CreateReview_ReturnsUpdatedLocation(t *testing.T) {
	svc := &mockDirectoryService{
		createReviewFn: func(ctx context.Context, viewer model.Viewer, locationID string, in directory.ReviewInput) (*model.Review, *model.Location, error) {
			if in.Rating < 1 || in.Rating > 5 {
				return nil, nil, model.NewValidationError("評価は1から5で指定してください。")
			}
			return &model.Review{ID: "rev-1", LocationID: locationID, Rating: in.Rating, Comment: in.Comment},
				&model.Location{ID: locationID, TotalReviews: 2, AverageRating: 4.5}, nil
		},
	}
	h := NewDirectoryHandler(svc)

	req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":5,"comment":"great"}`)), "id", "loc-1")
	w := httptest.NewRecorder()
	h.CreateReview(w, withViewer(req, testMember))
	var resp reviewCreatedResponse
	decodeBody(t, w, &resp)
	if resp.Location.AverageRating != 4.5 || resp.Location.TotalReviews != 2 || resp.Review.Photos == nil {
		t.Errorf("unexpected body: %+v", resp)
	}

	req = withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rating":9,"comment":"x"}`)), "id", "loc-1")
	w = httptest.NewRecorder()
	h.CreateReview(w, withViewer(req, testMember))
	assertError(t, w, http.StatusBadRequest, model.ErrCodeValidation)
}

func TestDirectoryHandler_GetLocation_NotFound(t *testing.T) {
	svc := &mockDirectoryService{
		getLocationFn: func(ctx context.Context, viewer model.Viewer, id string) (*model.Location, error) {
			return nil, model.NewLocationNotFoundError(id)
		},
	}
	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "pending-loc")
	w := httptest.NewRecorder()
	NewDirectoryHandler(svc).GetLocation(w, req)

	assertError(t, w, http.StatusNotFound, model.ErrCodeLocationNotFound)
}

func TestDirectoryHandler_Organizer(t *testing.T) {
	svc := &mockDirectoryService{
		organizerFn: func(ctx context.Context, viewer model.Viewer, email string) (*model.OrganizerProfile, error) {
			return &model.OrganizerProfile{
				Organizer:     model.User{Email: email, Name: "Olive"},
				Events:        []model.Event{{ID: "ev-1"}},
				FollowerCount: 3,
				IsFollowing:   !viewer.IsAnonymous(),
			}, nil
		},
	}
	for _, param := range []string{"olive@example.com", "olive%40example.com"} {
		t.Run(param, func(t *testing.T) {
			req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "email", param)
			w := httptest.NewRecorder()
			NewDirectoryHandler(svc).Organizer(w, withViewer(req, testMember))

			var body organizerResponse
			decodeBody(t, w, &body)
			if body.Organizer.DisplayName != "Olive" || body.FollowerCount != 3 || !body.IsFollowing || len(body.Events) != 1 {
				t.Errorf("unexpected body: %+v", body)
			}
			if body.Organizer.Email != "olive@example.com" {
				t.Errorf("organizer email = %q, want decoded address", body.Organizer.Email)
			}
		})
	}
}

func TestDirectoryHandler_PostDeal(t *testing.T) {
	until := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	svc := &mockDirectoryService{
		postDealFn: func(ctx context.Context, viewer model.Viewer, locationID string, in directory.DealInput) (*model.Deal, error) {
			if locationID != "loc-1" || in.ValidUntil == nil || !in.ValidUntil.Equal(until) {
				t.Errorf("unexpected input: %s %+v", locationID, in)
			}
			if viewer.Email != testMember.Email {
				return nil, model.NewForbiddenError()
			}
			return &model.Deal{ID: "deal-1", LocationID: locationID, Title: in.Title, ValidUntil: in.ValidUntil, IsActive: true}, nil
		},
	}
	body := `{"title":"Free refill","description":"with any pastry","valid_until":"2026-07-01T00:00:00Z"}`

	req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), "id", "loc-1")
	w := httptest.NewRecorder()
	NewDirectoryHandler(svc).PostDeal(w, withViewer(req, testMember))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusCreated, w.Body.String())
	}
	var resp dealResponse
	decodeBody(t, w, &resp)
	if resp.ID != "deal-1" || resp.Title != "Free refill" || !resp.IsActive || resp.ValidUntil == nil {
		t.Errorf("unexpected body: %+v", resp)
	}

	// オーナーでなければ403
	req = withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), "id", "loc-1")
	w = httptest.NewRecorder()
	NewDirectoryHandler(svc).PostDeal(w, withViewer(req, testAdmin))
	assertError(t, w, http.StatusForbidden, model.ErrCodeForbidden)

	// 未ログインは401
	req = withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), "id", "loc-1")
	w = httptest.NewRecorder()
	NewDirectoryHandler(svc).PostDeal(w, req)
	assertError(t, w, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestDirectoryHandler_ListDeals_EmptyIsArray(t *testing.T) {
	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "loc-1")
	w := httptest.NewRecorder()
	NewDirectoryHandler(&mockDirectoryService{}).ListDeals(w, req)

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestDirectoryHandler_Comments(t *testing.T) {
	svc := &mockDirectoryService{
		addCommentFn: func(ctx context.Context, viewer model.Viewer, activityID, content string) (*model.Comment, error) {
			if activityID != "act-1" {
				return nil, model.NewNotFoundError(model.ErrCodeActivityNotFound, "アクティビティ", activityID)
			}
			return &model.Comment{ID: "c-1", ActivityID: activityID, Content: content, UserEmail: viewer.Email}, nil
		},
		listCommentsFn: func(ctx context.Context, activityID string) ([]model.Comment, error) {
			return []model.Comment{{ID: "c-1", ActivityID: activityID, Content: "lovely"}}, nil
		},
	}
	h := NewDirectoryHandler(svc)

	req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"lovely"}`)), "id", "act-1")
	w := httptest.NewRecorder()
	h.AddComment(w, withViewer(req, testMember))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var created commentResponse
	decodeBody(t, w, &created)
	if created.Content != "lovely" || created.UserEmail != testMember.Email {
		t.Errorf("unexpected body: %+v", created)
	}

	req = withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"x"}`)), "id", "act-9")
	w = httptest.NewRecorder()
	h.AddComment(w, withViewer(req, testMember))
	assertError(t, w, http.StatusNotFound, model.ErrCodeActivityNotFound)

	req = withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "act-1")
	w = httptest.NewRecorder()
	h.ListComments(w, req)
	var list []commentResponse
	decodeBody(t, w, &list)
	if len(list) != 1 || list[0].ActivityID != "act-1" {
		t.Errorf("unexpected body: %+v", list)
	}
}

func TestDirectoryHandler_MySubmissions(t *testing.T) {
	svc := &mockDirectoryService{
		mySubmissionsFn: func(ctx context.Context, viewer model.Viewer) (*model.Submissions, error) {
			return &model.Submissions{Locations: []model.Location{{ID: "loc-1", CreatedBy: viewer.Email}}}, nil
		},
	}
	w := httptest.NewRecorder()
	NewDirectoryHandler(svc).MySubmissions(w, withViewer(httptest.NewRequest(http.MethodGet, "/", nil), testMember))

	var body submissionsResponse
	decodeBody(t, w, &body)
	if len(body.Locations) != 1 || body.Events == nil {
		t.Errorf("unexpected body: %+v", body)
	}
}
