package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/sundays/internal/directory"
	"github.com/hitoshi/sundays/internal/model"
)

// mockAdminService はAdminServiceInterfaceのモック実装。
type mockAdminService struct {
	listPendingFn func(ctx context.Context, viewer model.Viewer) (*directory.PendingContent, error)
	approveFn     func(ctx context.Context, viewer model.Viewer, ct model.ContentType, id string) error
	setFeaturedFn func(ctx context.Context, viewer model.Viewer, id string, featured bool) error
	deleteFn      func(ctx context.Context, viewer model.Viewer, ct model.ContentType, id string) error
	updateRoleFn  func(ctx context.Context, viewer model.Viewer, userID, role string) (*model.User, error)
	assignOwnerFn func(ctx context.Context, viewer model.Viewer, locationID, userEmail string) (*model.LocationClaim, error)
}

func (m *mockAdminService) ListPending(ctx context.Context, viewer model.Viewer) (*directory.PendingContent, error) {
	return m.listPendingFn(ctx, viewer)
}

func (m *mockAdminService) Approve(ctx context.Context, viewer model.Viewer, ct model.ContentType, id string) error {
	return m.approveFn(ctx, viewer, ct, id)
}

func (m *mockAdminService) SetFeatured(ctx context.Context, viewer model.Viewer, id string, featured bool) error {
	return m.setFeaturedFn(ctx, viewer, id, featured)
}

func (m *mockAdminService) DeleteContent(ctx context.Context, viewer model.Viewer, ct model.ContentType, id string) error {
	return m.deleteFn(ctx, viewer, ct, id)
}

func (m *mockAdminService) UpdateUserRole(ctx context.Context, viewer model.Viewer, userID, role string) (*model.User, error) {
	return m.updateRoleFn(ctx, viewer, userID, role)
}

func (m *mockAdminService) AssignLocationOwner(ctx context.Context, viewer model.Viewer, locationID, userEmail string) (*model.LocationClaim, error) {
	return m.assignOwnerFn(ctx, viewer, locationID, userEmail)
}

func TestContentTypeParam(t *testing.T) {
	tests := map[string]model.ContentType{
		"locations":  model.ContentLocation,
		"location":   model.ContentLocation,
		"events":     model.ContentEvent,
		"reviews":    model.ContentReview,
		"activities": model.ContentActivity,
		"deals":      model.ContentDeal,
		"users":      model.ContentType("users"),
	}
	for param, want := range tests {
		req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "type", param)
		if got := contentTypeParam(req); got != want {
			t.Errorf("contentTypeParam(%q) = %q, want %q", param, got, want)
		}
	}
}

func TestAdminHandler_Approve(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"成功", nil, http.StatusNoContent},
		{"通知の部分失敗", model.NewPartialFailureError("通知の作成に失敗しました。", []string{"notify_subscribers"}), http.StatusInternalServerError},
		{"存在しない", model.NewEventNotFoundError("ev-x"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAdminService{
				approveFn: func(ctx context.Context, viewer model.Viewer, ct model.ContentType, id string) error {
					if ct != model.ContentEvent || id != "ev-1" {
						t.Errorf("got (%q, %q)", ct, id)
					}
					return tt.err
				},
			}
			req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/", nil), "type", "events", "id", "ev-1")
			w := httptest.NewRecorder()
			NewAdminHandler(svc).Approve(w, withViewer(req, testAdmin))

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestAdminHandler_ListPending(t *testing.T) {
	svc := &mockAdminService{
		listPendingFn: func(ctx context.Context, viewer model.Viewer) (*directory.PendingContent, error) {
			return &directory.PendingContent{Locations: []model.Location{{ID: "loc-1"}}}, nil
		},
	}
	w := httptest.NewRecorder()
	NewAdminHandler(svc).ListPending(w, withViewer(httptest.NewRequest(http.MethodGet, "/", nil), testAdmin))

	var body pendingResponse
	decodeBody(t, w, &body)
	if len(body.Locations) != 1 || body.Events == nil {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestAdminHandler_SetFeaturedAndRole(t *testing.T) {
	var featured bool
	svc := &mockAdminService{
		setFeaturedFn: func(ctx context.Context, viewer model.Viewer, id string, f bool) error {
			featured = f
			return nil
		},
		updateRoleFn: func(ctx context.Context, viewer model.Viewer, userID, role string) (*model.User, error) {
			if userID == viewer.UserID {
				return nil, model.NewInvalidOperationError("自分自身のロールは変更できません。")
			}
			return &model.User{ID: userID, Role: role}, nil
		},
	}
	h := NewAdminHandler(svc)

	req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"featured":true}`)), "id", "loc-1")
	w := httptest.NewRecorder()
	h.SetFeatured(w, withViewer(req, testAdmin))
	if w.Code != http.StatusNoContent || !featured {
		t.Errorf("status = %d, featured = %v", w.Code, featured)
	}

	req = withChiURLParam(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"role":"admin"}`)), "id", "user-1")
	w = httptest.NewRecorder()
	h.UpdateUserRole(w, withViewer(req, testAdmin))
	var u userResponse
	decodeBody(t, w, &u)
	if u.Role != model.RoleAdmin {
		t.Errorf("role = %q", u.Role)
	}

	req = withChiURLParam(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"role":"user"}`)), "id", testAdmin.UserID)
	w = httptest.NewRecorder()
	h.UpdateUserRole(w, withViewer(req, testAdmin))
	assertError(t, w, http.StatusConflict, model.ErrCodeInvalidOperation)
}

func TestAdminHandler_AssignLocationOwner(t *testing.T) {
	svc := &mockAdminService{
		assignOwnerFn: func(ctx context.Context, viewer model.Viewer, locationID, userEmail string) (*model.LocationClaim, error) {
			if userEmail == "ghost@example.com" {
				return nil, model.NewNotFoundError(model.ErrCodeUserNotFound, "ユーザー", userEmail)
			}
			return &model.LocationClaim{LocationID: locationID, UserEmail: userEmail}, nil
		},
	}
	h := NewAdminHandler(svc)

	req := withChiURLParam(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"user_email":"owner@example.com"}`)), "id", "loc-1")
	w := httptest.NewRecorder()
	h.AssignLocationOwner(w, withViewer(req, testAdmin))
	var body claimResponse
	decodeBody(t, w, &body)
	if w.Code != http.StatusOK || body.LocationID != "loc-1" || body.UserEmail != "owner@example.com" {
		t.Errorf("status = %d, body = %+v", w.Code, body)
	}

	req = withChiURLParam(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"user_email":"ghost@example.com"}`)), "id", "loc-1")
	w = httptest.NewRecorder()
	h.AssignLocationOwner(w, withViewer(req, testAdmin))
	assertError(t, w, http.StatusNotFound, model.ErrCodeUserNotFound)
}
