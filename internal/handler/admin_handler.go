package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sundays/internal/directory"
	"github.com/hitoshi/sundays/internal/middleware"
	"github.com/hitoshi/sundays/internal/model"
)

// AdminServiceInterface は管理者ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	ListPending(ctx context.Context, viewer model.Viewer) (*directory.PendingContent, error)
	Approve(ctx context.Context, viewer model.Viewer, contentType model.ContentType, id string) error
	SetFeatured(ctx context.Context, viewer model.Viewer, locationID string, featured bool) error
	DeleteContent(ctx context.Context, viewer model.Viewer, contentType model.ContentType, id string) error
	UpdateUserRole(ctx context.Context, viewer model.Viewer, userID, role string) (*model.User, error)
	AssignLocationOwner(ctx context.Context, viewer model.Viewer, locationID, userEmail string) (*model.LocationClaim, error)
}

// AdminHandler は管理者向けのHTTPハンドラー。
// ルーターでRequireAdminの後ろに置くが、サービス側でも権限を確認する。
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

type pendingResponse struct {
	Locations []locationResponse `json:"locations"`
	Events    []eventResponse    `json:"events"`
}

type featuredRequest struct {
	Featured bool `json:"featured"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type ownerRequest struct {
	UserEmail string `json:"user_email"`
}

// contentTypeParam はURLの {type} をコンテンツ種別に変換する。複数形も受け付ける。
func contentTypeParam(r *http.Request) model.ContentType {
	switch t := chi.URLParam(r, "type"); t {
	case "locations":
		return model.ContentLocation
	case "events":
		return model.ContentEvent
	case "reviews":
		return model.ContentReview
	case "activities":
		return model.ContentActivity
	case "deals":
		return model.ContentDeal
	default:
		return model.ContentType(t)
	}
}

// ListPending は承認待ちの店舗とイベントを返す。
// GET /api/admin/pending
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.ListPending(r.Context(), middleware.ViewerFromContext(r.Context()))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{
		Locations: toLocationResponses(pending.Locations),
		Events:    toEventResponses(pending.Events),
	})
}

// Approve は店舗またはイベントを承認する。
// POST /api/admin/{type}/{id}/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	err := h.service.Approve(r.Context(), middleware.ViewerFromContext(r.Context()), contentTypeParam(r), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetFeatured は店舗のおすすめ表示を切り替える。
// POST /api/admin/locations/{id}/featured
func (h *AdminHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	var req featuredRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.service.SetFeatured(r.Context(), middleware.ViewerFromContext(r.Context()), chi.URLParam(r, "id"), req.Featured)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteContent はコンテンツを削除する。
// DELETE /api/admin/{type}/{id}
func (h *AdminHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteContent(r.Context(), middleware.ViewerFromContext(r.Context()), contentTypeParam(r), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateUserRole はユーザーのロールを変更する。
// PUT /api/admin/users/{id}/role
func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.service.UpdateUserRole(r.Context(), middleware.ViewerFromContext(r.Context()), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// AssignLocationOwner はユーザーを店舗のオーナーとして登録する。
// PUT /api/admin/locations/{id}/owner
func (h *AdminHandler) AssignLocationOwner(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claim, err := h.service.AssignLocationOwner(r.Context(), middleware.ViewerFromContext(r.Context()), chi.URLParam(r, "id"), req.UserEmail)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{
		LocationID:  claim.LocationID,
		UserEmail:   claim.UserEmail,
		CreatedDate: claim.CreatedAt,
	})
}
