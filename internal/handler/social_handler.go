package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sundays/internal/middleware"
	"github.com/hitoshi/sundays/internal/model"
)

// SocialServiceInterface はソーシャルグラフのハンドラーが必要とするサービスインターフェース。
type SocialServiceInterface interface {
	ToggleFavorite(ctx context.Context, viewer model.Viewer, locationID string) (bool, error)
	SetFavorite(ctx context.Context, viewer model.Viewer, locationID string, on bool) error
	ListFavorites(ctx context.Context, viewer model.Viewer) ([]model.Favorite, error)
	ToggleSave(ctx context.Context, viewer model.Viewer, eventID string) (bool, error)
	SetSaved(ctx context.Context, viewer model.Viewer, eventID string, on bool) error
	ListSavedEvents(ctx context.Context, viewer model.Viewer) ([]model.SavedEvent, error)
	ToggleFollow(ctx context.Context, viewer model.Viewer, organizerEmail string) (*model.FollowResult, error)
	SubscribeToCategory(ctx context.Context, viewer model.Viewer, category string) (*model.EventSubscription, error)
	Unsubscribe(ctx context.Context, viewer model.Viewer, subscriptionID string) error
	ListSubscriptions(ctx context.Context, viewer model.Viewer) ([]model.EventSubscription, error)
}

// SocialHandler はお気に入り・イベント保存・フォロー・購読のHTTPハンドラー。
type SocialHandler struct {
	service SocialServiceInterface
}

// NewSocialHandler はSocialHandlerを生成する。
func NewSocialHandler(service SocialServiceInterface) *SocialHandler {
	return &SocialHandler{service: service}
}

// stateRequest は冪等な状態指定リクエストのボディ。
type stateRequest struct {
	On bool `json:"on"`
}

type favoriteStateResponse struct {
	LocationID  string `json:"location_id"`
	IsFavorited bool   `json:"is_favorited"`
}

type savedStateResponse struct {
	EventID string `json:"event_id"`
	IsSaved bool   `json:"is_saved"`
}

type followStateResponse struct {
	OrganizerEmail string                `json:"organizer_email"`
	IsFollowing    bool                  `json:"is_following"`
	Subscription   *subscriptionResponse `json:"subscription,omitempty"`
}

type favoriteResponse struct {
	ID          string    `json:"id"`
	LocationID  string    `json:"location_id"`
	CreatedDate time.Time `json:"created_date"`
}

type savedEventResponse struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	CreatedDate time.Time `json:"created_date"`
}

// ToggleFavorite はお気に入りを反転する。
// POST /api/locations/{id}/favorite/toggle
func (h *SocialHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	locationID := chi.URLParam(r, "id")
	on, err := h.service.ToggleFavorite(r.Context(), viewer, locationID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteStateResponse{LocationID: locationID, IsFavorited: on})
}

// SetFavorite はお気に入りを指定した状態にする。
// PUT /api/locations/{id}/favorite
func (h *SocialHandler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req stateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	locationID := chi.URLParam(r, "id")
	if err := h.service.SetFavorite(r.Context(), viewer, locationID, req.On); err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteStateResponse{LocationID: locationID, IsFavorited: req.On})
}

// ListFavorites は自分のお気に入り一覧を返す。
// GET /api/favorites
func (h *SocialHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	favorites, err := h.service.ListFavorites(r.Context(), viewer)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	out := make([]favoriteResponse, 0, len(favorites))
	for _, f := range favorites {
		out = append(out, favoriteResponse{ID: f.ID, LocationID: f.LocationID, CreatedDate: f.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// ToggleSave はイベントの保存を反転する。
// POST /api/events/{id}/save/toggle
func (h *SocialHandler) ToggleSave(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	eventID := chi.URLParam(r, "id")
	on, err := h.service.ToggleSave(r.Context(), viewer, eventID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, savedStateResponse{EventID: eventID, IsSaved: on})
}

// SetSaved はイベントの保存を指定した状態にする。
// PUT /api/events/{id}/save
func (h *SocialHandler) SetSaved(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req stateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	eventID := chi.URLParam(r, "id")
	if err := h.service.SetSaved(r.Context(), viewer, eventID, req.On); err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, savedStateResponse{EventID: eventID, IsSaved: req.On})
}

// ListSavedEvents は自分の保存イベント一覧を返す。
// GET /api/saved-events
func (h *SocialHandler) ListSavedEvents(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	saved, err := h.service.ListSavedEvents(r.Context(), viewer)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	out := make([]savedEventResponse, 0, len(saved))
	for _, s := range saved {
		out = append(out, savedEventResponse{ID: s.ID, EventID: s.EventID, CreatedDate: s.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// ToggleFollow は主催者のフォローを反転する。
// POST /api/organizers/{email}/follow/toggle
func (h *SocialHandler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	organizerEmail, ok := pathParam(w, r, "email")
	if !ok {
		return
	}
	result, err := h.service.ToggleFollow(r.Context(), viewer, organizerEmail)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	resp := followStateResponse{OrganizerEmail: result.OrganizerEmail, IsFollowing: result.Following}
	if result.Subscription != nil {
		sr := toSubscriptionResponse(result.Subscription)
		resp.Subscription = &sr
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSubscriptions は自分の購読一覧を返す。
// GET /api/subscriptions
func (h *SocialHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	subs, err := h.service.ListSubscriptions(r.Context(), viewer)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	out := make([]subscriptionResponse, 0, len(subs))
	for i := range subs {
		out = append(out, toSubscriptionResponse(&subs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type categorySubscriptionRequest struct {
	Category string `json:"category"`
}

// SubscribeToCategory はカテゴリのイベント通知を購読する。
// POST /api/subscriptions/categories
func (h *SocialHandler) SubscribeToCategory(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req categorySubscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.service.SubscribeToCategory(r.Context(), viewer, req.Category)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionResponse(sub))
}

// Unsubscribe は購読を解除する。
// DELETE /api/subscriptions/{id}
func (h *SocialHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	if err := h.service.Unsubscribe(r.Context(), viewer, chi.URLParam(r, "id")); err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
