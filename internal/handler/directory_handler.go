package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sundays/internal/directory"
	"github.com/hitoshi/sundays/internal/middleware"
	"github.com/hitoshi/sundays/internal/model"
)

// DirectoryServiceInterface は店舗・イベント・レビュー・フィードのハンドラーが必要とするサービスインターフェース。
type DirectoryServiceInterface interface {
	CreateLocation(ctx context.Context, viewer model.Viewer, in directory.LocationInput) (*model.Location, error)
	ListLocations(ctx context.Context, viewer model.Viewer, category string, featuredOnly bool) ([]model.Location, error)
	GetLocation(ctx context.Context, viewer model.Viewer, id string) (*model.Location, error)
	CreateEvent(ctx context.Context, viewer model.Viewer, in directory.EventInput) (*model.Event, error)
	ListUpcomingEvents(ctx context.Context, viewer model.Viewer, eventType string) ([]model.Event, error)
	CreateReview(ctx context.Context, viewer model.Viewer, locationID string, in directory.ReviewInput) (*model.Review, *model.Location, error)
	ListReviews(ctx context.Context, viewer model.Viewer, locationID string) ([]model.Review, error)
	Feed(ctx context.Context, viewer model.Viewer) ([]model.FeedActivity, error)
	OrganizerProfile(ctx context.Context, viewer model.Viewer, organizerEmail string) (*model.OrganizerProfile, error)
	PostDeal(ctx context.Context, viewer model.Viewer, locationID string, in directory.DealInput) (*model.Deal, error)
	ListDeals(ctx context.Context, viewer model.Viewer, locationID string) ([]model.Deal, error)
	AddComment(ctx context.Context, viewer model.Viewer, activityID, content string) (*model.Comment, error)
	ListComments(ctx context.Context, activityID string) ([]model.Comment, error)
	MyReviews(ctx context.Context, viewer model.Viewer) ([]model.Review, error)
	MySubmissions(ctx context.Context, viewer model.Viewer) (*model.Submissions, error)
}

// DirectoryHandler は店舗・イベント・レビュー・フィードのHTTPハンドラー。
// 一覧系は未ログインでも利用でき、ログイン中は非表示設定が反映される。
type DirectoryHandler struct {
	service DirectoryServiceInterface
}

// NewDirectoryHandler はDirectoryHandlerを生成する。
func NewDirectoryHandler(service DirectoryServiceInterface) *DirectoryHandler {
	return &DirectoryHandler{service: service}
}

type locationRequest struct {
	Name      string            `json:"name"`
	Category  string            `json:"category"`
	Bio       string            `json:"bio"`
	Address   addressJSON       `json:"address"`
	Phone     string            `json:"phone"`
	Email     string            `json:"email"`
	Website   string            `json:"website"`
	Hours     map[string]string `json:"hours"`
	MainImage string            `json:"main_image"`
}

type eventRequest struct {
	Title       string      `json:"title"`
	EventType   string      `json:"event_type"`
	Description string      `json:"description"`
	Address     addressJSON `json:"address"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	Image       string      `json:"image"`
}

type reviewRequest struct {
	Rating  int      `json:"rating"`
	Comment string   `json:"comment"`
	Photos  []string `json:"photos"`
}

type dealRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ValidUntil  *time.Time `json:"valid_until"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type reviewCreatedResponse struct {
	Review   reviewResponse   `json:"review"`
	Location locationResponse `json:"location"`
}

// ListLocations は承認済みの店舗一覧を返す。
// GET /api/locations?category=coffee_shop&featured=true
func (h *DirectoryHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	locations, err := h.service.ListLocations(r.Context(), viewer, r.URL.Query().Get("category"), queryBool(r, "featured"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLocationResponses(locations))
}

// GetLocation は店舗の詳細を返す。
// GET /api/locations/{id}
func (h *DirectoryHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	loc, err := h.service.GetLocation(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLocationResponse(loc))
}

// CreateLocation は店舗を承認待ちで登録する。
// POST /api/locations
func (h *DirectoryHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	loc, err := h.service.CreateLocation(r.Context(), viewer, directory.LocationInput{
		Name:      req.Name,
		Category:  req.Category,
		Bio:       req.Bio,
		Address:   req.Address.toModel(),
		Phone:     req.Phone,
		Email:     req.Email,
		Website:   req.Website,
		Hours:     req.Hours,
		MainImage: req.MainImage,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLocationResponse(loc))
}

// ListReviews は店舗のレビューを新しい順に返す。
// GET /api/locations/{id}/reviews
func (h *DirectoryHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	reviews, err := h.service.ListReviews(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReviewResponses(reviews))
}

// CreateReview はレビューを投稿し、更新後の店舗の評価と合わせて返す。
// POST /api/locations/{id}/reviews
func (h *DirectoryHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	review, loc, err := h.service.CreateReview(r.Context(), viewer, chi.URLParam(r, "id"), directory.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
		Photos:  req.Photos,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reviewCreatedResponse{
		Review:   toReviewResponse(review),
		Location: toLocationResponse(loc),
	})
}

// ListEvents は開催予定の承認済みイベントを返す。
// GET /api/events?type=garage_sale
func (h *DirectoryHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	events, err := h.service.ListUpcomingEvents(r.Context(), viewer, r.URL.Query().Get("type"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponses(events))
}

// CreateEvent はイベントを承認待ちで登録する。
// POST /api/events
func (h *DirectoryHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	event, err := h.service.CreateEvent(r.Context(), viewer, directory.EventInput{
		Title:       req.Title,
		EventType:   req.EventType,
		Description: req.Description,
		Address:     req.Address.toModel(),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Image:       req.Image,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventResponse(event))
}

// Feed は最新のアクティビティを返す。
// GET /api/feed
func (h *DirectoryHandler) Feed(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	activities, err := h.service.Feed(r.Context(), viewer)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	out := make([]activityResponse, 0, len(activities))
	for i := range activities {
		out = append(out, toActivityResponse(&activities[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// Organizer は主催者のプロフィールを返す。
// GET /api/organizers/{email}
func (h *DirectoryHandler) Organizer(w http.ResponseWriter, r *http.Request) {
	organizerEmail, ok := pathParam(w, r, "email")
	if !ok {
		return
	}
	viewer := middleware.ViewerFromContext(r.Context())
	profile, err := h.service.OrganizerProfile(r.Context(), viewer, organizerEmail)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizerResponse(profile))
}

// ListDeals は店舗の現在有効な特典を返す。
// GET /api/locations/{id}/deals
func (h *DirectoryHandler) ListDeals(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	deals, err := h.service.ListDeals(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	out := make([]dealResponse, 0, len(deals))
	for i := range deals {
		out = append(out, toDealResponse(&deals[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// PostDeal は店舗オーナーが特典を掲載する。
// POST /api/locations/{id}/deals
func (h *DirectoryHandler) PostDeal(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req dealRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	deal, err := h.service.PostDeal(r.Context(), viewer, chi.URLParam(r, "id"), directory.DealInput{
		Title:       req.Title,
		Description: req.Description,
		ValidUntil:  req.ValidUntil,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDealResponse(deal))
}

// ListComments はアクティビティのコメントを新しい順に返す。
// GET /api/feed/{id}/comments
func (h *DirectoryHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	out := make([]commentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, toCommentResponse(&comments[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// AddComment はアクティビティにコメントする。
// POST /api/feed/{id}/comments
func (h *DirectoryHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	comment, err := h.service.AddComment(r.Context(), viewer, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(comment))
}

// MyReviews はログインユーザーが投稿したレビューを返す。
// GET /api/users/me/reviews
func (h *DirectoryHandler) MyReviews(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	reviews, err := h.service.MyReviews(r.Context(), viewer)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReviewResponses(reviews))
}

// MySubmissions はログインユーザーが登録した店舗とイベントを承認待ちも含めて返す。
// GET /api/users/me/submissions
func (h *DirectoryHandler) MySubmissions(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	subs, err := h.service.MySubmissions(r.Context(), viewer)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submissionsResponse{
		Locations: toLocationResponses(subs.Locations),
		Events:    toEventResponses(subs.Events),
	})
}
