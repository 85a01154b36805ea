package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sundays/internal/middleware"
	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/moderation"
)

// defaultReportListLimit は管理画面の通報一覧の既定件数。
const defaultReportListLimit = 100

// ModerationServiceInterface はモデレーションハンドラーが必要とするサービスインターフェース。
type ModerationServiceInterface interface {
	Report(ctx context.Context, viewer model.Viewer, in moderation.ReportInput, onHide func(contentID string)) (*moderation.ReportResult, error)
	Hide(ctx context.Context, viewer model.Viewer, contentType model.ContentType, contentID string) (*model.HiddenContent, error)
	Unhide(ctx context.Context, viewer model.Viewer, hiddenID string) error
	ListHidden(ctx context.Context, viewer model.Viewer) ([]model.HiddenContent, error)
	ListReports(ctx context.Context, viewer model.Viewer, status model.ReportStatus, limit int) ([]model.Report, error)
	MyReports(ctx context.Context, viewer model.Viewer) ([]model.Report, error)
	ResolveReport(ctx context.Context, viewer model.Viewer, reportID string, status model.ReportStatus) (*model.Report, error)
}

// ModerationHandler は通報と非表示のHTTPハンドラー。
type ModerationHandler struct {
	service ModerationServiceInterface
}

// NewModerationHandler はModerationHandlerを生成する。
func NewModerationHandler(service ModerationServiceInterface) *ModerationHandler {
	return &ModerationHandler{service: service}
}

type reportRequest struct {
	ContentType  string `json:"content_type"`
	ContentID    string `json:"content_id"`
	ContentTitle string `json:"content_title"`
	Reason       string `json:"reason"`
	Hide         bool   `json:"hide"`
}

// reportResultResponse は通報結果。RemovedContentIDはクライアントが一覧から取り除くべきコンテンツ。
type reportResultResponse struct {
	Report           reportResponse  `json:"report"`
	Hidden           *hiddenResponse `json:"hidden,omitempty"`
	RemovedContentID string          `json:"removed_content_id,omitempty"`
}

// CreateReport はコンテンツを通報する。hide=trueの場合は同時に非表示にする。
// POST /api/reports
func (h *ModerationHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req reportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var removed string
	result, err := h.service.Report(r.Context(), viewer, moderation.ReportInput{
		ContentType:  model.ContentType(req.ContentType),
		ContentID:    req.ContentID,
		ContentTitle: req.ContentTitle,
		Reason:       req.Reason,
		Hide:         req.Hide,
	}, func(contentID string) { removed = contentID })
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := reportResultResponse{
		Report:           toReportResponse(result.Report),
		RemovedContentID: removed,
	}
	if result.Hidden != nil {
		hr := toHiddenResponse(result.Hidden)
		resp.Hidden = &hr
	}
	writeJSON(w, http.StatusCreated, resp)
}

type hideRequest struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
}

// Hide はコンテンツを自分の表示から除外する。
// POST /api/hidden
func (h *ModerationHandler) Hide(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req hideRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hidden, err := h.service.Hide(r.Context(), viewer, model.ContentType(req.ContentType), req.ContentID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHiddenResponse(hidden))
}

// Unhide は非表示を解除する。
// DELETE /api/hidden/{id}
func (h *ModerationHandler) Unhide(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	if err := h.service.Unhide(r.Context(), viewer, chi.URLParam(r, "id")); err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListHidden は自分が非表示にしたコンテンツの一覧を返す。
// GET /api/hidden
func (h *ModerationHandler) ListHidden(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	hidden, err := h.service.ListHidden(r.Context(), viewer)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	out := make([]hiddenResponse, 0, len(hidden))
	for i := range hidden {
		out = append(out, toHiddenResponse(&hidden[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// ListReports は管理者向けの通報一覧を返す。
// GET /api/admin/reports?status=pending&limit=50
func (h *ModerationHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	limit := defaultReportListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limit は正の整数で指定してください。"))
			return
		}
		limit = n
	}

	reports, err := h.service.ListReports(r.Context(), viewer, model.ReportStatus(r.URL.Query().Get("status")), limit)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	out := make([]reportResponse, 0, len(reports))
	for i := range reports {
		out = append(out, toReportResponse(&reports[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// MyReports はログインユーザーが行った通報を処理状態付きで返す。
// GET /api/users/me/reports
func (h *ModerationHandler) MyReports(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	reports, err := h.service.MyReports(r.Context(), viewer)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	out := make([]reportResponse, 0, len(reports))
	for i := range reports {
		out = append(out, toReportResponse(&reports[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type resolveReportRequest struct {
	Status string `json:"status"`
}

// ResolveReport は通報を対応済みまたは却下にする。
// PUT /api/admin/reports/{id}
func (h *ModerationHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	var req resolveReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	report, err := h.service.ResolveReport(r.Context(), viewer, chi.URLParam(r, "id"), model.ReportStatus(req.Status))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report))
}
