package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sundays/internal/middleware"
	"github.com/hitoshi/sundays/internal/model"
	"github.com/hitoshi/sundays/internal/notification"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	Load(ctx context.Context, viewer model.Viewer) (*model.NotificationPage, error)
	MarkRead(ctx context.Context, viewer model.Viewer, notificationID string) (*model.NotificationPage, error)
	MarkAllRead(ctx context.Context, viewer model.Viewer) (*model.NotificationPage, error)
	GetPreferences(ctx context.Context, viewer model.Viewer) (*model.NotificationPreference, error)
	SavePreferences(ctx context.Context, viewer model.Viewer, in notification.PreferenceInput) (*model.NotificationPreference, error)
}

// NotificationHandler は通知と通知設定のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// partialPageResponse は一括既読の部分失敗時の応答。エラー内容と再取得したページを両方返す。
type partialPageResponse struct {
	middleware.ErrorResponseBody
	Page notificationPageResponse `json:"page"`
}

// List は通知の最新ページを返す。
// GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	page, err := h.service.Load(r.Context(), viewer)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationPageResponse(page))
}

// MarkRead は通知を1件既読にし、再取得したページを返す。
// POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	page, err := h.service.MarkRead(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationPageResponse(page))
}

// MarkAllRead はページ内の未読通知をすべて既読にする。
// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	page, err := h.service.MarkAllRead(r.Context(), viewer)

	var apiErr *model.APIError
	if err != nil && page != nil && errors.As(err, &apiErr) && apiErr.Code == model.ErrCodePartialFailure {
		writeJSON(w, middleware.StatusForCode(apiErr.Code), partialPageResponse{
			ErrorResponseBody: middleware.ErrorResponseBody{
				Code:     apiErr.Code,
				Message:  apiErr.Message,
				Category: apiErr.Category,
				Action:   apiErr.Action,
				Details:  apiErr.Details,
			},
			Page: toNotificationPageResponse(page),
		})
		return
	}
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationPageResponse(page))
}

// GetPreferences は通知設定を返す。
// GET /api/notification-preferences
func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	pref, err := h.service.GetPreferences(r.Context(), viewer)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreferenceResponse(pref))
}

type preferenceRequest struct {
	EmailNewEvents      *bool `json:"email_new_events"`
	EmailReminders      *bool `json:"email_reminders"`
	ReminderHoursBefore *int  `json:"reminder_hours_before"`
}

// SavePreferences は通知設定を保存する。省略した項目は現在値を維持する。
// PUT /api/notification-preferences
func (h *NotificationHandler) SavePreferences(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req preferenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pref, err := h.service.SavePreferences(r.Context(), viewer, notification.PreferenceInput{
		EmailNewEvents:      req.EmailNewEvents,
		EmailReminders:      req.EmailReminders,
		ReminderHoursBefore: req.ReminderHoursBefore,
	})
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreferenceResponse(pref))
}
