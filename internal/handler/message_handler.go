package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/sundays/internal/messaging"
	"github.com/hitoshi/sundays/internal/middleware"
	"github.com/hitoshi/sundays/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	StartConversation(ctx context.Context, viewer model.Viewer, recipientEmail, eventID string) (*model.Conversation, error)
	SendMessage(ctx context.Context, viewer model.Viewer, conversationID, content string) (*model.Message, error)
	ListConversations(ctx context.Context, viewer model.Viewer) ([]model.ConversationSummary, error)
	OpenConversation(ctx context.Context, viewer model.Viewer, conversationID string) (*model.Conversation, []model.Message, error)
	NewPoller(ctx context.Context, viewer model.Viewer, conversationID string, interval time.Duration) (*messaging.Poller, error)
}

// MessageHandler は会話とメッセージのHTTPハンドラー。
type MessageHandler struct {
	service      MessageServiceInterface
	pollInterval time.Duration
}

// NewMessageHandler はMessageHandlerを生成する。
// pollInterval はストリーム配信でメッセージを再取得する間隔。
func NewMessageHandler(service MessageServiceInterface, pollInterval time.Duration) *MessageHandler {
	return &MessageHandler{service: service, pollInterval: pollInterval}
}

type startConversationRequest struct {
	RecipientEmail string `json:"recipient_email"`
	EventID        string `json:"event_id"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type conversationDetailResponse struct {
	Conversation conversationResponse `json:"conversation"`
	Messages     []messageResponse    `json:"messages"`
}

// ListConversations は自分の会話一覧を返す。
// GET /api/conversations
func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListConversations(r.Context(), viewer)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	out := make([]conversationResponse, 0, len(list))
	for i := range list {
		out = append(out, toConversationResponse(&list[i].Conversation, list[i].UnreadCount))
	}
	writeJSON(w, http.StatusOK, out)
}

// StartConversation は相手との会話を開始する。既存の会話があればそれを返す。
// POST /api/conversations
func (h *MessageHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req startConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	conv, err := h.service.StartConversation(r.Context(), viewer, req.RecipientEmail, req.EventID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conv, 0))
}

// OpenConversation は会話とメッセージを返し、相手からの未読を既読にする。
// GET /api/conversations/{id}
func (h *MessageHandler) OpenConversation(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	conv, messages, err := h.service.OpenConversation(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversationDetailResponse{
		Conversation: toConversationResponse(conv, 0),
		Messages:     toMessageResponses(messages),
	})
}

// SendMessage は会話にメッセージを送信する。
// POST /api/conversations/{id}/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.service.SendMessage(r.Context(), viewer, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

// Stream は会話の新着メッセージをServer-Sent Eventsで配信する。
// クライアントが切断するまで一定間隔で再取得し、新着があれば messages イベントを送る。
// GET /api/conversations/{id}/stream?since=2026-01-02T15:04:05Z
func (h *MessageHandler) Stream(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("since はRFC3339形式で指定してください。"))
			return
		}
		since = &t
	}

	conversationID := chi.URLParam(r, "id")
	poller, err := h.service.NewPoller(r.Context(), viewer, conversationID, h.pollInterval)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		slog.Error("streaming not supported", slog.String("error", err.Error()))
		return
	}

	deliver := func(messages []model.Message) error {
		data, err := json.Marshal(toMessageResponses(messages))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: messages\ndata: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := poller.Run(r.Context(), since, deliver); err != nil {
		slog.Info("message stream closed",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
	}
}
