package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/sundays/internal/messaging"
	"github.com/hitoshi/sundays/internal/model"
)

// mockMessageService はMessageServiceInterfaceのモック実装。
type mockMessageService struct {
	startFn     func(ctx context.Context, viewer model.Viewer, recipient, eventID string) (*model.Conversation, error)
	sendFn      func(ctx context.Context, viewer model.Viewer, id, content string) (*model.Message, error)
	listFn      func(ctx context.Context, viewer model.Viewer) ([]model.ConversationSummary, error)
	openFn      func(ctx context.Context, viewer model.Viewer, id string) (*model.Conversation, []model.Message, error)
	newPollerFn func(ctx context.Context, viewer model.Viewer, id string, interval time.Duration) (*messaging.Poller, error)
}

func (m *mockMessageService) StartConversation(ctx context.Context, viewer model.Viewer, recipient, eventID string) (*model.Conversation, error) {
	return m.startFn(ctx, viewer, recipient, eventID)
}

func (m *mockMessageService) SendMessage(ctx context.Context, viewer model.Viewer, id, content string) (*model.Message, error) {
	return m.sendFn(ctx, viewer, id, content)
}

func (m *mockMessageService) ListConversations(ctx context.Context, viewer model.Viewer) ([]model.ConversationSummary, error) {
	return m.listFn(ctx, viewer)
}

func (m *mockMessageService) OpenConversation(ctx context.Context, viewer model.Viewer, id string) (*model.Conversation, []model.Message, error) {
	return m.openFn(ctx, viewer, id)
}

func (m *mockMessageService) NewPoller(ctx context.Context, viewer model.Viewer, id string, interval time.Duration) (*messaging.Poller, error) {
	return m.newPollerFn(ctx, viewer, id, interval)
}

func TestMessageHandler_StartConversation_Self(t *testing.T) {
	h := NewMessageHandler(&mockMessageService{
		startFn: func(ctx context.Context, viewer model.Viewer, recipient, eventID string) (*model.Conversation, error) {
			return nil, model.NewInvalidOperationError("自分自身にメッセージは送れません。")
		},
	}, time.Second)

	req := httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader(`{"recipient_email":"member@example.com"}`))
	w := httptest.NewRecorder()
	h.StartConversation(w, withViewer(req, testMember))

	assertError(t, w, http.StatusConflict, model.ErrCodeInvalidOperation)
}

func TestMessageHandler_ListAndOpen(t *testing.T) {
	last := time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC)
	conv := model.Conversation{
		ID:                "conv-1",
		ParticipantEmails: []string{"member@example.com", "seller@example.com"},
		ParticipantNames:  []string{"Member", "Seller"},
		LastMessage:       "まだありますか？",
		LastMessageDate:   &last,
	}
	h := NewMessageHandler(&mockMessageService{
		listFn: func(ctx context.Context, viewer model.Viewer) ([]model.ConversationSummary, error) {
			return []model.ConversationSummary{{Conversation: conv, UnreadCount: 2}}, nil
		},
		openFn: func(ctx context.Context, viewer model.Viewer, id string) (*model.Conversation, []model.Message, error) {
			if id != conv.ID {
				return nil, nil, model.NewConversationNotFoundError(id)
			}
			return &conv, []model.Message{
				{ID: "m-1", Content: "こんにちは", CreatedAt: last.Add(-time.Minute)},
				{ID: "m-2", Content: "まだありますか？", CreatedAt: last},
			}, nil
		},
	}, time.Second)

	w := httptest.NewRecorder()
	h.ListConversations(w, withViewer(httptest.NewRequest(http.MethodGet, "/api/conversations", nil), testMember))
	var list []conversationResponse
	decodeBody(t, w, &list)
	if len(list) != 1 || list[0].UnreadCount != 2 || list[0].LastMessage != conv.LastMessage {
		t.Errorf("unexpected list: %+v", list)
	}

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "conv-1")
	w = httptest.NewRecorder()
	h.OpenConversation(w, withViewer(req, testMember))
	var detail conversationDetailResponse
	decodeBody(t, w, &detail)
	if len(detail.Messages) != 2 || detail.Messages[0].ID != "m-1" {
		t.Errorf("messages should be ascending: %+v", detail.Messages)
	}

	req = withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "not-mine")
	w = httptest.NewRecorder()
	h.OpenConversation(w, withViewer(req, testMember))
	assertError(t, w, http.StatusNotFound, model.ErrCodeConversationNotFound)
}

func TestMessageHandler_SendMessage(t *testing.T) {
	h := NewMessageHandler(&mockMessageService{
		sendFn: func(ctx context.Context, viewer model.Viewer, id, content string) (*model.Message, error) {
			if strings.TrimSpace(content) == "" {
				return nil, model.NewValidationError("メッセージを入力してください。")
			}
			return &model.Message{ID: "m-3", ConversationID: id, SenderEmail: viewer.Email, Content: content}, nil
		},
	}, time.Second)

	req := withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"はい"}`)), "id", "conv-1")
	w := httptest.NewRecorder()
	h.SendMessage(w, withViewer(req, testMember))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}

	req = withChiURLParam(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"   "}`)), "id", "conv-1")
	w = httptest.NewRecorder()
	h.SendMessage(w, withViewer(req, testMember))
	assertError(t, w, http.StatusBadRequest, model.ErrCodeValidation)
}

func TestMessageHandler_Stream_DeliversNewMessages(t *testing.T) {
	created := time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC)
	svc := &mockMessageService{
		newPollerFn: func(ctx context.Context, viewer model.Viewer, id string, interval time.Duration) (*messaging.Poller, error) {
			return messaging.NewPoller(interval, func(ctx context.Context, since *time.Time) ([]model.Message, error) {
				return []model.Message{{ID: "m-1", ConversationID: id, Content: "hello", CreatedAt: created}}, nil
			}), nil
		},
	}
	h := NewMessageHandler(svc, 10*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Stream(w, withViewer(withChiURLParam(r, "id", "conv-1"), testMember))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var event string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			var msgs []messageResponse
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msgs); err != nil {
				t.Fatalf("invalid data: %v", err)
			}
			if event != "messages" || len(msgs) != 1 || msgs[0].ID != "m-1" {
				t.Errorf("event = %q, msgs = %+v", event, msgs)
			}
			return
		}
	}
	t.Fatalf("stream ended without data: %v", scanner.Err())
}

func TestMessageHandler_Stream_Errors(t *testing.T) {
	h := NewMessageHandler(&mockMessageService{
		newPollerFn: func(ctx context.Context, viewer model.Viewer, id string, interval time.Duration) (*messaging.Poller, error) {
			return nil, model.NewConversationNotFoundError(id)
		},
	}, time.Second)

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "not-mine")
	w := httptest.NewRecorder()
	h.Stream(w, withViewer(req, testMember))
	assertError(t, w, http.StatusNotFound, model.ErrCodeConversationNotFound)

	req = withChiURLParam(httptest.NewRequest(http.MethodGet, "/?since=yesterday", nil), "id", "conv-1")
	w = httptest.NewRecorder()
	h.Stream(w, withViewer(req, testMember))
	assertError(t, w, http.StatusBadRequest, model.ErrCodeValidation)
}
