package middleware

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/sundays/internal/model"
)

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusInternalServerError,
		model.NewPartialFailureError("一部の通知を既読にできませんでした。", []string{"n-1", "n-3"}))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodePartialFailure || body.Category != "system" || body.Action == "" {
		t.Errorf("unexpected body: %+v", body)
	}
	if len(body.Details) != 2 || body.Details[0] != "n-1" {
		t.Errorf("Details = %v", body.Details)
	}
}

func TestWriteErrorResponse_OmitsEmptyDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("bad"))

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if _, ok := raw["details"]; ok {
		t.Error("details should be omitted when empty")
	}
}

// timeoutErr はnet.Errorを満たすテスト用エラー。
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestWriteServiceError_MapsStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		want     int
	}{
		{"検証エラー", model.NewValidationError("x"), model.ErrCodeValidation, http.StatusBadRequest},
		{"禁止操作", model.NewInvalidOperationError("x"), model.ErrCodeInvalidOperation, http.StatusConflict},
		{"権限不足", model.NewForbiddenError(), model.ErrCodeForbidden, http.StatusForbidden},
		{"未検出", model.NewLocationNotFoundError("l1"), model.ErrCodeLocationNotFound, http.StatusNotFound},
		{"ラップされた未検出", fmt.Errorf("wrap: %w", model.NewConversationNotFoundError("c1")), model.ErrCodeConversationNotFound, http.StatusNotFound},
		{"部分失敗", model.NewPartialFailureError("x", []string{"a"}), model.ErrCodePartialFailure, http.StatusInternalServerError},
		{"接続断", fmt.Errorf("query: %w", driver.ErrBadConn), model.ErrCodeStoreUnavailable, http.StatusServiceUnavailable},
		{"タイムアウト", fmt.Errorf("query: %w", context.DeadlineExceeded), model.ErrCodeStoreUnavailable, http.StatusServiceUnavailable},
		{"ネットワークエラー", fmt.Errorf("dial: %w", timeoutErr{}), model.ErrCodeStoreUnavailable, http.StatusServiceUnavailable},
		{"その他", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteServiceError(w, tt.err)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	var body ErrorResponseBody
	json.NewDecoder(w.Body).Decode(&body)
	if body.Code != "INTERNAL_ERROR" || body.Message != "内部エラーが発生しました。" {
		t.Errorf("unexpected body: %+v", body)
	}
}
