// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string   // エラーコード
	Message  string   // エラーメッセージ
	Category string   // カテゴリ: auth, validation, operation, content, system
	Action   string   // ユーザー向け対処方法
	Details  []string // 部分失敗時に失敗した処理の一覧
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeInvalidOperation     = "INVALID_OPERATION"
	ErrCodePartialFailure       = "PARTIAL_FAILURE"
	ErrCodeStoreUnavailable     = "STORE_UNAVAILABLE"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeLocationNotFound     = "LOCATION_NOT_FOUND"
	ErrCodeEventNotFound        = "EVENT_NOT_FOUND"
	ErrCodeReviewNotFound       = "REVIEW_NOT_FOUND"
	ErrCodeActivityNotFound     = "ACTIVITY_NOT_FOUND"
	ErrCodeReportNotFound       = "REPORT_NOT_FOUND"
	ErrCodeHiddenNotFound       = "HIDDEN_CONTENT_NOT_FOUND"
	ErrCodeSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeNotificationNotFound = "NOTIFICATION_NOT_FOUND"
	ErrCodeConversationNotFound = "CONVERSATION_NOT_FOUND"
	ErrCodeOrganizerNotFound    = "ORGANIZER_NOT_FOUND"
	ErrCodeDealNotFound         = "DEAL_NOT_FOUND"
)

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidOperationError は意味的に禁止された操作のエラーを生成する。
// 書き込みを行う前に検出される。
func NewInvalidOperationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOperation,
		Message:  message,
		Category: "operation",
		Action:   "操作対象を確認してください。",
	}
}

// NewPartialFailureError は複数の書き込みの一部が失敗した場合のエラーを生成する。
// details には失敗した処理を列挙する。
func NewPartialFailureError(message string, details []string) *APIError {
	return &APIError{
		Code:     ErrCodePartialFailure,
		Message:  message,
		Category: "system",
		Action:   "画面を再読み込みして状態を確認し、必要であれば再度お試しください。",
		Details:  details,
	}
}

// NewStoreUnavailableError はデータストアへの接続失敗エラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreUnavailable,
		Message:  "データストアに接続できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewNotFoundError はコンテンツ未検出エラーを生成する。
// 他ユーザーが所有するレコードも存在しないものとして扱う。
func NewNotFoundError(code, what, id string) *APIError {
	return &APIError{
		Code:     code,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %s", what, id),
		Category: "content",
		Action:   "一覧を再読み込みしてください。",
	}
}

// NewLocationNotFoundError は店舗未検出エラーを生成する。
func NewLocationNotFoundError(id string) *APIError {
	return NewNotFoundError(ErrCodeLocationNotFound, "店舗", id)
}

// NewEventNotFoundError はイベント未検出エラーを生成する。
func NewEventNotFoundError(id string) *APIError {
	return NewNotFoundError(ErrCodeEventNotFound, "イベント", id)
}

// NewConversationNotFoundError は会話未検出エラーを生成する。
func NewConversationNotFoundError(id string) *APIError {
	return NewNotFoundError(ErrCodeConversationNotFound, "会話", id)
}

// NewNotificationNotFoundError は通知未検出エラーを生成する。
func NewNotificationNotFoundError(id string) *APIError {
	return NewNotFoundError(ErrCodeNotificationNotFound, "通知", id)
}
