package handler

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/sundays/internal/auth"
	"github.com/hitoshi/sundays/internal/middleware"
	"github.com/hitoshi/sundays/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int    // セッションCookieの有効期間（秒）
	StateSecret   string // oauth_state Cookieの署名鍵
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login?return_to=/path
// return_to はログイン後の戻り先で、同一サイトの相対パスのみ受け付ける。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	returnTo := auth.SanitizeReturnTo(r.URL.Query().Get("return_to"))

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    h.signState(state, returnTo),
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil {
		rejectCallback(w, "missing state cookie")
		return
	}
	expected, returnTo, err := h.verifyState(stateCookie.Value)
	if err != nil || state == "" || !hmac.Equal([]byte(expected), []byte(state)) {
		rejectCallback(w, "state mismatch")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("認可コードがありません。"))
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "AUTHENTICATION_FAILED",
			Message:  "ログインに失敗しました。",
			Category: "auth",
			Action:   "もう一度ログインしてください。",
		})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, strings.TrimRight(h.config.BaseURL, "/")+returnTo, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// meResponse はログイン状態の応答。未ログインの場合はUserを含まない。
type meResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *userResponse `json:"user,omitempty"`
}

// Me はログイン状態と現在のユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusOK, meResponse{})
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if errors.Is(err, auth.ErrSessionNotFound) {
		writeJSON(w, http.StatusOK, meResponse{})
		return
	}
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := toUserResponse(user)
	writeJSON(w, http.StatusOK, meResponse{Authenticated: true, User: &resp})
}

func rejectCallback(w http.ResponseWriter, reason string) {
	slog.Warn("oauth state validation failed", slog.String("reason", reason))
	middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("ログイン要求が無効です。"))
}

// signState はstateと戻り先を署名付きのCookie値にまとめる。
// 形式: base64url(state "\n" returnTo) "." hex(HMAC-SHA256)
func (h *AuthHandler) signState(state, returnTo string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(state + "\n" + returnTo))
	return payload + "." + h.mac(payload)
}

// verifyState はsignStateで作ったCookie値を検証し、stateと戻り先を返す。
func (h *AuthHandler) verifyState(value string) (state, returnTo string, err error) {
	payload, sig, ok := strings.Cut(value, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(h.mac(payload))) {
		return "", "", errors.New("invalid state signature")
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", "", err
	}
	state, returnTo, ok = strings.Cut(string(raw), "\n")
	if !ok {
		return "", "", errors.New("malformed state")
	}
	return state, auth.SanitizeReturnTo(returnTo), nil
}

func (h *AuthHandler) mac(payload string) string {
	m := hmac.New(sha256.New, []byte(h.config.StateSecret))
	m.Write([]byte(payload))
	return hex.EncodeToString(m.Sum(nil))
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
