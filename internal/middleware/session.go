// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sundays/internal/auth"
	"github.com/hitoshi/sundays/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// viewerContextKey はリクエストコンテキストに閲覧者を格納するためのキー。
var viewerContextKey = contextKey("viewer")

// ViewerResolver はセッションIDから閲覧者を解決するインターフェース。
// セッションが無効な場合は auth.ErrSessionNotFound を返す。
type ViewerResolver interface {
	ResolveViewer(ctx context.Context, sessionID string) (model.Viewer, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 閲覧者をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401を返す。
func NewSessionMiddleware(resolver ViewerResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer, err := resolveFromCookie(r, resolver)
			if err != nil {
				if errors.Is(err, auth.ErrSessionNotFound) {
					WriteUnauthorized(w)
					return
				}
				slog.Error("セッションの解決に失敗しました", slog.String("error", err.Error()))
				WriteServiceError(w, err)
				return
			}
			setLogUserEmail(r.Context(), viewer.Email)
			next.ServeHTTP(w, r.WithContext(ContextWithViewer(r.Context(), viewer)))
		})
	}
}

// NewOptionalViewerMiddleware は有効なセッションがあれば閲覧者を注入し、
// なければ匿名のままリクエストを通すミドルウェアを返す。
// 公開ルートで非表示設定やフォロー状態を反映するために使う。
func NewOptionalViewerMiddleware(resolver ViewerResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer, err := resolveFromCookie(r, resolver)
			if err != nil {
				if !errors.Is(err, auth.ErrSessionNotFound) {
					slog.Warn("任意セッションの解決に失敗しました。匿名として扱います",
						slog.String("error", err.Error()),
					)
				}
				next.ServeHTTP(w, r)
				return
			}
			setLogUserEmail(r.Context(), viewer.Email)
			next.ServeHTTP(w, r.WithContext(ContextWithViewer(r.Context(), viewer)))
		})
	}
}

// RequireAdmin は管理者以外のリクエストに403を返すミドルウェア。
// NewSessionMiddleware の後に配置する。
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer := ViewerFromContext(r.Context())
		if viewer.IsAnonymous() {
			WriteUnauthorized(w)
			return
		}
		if !viewer.IsAdmin() {
			WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func resolveFromCookie(r *http.Request, resolver ViewerResolver) (model.Viewer, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return model.Viewer{}, auth.ErrSessionNotFound
	}
	return resolver.ResolveViewer(r.Context(), cookie.Value)
}

// ViewerFromContext はリクエストコンテキストから閲覧者を取得する。
// 未ログインの場合は匿名の閲覧者を返す。
func ViewerFromContext(ctx context.Context) model.Viewer {
	viewer, _ := ctx.Value(viewerContextKey).(model.Viewer)
	return viewer
}

// ContextWithViewer はコンテキストに閲覧者を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithViewer(ctx context.Context, viewer model.Viewer) context.Context {
	return context.WithValue(ctx, viewerContextKey, viewer)
}
