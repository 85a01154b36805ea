package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/sundays/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder
	ViewerResolver    middleware.ViewerResolver
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	HSTS              bool
	RequestTimeout    time.Duration
	RateLimiter       *middleware.RateLimiter

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	UserService         UserServiceInterface
	ModerationService   ModerationServiceInterface
	SocialService       SocialServiceInterface
	NotificationService NotificationServiceInterface
	MessageService      MessageServiceInterface
	MessagePollInterval time.Duration
	DirectoryService    DirectoryServiceInterface
	AdminService        AdminServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → SecurityHeaders → CORS
//	  → [/api] CSRF → Session(必須/任意) → RateLimit(General) → Timeout
//
// 認証ルート（/auth/*）と運用エンドポイントはセッション解決の外に配置する。
// メッセージのストリーム配信は長時間接続になるためTimeoutを適用しない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	modHandler := NewModerationHandler(deps.ModerationService)
	socialHandler := NewSocialHandler(deps.SocialService)
	notifHandler := NewNotificationHandler(deps.NotificationService)
	msgHandler := NewMessageHandler(deps.MessageService, deps.MessagePollInterval)
	dirHandler := NewDirectoryHandler(deps.DirectoryService)
	adminHandler := NewAdminHandler(deps.AdminService)

	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	// --- 運用エンドポイント ---
	if deps.HealthChecker != nil {
		r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証ルート（OAuthフロー） ---
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// --- 未ログインでも参照できるルート ---
		// ログイン中であれば非表示設定とフォロー状態が反映される
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewOptionalViewerMiddleware(deps.ViewerResolver))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(chimw.Timeout(timeout))

			r.Get("/api/locations", dirHandler.ListLocations)
			r.Get("/api/locations/{id}", dirHandler.GetLocation)
			r.Get("/api/locations/{id}/reviews", dirHandler.ListReviews)
			r.Get("/api/locations/{id}/deals", dirHandler.ListDeals)
			r.Get("/api/events", dirHandler.ListEvents)
			r.Get("/api/feed", dirHandler.Feed)
			r.Get("/api/feed/{id}/comments", dirHandler.ListComments)
			r.Get("/api/organizers/{email}", dirHandler.Organizer)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.ViewerResolver))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			// ストリーム配信はクライアントが切断するまで継続する
			r.Get("/api/conversations/{id}/stream", msgHandler.Stream)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(timeout))

				// 通報と非表示
				r.With(deps.RateLimiter.ReportMiddleware()).Post("/api/reports", modHandler.CreateReport)
				r.Get("/api/hidden", modHandler.ListHidden)
				r.Post("/api/hidden", modHandler.Hide)
				r.Delete("/api/hidden/{id}", modHandler.Unhide)

				// お気に入り・イベント保存・フォロー
				r.Post("/api/locations/{id}/favorite/toggle", socialHandler.ToggleFavorite)
				r.Put("/api/locations/{id}/favorite", socialHandler.SetFavorite)
				r.Get("/api/favorites", socialHandler.ListFavorites)
				r.Post("/api/events/{id}/save/toggle", socialHandler.ToggleSave)
				r.Put("/api/events/{id}/save", socialHandler.SetSaved)
				r.Get("/api/saved-events", socialHandler.ListSavedEvents)
				r.Post("/api/organizers/{email}/follow/toggle", socialHandler.ToggleFollow)

				// 購読
				r.Get("/api/subscriptions", socialHandler.ListSubscriptions)
				r.Post("/api/subscriptions/categories", socialHandler.SubscribeToCategory)
				r.Delete("/api/subscriptions/{id}", socialHandler.Unsubscribe)

				// 通知
				r.Get("/api/notifications", notifHandler.List)
				r.Post("/api/notifications/read-all", notifHandler.MarkAllRead)
				r.Post("/api/notifications/{id}/read", notifHandler.MarkRead)
				r.Get("/api/notification-preferences", notifHandler.GetPreferences)
				r.Put("/api/notification-preferences", notifHandler.SavePreferences)

				// メッセージ
				r.Get("/api/conversations", msgHandler.ListConversations)
				r.With(deps.RateLimiter.ReportMiddleware()).Post("/api/conversations", msgHandler.StartConversation)
				r.Get("/api/conversations/{id}", msgHandler.OpenConversation)
				r.With(deps.RateLimiter.ReportMiddleware()).Post("/api/conversations/{id}/messages", msgHandler.SendMessage)

				// 投稿
				r.Post("/api/locations", dirHandler.CreateLocation)
				r.Post("/api/events", dirHandler.CreateEvent)
				r.Post("/api/locations/{id}/reviews", dirHandler.CreateReview)
				r.Post("/api/locations/{id}/deals", dirHandler.PostDeal)
				r.With(deps.RateLimiter.ReportMiddleware()).Post("/api/feed/{id}/comments", dirHandler.AddComment)

				// ユーザー管理
				r.Get("/api/users/me", userHandler.GetMe)
				r.Patch("/api/users/me", userHandler.UpdateMe)
				r.Delete("/api/users/me", userHandler.Withdraw)
				r.Get("/api/users/me/reports", modHandler.MyReports)
				r.Get("/api/users/me/reviews", dirHandler.MyReviews)
				r.Get("/api/users/me/submissions", dirHandler.MySubmissions)

				// --- 管理者ルート ---
				r.Route("/api/admin", func(r chi.Router) {
					r.Use(middleware.RequireAdmin)

					r.Get("/reports", modHandler.ListReports)
					r.Put("/reports/{id}", modHandler.ResolveReport)
					r.Get("/pending", adminHandler.ListPending)
					r.Post("/locations/{id}/featured", adminHandler.SetFeatured)
				r.Put("/locations/{id}/owner", adminHandler.AssignLocationOwner)
					r.Put("/users/{id}/role", adminHandler.UpdateUserRole)
					r.Post("/{type}/{id}/approve", adminHandler.Approve)
					r.Delete("/{type}/{id}", adminHandler.DeleteContent)
				})
			})
		})
	})

	return r
}
