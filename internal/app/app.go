package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/sundays/internal/auth"
	"github.com/hitoshi/sundays/internal/config"
	"github.com/hitoshi/sundays/internal/database"
	"github.com/hitoshi/sundays/internal/directory"
	"github.com/hitoshi/sundays/internal/handler"
	"github.com/hitoshi/sundays/internal/logger"
	"github.com/hitoshi/sundays/internal/media"
	"github.com/hitoshi/sundays/internal/messaging"
	"github.com/hitoshi/sundays/internal/metrics"
	"github.com/hitoshi/sundays/internal/middleware"
	"github.com/hitoshi/sundays/internal/moderation"
	"github.com/hitoshi/sundays/internal/notification"
	"github.com/hitoshi/sundays/internal/repository"
	"github.com/hitoshi/sundays/internal/security"
	"github.com/hitoshi/sundays/internal/social"
	"github.com/hitoshi/sundays/internal/user"
	"github.com/hitoshi/sundays/internal/worker/cleanup"
	"github.com/hitoshi/sundays/internal/worker/reconcile"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// poolOptions はAPIサーバーとワーカーで共通のコネクションプール設定。
var poolOptions = database.PoolOptions{
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
}

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, poolOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// server はAPIサーバーの構成要素。
type server struct {
	router  http.Handler
	limiter *middleware.RateLimiter
}

// newServer はリポジトリ、サービス、ハンドラーをワイヤリングしたAPIサーバーを構築する。
// DB接続の疎通は確認しない。
func newServer(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) *server {
	collector := metrics.NewCollector(reg)

	// セキュリティ
	sanitizer := security.NewTextSanitizer()
	photos := media.NewPhotoVerifier(security.NewURLGuard(), cfg.PhotoVerifyTimeout, cfg.PhotoVerifyEnabled)

	// リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	personalDataRepo := repository.NewPostgresPersonalDataRepo(db)
	locationRepo := repository.NewPostgresLocationRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)
	reviewRepo := repository.NewPostgresReviewRepo(db)
	activityRepo := repository.NewPostgresActivityRepo(db)
	dealRepo := repository.NewPostgresDealRepo(db)
	claimRepo := repository.NewPostgresLocationClaimRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	favoriteRepo := repository.NewPostgresFavoriteRepo(db)
	savedRepo := repository.NewPostgresSavedEventRepo(db)
	followRepo := repository.NewPostgresFollowRepo(db)
	subRepo := repository.NewPostgresEventSubscriptionRepo(db)
	reportRepo := repository.NewPostgresReportRepo(db)
	hiddenRepo := repository.NewPostgresHiddenContentRepo(db)
	notifRepo := repository.NewPostgresNotificationRepo(db)
	prefRepo := repository.NewPostgresNotificationPreferenceRepo(db)
	convRepo := repository.NewPostgresConversationRepo(db)

	// ドメインサービス
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Timeout:      cfg.RequestTimeout,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	modService := moderation.NewService(reportRepo, hiddenRepo, sanitizer, collector)
	socialService := social.NewService(favoriteRepo, savedRepo, followRepo, subRepo, locationRepo, eventRepo, userRepo, collector)
	notifService := notification.NewService(notifRepo, prefRepo, subRepo, collector, cfg.NotificationPageSize, cfg.BatchConcurrency)
	msgService := messaging.NewService(convRepo, userRepo, notifRepo, sanitizer, collector)
	dirService := directory.NewService(directory.Deps{
		Locations:  locationRepo,
		Events:     eventRepo,
		Reviews:    reviewRepo,
		Activities: activityRepo,
		Deals:      dealRepo,
		Claims:     claimRepo,
		Comments:   commentRepo,
		Users:      userRepo,
		Hidden:     modService,
		Follows:    socialService,
		Notifier:   notifService,
		Photos:     photos,
		Sanitizer:  sanitizer,
		Recorder:   collector,
	})
	userService := user.NewService(userRepo, sessionRepo, personalDataRepo, sanitizer, photos)

	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitReport))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		StatusRecorder:    collector,
		ViewerResolver:    authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HSTS:           cfg.CookieSecure,
		RequestTimeout: cfg.RequestTimeout,
		RateLimiter:    limiter,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
			StateSecret:   cfg.SessionSecret,
		},

		UserService:         userService,
		ModerationService:   modService,
		SocialService:       socialService,
		NotificationService: notifService,
		MessageService:      msgService,
		MessagePollInterval: cfg.MessagePollInterval,
		DirectoryService:    dirService,
		AdminService:        dirService,
	})

	return &server{router: router, limiter: limiter}
}

// newRegistry はプロセスとGoランタイムのメトリクスを登録したレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	srv := newServer(cfg, db, newRegistry())
	defer srv.limiter.Stop()

	// メッセージのストリーム配信があるため WriteTimeout は設定せず、
	// 通常のAPIはルーターのTimeoutミドルウェアで打ち切る
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 整合性修復ジョブとセッションクリーンアップジョブを並行して実行し、
// SIGINTまたはSIGTERMシグナルを受信すると両方の終了を待って戻る。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// ワーカーは /metrics を公開しないため、記録はプロセス内に留まる
	collector := metrics.NewCollector(prometheus.NewRegistry())

	reconciler := reconcile.NewReconciler(repository.NewPostgresReconcileRepo(db), collector, slog.Default())
	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresSessionRepo(db), slog.Default())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
		slog.Duration("cleanup_interval", cleanup.DefaultInterval),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reconciler.Start(ctx, cfg.ReconcileInterval)
	}()
	go func() {
		defer wg.Done()
		cleanupJob.Start(ctx, cleanup.DefaultInterval)
	}()
	wg.Wait()

	slog.Info("worker stopped gracefully")
	return nil
}
