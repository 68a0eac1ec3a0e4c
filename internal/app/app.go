// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/statly/internal/config"
	"github.com/hitoshi/statly/internal/database"
	"github.com/hitoshi/statly/internal/handler"
	"github.com/hitoshi/statly/internal/logger"
	"github.com/hitoshi/statly/internal/metrics"
	"github.com/hitoshi/statly/internal/middleware"
	"github.com/hitoshi/statly/internal/platform"
	"github.com/hitoshi/statly/internal/provider"
	"github.com/hitoshi/statly/internal/repository"
	"github.com/hitoshi/statly/internal/security"
	"github.com/hitoshi/statly/internal/worker/cleanup"
	"github.com/hitoshi/statly/internal/worker/refresh"
)

// sessionCleanupInterval は期限切れセッション削除の実行間隔。
const sessionCleanupInterval = time.Hour

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

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
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newPlatformService はプラットフォーム連携サービスと依存関係を組み立てる。
// serveモードとworkerモードで共通のワイヤリング。
func newPlatformService(cfg *config.Config, db *sql.DB) (*platform.Service, prometheus.Gatherer) {
	userRepo := repository.NewPostgresUserRepo(db)
	bindingRepo := repository.NewPostgresBindingRepo(db)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewProfileSanitizer()
	safeClient := ssrfGuard.NewSafeClient(cfg.UpstreamTimeout, cfg.UpstreamMaxBodySize)

	registry := provider.NewDefaultRegistry(
		safeClient, slog.Default(), ssrfGuard, sanitizer,
		cfg.UpstreamUserAgent, cfg.ScrapeUserAgent,
	)

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	service := platform.NewService(registry, userRepo, bindingRepo, collector, slog.Default())
	return service, promRegistry
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	platformService, gatherer := newPlatformService(cfg, db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// req/min -> req/sec に変換してレートリミッターを構成する
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:      rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:     cfg.RateLimitGeneral / 12,
		VerifyStartRate:  rate.Limit(float64(cfg.RateLimitVerifyStart) / 60.0),
		VerifyStartBurst: 3,
	})
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:      sessionRepo,
		CORSAllowedOrigins: []string{cfg.CORSAllowedOrigin},
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:     rateLimiter,
		Logger:          slog.Default(),
		PlatformService: platformService,
		MetricsHandler:  metrics.Handler(gatherer),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、統計更新スケジューラとセッションクリーンアップを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	platformService, gatherer := newPlatformService(cfg, db)
	bindingRepo := repository.NewPostgresBindingRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	scheduler := refresh.NewScheduler(
		bindingRepo, platformService, slog.Default(),
		cfg.RefreshTTL, cfg.RefreshMaxConcurrent, cfg.RefreshAPIInterval,
	)

	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("refresh_interval", cfg.RefreshInterval),
		slog.Duration("refresh_ttl", cfg.RefreshTTL),
		slog.Int("max_concurrent", cfg.RefreshMaxConcurrent),
	)

	// ワーカーのメトリクスを公開するHTTPサーバーを起動
	metricsServer := newMetricsServer(cfg.MetricsPort, gatherer)
	go func() {
		slog.Info("metrics server starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// セッションクリーンアップをバックグラウンドで起動
	go cleanupJob.Start(ctx, sessionCleanupInterval)

	// 統計更新スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.RefreshInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newMetricsServer はワーカーモードの/metricsエンドポイントを提供する
// HTTPサーバーを組み立てる。APIサーバーと異なり認証を挟まないため、
// composeのbackendネットワーク内からのみ到達できる前提のポートで待ち受ける。
func newMetricsServer(port string, gatherer prometheus.Gatherer) *http.Server {
	return &http.Server{
		Addr:        ":" + port,
		Handler:     metrics.SetupMetricsRoute(gatherer),
		ReadTimeout: 10 * time.Second,
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
