// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
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

	"github.com/hitoshi/talktome/internal/auth"
	"github.com/hitoshi/talktome/internal/config"
	"github.com/hitoshi/talktome/internal/connection"
	"github.com/hitoshi/talktome/internal/database"
	"github.com/hitoshi/talktome/internal/directory"
	"github.com/hitoshi/talktome/internal/feedback"
	"github.com/hitoshi/talktome/internal/handler"
	"github.com/hitoshi/talktome/internal/logger"
	"github.com/hitoshi/talktome/internal/messaging"
	"github.com/hitoshi/talktome/internal/metrics"
	"github.com/hitoshi/talktome/internal/middleware"
	"github.com/hitoshi/talktome/internal/openai"
	"github.com/hitoshi/talktome/internal/repository"
	"github.com/hitoshi/talktome/internal/security"
	"github.com/hitoshi/talktome/internal/session"
	"github.com/hitoshi/talktome/internal/transcribe"
	"github.com/hitoshi/talktome/internal/worker/cleanup"
)

// uploadSweepInterval はアップロード掃除ジョブの実行間隔。
const uploadSweepInterval = 15 * time.Minute

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
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
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	connRepo := repository.NewPostgresConnectionRepo(db)
	msgRepo := repository.NewPostgresMessageRepo(db)

	// 3. セッションストアの初期化（インメモリ、スライディングTTL）
	sessions := session.NewMemoryStore(cfg.SessionTTL)
	defer sessions.Stop()

	// 4. メトリクスとリアルタイム配信の初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	hub := messaging.NewHub(collector)

	// 5. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessions)
	directoryService := directory.NewService(userRepo, sessions)
	connectionService := connection.NewService(userRepo, connRepo)

	sanitizer := security.NewContentSanitizer()
	messageService := messaging.NewService(msgRepo, userRepo, hub, sanitizer, collector)

	// OpenAIクライアントは文字起こしとフィードバック生成で共有する。
	// 呼び出しごとのデッドラインは各サービス側のタイムアウトが与える。
	openaiClient := openai.NewClient(
		&http.Client{Timeout: cfg.TranscribeTimeout + 30*time.Second},
		slog.Default(),
		cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.SpeechModel, cfg.ChatModel,
	)
	transcribeService := transcribe.NewService(openaiClient, collector, cfg.TranscribeTimeout)
	feedbackService := feedback.NewService(openaiClient, collector, cfg.FeedbackTimeout)

	// 6. レート制限の構築（configはreq/min単位なのでreq/secに変換）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.MessageRate = rate.Limit(float64(cfg.RateLimitMessage) / 60.0)
	rateLimiterCfg.MessageBurst = cfg.RateLimitMessage

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Collector:         collector,

		AuthService:       authService,
		DirectoryService:  directoryService,
		ConnectionService: connectionService,
		MessageService:    messageService,
		TranscribeService: transcribeService,
		FeedbackService:   feedbackService,

		Hub: hub,
		PracticeConfig: handler.PracticeHandlerConfig{
			UploadDir:     cfg.UploadDir,
			UploadMaxSize: cfg.UploadMaxSize,
		},

		DB:       db,
		Gatherer: registry,
	})

	// 8. アップロード掃除ジョブをバックグラウンドで起動
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	cleanupJob := cleanup.NewCleanupJob(cfg.UploadDir, slog.Default(), cfg.UploadRetention)
	go cleanupJob.Start(jobCtx, uploadSweepInterval)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 120 * time.Second, // 音声アップロードを許容する
		IdleTimeout: 60 * time.Second,
		// WriteTimeoutはSSE接続を切断してしまうため設定しない
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

	cancelJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
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
