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

	"github.com/hitoshi/parknote/internal/auth"
	"github.com/hitoshi/parknote/internal/config"
	"github.com/hitoshi/parknote/internal/database"
	"github.com/hitoshi/parknote/internal/expiry"
	"github.com/hitoshi/parknote/internal/geocode"
	"github.com/hitoshi/parknote/internal/handler"
	"github.com/hitoshi/parknote/internal/logger"
	"github.com/hitoshi/parknote/internal/metrics"
	"github.com/hitoshi/parknote/internal/parking"
	"github.com/hitoshi/parknote/internal/security"
	"github.com/hitoshi/parknote/internal/worker/cleanup"
)

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

	// 3. 設定されたログレベルを反映する（Loadで検証済み）
	level, _ := cfg.SlogLevel()
	logger.SetLevel(level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

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
		slog.String("storage_backend", cfg.StorageBackend),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return fmt.Errorf("unsupported command %q", cmd)
	}
}

// newServices は認証サービスと駐車メモサービスを構築する。
func newServices(cfg *config.Config, store *storage, collector metrics.MetricsCollector) (*auth.Service, *parking.Service, error) {
	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return nil, nil, err
	}
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL)

	authService := auth.NewService(store.users, hasher, tokens, collector)
	parkingService := parking.NewService(store.notes, security.NewTextSanitizer(), collector)
	return authService, parkingService, nil
}

// runServe はAPIサーバーモードで起動する。
// ストレージに接続し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストレージ接続
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := openStorage(connectCtx, cfg)
	cancelConnect()
	if err != nil {
		return err
	}
	defer store.close()

	// 2. メトリクス
	registry := newMetricsRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ドメインサービスの初期化
	authService, parkingService, err := newServices(cfg, store, collector)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	// 4. 逆ジオコーディング（外部通信はSSRFGuard経由）
	ssrfGuard := security.NewSSRFGuard()
	if err := ssrfGuard.ValidateURL(cfg.GeocoderURL); err != nil {
		return fmt.Errorf("invalid GEOCODER_URL: %w", err)
	}
	geocoder := geocode.NewClient(
		ssrfGuard.NewSafeClient(cfg.GeocoderTimeout),
		cfg.GeocoderURL,
		slog.Default(),
		collector,
	)

	// 5. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TokenVerifier:     authService,

		HealthChecker: store.health,
		Metrics:       collector,
		Gatherer:      registry,

		AuthService:    authService,
		ParkingService: parkingService,
		Geocoder:       geocoder,
		ExpiryPolicy:   expiry.Policy{SoonThreshold: cfg.ExpirySoonThreshold},
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
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

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
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
// ストレージに接続し、失効メモのクリーンアップジョブを定期実行する。
// 削除件数などのメトリクスはWORKER_METRICS_PORTの /metrics で公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
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

	// 1. ストレージ接続
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	// 2. メトリクスと管理サーバー
	registry := newMetricsRegistry()
	collector := metrics.NewCollector(registry)
	metricsDone := serveWorkerMetrics(ctx, ":"+cfg.WorkerMetricsPort, newWorkerRouter(registry, store.health))

	// 3. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(store.notes, slog.Default(), collector)
	cleanupJob.Retention = cfg.NoteRetention

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("note_retention", cfg.NoteRetention),
		slog.String("metrics_port", cfg.WorkerMetricsPort),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.CleanupInterval)
	<-metricsDone

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はスキーマを最新化する。
// PostgreSQLではすべての未適用マイグレーションを順番に適用し、
// MongoDBではインデックスを作成する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageBackend == config.BackendMongo {
		slog.Info("ensuring mongodb indexes", slog.String("database", cfg.MongoDatabase))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := openStorage(ctx, cfg)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		store.close()

		slog.Info("mongodb indexes ensured")
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runSeed はデモユーザーとデモ用の駐車メモを作成する。
func runSeed(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	authService, parkingService, err := newServices(cfg, store, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	if _, err := seedDemoData(ctx, authService, parkingService, time.Now()); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
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
