package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/userbase/internal/config"
	"github.com/hitoshi/userbase/internal/database"
	"github.com/hitoshi/userbase/internal/handler"
	"github.com/hitoshi/userbase/internal/logger"
	"github.com/hitoshi/userbase/internal/metrics"
	"github.com/hitoshi/userbase/internal/middleware"
	"github.com/hitoshi/userbase/internal/repository"
	"github.com/hitoshi/userbase/internal/security"
	"github.com/hitoshi/userbase/internal/status"
	"github.com/hitoshi/userbase/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, cfg.LogLevel)

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
		slog.String("app_env", cfg.AppEnv),
		slog.String("port", cfg.ServerPort),
		slog.String("database_url", logger.MaskDatabaseURL(cfg.DatabaseURL)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通できるまで待機する。
func openDatabase(cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.WaitForDatabase(context.Background(), db, cfg.DBConnectRetries, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// newPasswordHasher は設定に応じたコストのbcryptハッシャーを生成する。
// BCRYPT_COSTが未指定の場合はAPP_ENVから導出する。
func newPasswordHasher(cfg *config.Config) *security.PasswordHasher {
	if cost, ok := cfg.BcryptCostOverride(); ok {
		return security.NewPasswordHasher(cost)
	}
	if cfg.IsProduction() {
		return security.NewPasswordHasher(security.ProductionBcryptCost)
	}
	return security.NewPasswordHasher(security.DevelopmentBcryptCost)
}

// newMetricsRegistry はアプリケーションとランタイムのメトリクスを登録したレジストリを返す。
// レート制限の追跡中クライアント数はスクレイプ時にrateLimiterから読み取る。
func newMetricsRegistry(rateLimiter *middleware.RateLimiter) (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "userbase_rate_limiter_clients",
			Help: "レート制限で追跡中のクライアントIP数",
		}, func() float64 {
			return float64(rateLimiter.LimiterCount())
		}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. レート制限とメトリクス（RATE_LIMIT_GENERALはreq/min単位）
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()
	reg, collector := newMetricsRegistry(rateLimiter)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	statusRepo := repository.NewPostgresStatusRepo(db)

	// 4. ドメインサービスの初期化
	hasher := newPasswordHasher(cfg)
	userService := user.NewService(userRepo, hasher, collector)
	statusService := status.NewService(statusRepo)
	ledger := database.NewLedger(cfg.DatabaseURL)

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		MetricsGatherer:   reg,
		UserService:       userService,
		Ledger:            ledger,
		StatusService:     statusService,
		HealthChecker:     db,
	})

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
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Int("bcrypt_cost", hasher.Cost()),
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

// runMigrate は未適用のマイグレーションをすべて順番に適用する。
// 適用対象がない場合も成功として終了する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", logger.MaskDatabaseURL(cfg.DatabaseURL)),
	)

	// コンテナ起動直後はDBの準備が整っていないことがある
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := database.NewLedger(cfg.DatabaseURL).ApplyPending(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if result.Outcome == database.OutcomeNonePending {
		slog.Info("no pending migrations")
		return nil
	}

	names := make([]string, 0, len(result.Applied))
	for _, m := range result.Applied {
		names = append(names, m.Name)
	}
	slog.Info("database migrations completed successfully",
		slog.Int("applied_count", len(result.Applied)),
		slog.String("applied", strings.Join(names, ",")),
	)
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
