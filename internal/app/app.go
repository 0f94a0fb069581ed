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
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/hitoshi/bizdesk/internal/appcontext"
	"github.com/hitoshi/bizdesk/internal/auth"
	"github.com/hitoshi/bizdesk/internal/authclient"
	"github.com/hitoshi/bizdesk/internal/config"
	"github.com/hitoshi/bizdesk/internal/console"
	"github.com/hitoshi/bizdesk/internal/database"
	"github.com/hitoshi/bizdesk/internal/handler"
	"github.com/hitoshi/bizdesk/internal/logger"
	"github.com/hitoshi/bizdesk/internal/metrics"
	"github.com/hitoshi/bizdesk/internal/middleware"
	"github.com/hitoshi/bizdesk/internal/model"
	"github.com/hitoshi/bizdesk/internal/repository"
	"github.com/hitoshi/bizdesk/internal/storage"
	"github.com/hitoshi/bizdesk/internal/user"
	"github.com/hitoshi/bizdesk/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
// クライアントコマンドは画面出力をwへ、ログをos.Stderrへ書き出す。
func Run(w io.Writer, args []string) error {
	return run(w, os.Stderr, args)
}

func run(out, logw io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	var flagArgs []string
	if len(args) > 1 {
		flagArgs = args[1:]
	}

	if cmd.IsClient() {
		cfg, err := Init(logw)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		return runClient(cfg, cmd, flagArgs, out)
	}

	cfg, err := Init(out)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, flagArgs)
	case CommandSeedUser:
		return runSeedUser(cfg, flagArgs)
	default:
		return runServe(cfg)
	}
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

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})
	userService := user.NewService(userRepo, sessionRepo, slog.Default())

	// 4. メトリクスとレートリミッター
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitLogin))
	defer rateLimiter.Stop()

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		AuthService:       authService,
		UserService:       userService,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの定期削除を、シグナルを受信するまで続ける。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	cleanup.NewCleanupJob(db, slog.Default()).Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 既定ではすべての未適用マイグレーションを順番に適用し、--down Nの場合はN段階巻き戻す。
func runMigrate(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet(string(CommandMigrate), pflag.ContinueOnError)
	down := fs.Int("down", 0, "巻き戻すマイグレーションの段数")
	if err := fs.Parse(args); err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("down", *down),
	)

	var (
		status database.MigrationStatus
		err    error
	)
	if *down > 0 {
		status, err = database.RollbackMigrations(cfg.DatabaseURL, *down)
	} else {
		status, err = database.RunMigrations(cfg.DatabaseURL)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("dirty", status.Dirty),
		slog.Bool("empty", status.Empty),
	)
	return nil
}

// runSeedUser はパスワード付きのユーザーを作成する。
// ログイン画面の動作確認や初期管理者の投入に使う。
func runSeedUser(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet(string(CommandSeedUser), pflag.ContinueOnError)
	email := fs.String("email", "", "ユーザーのメールアドレス")
	name := fs.String("name", "", "表示名")
	password := fs.String("password", "", "ログインパスワード")
	role := fs.String("role", string(model.RoleUser), "ロール (admin|user|creator)")
	verified := fs.Bool("verified", false, "メールアドレスを確認済みとして作成する")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := auth.NewService(
		repository.NewPostgresUserRepo(db),
		repository.NewPostgresSessionRepo(db),
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	u, err := svc.CreateUser(context.Background(), auth.CreateUserInput{
		Email:      *email,
		Name:       *name,
		Password:   *password,
		Role:       model.Role(*role),
		IsVerified: *verified,
	})
	if err != nil {
		return fmt.Errorf("failed to seed user: %w", err)
	}

	slog.Info("user created",
		slog.String("user_id", u.ID),
		slog.String("role", string(u.Role)),
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

// runClient はCLIクライアントとしてAppContextを組み立て、コマンドを1つ実行する。
// 実行後の状態を画面に表示して終了する。
func runClient(cfg *config.Config, cmd Command, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet(string(cmd), pflag.ContinueOnError)
	fs.SetOutput(out)
	email := fs.String("email", "", "ログインに使うメールアドレス")
	password := fs.String("password", "", "ログインパスワード")
	themeName := fs.String("set", "", "変更後のテーマ (light|dark)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var newTheme model.Theme
	if cmd == CommandTheme && *themeName != "" {
		t, ok := model.ParseTheme(*themeName)
		if !ok {
			return fmt.Errorf("unknown theme %q: use light or dark", *themeName)
		}
		newTheme = t
	}
	if cmd == CommandLogin && (*email == "" || *password == "") {
		return errors.New("--email and --password are required")
	}

	st, err := storage.NewFileStorage(cfg.StateFile, slog.Default())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewClientCollector(reg)
	if cfg.ClientMetricsFile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.ClientMetricsFile, reg); err != nil {
				slog.Warn("クライアントメトリクスの書き出しに失敗しました",
					slog.String("path", cfg.ClientMetricsFile),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	presenter := console.NewPresenter(out)
	client := authclient.NewClient(
		cfg.APIBaseURL,
		&http.Client{Timeout: cfg.HTTPTimeout},
		rate.NewLimiter(rate.Limit(cfg.ClientRateLimit), 1),
		collector,
		slog.Default(),
	)
	provider := appcontext.NewProvider(client, client, st, appcontext.Options{
		Logger:          slog.Default(),
		Presenter:       presenter,
		Metrics:         collector,
		DefaultDuration: cfg.NotificationDuration,
	})
	defer provider.Close()

	unsubscribe := provider.Subscribe(presenter.Listen)
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider.Init(ctx)

	switch cmd {
	case CommandLogin:
		if err := provider.Login(ctx, *email, *password); err != nil {
			return err
		}
	case CommandLogout:
		provider.Logout(ctx)
	case CommandTheme:
		if newTheme != "" {
			provider.SetTheme(newTheme)
		}
	}

	presenter.PrintState(provider.State())
	return nil
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Connect(context.Background(), cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("database connection established",
		slog.Int("max_open_conns", cfg.DBMaxOpenConns),
	)
	return db, nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
