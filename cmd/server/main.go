package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Kyalo-Caleb/teabot/internal/app/di"
	"github.com/Kyalo-Caleb/teabot/internal/app/router"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/adapters"
	diagnosishandler "github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/transport/handler"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/usecase"
	"github.com/Kyalo-Caleb/teabot/internal/platform/config"
	infradb "github.com/Kyalo-Caleb/teabot/internal/platform/db"
	"github.com/Kyalo-Caleb/teabot/internal/platform/http/handler"
	jwtmw "github.com/Kyalo-Caleb/teabot/internal/platform/jwt"
	"github.com/Kyalo-Caleb/teabot/internal/platform/logging"
	"github.com/Kyalo-Caleb/teabot/internal/platform/metrics"
	infraredis "github.com/Kyalo-Caleb/teabot/internal/platform/redis"
	"github.com/Kyalo-Caleb/teabot/internal/shared/ratelimiter"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config.yaml")
	flag.Parse()

	// .envを読み込む
	if err := godotenv.Load(".env"); err != nil {
		slog.Info(".env not found; using system environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	// モデル
	engine, err := di.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Error("failed to release model", "error", err)
		}
	}()
	slog.Info("model loaded", "backend", cfg.Model.Backend, "path", cfg.Model.Path, "labels", cfg.Labels)

	// Redis
	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(infraredis.LoadConfigFromEnv()); err != nil {
		slog.Warn("Redis unavailable. Running without cache.", "reason", err)
	} else {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close Redis client", "error", err)
			}
		}()
	}

	// DB（推論履歴）
	var db *gorm.DB
	if os.Getenv("HISTORY_DISABLED") == "" {
		db, err = infradb.Open(infradb.LoadConfigFromEnv(), 30*time.Second, &adapters.PredictionModel{})
		if err != nil {
			slog.Warn("history database unavailable. Running without history.", "error", err)
			db = nil
		}
	}

	m := metrics.New()

	// Usecase
	diagnosisUC := usecase.NewDiagnosisUsecase(
		di.NewDetector(cfg, engine, rdb),
		di.NewImageFetcher(cfg),
		di.NewPredictionRepository(db),
		m,
	)

	// Handler
	diagnosisH := diagnosishandler.NewDiagnosisHandler(diagnosisUC,
		diagnosishandler.WithDistinctStatus(cfg.Errors.DistinctStatus))
	healthH := handler.NewHealthHandler(engine)

	opts := router.Options{Metrics: m.Handler()}
	if cfg.RateLimit.RPS > 0 {
		opts.RateLimiter = ratelimiter.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	// JWT_SECRETチェック（開発中の注意喚起）
	if os.Getenv(jwtmw.EnvKeyJWTSecret) == "" {
		slog.Warn("JWT_SECRET is not set. /v1/predictions will reject every request.")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.NewRouter(diagnosisH, healthH, opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
