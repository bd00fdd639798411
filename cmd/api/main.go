package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"accelerator-portal/internal/adapter/apiclient"
	httpadp "accelerator-portal/internal/adapter/http"
	"accelerator-portal/internal/adapter/middleware"
	"accelerator-portal/internal/adapter/repository/mysql"
	"accelerator-portal/internal/backend"
	"accelerator-portal/internal/config"
	"accelerator-portal/internal/inflight"
	"accelerator-portal/internal/infrastructure/cache"
	"accelerator-portal/internal/infrastructure/db"
	"accelerator-portal/internal/infrastructure/notify"
	"accelerator-portal/internal/infrastructure/storage"
	"accelerator-portal/internal/intake"
	"accelerator-portal/internal/logger"
	"accelerator-portal/internal/usecase/analytics"
	appuc "accelerator-portal/internal/usecase/application"
	"accelerator-portal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Warn("redis unavailable; submit guard and analytics cache disabled",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		rdb = nil
	}

	checks := map[string]httpadp.Check{}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var (
		be    backend.Backend
		decks httpadp.DeckOpener
		api   *httpadp.APIHandler
	)
	if cfg.BackendURL != "" {
		client := apiclient.New(cfg.BackendURL, nil, cfg.AuthHeader, log)
		be, decks = client, client
		log.Info("using remote backend", zap.String("url", cfg.BackendURL))
	} else {
		apps, an, gdb := buildUsecases(ctx, cfg, rdb, log)
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
		be, decks = backend.NewLocal(apps, an, log), apps
		if api, err = httpadp.NewAPIHandler(apps, an, log); err != nil {
			log.Fatal("api handler", zap.Error(err))
		}
	}

	renderer, err := httpadp.NewRenderer(web.Templates())
	if err != nil {
		log.Fatal("templates", zap.Error(err))
	}

	guard := inflight.New()
	pages := httpadp.NewPageHandler(cfg.SiteTheme)
	limiter := middleware.NewRateLimiter(cfg.SubmitRatePerMin, cfg.SubmitRatePerMin, log)
	limiter.StartCleanup(10*time.Minute, ctx.Done())
	checkLimiter := middleware.NewRateLimiter(cfg.ValidateRatePerMin, cfg.ValidateRatePerMin, log)
	checkLimiter.StartCleanup(10*time.Minute, ctx.Done())
	proxies, err := cfg.TrustedProxyNets()
	if err != nil {
		log.Fatal("trusted proxies", zap.Error(err))
	}

	deps := httpadp.Deps{
		Log:           log,
		Renderer:      renderer,
		Pages:         pages,
		Intake:        httpadp.NewIntakeHandler(intake.NewSubmitter(be, guard, log), pages, log),
		Admin:         httpadp.NewAdminHandler(be, decks, guard, log),
		API:           api,
		RateLimit:     limiter.Middleware(),
		ValidateLimit: checkLimiter.Middleware(),
		AdminAuth:     middleware.AdminAuth(cfg.AuthHeader, cfg.AdminEmails, log),
		IPExtractor:   middleware.ClientIP(proxies),
		Metrics:       promhttp.Handler(),
		Checks:        checks,
	}
	if rdb != nil {
		deps.SubmitGuard = middleware.SubmitGuard(rdb, cfg.IdempotencyTTL(), log)
	}
	e := httpadp.NewRouter(deps)

	addr := ":" + cfg.AppPort
	go func() {
		log.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

func buildUsecases(ctx context.Context, cfg *config.Config, rdb *redis.Client, log *zap.Logger) (*appuc.Usecase, *analytics.Usecase, *gorm.DB) {
	gdb, err := db.Open(cfg.DBDriver, cfg.DSN(), log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	files, err := storage.NewDisk(cfg.UploadDir)
	if err != nil {
		log.Fatal("upload dir", zap.Error(err))
	}

	var notifier appuc.Notifier = notify.Nop{}
	if cfg.NotifyEnabled() {
		n, err := notify.NewAWSFromRegion(ctx, cfg.AWSRegion, cfg.NotifyFrom, cfg.NotifyTopicARN, log)
		if err != nil {
			log.Warn("aws notifications disabled", zap.Error(err))
		} else {
			notifier = n
		}
	}

	repo := mysql.NewApplicationRepository(gdb)
	apps := appuc.NewUsecase(repo, mysql.NewGormUoW(gdb), files, notifier, log)

	var an *analytics.Usecase
	if rdb != nil {
		an = analytics.NewUsecase(repo, cache.NewRedisCache(rdb, "accelerator:"), cfg.AnalyticsCacheTTL(), log)
	} else {
		an = analytics.NewUsecase(repo, nil, 0, log)
	}
	return apps, an, gdb
}
