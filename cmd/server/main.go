package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/api/handler"
	"github.com/msyamrijal/jadwal-website/internal/api/router"
	"github.com/msyamrijal/jadwal-website/internal/realtime"
	"github.com/msyamrijal/jadwal-website/internal/repository"
	"github.com/msyamrijal/jadwal-website/internal/service"
	"github.com/msyamrijal/jadwal-website/internal/tasks"
	"github.com/msyamrijal/jadwal-website/pkg/database"
	"github.com/msyamrijal/jadwal-website/pkg/jwt"
	applogger "github.com/msyamrijal/jadwal-website/pkg/logger"
	"github.com/msyamrijal/jadwal-website/pkg/metrics"
	"github.com/msyamrijal/jadwal-website/pkg/redis"
	"github.com/msyamrijal/jadwal-website/pkg/webpush"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config/config.yaml)")
	genVAPID := flag.Bool("gen-vapid-keys", false, "print a new VAPID key pair and exit")
	flag.Parse()

	if *genVAPID {
		priv, pub, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate VAPID keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("JADWAL_PUSH_VAPID_PUBLIC_KEY=%s\nJADWAL_PUSH_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	// 1. config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. logger
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting jadwaluna",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.Schedule.Timezone),
	)

	// 3. database + migrations
	db, err := database.NewDB(&cfg.Database, &cfg.Log, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to get sql.DB", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// 4. Redis is optional: without it logout revocation, rate limiting
	// and the notifier lock are skipped
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, running degraded", zap.Error(err))
		rdb = nil
	}

	// 5. shared infrastructure
	jwtMgr := jwt.NewManager(&cfg.Auth)
	m := metrics.New()

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	hub := realtime.NewHub(cfg.Server.CORS.AllowOrigins, logger)
	go hub.Run(rootCtx)

	infra := &service.Infra{
		Events:  hub,
		Metrics: m,
	}
	if rdb != nil {
		infra.Tokens = rdb
		infra.Locker = rdb
	}
	if cfg.Push.Enabled {
		infra.Push = webpush.NewSender(&cfg.Push, &http.Client{Timeout: 30 * time.Second}, logger)
	} else {
		logger.Info("web push disabled")
	}

	// 6. Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, jwtMgr, infra, logger)

	deps := handler.Deps{DB: repo, Hub: hub}
	if rdb != nil {
		deps.Redis = rdb
	}
	h := handler.NewHandler(cfg, svc, deps)

	engine := router.Setup(cfg, h, jwtMgr, rdb, m, logger)

	// 7. daily notifier
	var scheduler *tasks.Scheduler
	if cfg.Push.Enabled {
		scheduler, err = tasks.NewScheduler(cfg, svc.Notification, logger)
		if err != nil {
			logger.Fatal("failed to create notifier schedule", zap.Error(err))
		}
		scheduler.Start()
	}

	// 8. HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Error("notifier did not stop in time", zap.Error(err))
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	// closes websocket clients
	stopRoot()

	if err := sqlDB.Close(); err != nil {
		logger.Error("failed to close database", zap.Error(err))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("failed to close redis", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}
