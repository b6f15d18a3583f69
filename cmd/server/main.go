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

	"eduoj/internal/actionlog"
	"eduoj/internal/admin"
	"eduoj/internal/alertlog"
	"eduoj/internal/archive"
	"eduoj/internal/common/cache"
	"eduoj/internal/common/db"
	"eduoj/internal/common/http/middleware"
	"eduoj/internal/controller"
	"eduoj/internal/judge/judge0"
	judgesvc "eduoj/internal/judge/service"
	"eduoj/internal/problems"
	"eduoj/internal/realtime"
	"eduoj/internal/scoreboard"
	"eduoj/internal/settings"
	appErr "eduoj/pkg/errors"
	"eduoj/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	defaultConfigPath      = "configs/server.yaml"
	defaultShutdownTimeout = 10 * time.Second
)

func main() {
	// .env is optional; it only matters for local development.
	_ = godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	database, err := db.NewPostgresWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(ctx, "init database failed", zap.Error(err))
		return
	}
	defer func() { _ = database.Close() }()
	dbProvider := db.NewStaticProvider(database)

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(ctx, "init redis failed", zap.Error(err))
		return
	}
	defer func() { _ = redisCache.Close() }()

	if err := os.MkdirAll(appCfg.UploadRoot, 0o755); err != nil {
		logger.Error(ctx, "create upload directory failed", zap.Error(err))
		return
	}
	store := archive.NewStore(appCfg.UploadRoot)

	registry := problems.NewRegistry()
	resolver := problems.NewResolver(registry)

	settingsRepo := settings.NewRepository(dbProvider, redisCache)
	settingsService, err := settings.NewService(settingsRepo, registry)
	if err != nil {
		logger.Error(ctx, "init settings service failed", zap.Error(err))
		return
	}

	scoresRepo := scoreboard.NewRepository(dbProvider)
	actionsRepo := actionlog.NewRepository(dbProvider)
	alertsRepo := alertlog.NewRepository(dbProvider)

	hub := realtime.NewHub()
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	alertService, err := alertlog.NewService(alertsRepo, actionsRepo, hub)
	if err != nil {
		logger.Error(ctx, "init alert service failed", zap.Error(err))
		return
	}

	judgeClient := judge0.NewClient(appCfg.Judge.URL)
	judgeService, err := judgesvc.NewService(store, resolver, registry, judgeClient, scoresRepo, hub, judgesvc.Config{
		LanguageID: appCfg.Judge.LanguageID,
		Limits: judge0.Limits{
			CPUTimeMs:  appCfg.Judge.CPUTimeMs,
			WallTimeMs: appCfg.Judge.WallTimeMs,
			MemoryKB:   appCfg.Judge.MemoryKB,
		},
		SourceEncoding: appCfg.Judge.SourceEncoding,
	})
	if err != nil {
		logger.Error(ctx, "init judge service failed", zap.Error(err))
		return
	}

	authService, err := admin.NewAuthService(appCfg.Admin)
	if err != nil {
		logger.Error(ctx, "init admin auth failed", zap.Error(err))
		return
	}

	restoreService, err := admin.NewRestoreService(dbProvider, settingsService, scoresRepo, actionsRepo, alertsRepo)
	if err != nil {
		logger.Error(ctx, "init restore service failed", zap.Error(err))
		return
	}

	if err := restoreService.EnsureSchema(ctx); err != nil {
		logger.Error(ctx, "ensure schema failed", zap.Error(err))
		return
	}
	if _, err := settingsService.LoadConfig(ctx); err != nil {
		if appErr.Is(err, appErr.SettingNotFound) {
			logger.Warn(ctx, "no configuration document stored yet")
		} else {
			logger.Error(ctx, "load configuration failed", zap.Error(err))
			return
		}
	}

	userCtl := controller.NewUserController(store, settingsService, actionsRepo, hub, dbProvider, redisCache)
	adminCtl := controller.NewAdminController(authService, judgeService, store, scoresRepo, actionsRepo, alertsRepo, alertService, restoreService, settingsService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceContextMiddleware())
	router.Use(requestLogger())
	controller.RegisterRoutes(router, userCtl, adminCtl, authService)

	httpServer := &http.Server{
		Addr:    appCfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
