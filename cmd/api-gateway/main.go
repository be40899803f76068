// Package main API Gateway 服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quill-ai-api/internal/application/billing"
	"quill-ai-api/internal/application/generation"
	"quill-ai-api/internal/config"
	"quill-ai-api/internal/infrastructure/llm"
	"quill-ai-api/internal/infrastructure/persistence/postgres"
	"quill-ai-api/internal/infrastructure/persistence/redis"
	"quill-ai-api/internal/interfaces/http/handler"
	"quill-ai-api/internal/interfaces/http/router"
	"quill-ai-api/pkg/logger"
	"quill-ai-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting api-gateway",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 初始化存储
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to connect postgres", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to connect redis", err)
	}
	defer redisClient.Close()

	// 仓储层
	txMgr := postgres.NewTxManager(pgClient)
	accountRepo := postgres.NewAccountRepository(pgClient)
	projectRepo := postgres.NewProjectRepository(pgClient)
	chapterRepo := postgres.NewChapterRepository(pgClient)
	ledgerRepo := postgres.NewCreditLedgerRepository(pgClient)

	// 余额读走缓存，扣减路径透传并失效
	cache := redis.NewCache(redisClient)
	cachedAccounts := redis.NewAccountBalanceCache(accountRepo, cache)

	// 应用层
	pricing := billing.NewPricing(&cfg.Billing)
	recorder := billing.NewRecorder(txMgr, accountRepo, ledgerRepo, cachedAccounts)
	registry := llm.NewRegistry(&cfg.LLM)
	genService := generation.NewService(
		registry,
		pricing,
		generation.NewInFlight(),
		cachedAccounts,
		projectRepo,
		chapterRepo,
		recorder,
	)

	// HTTP 层
	handlers := router.Handlers{
		Health:     handler.NewHealthHandler(pgClient, redisClient),
		Generation: handler.NewGenerationHandler(genService),
		Account:    handler.NewAccountHandler(cachedAccounts, ledgerRepo),
		Project:    handler.NewProjectHandler(projectRepo),
		Chapter:    handler.NewChapterHandler(chapterRepo, projectRepo),
	}
	r := router.New(cfg, handlers, redis.NewRateLimiter(redisClient))

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
