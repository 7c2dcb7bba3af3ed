// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-channel-autopilot/internal/config"
	"telegram-channel-autopilot/internal/domain/ports/adapter"
	aiAdapters "telegram-channel-autopilot/internal/infra/adapters/ai"
	tele "telegram-channel-autopilot/internal/infra/adapters/telegram"
	pg "telegram-channel-autopilot/internal/infra/db/postgres"
	"telegram-channel-autopilot/internal/infra/logging"
	"telegram-channel-autopilot/internal/infra/metrics"
	red "telegram-channel-autopilot/internal/infra/redis"
	"telegram-channel-autopilot/internal/infra/sched"
	"telegram-channel-autopilot/internal/infra/web"
	"telegram-channel-autopilot/internal/usecase"
)

const telegramTimeout = 15 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, insecure cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	botRepo := pg.NewPostgresBotRepo(pool)
	logRepo := pg.NewPostLogRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- AI adapter ----
	var gen adapter.ContentGenerator
	var defaultKey string
	switch cfg.AI.Provider {
	case "deepseek":
		gen = aiAdapters.NewDeepSeekAdapter(cfg.AI.DeepSeekURL)
		defaultKey = cfg.AI.DeepSeekKey
		logger.Info().
			Str("base", cfg.AI.DeepSeekURL).
			Str("model", cfg.AI.DefaultModel).
			Str("key", logging.Redact(defaultKey, cfg.Runtime.Dev)).
			Msg("AI adapter: DeepSeek")
	case "gemini":
		gen, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		defaultKey = cfg.AI.GeminiKey
		logger.Info().
			Str("model", cfg.AI.DefaultModel).
			Str("key", logging.Redact(defaultKey, cfg.Runtime.Dev)).
			Msg("AI adapter: Gemini")
	default:
		log.Fatalf("unknown ai.provider %q: expected deepseek or gemini", cfg.AI.Provider)
	}

	// ---- Telegram ----
	tg := tele.NewClient(cfg.Telegram.APIEndpoint, telegramTimeout)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatalf("scheduler.timezone: %v", err)
	}

	// ---- Use cases ----
	dispatchUC := usecase.NewDispatchUseCase(botRepo, logRepo, gen, tg, defaultKey, cfg.AI.DefaultModel, loc, logger)
	botUC := usecase.NewBotUseCase(botRepo, logRepo, txManager, tg, cfg.Admin.BaseURL, logger)
	logUC := usecase.NewLogUseCase(logRepo)
	webhookUC := usecase.NewWebhookUseCase(botRepo, logRepo, tg, logger)

	// ---- Metrics ----
	metrics.MustRegister()

	// ---- HTTP console ----
	auth := web.NewAuthManager(cfg.Admin.Password, cfg.Admin.JWTSecret, cfg.Admin.SecureCookie, cfg.Admin.SessionTTL)
	srv := web.NewServer(botUC, dispatchUC, logUC, webhookUC, auth, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Admin.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http console listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Dispatch worker ----
	worker := sched.NewDispatchWorker(cfg.Scheduler.Interval, dispatchUC, locker, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
