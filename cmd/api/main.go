package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"venue-outreach/internal/audit"
	"venue-outreach/internal/auth"
	"venue-outreach/internal/config"
	"venue-outreach/internal/events"
	"venue-outreach/internal/extraction"
	"venue-outreach/internal/notify"
	"venue-outreach/internal/outreach"
	"venue-outreach/internal/reporting"
	"venue-outreach/internal/venues"
	"venue-outreach/internal/voice"
	"venue-outreach/pkg/logger"
	"venue-outreach/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Storage
	store := outreach.NewPostgresStore(db)
	venueRepo := venues.NewPostgresRepo(db)
	eventRepo := events.NewPostgresRepo(db)
	auditor := audit.NewService(audit.NewMemoryRepo())

	// Outbound integrations
	provider, err := voice.NewVapiProvider(voice.VapiConfig{
		BaseURL:       cfg.Vapi.BaseURL,
		APIKey:        cfg.Vapi.APIKey,
		PhoneNumberID: cfg.Vapi.PhoneNumberID,
		AssistantID:   cfg.Vapi.AssistantID,
	})
	if err != nil {
		log.Error("voice provider init failed", "err", err)
		os.Exit(1)
	}
	extractor, err := extraction.NewHTTPExtractor(extraction.HTTPConfig{
		URL:    cfg.Extraction.URL,
		APIKey: cfg.Extraction.APIKey,
	})
	if err != nil {
		log.Error("extractor init failed", "err", err)
		os.Exit(1)
	}
	notifier, err := notify.NewHTTPNotifier(notify.HTTPConfig{
		URL:    cfg.Notify.URL,
		APIKey: cfg.Notify.APIKey,
	})
	if err != nil {
		log.Error("notifier init failed", "err", err)
		os.Exit(1)
	}

	// Shared dispatch cap across orchestrator instances.
	limiter, err := utils.NewDispatchCap(rdb, "outreach:dispatch_cap", cfg.Outreach.DispatchCapLimit, cfg.Outreach.DispatchCapTTL)
	if err != nil {
		log.Error("dispatch cap init failed", "err", err)
		os.Exit(1)
	}

	// Orchestration
	finalizer := outreach.NewFinalizer(store, venueRepo, eventRepo, extractor, notifier, auditor)
	correlator := outreach.NewCorrelator(store, finalizer, auditor)
	scheduler := outreach.NewScheduler(store, venueRepo, provider, finalizer, limiter, auditor, outreach.SchedulerConfig{
		Concurrency: cfg.Outreach.DispatchConcurrency,
	})
	watcher := outreach.NewWatcher(store, provider, correlator, auditor, outreach.WatcherConfig{
		Deadline:    cfg.Outreach.DispatchDeadline,
		Interval:    cfg.Outreach.WatcherInterval,
		Concurrency: cfg.Outreach.PollConcurrency,
	})
	watcher.Start(logger.With(rootCtx, log))

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:        cfg,
		auth:       authManager,
		store:      store,
		events:     eventRepo,
		intake:     eventRepo,
		scheduler:  scheduler,
		correlator: correlator,
		reports:    reporting.NewService(store, venueRepo),
		db:         db,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Let the watcher finish its in-flight tick before the process exits.
	watcher.Wait()
}
