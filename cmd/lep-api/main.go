package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Artem468/hakaton-ml-lep/internal/cleanup"
	"github.com/Artem468/hakaton-ml-lep/internal/config"
	"github.com/Artem468/hakaton-ml-lep/internal/dbosruntime"
	"github.com/Artem468/hakaton-ml-lep/internal/handlers"
	"github.com/Artem468/hakaton-ml-lep/internal/metrics"
	"github.com/Artem468/hakaton-ml-lep/internal/storage"
	"github.com/Artem468/hakaton-ml-lep/internal/store"
	"github.com/Artem468/hakaton-ml-lep/internal/upload"
	"github.com/Artem468/hakaton-ml-lep/internal/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	ctx := context.Background()

	db, err := gorm.Open(postgres.Open(cfg.DB.URL), &gorm.Config{})
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Error("run migrations", "error", err)
		os.Exit(1)
	}

	objects, err := storage.NewMinioStore(ctx, storage.MinioConfig{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKeyID,
		SecretKey: cfg.S3.SecretAccessKey,
		Bucket:    cfg.S3.Bucket,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		log.Error("connect to object store", "error", err)
		os.Exit(1)
	}

	// Concurrency 0 puts the runtime in client mode: this process only
	// enqueues detect jobs, the worker executes them.
	runtime, err := dbosruntime.NewRuntime(ctx, dbosruntime.Config{
		DatabaseURL:        cfg.Queue.DatabaseURL,
		AppName:            "lep-api",
		QueueName:          cfg.Queue.Name,
		Concurrency:        0,
		ApplicationVersion: cfg.Queue.AppVersion,
	})
	if err != nil {
		log.Error("initialize queue runtime", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	runner := workflows.NewRunner(runtime, cfg.Queue.SoftTimeout(), cfg.Queue.HardTimeout(), m, log)

	if err := runtime.Launch(); err != nil {
		log.Error("launch queue runtime", "error", err)
		os.Exit(1)
	}
	defer runtime.Shutdown(10 * time.Second)

	uploadSvc := upload.NewService(st, objects, runner, cfg.S3.PresignDuration(), log)
	cleaner := cleanup.NewCoordinator(objects, log)
	api := handlers.NewAPI(uploadSvc, st, cleaner, objects, cfg.S3.PresignDuration(), log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	api.Routes(router)
	router.Get("/healthz", handleHealth)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    cfg.HTTP.APIAddr,
		Handler: router,
	}

	go func() {
		log.Info("api server starting", "addr", cfg.HTTP.APIAddr, "queue", runtime.QueueName())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
