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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Artem468/hakaton-ml-lep/internal/config"
	"github.com/Artem468/hakaton-ml-lep/internal/dbosruntime"
	"github.com/Artem468/hakaton-ml-lep/internal/detect"
	"github.com/Artem468/hakaton-ml-lep/internal/gps"
	"github.com/Artem468/hakaton-ml-lep/internal/metrics"
	"github.com/Artem468/hakaton-ml-lep/internal/storage"
	"github.com/Artem468/hakaton-ml-lep/internal/store"
	"github.com/Artem468/hakaton-ml-lep/internal/workflows"
	"github.com/Artem468/hakaton-ml-lep/pkg/pipeline"
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

	detector := detect.NewHTTPDetector(cfg.Detector.InferenceURL, cfg.Queue.SoftTimeout())
	extractor := gps.NewExtractor(gps.FallbackConfig{
		Enabled: cfg.GPSFallback.Enabled,
		BaseLat: cfg.GPSFallback.BaseLat,
		BaseLon: cfg.GPSFallback.BaseLon,
	})

	runtime, err := dbosruntime.NewRuntime(ctx, dbosruntime.Config{
		DatabaseURL:        cfg.Queue.DatabaseURL,
		AppName:            "lep-worker",
		QueueName:          cfg.Queue.Name,
		Concurrency:        cfg.Queue.Concurrency,
		ApplicationVersion: cfg.Queue.AppVersion,
	})
	if err != nil {
		log.Error("initialize queue runtime", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	runner := workflows.NewRunner(runtime, cfg.Queue.SoftTimeout(), cfg.Queue.HardTimeout(), m, log)
	inference := workflows.NewInferenceWorkflow(st, objects, detector, extractor, log)
	runner.Register(pipeline.JobDetect, inference)

	// Launch after workflow registration, the runtime rejects late registrations.
	if err := runtime.Launch(); err != nil {
		log.Error("launch queue runtime", "error", err)
		os.Exit(1)
	}
	defer runtime.Shutdown(10 * time.Second)

	log.Info("worker started",
		"queue", runtime.QueueName(),
		"concurrency", runtime.Concurrency(),
		"inference_url", cfg.Detector.InferenceURL,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		if err := detector.Health(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    cfg.HTTP.WorkerAddr,
		Handler: mux,
	}

	go func() {
		log.Info("worker http server starting", "addr", cfg.HTTP.WorkerAddr)
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

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
