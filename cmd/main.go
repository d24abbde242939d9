package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"heart-audio/pkg/api"
	"heart-audio/pkg/config"
	"heart-audio/pkg/pipeline"
	"heart-audio/pkg/provider"
	"heart-audio/pkg/storage"
	"heart-audio/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := telemetry.NewLogger(cfg.Log)
	metrics := telemetry.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	memStore := storage.NewMemoryStore()
	results, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open result store")
	}
	defer results.Close()

	audioStore, err := storage.NewAudioStore(cfg.Storage.AudioDir)
	if err != nil {
		logger.WithError(err).Fatal("Failed to prepare audio directory")
	}

	if cfg.Provider.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, transcription requests will fail")
	}

	deps := pipeline.Deps{
		Memory:      memStore,
		Results:     results,
		Audio:       audioStore,
		Transcriber: provider.NewOpenAITranscriber(cfg.Provider, logger),
		Logger:      logger,
		Metrics:     metrics,
	}
	if cfg.Provider.SummaryEnabled {
		deps.Summarizer = provider.NewOpenAISummarizer(cfg.Provider, logger)
	}

	pipelineManager := pipeline.NewManager(cfg.Pipeline, deps)
	if err := pipelineManager.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start pipeline")
	}

	handlers := api.NewHandlers(pipelineManager, memStore, results, cfg.Server, logger, metrics)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handlers.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"address": cfg.Server.Address,
			"backend": cfg.Storage.Backend,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	pipelineManager.Stop()

	logger.Info("Server exited")
}
