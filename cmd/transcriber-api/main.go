package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"notesml/internal/app"
	"notesml/internal/config"
	"notesml/internal/httpapi"
	"notesml/internal/observability"
	"notesml/internal/transcribe"
	"notesml/internal/upstream/openai"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("ignoring .env: %v", err)
	}

	cfg, err := config.Load(config.ServiceTranscriber)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	metrics := observability.NewMetrics(string(cfg.Service))
	transport := app.NewTransport()

	inferenceClient := &http.Client{Timeout: cfg.InferenceTimeout, Transport: transport}
	upstreamClient := openai.New(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, inferenceClient, openai.WithObserver(metrics.ObserveUpstream))
	speech := openai.NewSpeechModel(upstreamClient, cfg.TranscriptionModel)

	// The downloader bounds each fetch with its own context deadline.
	downloader := transcribe.NewDownloader(&http.Client{Transport: transport}, cfg.DownloadTimeout,
		transcribe.WithDownloadObserver(metrics.ObserveDownload))

	service := transcribe.New(downloader, speech, cfg.TempDir, logger,
		transcribe.WithCleanupFailureHook(metrics.IncTempCleanupFailure))

	handler := httpapi.NewServer(cfg, logger, httpapi.Dependencies{
		Transcriber:    service,
		Upstream:       speech,
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
	})

	logger.Info("transcriber configured", "model", cfg.TranscriptionModel, "upstream", cfg.UpstreamBaseURL)
	if err := app.Run(logger, app.NewServer(cfg.ListenAddr, handler, cfg.WriteTimeout)); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
