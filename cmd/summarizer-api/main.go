package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"notesml/internal/app"
	"notesml/internal/config"
	"notesml/internal/httpapi"
	"notesml/internal/observability"
	"notesml/internal/summarize"
	"notesml/internal/upstream/gemini"
	"notesml/internal/upstream/huggingface"
	"notesml/internal/upstream/openai"

	"github.com/joho/godotenv"
)

type summaryBackend interface {
	summarize.Summarizer
	httpapi.UpstreamChecker
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("ignoring .env: %v", err)
	}

	cfg, err := config.Load(config.ServiceSummarizer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.LogLevel)
	metrics := observability.NewMetrics(string(cfg.Service))
	inferenceClient := &http.Client{Timeout: cfg.InferenceTimeout, Transport: app.NewTransport()}

	ctx := context.Background()
	backend, err := newSummaryBackend(ctx, cfg, inferenceClient, metrics)
	if err != nil {
		logger.Error("inference backend setup failed", "backend", cfg.InferenceBackend, "error", err)
		os.Exit(1)
	}

	service := summarize.New(backend, cfg.SummaryChunkSize, logger, summarize.WithWindowObserver(metrics.ObserveSummaryWindows))
	if cfg.SummaryWarmup {
		if err := service.Warmup(ctx); err != nil {
			logger.Error("model warmup failed", "model", cfg.SummaryModel, "error", err)
			os.Exit(1)
		}
		logger.Info("model ready", "backend", cfg.InferenceBackend, "model", cfg.SummaryModel)
	}

	handler := httpapi.NewServer(cfg, logger, httpapi.Dependencies{
		Summarizer:     service,
		Upstream:       backend,
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
	})

	if err := app.Run(logger, app.NewServer(cfg.ListenAddr, handler, cfg.WriteTimeout)); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newSummaryBackend(ctx context.Context, cfg config.Config, httpClient *http.Client, metrics *observability.Metrics) (summaryBackend, error) {
	switch cfg.InferenceBackend {
	case config.BackendOpenAI:
		client := openai.New(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, httpClient, openai.WithObserver(metrics.ObserveUpstream))
		return openai.NewSummaryModel(client, cfg.SummaryModel), nil
	case config.BackendHuggingFace:
		return huggingface.New(cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, cfg.SummaryModel, httpClient, huggingface.WithObserver(metrics.ObserveUpstream)), nil
	case config.BackendGemini:
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:     cfg.UpstreamAPIKey,
			Model:      cfg.SummaryModel,
			BaseURL:    cfg.UpstreamBaseURL,
			HTTPClient: httpClient,
		}, gemini.WithObserver(metrics.ObserveUpstream))
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported inference backend %q", cfg.InferenceBackend)
	}
}
