package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

type Service string

const (
	ServiceSummarizer  Service = "summarizer"
	ServiceTranscriber Service = "transcriber"
)

const (
	BackendOpenAI      = "openai"
	BackendHuggingFace = "huggingface"
	BackendGemini      = "gemini"
)

type Config struct {
	Service            Service
	ListenAddr         string
	LogLevel           string
	ServiceAPIKey      string
	CORSAllowedOrigins []string
	WriteTimeout       time.Duration

	InferenceBackend string
	UpstreamBaseURL  string
	UpstreamAPIKey   string
	InferenceTimeout time.Duration

	SummaryModel     string
	SummaryChunkSize int
	SummaryWarmup    bool
	MaxTextBytes     int64

	TranscriptionModel string
	DownloadTimeout    time.Duration
	TempDir            string
}

type envConfig struct {
	ListenAddr              string   `env:"LISTEN_ADDR"`
	LogLevel                string   `env:"LOG_LEVEL" envDefault:"info"`
	ServiceAPIKey           string   `env:"SERVICE_API_KEY"`
	CORSAllowedOrigins      []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	WriteTimeoutSeconds     int      `env:"SERVER_WRITE_TIMEOUT_SECONDS" envDefault:"900"`
	InferenceBackend        string   `env:"INFERENCE_BACKEND"`
	UpstreamBaseURL         string   `env:"UPSTREAM_BASE_URL"`
	UpstreamAPIKey          string   `env:"UPSTREAM_API_KEY"`
	InferenceTimeoutSeconds int      `env:"INFERENCE_TIMEOUT_SECONDS" envDefault:"0"`
	SummaryModel            string   `env:"SUMMARY_MODEL" envDefault:"sshleifer/distilbart-cnn-12-6"`
	SummaryChunkSize        int      `env:"SUMMARY_CHUNK_SIZE" envDefault:"1200"`
	SummaryWarmup           bool     `env:"SUMMARY_WARMUP" envDefault:"true"`
	MaxTextBytes            int64    `env:"MAX_TEXT_BYTES" envDefault:"10485760"`
	TranscriptionModel      string   `env:"TRANSCRIPTION_MODEL" envDefault:"Systran/faster-whisper-small"`
	DownloadTimeoutSeconds  int      `env:"DOWNLOAD_TIMEOUT_SECONDS" envDefault:"120"`
	TempDir                 string   `env:"TEMP_DIR"`
}

type serviceDefaults struct {
	listenAddr string
	backend    string
	baseURL    string
}

var defaults = map[Service]serviceDefaults{
	ServiceSummarizer: {
		listenAddr: ":8000",
		backend:    BackendHuggingFace,
		baseURL:    "https://router.huggingface.co/hf-inference",
	},
	ServiceTranscriber: {
		listenAddr: ":8001",
		backend:    BackendOpenAI,
		baseURL:    "http://localhost:9000/v1",
	},
}

// Load reads the environment for the given service, fills service-specific
// defaults and validates the result.
func Load(service Service) (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}
	return fromEnv(service, raw)
}

func fromEnv(service Service, raw envConfig) (Config, error) {
	def, ok := defaults[service]
	if !ok {
		return Config{}, fmt.Errorf("unknown service %q", service)
	}

	backend := strings.ToLower(orDefault(raw.InferenceBackend, def.backend))
	baseURL := def.baseURL
	if backend != def.backend {
		baseURL = ""
	}

	cfg := Config{
		Service:            service,
		ListenAddr:         orDefault(raw.ListenAddr, def.listenAddr),
		LogLevel:           strings.ToLower(strings.TrimSpace(raw.LogLevel)),
		ServiceAPIKey:      strings.TrimSpace(raw.ServiceAPIKey),
		CORSAllowedOrigins: trimAll(raw.CORSAllowedOrigins),
		WriteTimeout:       time.Duration(raw.WriteTimeoutSeconds) * time.Second,
		InferenceBackend:   backend,
		UpstreamBaseURL:    strings.TrimRight(orDefault(raw.UpstreamBaseURL, baseURL), "/"),
		UpstreamAPIKey:     strings.TrimSpace(raw.UpstreamAPIKey),
		InferenceTimeout:   time.Duration(raw.InferenceTimeoutSeconds) * time.Second,
		SummaryModel:       strings.TrimSpace(raw.SummaryModel),
		SummaryChunkSize:   raw.SummaryChunkSize,
		SummaryWarmup:      raw.SummaryWarmup,
		MaxTextBytes:       raw.MaxTextBytes,
		TranscriptionModel: strings.TrimSpace(raw.TranscriptionModel),
		DownloadTimeout:    time.Duration(raw.DownloadTimeoutSeconds) * time.Second,
		TempDir:            orDefault(raw.TempDir, os.TempDir()),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("SERVER_WRITE_TIMEOUT_SECONDS must be > 0")
	}
	if c.InferenceTimeout < 0 {
		return errors.New("INFERENCE_TIMEOUT_SECONDS must be >= 0")
	}

	switch c.Service {
	case ServiceSummarizer:
		switch c.InferenceBackend {
		case BackendOpenAI, BackendHuggingFace:
			if c.UpstreamBaseURL == "" {
				return errors.New("UPSTREAM_BASE_URL must not be empty")
			}
		case BackendGemini:
			if c.UpstreamAPIKey == "" {
				return errors.New("UPSTREAM_API_KEY is required for the gemini backend")
			}
		default:
			return fmt.Errorf("INFERENCE_BACKEND %q is not supported by the summarizer", c.InferenceBackend)
		}
		if c.SummaryModel == "" {
			return errors.New("SUMMARY_MODEL must not be empty")
		}
		if c.SummaryChunkSize <= 0 {
			return errors.New("SUMMARY_CHUNK_SIZE must be > 0")
		}
		if c.MaxTextBytes <= 0 {
			return errors.New("MAX_TEXT_BYTES must be > 0")
		}
	case ServiceTranscriber:
		if c.InferenceBackend != BackendOpenAI {
			return fmt.Errorf("INFERENCE_BACKEND %q is not supported by the transcriber", c.InferenceBackend)
		}
		if c.UpstreamBaseURL == "" {
			return errors.New("UPSTREAM_BASE_URL must not be empty")
		}
		if c.TranscriptionModel == "" {
			return errors.New("TRANSCRIPTION_MODEL must not be empty")
		}
		if c.DownloadTimeout <= 0 {
			return errors.New("DOWNLOAD_TIMEOUT_SECONDS must be > 0")
		}
		if c.TempDir == "" {
			return errors.New("TEMP_DIR must not be empty")
		}
	default:
		return fmt.Errorf("unknown service %q", c.Service)
	}
	return nil
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
