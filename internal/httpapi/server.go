package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"notesml/internal/config"
	"notesml/internal/model"
	"notesml/internal/transcribe"
	"notesml/internal/upstream/gemini"
	"notesml/internal/upstream/huggingface"
	"notesml/internal/upstream/openai"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type SummarizeService interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type TranscribeService interface {
	Transcribe(ctx context.Context, audioURL string) (transcribe.Result, error)
}

type UpstreamChecker interface {
	CheckModels(ctx context.Context) error
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
}

// Dependencies for one service binary. Only the handlers whose service is
// set are mounted.
type Dependencies struct {
	Summarizer     SummarizeService
	Transcriber    TranscribeService
	Upstream       UpstreamChecker
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	summarizer   SummarizeService
	transcriber  TranscribeService
	upstream     UpstreamChecker
	metrics      MetricsObserver
	metricsRoute http.Handler
}

type ctxKey string

const (
	requestIDHeader  = "X-Request-Id"
	requestIDContext = ctxKey("request_id")
	maxJSONBodyBytes = 1 << 20
)

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Upstream == nil || (deps.Summarizer == nil && deps.Transcriber == nil) {
		panic("httpapi: an upstream checker and at least one service are required")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		summarizer:   deps.Summarizer,
		transcriber:  deps.Transcriber,
		upstream:     deps.Upstream,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))
	r.Use(s.authMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReadyz)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}

	if s.summarizer != nil {
		r.Post("/summarize", s.handleSummarize)
	}
	if s.transcriber != nil {
		r.Post("/transcribe", s.handleTranscribe)
	}

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{OK: true})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.upstream.CheckModels(ctx); err != nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "not_ready", "inference backend check failed", detailsForError(err))
		return
	}
	writeJSON(w, http.StatusOK, model.ReadyResponse{OK: true, ServiceName: string(s.cfg.Service)})
}

func (s *server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxTextBytes
	if limit <= 0 {
		limit = maxJSONBodyBytes
	}

	var req model.SummarizeRequest
	if !s.decodeJSON(w, r, limit, &req) {
		return
	}
	if req.Text == nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "text is required", nil)
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), *req.Text)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SummarizeResponse{Summary: summary})
}

func (s *server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req model.TranscribeRequest
	if !s.decodeJSON(w, r, maxJSONBodyBytes, &req) {
		return
	}
	if req.AudioURL == nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "audio_url is required", nil)
		return
	}

	result, err := s.transcriber.Transcribe(r.Context(), *req.AudioURL)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.TranscribeResponse{Text: result.Text, Language: result.Language})
}

// decodeJSON reads exactly one JSON object. Unknown fields are ignored.
func (s *server) decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer func() { _ = r.Body.Close() }()

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return false
	}
	if err := ensureBodyFullyConsumed(decoder); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return false
	}
	return true
}

func (s *server) handleJSONDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", fmt.Sprintf("JSON body exceeds %d bytes", maxErr.Limit), nil)
		return
	}
	s.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
}

func (s *server) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "request failed"
	details := detailsForError(err)

	var (
		downloadErr *transcribe.DownloadError
		openaiErr   *openai.Error
		hfErr       *huggingface.Error
		geminiErr   *gemini.Error
	)
	switch {
	case errors.Is(err, transcribe.ErrInvalidURL):
		status = http.StatusBadRequest
		code = "invalid_request"
		message = transcribe.ErrInvalidURL.Error()
		details = nil
	case errors.As(err, &downloadErr):
		status = http.StatusBadGateway
		code = "audio_download_failed"
		message = "audio download failed"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		code = "timeout"
		message = "request timed out"
	case errors.Is(err, context.Canceled):
		status = 499
		code = "canceled"
		message = "request canceled"
	case errors.As(err, &openaiErr), errors.As(err, &hfErr), errors.As(err, &geminiErr):
		status = http.StatusBadGateway
		code = "upstream_request_failed"
		message = "inference request failed"
	}

	s.logger.Warn("request failed",
		"request_id", requestIDFromContext(r.Context()),
		"code", code,
		"error", err,
	)
	s.writeError(w, r, status, code, message, details)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, status, model.ErrorResponse{
		Error:     model.APIError{Code: code, Message: message, Details: details},
		RequestID: requestIDFromContext(r.Context()),
	})
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, duration)
		}

		s.logger.Info("http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic recovered", "request_id", requestIDFromContext(r.Context()), "panic", rec)
				s.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.ServiceAPIKey == "" || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		token, hasHeader, ok := extractBearerToken(r.Header.Get("Authorization"))
		if !hasHeader {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing Authorization header", nil)
			return
		}
		if !ok {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "Authorization must be Bearer <service_api_key>", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.ServiceAPIKey)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid service API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublicPath(path string) bool {
	switch path {
	case "/health", "/healthz", "/readyz", "/metrics":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func ensureBodyFullyConsumed(decoder *json.Decoder) error {
	var extra any
	if err := decoder.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("multiple JSON values")
		}
		return err
	}
	return nil
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}

func extractBearerToken(header string) (token string, hasHeader bool, ok bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false, true
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", true, false
	}
	token = strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", true, false
	}
	return token, true, true
}

func detailsForError(err error) map[string]any {
	if err == nil {
		return nil
	}
	details := map[string]any{"error": err.Error()}

	var (
		downloadErr *transcribe.DownloadError
		openaiErr   *openai.Error
		hfErr       *huggingface.Error
		geminiErr   *gemini.Error
	)
	switch {
	case errors.As(err, &downloadErr):
		if downloadErr.StatusCode != 0 {
			details["download_status"] = downloadErr.StatusCode
		}
	case errors.As(err, &openaiErr):
		details["upstream_status"] = openaiErr.StatusCode
		if openaiErr.Body != "" {
			details["upstream_body"] = openaiErr.Body
		}
	case errors.As(err, &hfErr):
		details["upstream_status"] = hfErr.StatusCode
		if hfErr.Body != "" {
			details["upstream_body"] = hfErr.Body
		}
	case errors.As(err, &geminiErr):
		details["upstream"] = "gemini"
		if geminiErr.Err != nil {
			details["upstream_error"] = geminiErr.Err.Error()
		}
	}
	return details
}
