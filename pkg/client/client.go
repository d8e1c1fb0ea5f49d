// Package client calls the summarizer and transcriber services over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultSummarizeTimeout  = 120 * time.Second
	DefaultTranscribeTimeout = 10 * time.Minute
	maxErrorBody             = 64 << 10
)

// Transcription is the transcriber's answer. Fields the service left out
// are empty.
type Transcription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type summarizeRequest struct {
	Text string `json:"text"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type transcribeRequest struct {
	AudioURL string `json:"audio_url"`
}

type healthResponse struct {
	OK bool `json:"ok"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Error is a non-2xx answer from a service. Code and Message come from the
// JSON error envelope when the body carried one.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("service returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("service returned %d: %s", e.StatusCode, e.Message)
}

type Option func(*base)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(b *base) {
		if httpClient != nil {
			b.httpClient = httpClient
		}
	}
}

func WithAPIKey(apiKey string) Option {
	return func(b *base) {
		b.apiKey = strings.TrimSpace(apiKey)
	}
}

// WithTimeout overrides the per-call deadline. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(b *base) {
		b.timeout = timeout
	}
}

type base struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

func newBase(baseURL string, timeout time.Duration, opts []Option) base {
	b := base{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}
	return b
}

type SummarizerClient struct {
	base
}

func NewSummarizer(baseURL string, opts ...Option) *SummarizerClient {
	return &SummarizerClient{base: newBase(baseURL, DefaultSummarizeTimeout, opts)}
}

func (c *SummarizerClient) Summarize(ctx context.Context, text string) (string, error) {
	var resp summarizeResponse
	if err := c.postJSON(ctx, "/summarize", summarizeRequest{Text: text}, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

type TranscriberClient struct {
	base
}

func NewTranscriber(baseURL string, opts ...Option) *TranscriberClient {
	return &TranscriberClient{base: newBase(baseURL, DefaultTranscribeTimeout, opts)}
}

func (c *TranscriberClient) Transcribe(ctx context.Context, audioURL string) (Transcription, error) {
	var resp Transcription
	if err := c.postJSON(ctx, "/transcribe", transcribeRequest{AudioURL: audioURL}, &resp); err != nil {
		return Transcription{}, err
	}
	return resp, nil
}

// Health reports whether the service answers GET /health.
func (b *base) Health(ctx context.Context) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	return b.do(req, &healthResponse{})
}

func (b *base) postJSON(ctx context.Context, path string, payload, out any) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req, out)
}

func (b *base) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (b *base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

func decodeError(resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	e := &Error{StatusCode: resp.StatusCode}

	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		e.Code = envelope.Error.Code
		e.Message = envelope.Error.Message
		return e
	}
	e.Message = strings.TrimSpace(string(raw))
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
