package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const systemInstruction = `You are a summarization model. Summarize the text the user sends.
Return only the summary as plain prose, at least %d and at most %d tokens, without adding facts.`

type ObserverFunc func(endpoint string, status int, duration time.Duration)

type Option func(*Client)

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Error wraps every failure returned by the Gemini API.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gemini request failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Client struct {
	genai    *genai.Client
	model    string
	observer ObserverFunc
}

func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("gemini: model is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c := &Client{genai: gc, model: model}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) Summarize(ctx context.Context, text string, maxLen, minLen int) (string, error) {
	started := time.Now()
	status := 0
	defer func() { c.observe("generate_content", status, time.Since(started)) }()

	result, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(text), &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0),
		MaxOutputTokens:   int32(maxLen),
		SystemInstruction: genai.NewContentFromText(fmt.Sprintf(systemInstruction, minLen, maxLen), genai.RoleUser),
	})
	if err != nil {
		return "", wrapError(ctx, err)
	}
	status = http.StatusOK

	summary := strings.TrimSpace(result.Text())
	if summary == "" {
		return "", &Error{Err: errors.New("empty response")}
	}
	return summary, nil
}

func (c *Client) CheckModels(ctx context.Context) error {
	started := time.Now()
	status := 0
	defer func() { c.observe("models", status, time.Since(started)) }()

	if _, err := c.genai.Models.Get(ctx, c.model, nil); err != nil {
		return wrapError(ctx, err)
	}
	status = http.StatusOK
	return nil
}

// wrapError leaves deadline and cancellation errors of the caller's context
// unwrapped.
func wrapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &Error{Err: err}
}

func (c *Client) observe(endpoint string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, duration)
	}
}
