// Package huggingface calls a Hugging Face inference endpoint (serverless
// router, Inference Endpoints, or a self-hosted text-generation-inference
// compatible server) running a summarization pipeline.
package huggingface

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

type ObserverFunc func(endpoint string, status int, duration time.Duration)

type Option func(*Client)

func WithObserver(observer ObserverFunc) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	observer   ObserverFunc
}

// Error is a non-200 answer from the endpoint. Message holds the "error"
// field when the body carried one.
type Error struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("inference request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("inference request failed with status %d", e.StatusCode)
}

type summarizationRequest struct {
	Inputs     string                  `json:"inputs"`
	Parameters summarizationParameters `json:"parameters"`
}

type summarizationParameters struct {
	MaxLength int  `json:"max_length"`
	MinLength int  `json:"min_length"`
	DoSample  bool `json:"do_sample"`
}

func New(baseURL, apiKey, model string, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.Trim(strings.TrimSpace(model), "/"),
		httpClient: httpClient,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Summarize runs the summarization pipeline with greedy decoding.
func (c *Client) Summarize(ctx context.Context, text string, maxLen, minLen int) (string, error) {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe("summarization", statusCode, time.Since(started)) }()

	payload, err := json.Marshal(summarizationRequest{
		Inputs: text,
		Parameters: summarizationParameters{
			MaxLength: maxLen,
			MinLength: minLen,
			DoSample:  false,
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Wait-For-Model", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", newError(resp.StatusCode, body)
	}
	return parseSummary(body)
}

// CheckModels asks the endpoint for the model's status.
func (c *Client) CheckModels(ctx context.Context) error {
	started := time.Now()
	statusCode := 0
	defer func() { c.observe("model_status", statusCode, time.Since(started)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(), nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return newError(resp.StatusCode, body)
	}
	return nil
}

func (c *Client) modelURL() string {
	return c.baseURL + "/models/" + c.model
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) observe(endpoint string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, duration)
	}
}

func parseSummary(data []byte) (string, error) {
	var parsed []struct {
		SummaryText   string `json:"summary_text"`
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("invalid summarization response: %w", err)
	}
	if len(parsed) == 0 {
		return "", fmt.Errorf("empty summarization response")
	}
	if parsed[0].SummaryText != "" {
		return parsed[0].SummaryText, nil
	}
	return parsed[0].GeneratedText, nil
}

func newError(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Body: strings.TrimSpace(string(body))}
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		e.Message = parsed.Error
	}
	if len(e.Body) > 4096 {
		e.Body = e.Body[:4096] + "..."
	}
	return e
}
