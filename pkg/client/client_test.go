package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/summarize" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer svc" {
			t.Errorf("unexpected auth header: %q", r.Header.Get("Authorization"))
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "" {
			t.Errorf("empty text must still be sent, got %v", body)
		}
		_, _ = io.WriteString(w, `{"summary":""}`)
	}))
	defer ts.Close()

	c := NewSummarizer(ts.URL+"/", WithAPIKey("svc"), WithHTTPClient(ts.Client()))
	summary, err := c.Summarize(context.Background(), "")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary != "" {
		t.Fatalf("unexpected summary: %q", summary)
	}
}

func TestTranscribeMissingFieldsBecomeEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["audio_url"] != "https://cdn.example.com/a.mp3" {
			t.Errorf("unexpected body: %v", body)
		}
		_, _ = io.WriteString(w, `{"text":"hello"}`)
	}))
	defer ts.Close()

	resp, err := NewTranscriber(ts.URL).Transcribe(context.Background(), "https://cdn.example.com/a.mp3")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if resp.Text != "hello" || resp.Language != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestErrorEnvelopeIsDecoded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"error":{"code":"audio_download_failed","message":"audio download failed"},"request_id":"r1"}`)
	}))
	defer ts.Close()

	_, err := NewTranscriber(ts.URL).Transcribe(context.Background(), "https://x/a.mp3")
	var cErr *Error
	if !errors.As(err, &cErr) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if cErr.StatusCode != http.StatusBadGateway || cErr.Code != "audio_download_failed" || cErr.Message != "audio download failed" {
		t.Fatalf("unexpected error: %+v", cErr)
	}
}

func TestPlainErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := NewSummarizer(ts.URL).Health(context.Background())
	var cErr *Error
	if !errors.As(err, &cErr) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if cErr.Code != "" || cErr.Message != "bad gateway" {
		t.Fatalf("unexpected error: %+v", cErr)
	}
}

func TestHealth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer ts.Close()

	if err := NewTranscriber(ts.URL).Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	_, err := NewSummarizer(ts.URL, WithTimeout(50*time.Millisecond)).Summarize(context.Background(), "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTranscriptionIsAPublicType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"text":"bonjour","language":"fr","duration":1.5}`)
	}))
	defer ts.Close()

	got, err := NewTranscriber(ts.URL).Transcribe(context.Background(), "https://x/a.mp3")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != (Transcription{Text: "bonjour", Language: "fr"}) {
		t.Fatalf("unexpected transcription: %+v", got)
	}
}

func TestDefaultTimeouts(t *testing.T) {
	if got := NewSummarizer("http://x").timeout; got != 120*time.Second {
		t.Fatalf("summarizer timeout = %s", got)
	}
	if got := NewTranscriber("http://x").timeout; got != 10*time.Minute {
		t.Fatalf("transcriber timeout = %s", got)
	}
}
