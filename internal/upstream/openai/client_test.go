package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTranscribeParsesVerboseJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		for field, want := range map[string]string{
			"model":           "Systran/faster-whisper-small",
			"response_format": "verbose_json",
			"vad_filter":      "true",
		} {
			if got := r.FormValue(field); got != want {
				t.Errorf("form field %s = %q, want %q", field, got, want)
			}
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		body, _ := io.ReadAll(file)
		if string(body) != "audio" || header.Filename != "sample.mp3" {
			t.Errorf("unexpected file %q body %q", header.Filename, body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"hello world","language":"en","duration":2.5,"segments":[{"id":0,"start":0,"end":1,"text":" hello"},{"id":1,"start":1,"end":2.5,"text":" world"}]}`)
	}))
	defer ts.Close()

	c := New(ts.URL, "test-key", ts.Client())
	resp, err := c.Transcribe(context.Background(), TranscriptionRequest{
		File:      strings.NewReader("audio"),
		FileName:  "sample.mp3",
		Model:     "Systran/faster-whisper-small",
		VADFilter: true,
	})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if resp.Language != "en" || len(resp.Segments) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Segments[1].Text != " world" || resp.Segments[1].End != 2.5 {
		t.Fatalf("unexpected segment: %+v", resp.Segments[1])
	}
}

func TestTranscribeParsesPlainTextResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, "hello\nworld")
	}))
	defer ts.Close()

	c := New(ts.URL, "", ts.Client())
	resp, err := c.Transcribe(context.Background(), TranscriptionRequest{File: strings.NewReader("audio"), Model: "m"})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if resp.Text != "hello world" || len(resp.Segments) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTranscribeSilenceYieldsNoSegments(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, `{"text":"","language":"en","segments":[]}`)
	}))
	defer ts.Close()

	resp, err := New(ts.URL, "", ts.Client()).Transcribe(context.Background(), TranscriptionRequest{File: strings.NewReader("a"), Model: "m"})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if resp.Language != "en" || len(resp.Segments) != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTranscribeReturnsUpstreamError(t *testing.T) {
	var observedStatus int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := New(ts.URL, "test-key", ts.Client(), WithObserver(func(endpoint string, status int, _ time.Duration) {
		if endpoint == "audio_transcriptions" {
			observedStatus = status
		}
	}))
	_, err := c.Transcribe(context.Background(), TranscriptionRequest{File: strings.NewReader("audio"), Model: "m"})
	if err == nil {
		t.Fatal("expected error")
	}
	upErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if upErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status code: %d", upErr.StatusCode)
	}
	if observedStatus != http.StatusTooManyRequests {
		t.Fatalf("observer saw status %d", observedStatus)
	}
}

func TestChatCompletionParsesContentAndUsage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("no Authorization header expected without a key")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"short"}}],"usage":{"prompt_tokens":50,"completion_tokens":10,"total_tokens":60}}`)
	}))
	defer ts.Close()

	c := New(ts.URL, "", ts.Client())
	resp, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{
		Model:    "m",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}
	if resp.Content != "short" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 60 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}
}

func TestSummaryModelSendsBoundsAndStripsQuotes(t *testing.T) {
	var got ChatCompletionRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"  \"A short summary.\"  "}}]}`)
	}))
	defer ts.Close()

	m := NewSummaryModel(New(ts.URL, "k", ts.Client()), "llama")
	summary, err := m.Summarize(context.Background(), "long text", 120, 30)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary != "A short summary." {
		t.Fatalf("unexpected summary: %q", summary)
	}
	if got.Model != "llama" || got.MaxTokens != 120 || got.Temperature != 0 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("unexpected message count: %d", len(got.Messages))
	}
	system, _ := got.Messages[0].Content.(string)
	if !strings.Contains(system, "at least 30 and at most 120") {
		t.Fatalf("bounds missing from system prompt: %q", system)
	}
	if user, _ := got.Messages[1].Content.(string); user != "long text" {
		t.Fatalf("unexpected user content: %q", user)
	}
}

func TestSpeechModelTranscribesFile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
		if r.FormValue("vad_filter") != "true" {
			t.Errorf("expected vad_filter=true")
		}
		_, header, _ := r.FormFile("file")
		if header == nil || header.Filename != "audio-123.wav" {
			t.Errorf("unexpected file header: %+v", header)
		}
		_, _ = io.WriteString(w, `{"language":"sv","segments":[{"start":0,"end":1,"text":" hej "}]}`)
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "audio-123.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o600); err != nil {
		t.Fatal(err)
	}

	tr, err := NewSpeechModel(New(ts.URL, "", ts.Client()), "whisper").TranscribeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("TranscribeFile() error = %v", err)
	}
	if tr.Language != "sv" || len(tr.Segments) != 1 || tr.Segments[0].Text != " hej " {
		t.Fatalf("unexpected transcript: %+v", tr)
	}
}

func TestSpeechModelMissingFile(t *testing.T) {
	_, err := NewSpeechModel(New("http://127.0.0.1:1", "", nil), "w").TranscribeFile(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestCheckModels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer ts.Close()

	if err := New(ts.URL+"/", "", ts.Client()).CheckModels(context.Background()); err != nil {
		t.Fatalf("CheckModels() error = %v", err)
	}
}
