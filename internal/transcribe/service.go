package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"
)

var ErrInvalidURL = errors.New("audio_url must be an absolute http(s) URL")

type Segment struct {
	Text  string
	Start float64
	End   float64
}

type Transcript struct {
	Segments []Segment
	Language string
}

type Result struct {
	Text     string
	Language string
}

// Transcriber runs speech-to-text on a local audio file with voice-activity
// filtering enabled. Segments are returned in emission order.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (Transcript, error)
}

type Fetcher interface {
	Download(ctx context.Context, url string, dst io.Writer) (int64, error)
}

type Option func(*Service)

// WithCleanupFailureHook is called whenever a temporary file cannot be removed.
func WithCleanupFailureHook(hook func()) Option {
	return func(s *Service) {
		s.onCleanupFailure = hook
	}
}

type Service struct {
	fetcher          Fetcher
	model            Transcriber
	tempDir          string
	logger           *slog.Logger
	onCleanupFailure func()
	remove           func(name string) error
}

func New(fetcher Fetcher, model Transcriber, tempDir string, logger *slog.Logger, opts ...Option) *Service {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		fetcher: fetcher,
		model:   model,
		tempDir: tempDir,
		logger:  logger,
		remove:  os.Remove,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Transcribe downloads audioURL to a temporary file, transcribes it and
// removes the file again before returning, whatever the outcome.
func (s *Service) Transcribe(ctx context.Context, audioURL string) (Result, error) {
	audioURL = strings.TrimSpace(audioURL)
	if audioURL == "" {
		return Result{}, nil
	}

	parsed, err := url.Parse(audioURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Result{}, ErrInvalidURL
	}

	tmpPath, err := s.fetchToTemp(ctx, audioURL, audioExt(parsed.Path))
	if err != nil {
		return Result{}, err
	}
	defer s.removeTemp(tmpPath)

	transcript, err := s.model.TranscribeFile(ctx, tmpPath)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe audio: %w", err)
	}

	return Result{
		Text:     JoinSegments(transcript.Segments),
		Language: transcript.Language,
	}, nil
}

func (s *Service) fetchToTemp(ctx context.Context, audioURL, ext string) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "audio-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	// The file outlives this call only when the download completed.
	kept := false
	defer func() {
		if !kept {
			_ = f.Close()
			s.removeTemp(f.Name())
		}
	}()

	n, err := s.fetcher.Download(ctx, audioURL, f)
	if err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	kept = true
	s.logger.Debug("audio downloaded", "path", f.Name(), "bytes", n)
	return f.Name(), nil
}

func (s *Service) removeTemp(name string) {
	if err := s.remove(name); err != nil {
		s.logger.Warn("temp file cleanup failed", "path", name, "error", err)
		if s.onCleanupFailure != nil {
			s.onCleanupFailure()
		}
	}
}

// JoinSegments trims every segment and joins the non-empty ones with a
// single space.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

var audioExtensions = map[string]struct{}{
	".aac": {}, ".amr": {}, ".flac": {}, ".m4a": {}, ".mp3": {}, ".mp4": {},
	".mpeg": {}, ".mpga": {}, ".oga": {}, ".ogg": {}, ".opus": {}, ".wav": {},
	".webm": {}, ".wma": {},
}

func audioExt(urlPath string) string {
	ext := strings.ToLower(path.Ext(urlPath))
	if _, ok := audioExtensions[ext]; ok {
		return ext
	}
	return ".mp3"
}
