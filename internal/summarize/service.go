package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const DefaultChunkSize = 1200

// Generation bounds per pass.
const (
	windowMaxLen = 120
	windowMinLen = 30
	reduceMaxLen = 140
	reduceMinLen = 40

	warmupText   = "warmup text"
	warmupMaxLen = 30
	warmupMinLen = 5
)

// Summarizer is a loaded summarization model. Decoding must be
// deterministic; maxLen and minLen bound the generated output.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxLen, minLen int) (string, error)
}

type Option func(*Service)

// WithWindowObserver reports the number of windows of every non-empty request.
func WithWindowObserver(observer func(windows int)) Option {
	return func(s *Service) {
		s.observeWindows = observer
	}
}

type Service struct {
	model          Summarizer
	chunkSize      int
	logger         *slog.Logger
	observeWindows func(windows int)
}

func New(model Summarizer, chunkSize int, logger *slog.Logger, opts ...Option) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		model:     model,
		chunkSize: chunkSize,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Warmup runs one tiny inference so the first real request does not pay for
// backend cold start.
func (s *Service) Warmup(ctx context.Context) error {
	if _, err := s.model.Summarize(ctx, warmupText, warmupMaxLen, warmupMinLen); err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	return nil
}

// Summarize summarizes every window of text in order and, when there is more
// than one, summarizes the space-joined partials once more. The joined text
// is never re-chunked.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	windows := Chunk(text, s.chunkSize)
	if s.observeWindows != nil {
		s.observeWindows(len(windows))
	}

	partials := make([]string, 0, len(windows))
	for i, window := range windows {
		partial, err := s.model.Summarize(ctx, window, windowMaxLen, windowMinLen)
		if err != nil {
			return "", fmt.Errorf("summarize window %d/%d: %w", i+1, len(windows), err)
		}
		partials = append(partials, partial)
	}

	if len(partials) == 1 {
		s.logger.Debug("summary produced", "windows", 1, "reduced", false)
		return partials[0], nil
	}

	joined := strings.Join(partials, " ")
	summary, err := s.model.Summarize(ctx, joined, reduceMaxLen, reduceMinLen)
	if err != nil {
		return "", fmt.Errorf("summarize joined partials: %w", err)
	}
	s.logger.Debug("summary produced",
		"windows", len(windows),
		"reduced", true,
		"joined_chars", utf8.RuneCountInString(joined),
	)
	return summary, nil
}

// Chunk splits text into consecutive windows of size characters (runes).
// The last window may be shorter; concatenating the windows yields text.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var windows []string
	for len(text) > 0 {
		end, runes := 0, 0
		for end < len(text) && runes < size {
			_, width := utf8.DecodeRuneInString(text[end:])
			end += width
			runes++
		}
		windows = append(windows, text[:end])
		text = text[end:]
	}
	return windows
}
