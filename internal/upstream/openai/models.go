package openai

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"notesml/internal/transcribe"
)

const summarySystemPrompt = `You are a summarization model. Summarize the text the user sends.

Output rules:
- Return ONLY the summary text, nothing else.
- Write plain prose: no headings, no bullet points, no surrounding quotes.
- Aim for at least %d and at most %d tokens.
- Do not add facts that are not in the text.`

// SummaryModel adapts a chat-completion model to the summarization
// capability. Decoding is greedy (temperature 0) and bounded by max_tokens.
type SummaryModel struct {
	client *Client
	model  string
}

func NewSummaryModel(client *Client, model string) *SummaryModel {
	return &SummaryModel{client: client, model: strings.TrimSpace(model)}
}

func (m *SummaryModel) Summarize(ctx context.Context, text string, maxLen, minLen int) (string, error) {
	resp, err := m.client.ChatCompletion(ctx, ChatCompletionRequest{
		Model:       m.model,
		Temperature: 0.0,
		MaxTokens:   maxLen,
		Messages: []ChatMessage{
			{Role: "system", Content: fmt.Sprintf(summarySystemPrompt, minLen, maxLen)},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", err
	}
	return sanitizeSummary(resp.Content), nil
}

func (m *SummaryModel) CheckModels(ctx context.Context) error {
	return m.client.CheckModels(ctx)
}

func sanitizeSummary(value string) string {
	result := strings.TrimSpace(value)
	if len(result) > 1 && strings.HasPrefix(result, "\"") && strings.HasSuffix(result, "\"") {
		result = strings.TrimSpace(result[1 : len(result)-1])
	}
	return result
}

// SpeechModel adapts the audio transcription endpoint to transcribe.Transcriber.
type SpeechModel struct {
	client *Client
	model  string
}

func NewSpeechModel(client *Client, model string) *SpeechModel {
	return &SpeechModel{client: client, model: strings.TrimSpace(model)}
}

func (m *SpeechModel) TranscribeFile(ctx context.Context, path string) (transcribe.Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return transcribe.Transcript{}, err
	}
	defer f.Close()

	resp, err := m.client.Transcribe(ctx, TranscriptionRequest{
		File:      f,
		FileName:  filepath.Base(path),
		Model:     m.model,
		VADFilter: true,
	})
	if err != nil {
		return transcribe.Transcript{}, err
	}

	out := transcribe.Transcript{
		Language: resp.Language,
		Segments: make([]transcribe.Segment, 0, len(resp.Segments)),
	}
	for _, seg := range resp.Segments {
		out.Segments = append(out.Segments, transcribe.Segment{Text: seg.Text, Start: seg.Start, End: seg.End})
	}
	return out, nil
}

func (m *SpeechModel) CheckModels(ctx context.Context) error {
	return m.client.CheckModels(ctx)
}
