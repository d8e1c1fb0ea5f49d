package model

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type ReadyResponse struct {
	OK          bool   `json:"ok"`
	ServiceName string `json:"service_name,omitempty"`
}

// SummarizeRequest.Text is a pointer so a missing field can be told apart
// from an empty one.
type SummarizeRequest struct {
	Text *string `json:"text"`
}

type SummarizeResponse struct {
	Summary string `json:"summary"`
}

type TranscribeRequest struct {
	AudioURL *string `json:"audio_url"`
}

type TranscribeResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}
