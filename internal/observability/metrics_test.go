package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	return w.Body.String()
}

func TestMetricsExposeObservations(t *testing.T) {
	m := NewMetrics("summarizer")
	m.ObserveHTTP("/summarize", http.MethodPost, http.StatusOK, 20*time.Millisecond)
	m.ObserveUpstream("summarization", http.StatusOK, time.Second)
	m.ObserveSummaryWindows(3)
	m.ObserveDownload(http.StatusOK, 1<<20, time.Second)
	m.IncTempCleanupFailure()

	body := scrape(t, m)
	for _, want := range []string{
		`notesml_http_requests_total{method="POST",route="/summarize",service="summarizer",status="200"} 1`,
		`notesml_upstream_requests_total{endpoint="summarization",service="summarizer",status="200"} 1`,
		`notesml_summary_windows_count{service="summarizer"} 1`,
		`notesml_audio_downloads_total{service="summarizer",status="200"} 1`,
		`notesml_temp_cleanup_failures_total{service="summarizer"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output:\n%s", want, body)
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("", "", 200, time.Second)
	m.ObserveUpstream("", 200, time.Second)
	m.ObserveSummaryWindows(1)
	m.ObserveDownload(200, 1, time.Second)
	m.IncTempCleanupFailure()
}
