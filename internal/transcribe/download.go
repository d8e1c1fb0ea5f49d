package transcribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultDownloadTimeout = 120 * time.Second
	copyBufferSize         = 1 << 20
)

// DownloadError reports a failed audio fetch. StatusCode is zero when the
// request never produced a response.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("audio download failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("audio download failed: %v", e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

type DownloadObserverFunc func(status int, bytes int64, duration time.Duration)

type DownloaderOption func(*Downloader)

func WithDownloadObserver(observer DownloadObserverFunc) DownloaderOption {
	return func(d *Downloader) {
		d.observer = observer
	}
}

// Downloader streams a remote file into a writer.
type Downloader struct {
	httpClient *http.Client
	timeout    time.Duration
	observer   DownloadObserverFunc
}

func NewDownloader(httpClient *http.Client, timeout time.Duration, opts ...DownloaderOption) *Downloader {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	d := &Downloader{httpClient: httpClient, timeout: timeout}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Download GETs url and copies the body into dst in 1 MiB pieces. The
// timeout covers the whole transfer.
func (d *Downloader) Download(ctx context.Context, url string, dst io.Writer) (int64, error) {
	started := time.Now()
	statusCode := 0
	var written int64
	defer func() { d.observe(statusCode, written, time.Since(started)) }()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &DownloadError{URL: url, Err: err}
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	// Hide ReaderFrom/WriterTo so CopyBuffer really uses buf.
	buf := make([]byte, copyBufferSize)
	written, err = io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{resp.Body}, buf)
	if err != nil {
		return written, &DownloadError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return written, nil
}

func (d *Downloader) observe(status int, bytes int64, duration time.Duration) {
	if d.observer != nil {
		d.observer(status, bytes, duration)
	}
}
