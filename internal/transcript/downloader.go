package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// maxTranscriptBytes caps the downloaded file size.
const maxTranscriptBytes = 10 << 20

// StatusError reports a non-2xx response from the storage endpoint.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transcript download returned status %d", e.StatusCode)
}

// Downloader fetches transcript artifacts with a hard per-request
// timeout.
type Downloader struct {
	client  *http.Client
	timeout time.Duration
}

// NewDownloader creates a downloader whose requests never outlive
// timeout.
func NewDownloader(timeout time.Duration) *Downloader {
	return &Downloader{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Fetch downloads the transcript at rawURL using the platform download
// credential. The credential travels both as a bearer header and as an
// access_token query parameter; the platform accepts either depending on
// the artifact's age.
func (d *Downloader) Fetch(ctx context.Context, rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid transcript URL: %w", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build transcript request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTranscriptBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read transcript body: %w", err)
	}
	return string(body), nil
}

// RetryableFetchError reports whether a Fetch failure is worth another
// attempt: timeouts, connection resets, rate limiting and server errors
// are; everything else (bad URL, auth rejection) is not.
func RetryableFetchError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
