package httpinfra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
)

const defaultMaxBody = 10 << 20

// ManifestTransport fetches plugin manifests over HTTP
type ManifestTransport struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

var _ ports.Transport = (*ManifestTransport)(nil)

// NewManifestTransport creates a transport. A zero timeout leaves the
// client without one; maxBytes <= 0 uses 10 MiB.
func NewManifestTransport(timeout time.Duration, userAgent string, maxBytes int64) *ManifestTransport {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBody
	}
	return &ManifestTransport{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// NewManifestTransportWithClient uses a caller-supplied client
func NewManifestTransportWithClient(client *http.Client, userAgent string, maxBytes int64) *ManifestTransport {
	t := NewManifestTransport(0, userAgent, maxBytes)
	t.client = client
	return t
}

// FetchText downloads the body at url as text
func (t *ManifestTransport) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &plugindomain.TransportError{URL: url, Err: err}
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	req.Header.Set("Accept", "text/plain, */*")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", &plugindomain.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &plugindomain.TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return "", &plugindomain.TransportError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > t.maxBytes {
		return "", &plugindomain.TransportError{URL: url, Err: fmt.Errorf("body exceeds %d bytes", t.maxBytes)}
	}

	return string(body), nil
}
