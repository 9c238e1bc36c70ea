package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxBytes bounds remote downloads when no limit is given.
const DefaultMaxBytes = 50 << 20

// HTTP fetches http and https references.
type HTTP struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTP returns a fetcher using client (a 60s-timeout client when nil) that
// refuses bodies larger than maxBytes.
func NewHTTP(client *http.Client, maxBytes int64) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &HTTP{client: client, maxBytes: maxBytes}
}

// Fetch GETs ref. 404 maps to ErrNotFound, 401 and 403 to
// ErrPermissionDenied, and bodies over the size limit are refused.
func (h *HTTP) Fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: %w", ref, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrPermissionDenied
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("blob: get %s: status %d", ref, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", ref, err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, fmt.Errorf("blob: %s exceeds %d bytes", ref, h.maxBytes)
	}
	return data, nil
}
