package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/barge-dl/barge/internal/engine/types"
	"github.com/barge-dl/barge/internal/utils"
)

// HTTP is the production Transport over net/http.
type HTTP struct {
	client      *http.Client
	probeClient *http.Client
	userAgent   string
}

// NewHTTP builds an HTTP transport. The runtime config supplies the user
// agent; nil falls back to defaults.
func NewHTTP(runtime *types.RuntimeConfig) *HTTP {
	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if len(via) >= types.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", types.MaxRedirects)
		}
		return nil
	}

	return &HTTP{
		client: &http.Client{
			// No overall timeout: transfers are bounded by the caller's
			// context, not wall-clock.
			CheckRedirect: redirectPolicy,
		},
		probeClient: &http.Client{
			Timeout:       types.ProbeTimeout,
			CheckRedirect: redirectPolicy,
		},
		userAgent: runtime.GetUserAgent(),
	}
}

// Probe sends GET with Range: bytes=0-0 to verify the locator and learn the
// total size and suggested filename. Retries transient request failures a
// few times before giving up.
func (t *HTTP) Probe(ctx context.Context, locator string) (*ProbeResult, error) {
	var resp *http.Response
	var err error

	for i := 0; i < types.ProbeAttempts; i++ {
		if i > 0 {
			select {
			case <-time.After(types.ProbeRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create probe request: %w", err)
		}
		req.Header.Set("Range", "bytes=0-0")
		req.Header.Set("User-Agent", t.userAgent)

		resp, err = t.probeClient.Do(req)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("probe request failed after retries: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	result := &ProbeResult{ContentType: resp.Header.Get("Content-Type")}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// Content-Range: bytes 0-0/TOTAL (or /*)
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if idx := strings.LastIndex(cr, "/"); idx != -1 {
				if sizeStr := cr[idx+1:]; sizeStr != "*" {
					result.TotalBytes, _ = strconv.ParseInt(sizeStr, 10, 64)
				}
			}
		}
	case http.StatusOK:
		// Server ignored the Range header.
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			result.TotalBytes, _ = strconv.ParseInt(cl, 10, 64)
		}
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	result.Filename = utils.DetermineFilename(locator, resp.Header)
	return result, nil
}

// Open starts a full-body GET. The stream's TotalBytes comes from
// Content-Length when the server declares one.
func (t *HTTP) Open(ctx context.Context, locator string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var total int64
	if resp.ContentLength > 0 {
		total = resp.ContentLength
	}

	return &Stream{
		Body:          resp.Body,
		TotalBytes:    total,
		SuggestedName: utils.DetermineFilename(locator, resp.Header),
	}, nil
}
