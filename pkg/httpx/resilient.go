// Package httpx wraps net/http with the retry policy hosted AI endpoints
// need: capacity errors (429, 503) and transport failures are retried with
// exponential backoff, everything else is handed back to the caller as-is.
package httpx

import (
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Client struct {
	http        *http.Client
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *zap.Logger
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		http:        &http.Client{Timeout: cfg.Timeout},
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		logger:      cfg.Logger,
	}
}

// Do performs the request, retrying transport failures and 429/503 responses
// with baseDelay*2^attempt between tries. It never returns an error: the last
// response is returned verbatim, and a synthetic 500 stands in when no
// response object exists at all. Callers must check the status themselves.
func (c *Client) Do(req *http.Request) *http.Response {
	var lastResp *http.Response
	delay := c.baseDelay

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return c.lastOrSynthetic(req, lastResp)
			case <-time.After(delay):
			}
			delay *= 2

			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					c.logger.Error("Failed to rewind request body",
						zap.String("url", req.URL.String()),
						zap.Error(err),
					)
					return c.lastOrSynthetic(req, lastResp)
				}
				req.Body = body
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn("HTTP call failed",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", c.maxAttempts),
				zap.Error(err),
			)
			continue
		}

		if !retryableStatus(resp.StatusCode) {
			// A retryable response from an earlier attempt is superseded;
			// close it so its connection returns to the pool.
			if lastResp != nil {
				lastResp.Body.Close()
			}
			return resp
		}

		c.logger.Warn("HTTP call returned retryable status",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.maxAttempts),
		)

		if lastResp != nil {
			lastResp.Body.Close()
		}
		lastResp = resp
	}

	c.logger.Error("HTTP call exhausted retries",
		zap.String("url", req.URL.String()),
		zap.Int("attempts", c.maxAttempts),
	)

	return c.lastOrSynthetic(req, lastResp)
}

func (c *Client) lastOrSynthetic(req *http.Request, lastResp *http.Response) *http.Response {
	if lastResp != nil {
		return lastResp
	}
	return &http.Response{
		Status:     "500 Internal Server Error",
		StatusCode: http.StatusInternalServerError,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"error":"upstream unreachable"}`)),
		Request:    req,
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// Ok reports whether the response carries a 2xx status.
func Ok(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
