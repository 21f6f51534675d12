package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 1 << 20

// ClientConfig configures the upstream client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSecond and Burst throttle outgoing calls; zero disables throttling.
	RatePerSecond float64
	Burst         int
}

// Client calls the ranking service over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *Metrics
}

func NewClient(cfg ClientConfig, logger *zap.Logger, metrics *Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    &http.Client{},
		limiter: limiter,
		logger:  logger,
		metrics: metrics,
	}
}

// Recommend posts the profile upstream. Transport failures, timeouts and 5xx
// answers wrap ErrUpstreamUnavailable; 4xx answers are *RequestError.
func (c *Client) Recommend(ctx context.Context, req Request) (Response, error) {
	started := time.Now()
	var out Response
	err := c.do(ctx, http.MethodPost, "/api/recommend", req, &out)
	c.metrics.observe(outcomeOf(err), started)
	if err != nil {
		c.logger.Warn("recommendation call failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return Response{}, err
	}
	out.Normalize()
	c.logger.Info("recommendations received",
		zap.Float64("dailyCalories", out.DailyCalories),
		zap.Int("byRank", len(out.ByRank)),
		zap.Int("byPrice", len(out.ByPrice)),
		zap.Int("byReview", len(out.ByReview)),
	)
	return out, nil
}

func (c *Client) Available(ctx context.Context) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/real-search-available", nil, &out); err != nil {
		return false, err
	}
	return out.Available, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUpstreamUnavailable, err)
	}
	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		rerr := &RequestError{Status: resp.StatusCode}
		var eb struct {
			Message string            `json:"message"`
			Errors  map[string]string `json:"errors"`
		}
		if json.Unmarshal(raw, &eb) == nil {
			rerr.Message = eb.Message
			rerr.Errors = eb.Errors
		}
		return rerr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}

func outcomeOf(err error) string {
	var rerr *RequestError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rerr):
		return "rejected"
	}
	return "unavailable"
}
