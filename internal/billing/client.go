// Package billing talks to the external street-parking billing service.
//
// The service is unreliable: it sometimes answers 200 with an empty or
// non-JSON body. Those responses are surfaced as data (soft errors) rather
// than Go errors, so callers can distinguish "the service answered something
// unusable" from "the call never got through".
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var attempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "parkline_billing_attempts_total",
	Help: "The total number of billing request attempts by call name",
}, []string{"call"})

// Config carries the billing endpoint settings.
type Config struct {
	BaseURL    string
	Token      string
	Conf       string
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Client calls the park-in and park-out operations with retries.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a billing client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
}

// ParkInRequest is the payload for the park-in operation.
type ParkInRequest struct {
	ParkinTime  time.Time
	PlateCode   string
	PlateNumber string
	Emirates    string
	SpotNumber  int
	PoleID      int
	Images      []string // base64-encoded
}

// ParkOutRequest is the payload for the park-out operation.
type ParkOutRequest struct {
	ParkoutTime time.Time
	SpotNumber  int
	PoleID      int
	TripID      string
}

// ParkIn registers the start of a parking session and returns the service
// response. The trip identifier, when granted, is reachable via
// Response.TripID.
func (c *Client) ParkIn(ctx context.Context, req ParkInRequest) (Response, error) {
	payload := map[string]any{
		"token":        c.cfg.Token,
		"parkin_time":  req.ParkinTime.Format(time.RFC3339),
		"plate_code":   req.PlateCode,
		"plate_number": req.PlateNumber,
		"emirates":     req.Emirates,
		"conf":         c.cfg.Conf,
		"spot_number":  req.SpotNumber,
		"pole_id":      req.PoleID,
		"images":       req.Images,
	}
	return c.post(ctx, "park-in", payload)
}

// ParkOut registers the end of a parking session.
func (c *Client) ParkOut(ctx context.Context, req ParkOutRequest) (Response, error) {
	payload := map[string]any{
		"token":        c.cfg.Token,
		"parkout_time": req.ParkoutTime.Format(time.RFC3339),
		"spot_number":  fmt.Sprintf("%d", req.SpotNumber),
		"pole_id":      req.PoleID,
		"trip_id":      req.TripID,
	}
	return c.post(ctx, "park-out", payload)
}

// post sends the payload with up to cfg.Retries attempts. Transport errors,
// non-2xx statuses and undecodable 2xx bodies are all retried after a fixed
// delay. An undecodable final attempt degrades to a soft-error Response; a
// final transport/status failure returns the last error.
func (c *Client) post(ctx context.Context, call string, payload map[string]any) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", call, err)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + call

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		attempts.WithLabelValues(call).Inc()

		resp, unusable, failure := c.attempt(ctx, url, body)
		if failure == nil {
			if unusable && attempt < c.cfg.Retries {
				reason, _ := resp.SoftError()
				c.logger.Warn("billing response unusable, retrying",
					"call", call, "attempt", attempt, "reason", reason)
				if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
					return nil, err
				}
				continue
			}
			return resp, nil
		}

		lastErr = failure
		c.logger.Warn("billing request failed",
			"call", call, "attempt", attempt, "error", failure)
		if attempt < c.cfg.Retries {
			if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%s failed after %d attempts: %w", call, c.cfg.Retries, lastErr)
}

// attempt performs a single POST. unusable marks a 2xx answer whose body was
// empty or not JSON; the Response then carries the synthesized soft error.
func (c *Client) attempt(ctx context.Context, url string, body []byte) (resp Response, unusable bool, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, false, err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, false, fmt.Errorf("unexpected status %d", httpResp.StatusCode)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return Response{"error": "Empty response body"}, true, nil
	}

	var decoded Response
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return Response{"error": "Invalid JSON response", "raw": text}, true, nil
	}
	return decoded, false, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
