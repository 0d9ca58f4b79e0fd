package webhook

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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cursivehq/revenue/internal/infra/httpclient"
	"github.com/cursivehq/revenue/internal/pkg/validate"
)

const (
	HeaderSignature = "X-Cursive-Signature"
	HeaderEvent     = "X-Cursive-Event"
	HeaderDelivery  = "X-Cursive-Delivery"
	userAgent       = "Cursive-Webhook/1.0"

	maxResponseBody = 4 << 10
)

type Event struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type Result struct {
	DeliveryID   string
	Success      bool
	StatusCode   int
	ResponseBody string
	Error        string
	Duration     time.Duration
}

type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Client posts signed events to a single endpoint. Failed deliveries are not retried.
type Client struct {
	url    string
	secret string
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if !validate.Required(cfg.URL) {
		return nil, fmt.Errorf("webhook url is required")
	}
	if !validate.Required(cfg.Secret) {
		return nil, fmt.Errorf("webhook secret is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		url:    strings.TrimSpace(cfg.URL),
		secret: cfg.Secret,
		http:   httpclient.New(cfg.Timeout),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Deliver sends one event. Transport failures are reported in Result, not as an error;
// the error return covers payloads that cannot be encoded.
func (c *Client) Deliver(ctx context.Context, event string, data any) (Result, error) {
	now := c.now().UTC()
	payload := Event{
		ID:        uuid.NewString(),
		Event:     event,
		Timestamp: now,
		Data:      data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal webhook payload: %w", err)
	}

	result := Result{DeliveryID: payload.ID}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderSignature, Sign(body, c.secret, now))
	req.Header.Set(HeaderEvent, event)
	req.Header.Set(HeaderDelivery, payload.ID)

	start := time.Now()
	resp, err := c.http.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = describeTransportError(err)
		c.logger.Warn("webhook delivery failed",
			zap.String("event", event),
			zap.String("delivery_id", payload.ID),
			zap.String("error", result.Error),
		)
		return result, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	result.StatusCode = resp.StatusCode
	result.ResponseBody = string(raw)
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !result.Success {
		result.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	c.logger.Info("webhook delivered",
		zap.String("event", event),
		zap.String("delivery_id", payload.ID),
		zap.Int("status", resp.StatusCode),
		zap.Bool("success", result.Success),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func describeTransportError(err error) string {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "request timeout"
	}
	return err.Error()
}
