// Package ocr sends captured images to an OCR endpoint.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/metrics"
)

// Service names the endpoint in error messages ("OCR error: HTTP 500").
const Service = "OCR"

// Request is the JSON body posted to the OCR endpoint.
type Request struct {
	Image     string `json:"image"`     // data URL of a PNG
	Languages string `json:"languages"` // comma-joined, e.g. "deu,eng"
}

// Response accepts both field names seen from OCR servers.
type Response struct {
	Text   string `json:"text"`
	Stdout string `json:"stdout"`
}

// Client is an OCR adapter. It never retries.
type Client struct {
	http    *resty.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates an OCR client with the given per-call timeout.
func New(timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: c, logger: logger, metrics: m}
}

// Recognize posts imageDataURL to url and returns the recognized text.
func (c *Client) Recognize(ctx context.Context, url, imageDataURL string, languages []string) (text string, err error) {
	if strings.TrimSpace(url) == "" {
		return "", errors.NewConfiguration("ocrUrl", "OCR URL is not configured")
	}

	start := time.Now()
	defer func() {
		c.metrics.ObserveAdapter("ocr", err, time.Since(start))
	}()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(Request{Image: imageDataURL, Languages: strings.Join(languages, ",")}).
		Post(url)
	if err != nil {
		if ctxErr := errors.FromContext(ctx, "OCR request"); ctxErr != nil {
			return "", ctxErr
		}
		c.logger.Warn("ocr request failed", zap.String("url", url), zap.Error(err))
		return "", errors.NewTransport(Service, 0, err)
	}

	if !resp.IsSuccess() {
		c.logger.Warn("ocr request rejected", zap.String("url", url), zap.Int("status", resp.StatusCode()))
		return "", errors.NewTransport(Service, resp.StatusCode(), nil)
	}

	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", errors.NewTransport(Service, 0, fmt.Errorf("invalid response: %w", err))
	}

	c.logger.Debug("ocr done",
		zap.String("url", url),
		zap.Duration("took", resp.Time()),
		zap.Int("chars", len(out.Text)+len(out.Stdout)),
	)

	if out.Text != "" {
		return out.Text, nil
	}
	return out.Stdout, nil
}
