// Package inference talks to an Ollama-compatible /api/generate endpoint.
package inference

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

// Service names the endpoint in error messages ("Ollama error: HTTP 404").
const Service = "Ollama"

// GeneratePath is appended to the profile's inference base URL.
const GeneratePath = "/api/generate"

// GenerateRequest is the non-streaming generate call.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// GenerateResponse carries the generated text.
type GenerateResponse struct {
	Response string `json:"response"`
}

// Client is an inference adapter. It never retries and never streams.
type Client struct {
	http    *resty.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New creates an inference client with the given per-call timeout.
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

// Endpoint returns the generate URL for baseURL, tolerating a trailing slash.
func Endpoint(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + GeneratePath
}

// Generate sends prompt to model at baseURL and returns the generated text.
func (c *Client) Generate(ctx context.Context, baseURL, model, prompt string) (text string, err error) {
	if strings.TrimSpace(baseURL) == "" {
		return "", errors.NewConfiguration("ollamaUrl", "Ollama URL is required")
	}
	if strings.TrimSpace(model) == "" {
		return "", errors.NewConfiguration("model", "model is required")
	}

	start := time.Now()
	defer func() {
		c.metrics.ObserveAdapter("inference", err, time.Since(start))
	}()

	url := Endpoint(baseURL)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(GenerateRequest{Model: model, Prompt: prompt, Stream: false}).
		Post(url)
	if err != nil {
		if ctxErr := errors.FromContext(ctx, "inference request"); ctxErr != nil {
			return "", ctxErr
		}
		c.logger.Warn("inference request failed", zap.String("url", url), zap.Error(err))
		return "", errors.NewTransport(Service, 0, err)
	}

	if !resp.IsSuccess() {
		c.logger.Warn("inference request rejected",
			zap.String("url", url),
			zap.String("model", model),
			zap.Int("status", resp.StatusCode()),
		)
		return "", errors.NewTransport(Service, resp.StatusCode(), nil)
	}

	var out GenerateResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", errors.NewTransport(Service, 0, fmt.Errorf("invalid response: %w", err))
	}

	c.logger.Debug("inference done",
		zap.String("model", model),
		zap.Int("prompt_chars", len(prompt)),
		zap.Duration("took", resp.Time()),
	)
	return out.Response, nil
}
