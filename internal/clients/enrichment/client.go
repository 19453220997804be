// Package enrichment calls the text analysis service that summarises leave reasons.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/noah-isme/leave-approval-api/internal/models"
)

const prompt = "Analyze this leave request reason and provide a professional summary and priority score (1-5)"

// Config configures the analysis client.
type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
}

// Client posts leave reasons to the analysis endpoint under a request rate limit.
type Client struct {
	httpClient  *http.Client
	url         string
	apiKey      string
	rateLimiter *rate.Limiter
}

// NewClient creates an analysis client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		url:         cfg.URL,
		apiKey:      cfg.APIKey,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

type analyzeRequest struct {
	Prompt string `json:"prompt"`
	Reason string `json:"reason"`
}

// Analyze returns the service's assessment of reason. Callers are expected to degrade to
// Fallback on error.
func (c *Client) Analyze(ctx context.Context, reason string) (models.LeaveAnalysis, error) {
	if c == nil || c.url == "" {
		return models.LeaveAnalysis{}, fmt.Errorf("analysis endpoint not configured")
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return models.LeaveAnalysis{}, fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(analyzeRequest{Prompt: prompt, Reason: reason})
	if err != nil {
		return models.LeaveAnalysis{}, fmt.Errorf("marshal analysis request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return models.LeaveAnalysis{}, fmt.Errorf("build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.LeaveAnalysis{}, fmt.Errorf("call analysis endpoint: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.LeaveAnalysis{}, fmt.Errorf("read analysis response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return models.LeaveAnalysis{}, fmt.Errorf("analysis endpoint error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var analysis models.LeaveAnalysis
	if err := json.Unmarshal(bytes.TrimSpace(body), &analysis); err != nil {
		return models.LeaveAnalysis{}, fmt.Errorf("parse analysis response: %w", err)
	}
	if strings.TrimSpace(analysis.Summary) == "" || analysis.Sentiment == "" {
		return models.LeaveAnalysis{}, fmt.Errorf("analysis response missing fields")
	}
	if analysis.Priority < 1 {
		analysis.Priority = 1
	}
	if analysis.Priority > 5 {
		analysis.Priority = 5
	}
	return analysis, nil
}

// Fallback is the neutral assessment used whenever analysis is unavailable.
func Fallback(reason string) models.LeaveAnalysis {
	return models.LeaveAnalysis{Summary: reason, Priority: 3, Sentiment: "Neutral"}
}
