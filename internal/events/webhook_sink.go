package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/noah-isme/leave-approval-api/internal/models"
)

// WebhookSink posts request snapshots to an external log endpoint such as a spreadsheet
// script.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSink builds a sink. An empty url disables it.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Enabled reports whether a destination is configured.
func (s *WebhookSink) Enabled() bool {
	return s != nil && s.url != ""
}

// Log posts the request as JSON.
func (s *WebhookSink) Log(ctx context.Context, req *models.LeaveRequest) error {
	if !s.Enabled() {
		return nil
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal log record: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build log request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post log record: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post log record: unexpected status %d", resp.StatusCode)
	}
	return nil
}
