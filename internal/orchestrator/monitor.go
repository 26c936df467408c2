// Package orchestrator provides default implementations of the budget
// monitor and optimization trigger collaborators: an HTTP client for the
// external session analyzer and a command wrapper for corrective actions.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// monitorTimeout bounds analyzer calls; the budget check is advisory and
// must not stall the workflow.
const monitorTimeout = 10 * time.Second

// HTTPMonitor reports resource consumption by querying an external session
// analyzer over HTTP.
type HTTPMonitor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPMonitor creates a monitor for the analyzer at baseURL
// (e.g. http://localhost:8000).
func NewHTTPMonitor(baseURL string) *HTTPMonitor {
	return &HTTPMonitor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: monitorTimeout},
	}
}

// analyzeResponse is the analyzer's measurement payload.
type analyzeResponse struct {
	TokenCount int `json:"token_count"`
}

// CurrentConsumption fetches the analyzer's current token count.
func (m *HTTPMonitor) CurrentConsumption(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/analyze", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build analyzer request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("analyzer request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	var payload analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode analyzer response: %w", err)
	}
	if payload.TokenCount < 0 {
		return 0, fmt.Errorf("analyzer reported negative token count %d", payload.TokenCount)
	}
	return payload.TokenCount, nil
}
