// Package scorer calls the optional draft self-assessment service. Scores
// are advisory annotations for the reviewer; a low or missing score never
// blocks a draft from the approval queue.
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ignite/outreach/internal/pkg/httpretry"
)

// Assessment is the scoring service's verdict on one draft.
type Assessment struct {
	Score  float64         `json:"score"` // 0.0 - 1.0
	Detail json.RawMessage `json:"detail,omitempty"`
}

// Client talks to the assessment HTTP API.
type Client struct {
	http    httpretry.HTTPDoer
	baseURL string
	apiKey  string
}

func NewClient(doer httpretry.HTTPDoer, baseURL, apiKey string) *Client {
	if doer == nil {
		doer = httpretry.NewRetryClient(nil, 3)
	}
	return &Client{http: doer, baseURL: baseURL, apiKey: apiKey}
}

type assessRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Assess scores one draft.
func (c *Client) Assess(ctx context.Context, subject, body string) (*Assessment, error) {
	payload, err := json.Marshal(assessRequest{Subject: subject, Body: body})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/assess", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scorer request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scorer status %d", resp.StatusCode)
	}

	var out Assessment
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("scorer response: %w", err)
	}
	return &out, nil
}
