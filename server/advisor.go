package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"shmup-server/sim"
)

// HTTPAdvisor asks a remote service for the boss's next attack pattern.
// It POSTs the request as JSON and expects {"pattern": "..."} back.
type HTTPAdvisor struct {
	URL    string
	Client *http.Client
}

// NewHTTPAdvisor returns an advisor for url, or nil when url is empty.
func NewHTTPAdvisor(url string) *HTTPAdvisor {
	if url == "" {
		return nil
	}
	return &HTTPAdvisor{URL: url, Client: http.DefaultClient}
}

type adviceResponse struct {
	Pattern string `json:"pattern"`
}

// Suggest implements sim.Advisor. The deadline comes from ctx.
func (a *HTTPAdvisor) Suggest(ctx context.Context, req sim.AdviceRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode advice request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build advice request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("advice request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: advisor status %d", sim.ErrNoAdvice, resp.StatusCode)
	}
	var out adviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode advice: %w", err)
	}
	if out.Pattern == "" {
		return "", sim.ErrNoAdvice
	}
	return out.Pattern, nil
}
