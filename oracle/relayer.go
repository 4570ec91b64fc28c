// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPRelayer forwards requests to a coprocessor relayer over HTTP.
// Settlement answers come back through the callback endpoint, not here.
type HTTPRelayer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRelayer(baseURL string) *HTTPRelayer {
	return &HTTPRelayer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SubmitDecryption handles POST {base}/decryptions
func (r *HTTPRelayer) SubmitDecryption(ctx context.Context, req DecryptionRequest) error {
	return r.post(ctx, "/decryptions", req, nil)
}

// DecryptWeight handles POST {base}/user-decryptions
func (r *HTTPRelayer) DecryptWeight(ctx context.Context, req WeightRequest) (WeightResponse, error) {
	var resp WeightResponse
	if err := r.post(ctx, "/user-decryptions", req, &resp); err != nil {
		return WeightResponse{}, err
	}
	return resp, nil
}

func (r *HTTPRelayer) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode relayer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build relayer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("relayer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relayer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode relayer response: %w", err)
	}
	return nil
}
