// Package visionclient calls the vision extraction microservice that reads
// photographed sign-in sheets. The service is a black box wrapping a
// generative model: it returns free-form text that is hopefully JSON.
// Coercing that output into something trustworthy is the extract package's
// job, not this client's.
package visionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls the vision extraction service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set the client never leaves the process
// and returns a fixed extraction, which keeps dev and tests off the model.
func New(baseURL string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second // model inference is slow
	}
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// skipOutput is what the mock mode returns: a plausible sheet with three
// attendance rows and one signup.
const skipOutput = `{
	"form_type": "blank",
	"qr_data": null,
	"attendance": [
		{"name": "Alice Johnson", "table_number": 1, "seat": "N", "confidence": 0.95},
		{"name": "Bob Smith", "table_number": 1, "seat": "S", "confidence": 0.91},
		{"name": "Carol Davis", "table_number": 2, "seat": "E", "confidence": 0.88}
	],
	"mailing_list": [
		{"name": "Carol Davis", "email": "carol@example.com", "confidence": 0.9}
	],
	"confidence": 0.9,
	"notes": "mock extraction"
}`

// ExtractSheet asks the service to read the sheet photo at imageURL and
// returns the raw model output verbatim.
func (c *Client) ExtractSheet(ctx context.Context, imageURL string) (string, error) {
	if c.Skip {
		return skipOutput, nil
	}
	if imageURL == "" {
		return "", fmt.Errorf("image url required")
	}

	body, _ := json.Marshal(map[string]string{"image_url": imageURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("vision service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Output string `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Output == "" {
		return "", fmt.Errorf("vision service returned empty output")
	}
	return out.Output, nil
}

// Health checks if the vision service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("vision service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("vision service unhealthy: %s", resp.Status)
	}
	return nil
}
