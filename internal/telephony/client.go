// Package telephony integrates with the external call provider. The only
// consumed capability is the current-state lookup for a contact's call leg.
package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"engagement_backend/platform/config"
	"engagement_backend/platform/logger"
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// NewClient builds the provider client. Returns nil when no base URL is
// configured; a nil client reports every call as absent.
func NewClient(cfg config.TelephonyConfig, log *logger.Logger) *Client {
	if !cfg.IsTelephonyEnabled() {
		return nil
	}

	timeout := cfg.GetTelephonyTimeout()
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetTelephonyBaseURL(), "/"),
		apiKey:  cfg.GetTelephonyAPIKey(),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type callStateResponse struct {
	State string `json:"state"`
}

// LookupCallState returns the provider's state string for the contact's
// active call leg. An absent call is ("", nil): absence is a normal answer,
// not a failure.
func (c *Client) LookupCallState(ctx context.Context, contactID string) (string, error) {
	if c == nil {
		return "", nil
	}

	endpoint := fmt.Sprintf("%s/v1/calls/active?contact=%s", c.baseURL, url.QueryEscape(contactID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("telephony request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("telephony returned status %d", resp.StatusCode)
	}

	var payload callStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode telephony response: %w", err)
	}

	return payload.State, nil
}
