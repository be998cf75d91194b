package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hostward/device-agent/internal/collector"
	"github.com/hostward/device-agent/internal/logger"
)

const maxBodyBytes = 64 << 10

var ErrNoURL = errors.New("delivery url is not configured")

// CredentialSource supplies the bearer credential. It is satisfied by *vault.Vault.
type CredentialSource interface {
	LoadCredential() (string, error)
}

// Config controls delivery to the backend.
type Config struct {
	Enabled   bool
	URL       string
	UserAgent string
}

// Client submits snapshots to the backend. It performs one request per Send;
// retrying is left to the caller.
type Client struct {
	cfg   Config
	creds CredentialSource
	http  *http.Client
}

// NewClient requires an HTTP client with a timeout, so a stalled backend
// cannot block the collection loop.
func NewClient(cfg Config, creds CredentialSource, httpClient *http.Client) (*Client, error) {
	if cfg.Enabled && cfg.URL == "" {
		return nil, ErrNoURL
	}
	if httpClient == nil || httpClient.Timeout <= 0 {
		return nil, errors.New("delivery http client must have a timeout")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "device-agent"
	}
	return &Client{cfg: cfg, creds: creds, http: httpClient}, nil
}

// Enabled reports whether Send talks to the network.
func (c *Client) Enabled() bool { return c.cfg.Enabled }

// Send posts snap as JSON with the vault credential as bearer token.
// A disabled client returns nil without reading the credential.
// Vault errors are returned unchanged; response failures are *Error.
func (c *Client) Send(ctx context.Context, snap *collector.SystemSnapshot) error {
	if !c.cfg.Enabled {
		return nil
	}
	log := logger.FromContext(ctx)

	token, err := c.creds.LoadCredential()
	if err != nil {
		return err
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if err := classify(resp.StatusCode, respBody); err != nil {
		return err
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("response", strings.TrimSpace(string(respBody))).
		Msg("Snapshot delivered")
	return nil
}

// classify maps a response status to the delivery outcome.
func classify(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindUnauthorized, StatusCode: status}
	case status == http.StatusForbidden:
		return &Error{Kind: KindForbidden, StatusCode: status}
	case status == http.StatusBadRequest:
		return &Error{Kind: KindBadRequest, StatusCode: status, Detail: errorDetail(body)}
	case status >= 500 && status <= 599:
		return &Error{Kind: KindServerError, StatusCode: status, Detail: errorDetail(body)}
	default:
		return &Error{Kind: KindUnexpected, StatusCode: status, Detail: errorDetail(body)}
	}
}

// errorDetail prefers the "error", "detail" or "message" field of a JSON
// body and falls back to the raw text.
func errorDetail(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"error", "detail", "message"} {
			if s, ok := payload[key].(string); ok && s != "" {
				return s
			}
		}
	}
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return "no details"
	}
	return detail
}
