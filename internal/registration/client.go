package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hostward/device-agent/internal/logger"
)

// RegisterPath is appended to the delivery host when no registration url is configured.
const RegisterPath = "/api/agents/register/"

var (
	ErrAlreadyRegistered = errors.New("agent is already registered")
	ErrRejectedRequest   = errors.New("registration request rejected")
	ErrUnexpectedStatus  = errors.New("unexpected registration response")
	ErrUnknownStatus     = errors.New("unknown registration status")
)

// Status is the approval state reported by the backend.
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
	StatusNotFound Status = "not_found"
)

// Terminal reports whether polling can stop.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusNotFound
}

func (s Status) valid() bool {
	return s.Terminal() || s == StatusPending
}

// Request is the registration handshake body.
type Request struct {
	AgentID           string `json:"agent_id"`
	AgentName         string `json:"agent_name"`
	Hostname          string `json:"hostname"`
	OSType            string `json:"os_type"`
	OSVersion         string `json:"os_version"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

// SubmitResponse is the backend acknowledgement of a submitted request.
type SubmitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusResponse carries the approval state and, once approved, the token.
type StatusResponse struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// Client talks to the registration endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(registrationURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(registrationURL, "/") + "/",
		http:    httpClient,
	}
}

// DefaultURL derives the registration endpoint from the delivery url.
func DefaultURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid server url %q: scheme and host are required", serverURL)
	}
	return u.Scheme + "://" + u.Host + RegisterPath, nil
}

// Submit sends the registration request. A 409 means this agent id is
// already known to the backend.
func (c *Client) Submit(ctx context.Context, reqBody Request) (*SubmitResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal registration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send registration request: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		out := &SubmitResponse{Status: "submitted"}
		if len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				logger.FromContext(ctx).Debug().Err(err).
					Int("status", resp.StatusCode).
					Str("body", message(data)).
					Msg("Failed to decode registration response body")
				out = &SubmitResponse{Status: "submitted"}
			}
		}
		return out, nil
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, message(data))
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrRejectedRequest, message(data))
	default:
		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, message(data))
	}
}

// Status fetches the approval state of agentID. An unknown agent is
// reported as StatusNotFound, not as an error.
func (c *Client) Status(ctx context.Context, agentID string) (*StatusResponse, error) {
	statusURL := c.baseURL + url.PathEscape(agentID) + "/status/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to check registration status: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return &StatusResponse{Status: StatusNotFound, Message: message(data)}, nil
	default:
		return nil, fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, message(data))
	}

	var out StatusResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	if !out.Status.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, out.Status)
	}
	return &out, nil
}

func message(data []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		for _, s := range []string{payload.Message, payload.Error, payload.Detail} {
			if s != "" {
				return s
			}
		}
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s
	}
	return "no details"
}
