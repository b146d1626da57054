// Package twilio provides the call-control client for internal use.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Failure taxonomy for call-control round trips. The client performs no
// retries; callers decide what a failure means for their flow.
var (
	// ErrUpstreamUnavailable covers network failures and 5xx responses.
	ErrUpstreamUnavailable = errors.New("twilio: upstream unavailable")
	// ErrNotFound means the call resource no longer exists.
	ErrNotFound = errors.New("twilio: call not found")
	// ErrInvalidState means the call cannot be modified (already ended).
	ErrInvalidState = errors.New("twilio: call not in a modifiable state")
	// ErrInvalidDestination means the dialed number was rejected.
	ErrInvalidDestination = errors.New("twilio: invalid destination")
)

// Client is a Twilio call-control API client.
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// Config configures the Client.
type Config struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new call-control client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.AccountSID == "" {
		return nil, fmt.Errorf("account SID is required")
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("auth token is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.twilio.com/2010-04-01"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// AccountSID returns the account SID.
func (c *Client) AccountSID() string {
	return c.accountSID
}

// Call represents a Twilio call resource.
type Call struct {
	SID        string `json:"sid"`
	AccountSID string `json:"account_sid"`
	To         string `json:"to"`
	From       string `json:"from"`
	Status     string `json:"status"`
	Direction  string `json:"direction"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	URI        string `json:"uri"`
}

// GetCall retrieves a call by SID.
func (c *Client) GetCall(ctx context.Context, callSID string) (*Call, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)

	var call Call
	if err := c.get(ctx, endpoint, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

// UpdateCall replaces the instructions of an in-progress call with the
// given TwiML document. The call keeps running under the new instructions.
func (c *Client) UpdateCall(ctx context.Context, callSID, twiml string) (*Call, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)

	data := url.Values{}
	data.Set("Twiml", twiml)

	var call Call
	if err := c.post(ctx, endpoint, data, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

// MakeCall originates an outbound call that executes the given TwiML once
// answered.
func (c *Client) MakeCall(ctx context.Context, to, from, twiml string) (*Call, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)

	data := url.Values{}
	data.Set("To", to)
	data.Set("From", from)
	data.Set("Twiml", twiml)

	var call Call
	if err := c.post(ctx, endpoint, data, &call); err != nil {
		return nil, err
	}
	return &call, nil
}

// APIError represents a Twilio API error response.
type APIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio error %d: %s", e.Code, e.Message)
}

// Unwrap maps the wire error onto the client's failure taxonomy so callers
// can branch with errors.Is without inspecting Twilio error codes.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case 20404:
		return ErrNotFound
	case 21220:
		return ErrInvalidState
	case 21211, 21212, 21214, 13224:
		return ErrInvalidDestination
	}
	switch {
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status >= 500:
		return ErrUpstreamUnavailable
	}
	return nil
}

// get performs a GET request.
func (c *Client) get(ctx context.Context, url string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, result)
}

// post performs a POST request with form data.
func (c *Client) post(ctx context.Context, url string, data url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, result)
}

// do executes a request with authentication.
func (c *Client) do(req *http.Request, result any) error {
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		apiErr := APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(body, &apiErr); err != nil {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode
		}
		return &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}
