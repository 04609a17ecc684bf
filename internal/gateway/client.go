// Package gateway talks to the Paystack-shaped payment gateway: charging
// stored authorizations, sending transfers and authenticating webhooks.
package gateway

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
)

const DefaultBaseURL = "https://api.paystack.co"

// ErrRejected means the gateway answered and refused the request. Any other
// error from the client leaves the outcome unknown.
var ErrRejected = errors.New("gateway rejected request")

// RejectedError carries the gateway's refusal message.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway rejected request (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("gateway rejected request (HTTP %d): %s", e.StatusCode, e.Message)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Config holds gateway client settings.
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client is a minimal Paystack REST client.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

// NewClient creates a gateway client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: cfg.SecretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

// ChargeRequest charges a stored authorization.
type ChargeRequest struct {
	AuthorizationCode string         `json:"authorization_code"`
	Email             string         `json:"email"`
	Amount            int64          `json:"amount"`
	Reference         string         `json:"reference"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// ChargeResult is the gateway's immediate answer to a charge.
type ChargeResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// TransferRequest sends funds from the platform balance to a recipient.
type TransferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

// TransferResult is the gateway's immediate answer to a transfer.
type TransferResult struct {
	TransferCode string `json:"transfer_code"`
	Reference    string `json:"reference"`
	Status       string `json:"status"`
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// ChargeAuthorization charges a reusable authorization code. A declined
// charge is reported as a RejectedError.
func (c *Client) ChargeAuthorization(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	var res ChargeResult
	if err := c.post(ctx, "/transaction/charge_authorization", req, &res); err != nil {
		return nil, err
	}
	if res.Status == "failed" || res.Status == "abandoned" {
		return nil, &RejectedError{StatusCode: http.StatusOK, Message: "charge " + res.Status}
	}
	if res.Reference == "" {
		res.Reference = req.Reference
	}
	return &res, nil
}

// Transfer initiates a payout to a transfer recipient.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if req.Source == "" {
		req.Source = "balance"
	}
	var res TransferResult
	if err := c.post(ctx, "/transfer", req, &res); err != nil {
		return nil, err
	}
	if res.Status == "failed" {
		return nil, &RejectedError{StatusCode: http.StatusOK, Message: "transfer failed"}
	}
	if res.Reference == "" {
		res.Reference = req.Reference
	}
	return &res, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	env := envelope[json.RawMessage]{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 500 {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}

	// 5xx is an outage, not an answer; the outcome stays unknown.
	if resp.StatusCode >= 500 {
		return fmt.Errorf("gateway %s returned HTTP %d", path, resp.StatusCode)
	}
	if resp.StatusCode >= 400 || !env.Status {
		return &RejectedError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", path, err)
		}
	}
	return nil
}
