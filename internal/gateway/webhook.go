package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body.
const SignatureHeader = "x-paystack-signature"

// Webhook event names.
const (
	EventChargeSuccess    = "charge.success"
	EventChargeFailed     = "charge.failed"
	EventTransferSuccess  = "transfer.success"
	EventTransferFailed   = "transfer.failed"
	EventTransferReversed = "transfer.reversed"
)

// Event is a decoded webhook notification.
type Event struct {
	Event string    `json:"event" validate:"required"`
	Data  EventData `json:"data"`
}

// EventData holds the fields of an event payload the engine reads.
type EventData struct {
	Reference    string `json:"reference" validate:"required"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount" validate:"gte=0"`
	TransferCode string `json:"transfer_code"`
	Reason       string `json:"gateway_response"`
}

// IsCharge reports whether the event settles a contribution charge.
func (e *Event) IsCharge() bool {
	return strings.HasPrefix(e.Event, "charge.")
}

// IsTransfer reports whether the event settles a payout transfer.
func (e *Event) IsTransfer() bool {
	return strings.HasPrefix(e.Event, "transfer.")
}

// Sign returns the hex HMAC-SHA512 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the raw body in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}

var validate = validator.New()

// ParseEvent decodes and validates a webhook body.
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if err := validate.Struct(&event); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	return &event, nil
}
