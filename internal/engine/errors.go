package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/ajo/internal/calculator"
	"github.com/mmynk/ajo/internal/storage"
)

// Per-entity failures. They are recorded in the run summary and the batch
// continues with the next membership or group.
var (
	ErrNoPaymentInstrument = errors.New("no payment instrument")
	ErrNoBankAccount       = errors.New("recipient has no bank account")
	ErrMissingProfile      = errors.New("member profile missing")
	ErrInactiveRecipient   = calculator.ErrInactiveRecipient
	ErrNoRecipient         = calculator.ErrNoRecipient
	ErrGatewayRejected     = errors.New("gateway rejected request")
	ErrGatewayTimeout      = errors.New("gateway did not answer in time")
	ErrMaxRetriesExceeded  = errors.New("max retries exceeded")
	ErrAlreadyContributed  = errors.New("contribution already completed for cycle")
	ErrChargeInProgress    = errors.New("charge already in progress")
)

// ValidationError rejects a request before any processing happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EntityError ties a per-entity failure to the membership or group it hit.
type EntityError struct {
	Kind string
	ID   string
	Err  error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error { return e.Err }

// FatalError aborts the remainder of a run, typically because the datastore
// is unreachable.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err should abort the batch.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// storeErr classifies a storage error. Sentinel outcomes stay per-entity;
// anything else means the datastore itself failed.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrPayoutExists),
		errors.Is(err, storage.ErrNotPending),
		errors.Is(err, storage.ErrCycleAdvanced),
		errors.Is(err, storage.ErrDuplicateReference):
		return err
	}
	if IsFatal(err) {
		return err
	}
	return &FatalError{Err: err}
}

// gatewayErr maps a gateway call failure to the engine taxonomy while keeping
// the original cause in the chain.
func gatewayErr(err error, rejected bool) error {
	switch {
	case rejected:
		return fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	default:
		return fmt.Errorf("gateway call failed: %w", err)
	}
}
