package service

import (
	"errors"
	"fmt"
)

// Monetary invariant violations fail closed: they are rejected before any
// persistence happens.
var (
	ErrAmountBelowMinimum = &ValidationError{Reason: "amount below minimum charge"}
	ErrSplitExceedsTotal  = &ValidationError{Reason: "splits and fees exceed charge amount"}
	ErrChargeNotFound     = errors.New("charge not found")
	ErrIssuanceInFlight   = errors.New("issuance already in flight for this idempotency key")
	ErrChargeNotPending   = errors.New("charge is not pending")
)

// Auth failure codes surfaced on inbound 401 responses.
const (
	AuthCodeNotConfigured    = "WEBHOOK_NOT_CONFIGURED"
	AuthCodeInvalidSignature = "INVALID_SIGNATURE"
	AuthCodeMissingSignature = "MISSING_SIGNATURE"
)

type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// AuthError means an inbound callback failed authentication. It is the only
// error class that maps to a non-200 response to the provider.
type AuthError struct {
	Code string
}

func (e *AuthError) Error() string {
	return e.Code
}

// ProviderError wraps a failed provider call. The charge it refers to stays
// PENDING; issuance can be re-attempted against the same charge id.
type ProviderError struct {
	ChargeID string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider issuance failed for charge %s: %v", e.ChargeID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// errUnmatched and errAmbiguous classify matching-stage outcomes. Neither is
// transient, so neither is retried; both leave the event unresolved.
var (
	errUnmatched = errors.New("no matching charge")
	errAmbiguous = errors.New("multiple candidate charges match")
)
