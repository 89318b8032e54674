package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes and protocol error frames.
var (
	ErrSessionExists    = errors.New("session_already_exists")
	ErrUnknownSession   = errors.New("unknown_session")
	ErrUnknownAction    = errors.New("unknown_action")
	ErrMalformedEvent   = errors.New("malformed_event")
	ErrNotConnected     = errors.New("not_connected")
	ErrSessionQueueFull = errors.New("session_queue_full")
)

// RejectionReason is the business reason an order was not executed.
type RejectionReason string

const (
	ReasonMarketClosed       RejectionReason = "MarketClosed"
	ReasonUnknownSymbol      RejectionReason = "UnknownSymbol"
	ReasonInvalidQuantity    RejectionReason = "InvalidQuantity"
	ReasonInsufficientFunds  RejectionReason = "InsufficientFunds"
	ReasonInsufficientShares RejectionReason = "InsufficientShares"
)

// RejectionError is returned by order submission when validation fails.
// It is an expected outcome and leaves the session ledger untouched.
type RejectionError struct {
	Reason RejectionReason
	Symbol string
}

func (e *RejectionError) Error() string {
	switch e.Reason {
	case ReasonMarketClosed:
		return "Market is closed"
	case ReasonUnknownSymbol:
		return fmt.Sprintf("Unknown symbol: %s", e.Symbol)
	case ReasonInvalidQuantity:
		return "Invalid quantity"
	case ReasonInsufficientFunds:
		return "Insufficient funds"
	case ReasonInsufficientShares:
		return "Insufficient shares"
	}
	return string(e.Reason)
}

// Reject builds a RejectionError for the given reason and symbol.
func Reject(reason RejectionReason, symbol string) *RejectionError {
	return &RejectionError{Reason: reason, Symbol: symbol}
}

// ReasonOf extracts the rejection reason from err, if it is a RejectionError.
func ReasonOf(err error) (RejectionReason, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

// ValidationError represents a malformed client frame.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
