package domain

import (
	"errors"
	"fmt"
	"strings"
)

// SignalSourceAuthError means the signal source rejected our credentials.
// It is fatal: the operator must fix the configuration.
type SignalSourceAuthError struct {
	Account string
	Status  int
	Err     error
}

func (e *SignalSourceAuthError) Error() string {
	return fmt.Sprintf("signal source auth failed (account %s, status %d): %v", e.Account, e.Status, e.Err)
}

func (e *SignalSourceAuthError) Unwrap() error { return e.Err }

// SignalSourceTransientError is a network or decoding failure while fetching
// posts. The account is simply not refreshed this cycle.
type SignalSourceTransientError struct {
	Account string
	Err     error
}

func (e *SignalSourceTransientError) Error() string {
	return fmt.Sprintf("signal source fetch failed (account %s): %v", e.Account, e.Err)
}

func (e *SignalSourceTransientError) Unwrap() error { return e.Err }

// VenueRequestError is a rejected private venue call (bad nonce, insufficient
// funds, invalid arguments...). Messages holds the venue's error strings.
type VenueRequestError struct {
	Op       string
	Messages []string
	Err      error
}

func (e *VenueRequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "venue %s failed", e.Op)
	if len(e.Messages) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Messages, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *VenueRequestError) Unwrap() error { return e.Err }

// VenueCancelFailure is a failed cancellation of one order. It is tolerated:
// the id stays in the venue record and is retried next cycle.
type VenueCancelFailure struct {
	OrderID string
	Err     error
}

func (e *VenueCancelFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cancel %s: not cancelled", e.OrderID)
	}
	return fmt.Sprintf("cancel %s: %v", e.OrderID, e.Err)
}

func (e *VenueCancelFailure) Unwrap() error { return e.Err }

// DataIntegrityError reports venue data that breaks position binariness:
// one pair's open orders carry more than one side, or an unknown side.
type DataIntegrityError struct {
	Pair     string
	Sides    []Side
	OrderIDs []string
}

func (e *DataIntegrityError) Error() string {
	sides := make([]string, len(e.Sides))
	for i, s := range e.Sides {
		sides[i] = string(s)
	}
	return fmt.Sprintf("data integrity: pair %s has open orders with sides [%s] (orders %s)",
		e.Pair, strings.Join(sides, ","), strings.Join(e.OrderIDs, ","))
}

// IsFatal reports whether err must stop the process.
func IsFatal(err error) bool {
	var auth *SignalSourceAuthError
	return errors.As(err, &auth)
}

// ErrorKind classifies err into the taxonomy, for logs and metrics.
func ErrorKind(err error) string {
	var (
		auth      *SignalSourceAuthError
		transient *SignalSourceTransientError
		venue     *VenueRequestError
		cancel    *VenueCancelFailure
		integrity *DataIntegrityError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &integrity):
		return "data_integrity"
	case errors.As(err, &cancel):
		return "cancel_failure"
	case errors.As(err, &venue):
		return "venue_request"
	case errors.As(err, &auth):
		return "source_auth"
	case errors.As(err, &transient):
		return "source_transient"
	default:
		return "other"
	}
}
