package billing

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPriceKey    = errors.New("unknown price key")
	ErrPriceNotConfigured = errors.New("price id is not configured")
	ErrMissingSignature   = errors.New("missing stripe-signature header")
	ErrSignatureInvalid   = errors.New("invalid webhook signature")
)

// UpstreamError wraps a failed call to the payment processor. Nothing local
// has been persisted when it is returned, so the whole operation is safe to
// retry.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("stripe %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}
