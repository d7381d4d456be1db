package catalog

import (
	"errors"
	"fmt"
)

// ErrPaymentLinkCreationFailed indicates Square did not yield a usable link.
var ErrPaymentLinkCreationFailed = errors.New("payment link creation failed")

// PaymentLinkError is returned when a link could not be created for a variation.
type PaymentLinkError struct {
	VariationID string
	Err         error
}

// Error implements the error interface.
func (e *PaymentLinkError) Error() string {
	return fmt.Sprintf("payment link for variation %s: %v", e.VariationID, e.Err)
}

// Unwrap exposes the provider error.
func (e *PaymentLinkError) Unwrap() error {
	return e.Err
}

// Is matches ErrPaymentLinkCreationFailed.
func (e *PaymentLinkError) Is(target error) bool {
	return target == ErrPaymentLinkCreationFailed
}
