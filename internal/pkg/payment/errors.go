package payment

import "errors"

// Sentinel errors used by controllers to map failures onto HTTP statuses.
// Anything not matching one of these is treated as an internal error.
var (
	// ErrValidation marks bad caller input, e.g. a non-positive amount.
	ErrValidation = errors.New("payment: invalid input")
	// ErrGateway marks a failed request to the external payment provider.
	// No local state is written when it occurs during intent creation.
	ErrGateway = errors.New("payment: gateway request failed")
	// ErrSignature marks a webhook delivery that failed signature verification.
	ErrSignature = errors.New("payment: webhook signature verification failed")
	// ErrPayload marks a webhook body that could not be decoded.
	ErrPayload = errors.New("payment: webhook payload malformed")
)
