package order

import "errors"

// Sentinel errors for the order core. Handlers map these onto HTTP status
// codes; everything else is treated as an internal error.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrSignatureInvalid   = errors.New("signature verification failed")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrConflict           = errors.New("conflicting order state")
)

// WebhookError carries enough structure for the webhook handler to pick a
// status code without leaking internals to the gateway.
type WebhookError struct {
	Category      string // "validation", "processing"
	StatusCode    int
	PublicError   string // safe to expose to the gateway
	InternalError string // detailed error for logs only
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}
