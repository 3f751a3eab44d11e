package errs

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrNotFound             = errors.New("not found")
	ErrDataConflict         = errors.New("data conflict")
	ErrAlreadyExists        = errors.New("already exists")
	ErrAlreadyFinalized     = errors.New("order already finalized")
	ErrNoMatchingPayment    = errors.New("no matching payment")
	ErrPaymentPredatesOrder = errors.New("payment predates order")
	ErrAlreadyLinked        = errors.New("payment already linked")
	ErrInvalidRange         = errors.New("invalid statement range")
	ErrUpstreamUnavailable  = errors.New("ledger unavailable")
	ErrRateLimit            = errors.New("rate limit")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrRequiredBodyParam    = errors.New("required body parameter missing")
	ErrInvalidContentType   = errors.New("invalid content type")
)

// Type just for marshalling purpose.
// Should only be used immediately before marshalling.
type JSON struct {
	Error string `json:"error"`
}

// UpstreamError is a non-2xx answer from the ledger API.
// Body carries at most the first 500 bytes of the response for diagnostics.
type UpstreamError struct {
	Body       string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ledger responded %d: %s", e.StatusCode, e.Body)
}
