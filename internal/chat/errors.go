package chat

import "fmt"

// Error codes returned by the orchestrator. Codes are stable; clients
// branch on them, not on messages.
const (
	CodeAuthFailed       = "auth_failed"
	CodeNotFound         = "not_found"
	CodeValidationFailed = "validation_failed"
	CodeReasonerTimeout  = "reasoner_timeout"
	CodeReasonerFailed   = "reasoner_failed"
	CodeStoreUnavailable = "store_unavailable"
)

// Error is a coded orchestrator failure. Retryable indicates the same
// request may succeed if resubmitted unchanged.
type Error struct {
	Code      string
	Message   string
	Retryable bool
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(code, message string, retryable bool, cause error) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable, cause: cause}
}
