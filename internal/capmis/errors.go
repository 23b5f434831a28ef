package capmis

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed backend call. Callers switch on the kind and
// never inspect error text.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindTimeout
	KindNetwork
	KindServerStatus
	KindBusinessRule
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTimeout:
		return "timeout"
	case KindNetwork:
		return "network"
	case KindServerStatus:
		return "server_status"
	case KindBusinessRule:
		return "business_rule"
	default:
		return "unknown"
	}
}

// Business-rule codes the backend is known to signal.
const (
	CodePhotoRequired    = "PHOTO_REQUIRED"
	CodeActivePermission = "ACTIVE_PERMISSION"
)

type Error struct {
	Kind    Kind
	Code    string // business-rule code, empty otherwise
	Status  int    // HTTP status for KindServerStatus / KindBusinessRule
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("capmis: %s: %s", e.Kind, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("capmis: %s: %v", e.Kind, e.cause)
	}
	return "capmis: " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// KindOf extracts the kind from any error chain; 0 when the error did not
// come from this client.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// IsBusinessRule reports whether err is a backend rejection with the given code.
func IsBusinessRule(err error, code string) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindBusinessRule && ce.Code == code
}

// classifyTransport maps a transport-level failure to timeout or network.
func classifyTransport(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, cause: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Kind: KindTimeout, cause: err}
	}
	return &Error{Kind: KindNetwork, cause: err}
}
