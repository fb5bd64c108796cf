package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by the cart packages.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")
)

// Kind describes how a class of failure is reported to clients.
type Kind struct {
	Sentinel error
	Code     string
	Status   int
	Message  string // empty means the error text is shown as is
}

// Kinds are checked in order; the last entry is the catch-all.
var (
	KindNotFound    = Kind{ErrNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found"}
	KindInvalid     = Kind{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest, ""}
	KindUnavailable = Kind{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service unavailable"}
	KindInternal    = Kind{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError, "an internal error occurred"}

	kinds = []Kind{KindNotFound, KindInvalid, KindUnavailable, KindInternal}
)

// AppError is a structured error carrying a machine code and an HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (k Kind) new(message string, cause error) *AppError {
	err := k.Sentinel
	if cause != nil {
		err = errors.Join(k.Sentinel, cause)
	}
	return &AppError{Code: k.Code, Message: message, Status: k.Status, Err: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return KindNotFound.new(fmt.Sprintf("%s with id %s not found", resource, id), nil)
}

// InvalidInput reports a request the caller must fix.
func InvalidInput(message string) *AppError {
	return KindInvalid.new(message, nil)
}

// Unavailable reports a backing component that cannot be reached.
func Unavailable(component string, err error) *AppError {
	return KindUnavailable.new(component+" is unavailable", err)
}

// Internal hides err behind a generic message.
func Internal(err error) *AppError {
	return KindInternal.new(KindInternal.Message, err)
}

// From returns err as an AppError. Plain errors are classified by the
// sentinel they wrap and fall back to KindInternal.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	k := kindOf(err)
	msg := k.Message
	if msg == "" {
		msg = err.Error()
	}
	return &AppError{Code: k.Code, Message: msg, Status: k.Status, Err: err}
}

func kindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.Sentinel) {
			return k
		}
	}
	return KindInternal
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	return From(err).Status
}
