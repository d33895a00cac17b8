package rig

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Kind enumerates the error kinds of §7.
type Kind string

const (
	UnsupportedPlugin Kind = "UnsupportedPlugin"
	TransportFailure   Kind = "TransportFailure"
	Timeout            Kind = "Timeout"
	DuplicateLabel     Kind = "DuplicateLabel"
	SlotNotFound       Kind = "SlotNotFound"
	InvariantViolation Kind = "InvariantViolation"
	RoutingConflict    Kind = "RoutingConflict"
)

// Error carries a typed Kind alongside the usual wrapped error chain, so
// callers can branch with errors.As instead of string matching (§7, §9
// "Error flow").
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// ErrorHandler receives asynchronous failures that have no direct caller to
// return to (on_error, §6). Generalizes the teacher's ErrorHandler interface
// (errors.go: DefaultErrorHandler / LoggingErrorHandler).
type ErrorHandler interface {
	HandleError(kind Kind, detail string, err error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(kind Kind, detail string, err error)

func (f ErrorHandlerFunc) HandleError(kind Kind, detail string, err error) { f(kind, detail, err) }

// NopErrorHandler discards all errors. Useful as a safe zero value and in
// tests that don't care about the async error channel.
type NopErrorHandler struct{}

func (NopErrorHandler) HandleError(Kind, string, error) {}

// LoggingErrorHandler logs every error via charmbracelet/log, then forwards
// it to an optional wrapped handler (§10 "ambient stack"), generalizing the
// teacher's LoggingErrorHandler wrap-and-forward shape.
type LoggingErrorHandler struct {
	logger     *log.Logger
	underlying ErrorHandler
}

// NewLoggingErrorHandler builds a LoggingErrorHandler. underlying may be nil.
func NewLoggingErrorHandler(logger *log.Logger, underlying ErrorHandler) *LoggingErrorHandler {
	return &LoggingErrorHandler{logger: logger, underlying: underlying}
}

func (h *LoggingErrorHandler) HandleError(kind Kind, detail string, err error) {
	h.logger.Error("rig error", "kind", kind, "detail", detail, "err", err)
	if h.underlying != nil {
		h.underlying.HandleError(kind, detail, err)
	}
}
