// ABOUTME: Tagged error taxonomy shared by the conversation core and its callers
// ABOUTME: Maps validation, not-found, upstream and enrichment failures to status codes
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to pick a response.
type Kind int

const (
	KindInternal Kind = iota
	// KindValidation is bad caller input: missing field, disallowed enum value.
	KindValidation
	// KindNotFound is a role or conversation missing where one is required.
	KindNotFound
	// KindUpstream is a completion provider failure. Not retried here.
	KindUpstream
	// KindEnrichment is a best-effort repair that failed during a read.
	// Always swallowed at the reconciliation boundary.
	KindEnrichment
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindEnrichment:
		return "enrichment"
	default:
		return "internal"
	}
}

// Error carries a Kind plus the operation or field it concerns.
type Error struct {
	Kind  Kind
	Op    string
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports invalid input for a named field.
func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Err: fmt.Errorf(format, args...)}
}

// NotFound reports a missing entity.
func NotFound(what, id string) *Error {
	return &Error{Kind: KindNotFound, Field: what, Err: fmt.Errorf("%s %q not found", what, id)}
}

// Upstream wraps a completion provider failure.
func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

// Enrichment wraps a failed best-effort repair.
func Enrichment(op string, err error) *Error {
	return &Error{Kind: KindEnrichment, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status maps err to an HTTP-equivalent status code.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
