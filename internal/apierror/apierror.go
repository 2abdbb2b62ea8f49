// Package apierror defines the externally visible failure taxonomy. Every
// failure a request can hit maps to exactly one Kind, one HTTP status and a
// stable documentation page.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusMalformedJSON is a non-standard status for a well-formed HTTP request
// whose body is not UTF-8 JSON. It keeps such failures apart from ordinary
// 400s.
const StatusMalformedJSON = 753

type Kind string

const (
	KindMissingCredential    Kind = "MISSING_CREDENTIAL"
	KindInvalidCredential    Kind = "INVALID_CREDENTIAL"
	KindNotAcceptable        Kind = "NOT_ACCEPTABLE"
	KindUnsupportedMediaType Kind = "UNSUPPORTED_MEDIA_TYPE"
	KindEmptyBody            Kind = "EMPTY_BODY"
	KindMalformedJSON        Kind = "MALFORMED_JSON"
	KindInvalidDocument      Kind = "INVALID_DOCUMENT"
	KindNotFound             Kind = "NOT_FOUND"
	KindMethodNotAllowed     Kind = "METHOD_NOT_ALLOWED"
	KindForbidden            Kind = "FORBIDDEN"
	KindConflict             Kind = "CONFLICT"
	KindRateLimited          Kind = "RATE_LIMITED"
	KindInternal             Kind = "INTERNAL"
)

// Status returns the HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindMissingCredential, KindInvalidCredential, KindEmptyBody, KindInvalidDocument:
		return http.StatusBadRequest
	case KindNotAcceptable:
		return http.StatusNotAcceptable
	case KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case KindMalformedJSON:
		return StatusMalformedJSON
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Page returns the documentation page, relative to the API's docs root,
// describing the kind.
func (k Kind) Page() string {
	switch k {
	case KindMissingCredential, KindInvalidCredential:
		return "request-headers.htm"
	case KindNotAcceptable:
		return "response-body-json.htm"
	case KindUnsupportedMediaType, KindEmptyBody, KindMalformedJSON, KindInvalidDocument:
		return "json/request-body-json.htm"
	case KindForbidden:
		return "ownership.htm"
	case KindConflict:
		return "revisions.htm#conflicts"
	case KindRateLimited:
		return "rate-limits.htm"
	default:
		return "errors.htm"
	}
}

// Error is a failure ready to be rendered to a client.
type Error struct {
	Kind        Kind
	Title       string
	Description string
	// Anchor narrows the documentation page, e.g. to a specific cookie.
	Anchor string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Title, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Title)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

func (e *Error) Status() int {
	return e.Kind.Status()
}

// Href returns the documentation link under the given docs root.
func (e *Error) Href(docsRoot string) string {
	page := e.Kind.Page()
	if e.Anchor != "" {
		page += "#" + e.Anchor
	}
	return docsRoot + page
}

// Body is the JSON representation written to clients.
type Body struct {
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Href        string `json:"href"`
}

func (e *Error) Body(docsRoot string) Body {
	return Body{Kind: e.Kind, Title: e.Title, Description: e.Description, Href: e.Href(docsRoot)}
}

func New(kind Kind, title, description string) *Error {
	return &Error{Kind: kind, Title: title, Description: description}
}

func Wrap(kind Kind, title, description string, cause error) *Error {
	return &Error{Kind: kind, Title: title, Description: description, Cause: cause}
}

// Sentinels for errors.Is comparisons.
var (
	MissingCredential    = &Error{Kind: KindMissingCredential}
	InvalidCredential    = &Error{Kind: KindInvalidCredential}
	NotAcceptable        = &Error{Kind: KindNotAcceptable}
	UnsupportedMediaType = &Error{Kind: KindUnsupportedMediaType}
	EmptyBody            = &Error{Kind: KindEmptyBody}
	MalformedJSON        = &Error{Kind: KindMalformedJSON}
	InvalidDocument      = &Error{Kind: KindInvalidDocument}
	NotFound             = &Error{Kind: KindNotFound}
	Forbidden            = &Error{Kind: KindForbidden}
	Conflict             = &Error{Kind: KindConflict}
	RateLimited          = &Error{Kind: KindRateLimited}
)

// As extracts an *Error from err's chain, or wraps err as an internal error.
func As(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Wrap(KindInternal, "Internal error", "The server could not complete the request.", err)
}
