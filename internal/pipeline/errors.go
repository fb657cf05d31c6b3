package pipeline

import "net/http"

// Failure kinds. Every request deterministically terminates in success or
// exactly one of these.
const (
	KindBadRequest            = "bad_request"
	KindQuotaExceeded         = "quota_exceeded"
	KindTimeout               = "timeout"
	KindUnreachable           = "unreachable"
	KindNoReadableArticle     = "no_readable_article"
	KindClassifierUnavailable = "classifier_unavailable"
	KindInternal              = "internal"
)

// Error is a typed pipeline failure carrying a human-readable message and
// an HTTP-style status class.
type Error struct {
	Kind    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode maps the failure kind to its HTTP status class.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindBadRequest, KindNoReadableArticle:
		return http.StatusBadRequest
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func failf(kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
