package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/campushive/hivelab/pkg/domain"
)

// statusOf maps a gateway error to an HTTP status.
func statusOf(err error) int {
	var ee *domain.ExecutionError
	switch {
	case errors.As(err, &ee):
		if ee.StatusCode >= 400 {
			return ee.StatusCode
		}
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrToolNotFound),
		errors.Is(err, domain.ErrStateNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidDeploymentID):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorOf maps a failed response back to a domain error.
func errorOf(op string, status int, msg string) error {
	switch {
	case status == http.StatusNotFound && op == "load":
		return &notFound{msg: msg}
	case status >= 500 || status == http.StatusTooManyRequests:
		return &domain.TransportError{Op: op, StatusCode: status, Err: errors.New(msg)}
	default:
		return &domain.ExecutionError{StatusCode: status, Message: msg}
	}
}

type notFound struct{ msg string }

func (e *notFound) Error() string { return e.msg }

func (e *notFound) Unwrap() error { return domain.ErrToolNotFound }
