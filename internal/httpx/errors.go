package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sundayezeilo/pinboard/internal/errx"
	"github.com/sundayezeilo/pinboard/internal/validation"
)

// ErrorKindToStatus maps errx.Kind to HTTP status codes.
func ErrorKindToStatus(kind errx.Kind) int {
	switch kind {
	case errx.NotFound:
		return http.StatusNotFound
	case errx.Conflict:
		return http.StatusConflict
	case errx.Invalid:
		return http.StatusBadRequest
	case errx.Unauthorized:
		return http.StatusUnauthorized
	case errx.Forbidden:
		return http.StatusForbidden
	case errx.Unavailable:
		return http.StatusServiceUnavailable
	case errx.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKindToCode maps errx.Kind to error codes for JSON responses.
func ErrorKindToCode(kind errx.Kind) string {
	switch kind {
	case errx.NotFound:
		return "not_found"
	case errx.Conflict:
		return "conflict"
	case errx.Invalid:
		return "invalid_input"
	case errx.Unauthorized:
		return "unauthorized"
	case errx.Forbidden:
		return "forbidden"
	case errx.Unavailable:
		return "unavailable"
	case errx.Internal:
		return "internal_error"
	default:
		return "internal_error"
	}
}

// Detailer is implemented by error causes that carry extra data for the
// client, such as the id of the pin a duplicate collides with.
type Detailer interface {
	ErrorDetails() map[string]any
}

// WriteServiceError writes the JSON error response for an error returned by
// a service and logs it. Forbidden is reported as not_found so callers
// cannot probe for other users' entities.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ctx := r.Context()
	kind := errx.KindOf(err)
	if kind == errx.Forbidden {
		kind = errx.NotFound
	}

	logAttrs := []any{
		"request_id", GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
		"error", err.Error(),
		"error_kind", errx.KindOf(err),
		"operation", errx.OpOf(err),
	}

	var (
		message string
		details any
	)
	switch kind {
	case errx.NotFound:
		logger.WarnContext(ctx, "resource not found", logAttrs...)
		message = "resource not found"

	case errx.Invalid:
		logger.WarnContext(ctx, "invalid request", logAttrs...)
		message = causeMessage(err)
		var ve *validation.Error
		if errors.As(err, &ve) {
			message = "validation failed"
			details = map[string]any{"fields": ve.Fields}
		}

	case errx.Conflict:
		logger.WarnContext(ctx, "conflict", logAttrs...)
		message = causeMessage(err)
		var d Detailer
		if errors.As(err, &d) {
			if m := d.ErrorDetails(); len(m) > 0 {
				details = m
			}
		}

	case errx.Unauthorized:
		logger.WarnContext(ctx, "unauthenticated request", logAttrs...)
		message = "authentication required"

	case errx.Unavailable:
		logger.ErrorContext(ctx, "service unavailable", logAttrs...)
		message = "service temporarily unavailable, please try again"

	default:
		logger.ErrorContext(ctx, "unexpected error", logAttrs...)
		message = "an unexpected error occurred"
	}

	WriteError(w, ErrorKindToStatus(kind), ErrorKindToCode(kind), message, details)
}

// causeMessage returns the innermost message below the errx op chain.
func causeMessage(err error) string {
	for {
		e, ok := err.(*errx.Error)
		if !ok || e.Err == nil {
			return err.Error()
		}
		err = e.Err
	}
}
