package api

import (
	"errors"
	"net/http"

	"SignalScan/internal/domain/models"
	xhttp "SignalScan/pkg/http"
)

var errRateLimited = xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many requests", http.StatusTooManyRequests)

// toAppError maps domain errors onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, models.ErrInvalidConfiguration):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrAlreadyRunning), errors.Is(err, models.ErrNotRunning):
		return xhttp.ConflictError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrConnectionLost), errors.Is(err, models.ErrUpstreamUnavailable):
		return xhttp.UnavailableError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrUnknownBroker):
		return xhttp.NotFoundErrorf("%v", err).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
