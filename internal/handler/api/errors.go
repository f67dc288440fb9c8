package api

import (
	"context"
	"errors"
	"net/http"

	"RoomArb/internal/domain/models"
	xhttp "RoomArb/pkg/http"
)

// toAppError maps domain errors to HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var (
		ce     *models.ConstraintError
		appErr *xhttp.AppError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &ce):
		return xhttp.NewAppError("ERR_INVALID_CONSTRAINT", ce.Field, ce.Reason, http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", err.Error()).WithError(err)
	case errors.Is(err, models.ErrUpstreamUnavailable), errors.Is(err, context.DeadlineExceeded):
		return xhttp.UnavailableError("upstream unavailable").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
