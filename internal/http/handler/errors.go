package handler

import (
	"errors"
	"net/http"

	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/logger"
	"github.com/labstack/echo/v4"
)

// MapToPublicError maps internal errors to public-facing HTTP status codes and messages
// This prevents information disclosure by providing consistent, generic error messages
func MapToPublicError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrSyncInProgress):
		return http.StatusConflict, msgSyncInProgress
	case errors.Is(err, apperrors.ErrUnauthorized), errors.Is(err, apperrors.ErrExpired):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "access denied"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "resource conflict"
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrBadRequest), errors.Is(err, apperrors.ErrInvalidLevel):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, apperrors.ErrNetwork):
		return http.StatusBadGateway, "upstream API request failed"
	default:
		// Never expose internal errors to clients
		return http.StatusInternalServerError, "internal server error"
	}
}

// respondMapped logs err and answers with its public mapping. Validation
// errors keep their own message; it names the offending field.
func respondMapped(c echo.Context, err error, fallback string) error {
	status, msg := MapToPublicError(err)
	var appErr *apperrors.AppError
	if status == http.StatusBadRequest && errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("%s: %s", fallback, logger.SanitizeLogMessage(err.Error()))
		if status == http.StatusInternalServerError {
			msg = fallback
		}
	}
	return respondError(c, status, msg)
}
