package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/pkg/geohash"
	"github.com/samirrijal/murmur/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, forbidden, not_found, location_unavailable, store_unavailable, internal_error
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errForbidden returns a 403 error.
func errForbidden(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusForbidden, "forbidden", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errUnprocessable returns a 422 error for a missing device location.
func errUnprocessable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnprocessableEntity, "location_unavailable", msg)
}

// errUnavailable returns a 503 error when the location store is down.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "store_unavailable", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errFromDomain maps a service error onto the API error envelope.
func errFromDomain(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, geohash.ErrInvalidCoordinate),
		errors.Is(err, geohash.ErrInvalidPrecision),
		errors.Is(err, geohash.ErrEmptyCell),
		errors.Is(err, geohash.ErrInvalidCellCharacter),
		errors.Is(err, domain.ErrInvalidUser),
		errors.Is(err, domain.ErrFutureTimestamp),
		errors.Is(err, domain.ErrPrecisionMismatch),
		errors.Is(err, domain.ErrTooManyCells):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrLocationUnavailable):
		return errUnprocessable(c, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		logging.FromContext(c.UserContext()).ErrorContext(c.UserContext(), "location store unavailable", "error", err)
		return errUnavailable(c, "location store unavailable, retry later")
	default:
		logging.FromContext(c.UserContext()).ErrorContext(c.UserContext(), "request failed", "error", err)
		return errInternal(c, "internal error")
	}
}
