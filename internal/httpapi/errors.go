package httpapi

import (
	nativeerrors "errors"

	"github.com/gofiber/fiber/v2"

	"github.com/lotusgame/duel-server-go/internal/errors"
)

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Kind    string         `json:"kind,omitempty"`
	Details errors.Details `json:"details,omitempty"`
}

func httpStatus(code errors.Code) int {
	switch code {
	case errors.ErrNotFound:
		return fiber.StatusNotFound
	case errors.ErrForbidden:
		return fiber.StatusForbidden
	case errors.ErrInvalidState:
		return fiber.StatusConflict
	case errors.ErrInsufficientResource, errors.ErrRulesViolation:
		return fiber.StatusUnprocessableEntity
	case errors.ErrBadRequest:
		return fiber.StatusBadRequest
	case errors.ErrCommunication:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// handleError renders every handler error as JSON. Internal failures are
// logged and reported without details.
func (a *API) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if nativeerrors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Error: fe.Message, Code: "http"})
	}

	errors.Log(a.logger, err)
	e, _ := errors.Cast(err)
	status := httpStatus(e.Code)
	if status == fiber.StatusInternalServerError {
		return c.Status(status).JSON(errorBody{Error: "internal error", Code: string(errors.ErrInternal)})
	}
	return c.Status(status).JSON(errorBody{
		Error:   e.Message,
		Code:    string(e.Code),
		Kind:    string(e.Kind),
		Details: e.Details,
	})
}
