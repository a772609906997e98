package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-schedule/internal/model"
	"github.com/iliyamo/parking-schedule/internal/service"
	"github.com/iliyamo/parking-schedule/internal/validation"
)

// respondError maps service errors onto HTTP responses.  Anything not
// recognised is a storage failure.
func respondError(c echo.Context, err error) error {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": verr.Message, "code": verr.Code})
	case errors.Is(err, model.ErrInvalidDateKey),
		errors.Is(err, service.ErrInvalidHour),
		errors.Is(err, service.ErrInvalidFilter):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrUnknownSpot):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}
	c.Logger().Errorf("schedule: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "storage error"})
}
