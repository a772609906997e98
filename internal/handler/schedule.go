// Package handler exposes the schedule over HTTP.  Reads return JSON views
// of the grid; writes go through the service so validation and persistence
// happen in one place.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-schedule/internal/model"
	"github.com/iliyamo/parking-schedule/internal/service"
)

// ScheduleHandler serves the /v1 schedule endpoints.
type ScheduleHandler struct {
	Service *service.ScheduleService
}

// NewScheduleHandler panics if svc is nil.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	if svc == nil {
		panic("nil service passed to NewScheduleHandler")
	}
	return &ScheduleHandler{Service: svc}
}

type occupantRequest struct {
	Occupant string `json:"occupant"`
}

// ListSpots returns the catalog, flat and grouped by layout row.
func (h *ScheduleHandler) ListSpots(c echo.Context) error {
	cat := h.Service.Catalog()
	return c.JSON(http.StatusOK, echo.Map{"items": cat.Spots(), "rows": cat.Rows()})
}

// ListDates returns today's key and the seven days after it.
func (h *ScheduleHandler) ListDates(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"today":      h.Service.Today(),
		"week_ahead": h.Service.WeekAhead(),
		"timezone":   h.Service.Location().String(),
	})
}

// GetTiles returns one tile per spot for :date.
func (h *ScheduleHandler) GetTiles(c echo.Context) error {
	date := c.Param("date")
	tiles, err := h.Service.Tiles(date)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "items": tiles})
}

// GetHours lists the hours of one spot filtered by the occupancy, band and
// q query parameters.
func (h *ScheduleHandler) GetHours(c echo.Context) error {
	date, spot := c.Param("date"), c.Param("spot")
	filter, err := filterFrom(c)
	if err != nil {
		return respondError(c, err)
	}
	slots, err := h.Service.Hours(date, spot, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "spot": spot, "items": slots})
}

// PutHour validates and stores the occupant of one hour.
func (h *ScheduleHandler) PutHour(c echo.Context) error {
	hour, err := hourParam(c)
	if err != nil {
		return respondError(c, err)
	}
	var req occupantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	date, spot := c.Param("date"), c.Param("spot")
	hours, err := h.Service.SetOccupant(c.Request().Context(), date, spot, hour, req.Occupant)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, spotResponse(date, spot, hours))
}

// DeleteHour frees one hour.
func (h *ScheduleHandler) DeleteHour(c echo.Context) error {
	hour, err := hourParam(c)
	if err != nil {
		return respondError(c, err)
	}
	date, spot := c.Param("date"), c.Param("spot")
	hours, err := h.Service.ClearHour(c.Request().Context(), date, spot, hour)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, spotResponse(date, spot, hours))
}

// ClearHours frees every hour that passes the query filter.
func (h *ScheduleHandler) ClearHours(c echo.Context) error {
	return h.bulk(c, h.Service.ClearVisible)
}

// ResetHours writes the spot's default occupant into every hour that
// passes the query filter.
func (h *ScheduleHandler) ResetHours(c echo.Context) error {
	return h.bulk(c, h.Service.ResetVisible)
}

func (h *ScheduleHandler) bulk(c echo.Context, op func(context.Context, string, string, service.HourFilter) ([]int, error)) error {
	filter, err := filterFrom(c)
	if err != nil {
		return respondError(c, err)
	}
	date, spot := c.Param("date"), c.Param("spot")
	touched, err := op(c.Request().Context(), date, spot, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"date":    date,
		"spot":    spot,
		"touched": touched,
	})
}

// GetCalendar serves the occupied hours of :date as text/calendar.
func (h *ScheduleHandler) GetCalendar(c echo.Context) error {
	date := c.Param("date")
	body, err := h.Service.Calendar(date)
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", "parking-"+date+".ics"))
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

func filterFrom(c echo.Context) (service.HourFilter, error) {
	return service.ParseHourFilter(c.QueryParam("occupancy"), c.QueryParam("band"), c.QueryParam("q"))
}

func hourParam(c echo.Context) (int, error) {
	raw := c.Param("hour")
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", service.ErrInvalidHour, raw)
	}
	return n, nil
}

func spotResponse(date, spot string, hours model.SpotHours) echo.Map {
	return echo.Map{"date": date, "spot": spot, "hours": hours}
}
