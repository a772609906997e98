// Package router defines how HTTP routes are registered for the API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-schedule/internal/handler"
)

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterSchedule registers the schedule API under /v1.  Reads pass
// through the cache middleware, writes through the rate limiter.
func RegisterSchedule(e *echo.Echo, h *handler.ScheduleHandler, cache, limit echo.MiddlewareFunc) {
	read := e.Group("/v1", cache)
	read.GET("/spots", h.ListSpots)
	read.GET("/schedule/:date", h.GetTiles)
	read.GET("/schedule/:date/spots/:spot/hours", h.GetHours)
	read.GET("/schedule/:date/calendar.ics", h.GetCalendar)

	// today moves at midnight, so the date list is never cached
	e.GET("/v1/dates", h.ListDates)

	write := e.Group("/v1/schedule/:date/spots/:spot", limit)
	write.PUT("/hours/:hour", h.PutHour)
	write.DELETE("/hours/:hour", h.DeleteHour)
	write.POST("/clear", h.ClearHours)
	write.POST("/reset", h.ResetHours)
}

// RegisterSync registers the sync status endpoint and the websocket hub.
func RegisterSync(e *echo.Echo, h *handler.SyncHandler, hub http.Handler) {
	e.GET("/v1/sync/status", h.Status)
	if hub != nil {
		e.GET("/ws", echo.WrapHandler(hub))
	}
}
