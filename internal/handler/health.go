package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is a liveness probe for load balancers and monitoring.  It answers
// "ok" whenever the process can serve HTTP, regardless of the state of Redis,
// RabbitMQ or the sync channel.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
