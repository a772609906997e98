package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-schedule/internal/remote"
)

// SyncHandler reports on websocket synchronisation.  Channel is nil when
// the outbound channel is disabled.
type SyncHandler struct {
	Channel *remote.Channel
	Hub     *remote.Hub
}

// Status returns the outbound channel state and the number of peers
// connected to this process's hub.
func (h *SyncHandler) Status(c echo.Context) error {
	out := echo.Map{"enabled": h.Channel != nil}
	if h.Channel != nil {
		out["channel"] = h.Channel.Status()
	}
	if h.Hub != nil {
		out["peers"] = h.Hub.Peers()
	}
	return c.JSON(http.StatusOK, out)
}
