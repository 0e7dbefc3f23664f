package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/offline-payment-sync/internal/api_gateway/service"
)

// ConnectivityHandler accepts link observations and exposes the current belief
type ConnectivityHandler struct {
	connectivityService service.ConnectivityService
	logger              *slog.Logger
}

func NewConnectivityHandler(logger *slog.Logger, connectivityService service.ConnectivityService) *ConnectivityHandler {
	return &ConnectivityHandler{
		connectivityService: connectivityService,
		logger:              logger,
	}
}

// Report records an observation. A false to true edge wakes the scheduler,
// which runs the pass in the background; the response does not wait for it.
func (h *ConnectivityHandler) Report(c *gin.Context) {
	var req ConnectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	snapshot, restored := h.connectivityService.Report(c.Request.Context(), *req.Reachable, req.Strength)
	RespondOK(c, mapSnapshotToResponse(snapshot, h.connectivityService.CanSettle(), restored))
}

func (h *ConnectivityHandler) Status(c *gin.Context) {
	RespondOK(c, mapSnapshotToResponse(h.connectivityService.Status(), h.connectivityService.CanSettle(), false))
}
