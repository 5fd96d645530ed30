package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// wsConnect hands /ws/device and /ws/dashboard upgrades to the gateway, which
// authenticates the peer and rejects unknown paths itself.
func (h *Handler) wsConnect(c *gin.Context) {
	h.gateway.ServeWS(c.Writer, c.Request)
}

// @Summary      Gateway population
// @Tags         gateway
// @Produce      json
// @Success      200  {object}  models.Stats
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/gateway/stats [get]
// @Security     BearerAuth
func (h *Handler) gatewayStats(c *gin.Context) {
	st, err := h.gateway.Stats(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to read gateway stats", "gateway_stats_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
