package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type deviceTokenRequest struct {
	DeviceID string `json:"device_id" binding:"required" example:"esp32_default"`
}

// @Summary      List devices
// @Description  Every device seen so far with its last known presence.
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices/ [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	devices, err := h.services.Devices.List(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load devices", "devices_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}

// @Summary      Issue device token
// @Description  The token goes in the device's ?token= query on /ws/device.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        body  body      deviceTokenRequest  true  "Device id"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/devices/token [post]
// @Security     BearerAuth
func (h *Handler) issueDeviceToken(c *gin.Context) {
	var req deviceTokenRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	token, err := h.services.GenerateDeviceToken(req.DeviceID)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to issue device token", "device_token_failed", err,
			"device_id", req.DeviceID)
		return
	}
	h.log.Infow("device_token_issued", "device_id", req.DeviceID, "user_id", c.GetString(ctxUserID))
	c.JSON(http.StatusOK, gin.H{"device_id": req.DeviceID, "token": token})
}
