package handlers

import (
	"errors"
	"net/http"

	"motor_gateway/internal/gateway"
	"motor_gateway/internal/models"
	"motor_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	msgCommandSent = "Command sent to device"
	msgNoDevices   = "No devices connected"

	errSendCommand = "failed to send command"
	errMotor       = "Motor must be A or B"
	errSpeed       = "Speed must be between 0 and 100"
)

type motorRequest struct {
	Motor string `json:"motor" binding:"required" example:"A"`
}

type speedRequest struct {
	Motor string   `json:"motor" binding:"required" example:"A"`
	Speed *float64 `json:"speed" binding:"required" example:"60"`
}

type resetRequest struct {
	Motor string `json:"motor,omitempty" example:"B"`
}

// commandResponse mirrors what a dashboard sees for its own commands.
type commandResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Command models.Command `json:"command"`
}

func (h *Handler) respondCommand(c *gin.Context, res service.CommandResult, err error) {
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidMotor):
			c.JSON(http.StatusBadRequest, gin.H{"error": errMotor})
		case errors.Is(err, service.ErrSpeedOutOfRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": errSpeed})
		case errors.Is(err, gateway.ErrInvalidMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logAndJSONError(c, http.StatusInternalServerError, errSendCommand, "command_failed", err,
				"path", c.FullPath(), "user_id", c.GetString(ctxUserID))
		}
		return
	}

	msg := msgNoDevices
	if res.Sent {
		msg = msgCommandSent
	}
	h.log.Infow("command_requested", "command", res.Command.Command, "motor", res.Command.Motor,
		"user_id", c.GetString(ctxUserID), "sent", res.Sent)
	c.JSON(http.StatusOK, commandResponse{Success: res.Sent, Message: msg, Command: res.Command})
}

// @Summary      Start motor
// @Tags         command
// @Accept       json
// @Produce      json
// @Param        body  body      motorRequest  true  "Motor A or B"
// @Success      200   {object}  commandResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/command/start [post]
// @Security     BearerAuth
func (h *Handler) startMotor(c *gin.Context) {
	var req motorRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	res, err := h.services.Commands.Start(c.Request.Context(), models.Motor(req.Motor))
	h.respondCommand(c, res, err)
}

// @Summary      Stop motor
// @Tags         command
// @Accept       json
// @Produce      json
// @Param        body  body      motorRequest  true  "Motor A or B"
// @Success      200   {object}  commandResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/command/stop [post]
// @Security     BearerAuth
func (h *Handler) stopMotor(c *gin.Context) {
	var req motorRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	res, err := h.services.Commands.Stop(c.Request.Context(), models.Motor(req.Motor))
	h.respondCommand(c, res, err)
}

// @Summary      Set motor speed
// @Description  speed is a percentage, 0 to 100
// @Tags         command
// @Accept       json
// @Produce      json
// @Param        body  body      speedRequest  true  "Motor and speed"
// @Success      200   {object}  commandResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/command/set-speed [post]
// @Security     BearerAuth
func (h *Handler) setSpeed(c *gin.Context) {
	var req speedRequest
	if !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	res, err := h.services.Commands.SetSpeed(c.Request.Context(), models.Motor(req.Motor), *req.Speed)
	h.respondCommand(c, res, err)
}

// @Summary      Reset motor
// @Description  Without a motor, resets the whole controller. The body is optional.
// @Tags         command
// @Accept       json
// @Produce      json
// @Param        body  body      resetRequest  false  "Optional motor"
// @Success      200   {object}  commandResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/command/reset [post]
// @Security     BearerAuth
func (h *Handler) resetMotor(c *gin.Context) {
	var req resetRequest
	if c.Request.ContentLength != 0 && !h.bindJSONOrBadRequest(c, &req) {
		return
	}
	res, err := h.services.Commands.Reset(c.Request.Context(), models.Motor(req.Motor))
	h.respondCommand(c, res, err)
}
