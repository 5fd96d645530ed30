package gateway

import (
	"errors"

	"motor_gateway/internal/models"
)

// Replies sent to dashboards.
const (
	replyCommandSent    = "Command sent to device"
	replyNoDevices      = "No devices connected"
	replyInvalidCommand = "Invalid command format"
	replyInvalidMessage = "Invalid message format"
)

// handleDeviceFrame validates device traffic and relays the received bytes
// to dashboards, so they receive exactly what the device sent.
func (g *Gateway) handleDeviceFrame(deviceID string, data []byte) {
	msg, err := Decode(data)
	if err != nil {
		g.dropped(models.RoleDevice, deviceID, err)
		return
	}

	if err := Validate(msg); err != nil {
		g.dropped(models.RoleDevice, deviceID, err)
		return
	}

	switch m := msg.(type) {
	case models.Telemetry:
		g.log.Debugw("telemetry_received", "device_id", deviceID)
		g.router.ToDashboards(data)
	case models.Status:
		g.log.Infow("status_received", "device_id", deviceID, "state", m.State)
		g.router.ToDashboards(data)
	case models.Ack:
		g.log.Infow("ack_received", "device_id", deviceID, "message", m.Message, "success", m.Success)
		g.router.ToDashboards(data)
	case models.Command, models.Connection, models.Error, models.StatusRequest, models.StatusResponse:
		g.log.Warnw("device_message_unexpected", "device_id", deviceID, "type", msg.MessageType())
	}
}

func (g *Gateway) handleDashboardFrame(sock Socket, userID string, data []byte) {
	msg, err := Decode(data)
	if err != nil {
		g.dropped(models.RoleDashboard, userID, err)
		var inv *InvalidMessageError
		if errors.As(err, &inv) && inv.Type == models.TypeCommand {
			g.reply(sock, models.NewError(replyInvalidCommand))
			return
		}
		g.reply(sock, models.NewError(replyInvalidMessage))
		return
	}

	switch m := msg.(type) {
	case models.Command:
		if err := Validate(m); err != nil {
			g.dropped(models.RoleDashboard, userID, err)
			g.reply(sock, models.NewError(replyInvalidCommand))
			return
		}
		sent := g.forward(m, "dashboard", userID)
		if sent {
			g.reply(sock, models.NewAck(true, replyCommandSent))
		} else {
			g.reply(sock, models.NewAck(false, replyNoDevices))
		}
	case models.StatusRequest:
		g.reply(sock, models.NewStatusResponse(g.registry.Stats()))
	case models.Telemetry, models.Status, models.Ack, models.Connection, models.Error, models.StatusResponse:
		g.log.Warnw("dashboard_message_unexpected", "user_id", userID, "type", msg.MessageType())
	}
}

// forward sends cmd to every device and records it. origin is "dashboard" or "rest".
func (g *Gateway) forward(cmd models.Command, origin, userID string) bool {
	sent := g.router.ForwardCommand(cmd)
	g.log.Infow("command_forwarded",
		"command", cmd.Command, "motor", cmd.Motor, "origin", origin, "user_id", userID, "delivered", sent)
	g.record(models.EventCommand, models.RoleDashboard, userID,
		string(cmd.Command)+" "+string(cmd.Motor),
		map[string]any{"origin": origin, "delivered": sent, "value": cmd.Value})
	return sent
}

func (g *Gateway) reply(sock Socket, m models.Message) {
	payload, err := Encode(m)
	if err != nil {
		g.log.Errorw("reply_encode_failed", "type", m.MessageType(), "err", err)
		return
	}
	if !sock.Send(payload) {
		g.log.Debugw("reply_dropped", "type", m.MessageType())
	}
}

func (g *Gateway) dropped(role models.Role, key string, err error) {
	kind := "validation_failure"
	if IsProtocolViolation(err) {
		kind = "protocol_violation"
	}
	g.log.Warnw("message_dropped", "role", role, "key", key, "kind", kind, "err", err)
}
