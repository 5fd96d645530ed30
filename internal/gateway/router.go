package gateway

import (
	"fmt"

	"motor_gateway/internal/logger"
	"motor_gateway/internal/models"
)

// Router fans device traffic out to dashboards and dashboard commands out to
// devices. Delivery is at most once per registered peer: no queueing beyond
// the peer's own send buffer, no retry.
type Router struct {
	registry *Registry
	log      *logger.Logger
}

func NewRouter(registry *Registry, log *logger.Logger) *Router {
	return &Router{registry: registry, log: logger.OrNop(log)}
}

// BroadcastTelemetry reports whether at least one dashboard was registered.
func (r *Router) BroadcastTelemetry(msg models.Telemetry) bool {
	msg.Type = models.TypeTelemetry
	return r.broadcast(msg)
}

// BroadcastStatus reports whether at least one dashboard was registered.
func (r *Router) BroadcastStatus(msg models.Status) bool {
	msg.Type = models.TypeStatus
	return r.broadcast(msg)
}

// ForwardCommand reports whether at least one device was registered at
// dispatch time. It does not validate msg.
func (r *Router) ForwardCommand(msg models.Command) bool {
	msg.Type = models.TypeCommand
	payload, err := Encode(msg)
	if err != nil {
		r.log.Errorw("command_encode_failed", "err", err)
		return len(r.registry.devices) > 0
	}
	return r.ToDevices(payload)
}

// AnnounceDevice tells dashboards a device came or went.
func (r *Router) AnnounceDevice(deviceID, verb string) bool {
	return r.BroadcastStatus(models.NewStatus(models.StateIdle, fmt.Sprintf("Device %s %s", deviceID, verb)))
}

func (r *Router) broadcast(m models.Message) bool {
	payload, err := Encode(m)
	if err != nil {
		r.log.Errorw("broadcast_encode_failed", "type", m.MessageType(), "err", err)
		return len(r.registry.dashboards) > 0
	}
	return r.ToDashboards(payload)
}

// ToDashboards writes an already serialized payload to every dashboard.
func (r *Router) ToDashboards(payload []byte) bool {
	dashboards := r.registry.AllDashboards()
	for _, d := range dashboards {
		if !d.Socket.Send(payload) {
			r.log.Debugw("dashboard_send_dropped", "user_id", d.UserID)
		}
	}
	return len(dashboards) > 0
}

// ToDevices writes an already serialized payload to every device.
func (r *Router) ToDevices(payload []byte) bool {
	devices := r.registry.AllDevices()
	for _, d := range devices {
		if !d.Socket.Send(payload) {
			r.log.Debugw("device_send_dropped", "device_id", d.DeviceID)
		}
	}
	return len(devices) > 0
}
