package gateway

import (
	"motor_gateway/internal/logger"
	"motor_gateway/internal/models"
)

// HeartbeatMonitor pings every registered connection once per Tick. A
// connection that has not answered the previous ping by the next Tick is
// terminated and removed, so eviction happens after one to two intervals.
type HeartbeatMonitor struct {
	registry *Registry
	router   *Router
	log      *logger.Logger

	// onEvict, if set, is called after each eviction.
	onEvict func(role models.Role, key string)
}

func NewHeartbeatMonitor(registry *Registry, router *Router, log *logger.Logger) *HeartbeatMonitor {
	return &HeartbeatMonitor{registry: registry, router: router, log: logger.OrNop(log)}
}

// Tick runs one ping cycle and returns how many connections were evicted.
func (h *HeartbeatMonitor) Tick() int {
	evicted := 0

	for _, d := range h.registry.AllDevices() {
		if !d.Alive {
			h.log.Infow("heartbeat_timeout", "role", models.RoleDevice, "device_id", d.DeviceID)
			d.Socket.Terminate()
			h.registry.RemoveDevice(d.DeviceID)
			h.router.AnnounceDevice(d.DeviceID, "disconnected")
			h.evicted(models.RoleDevice, d.DeviceID)
			evicted++
			continue
		}
		d.Alive = false
		d.Socket.Ping()
	}

	for _, d := range h.registry.AllDashboards() {
		if !d.Alive {
			h.log.Infow("heartbeat_timeout", "role", models.RoleDashboard, "user_id", d.UserID)
			d.Socket.Terminate()
			h.registry.RemoveDashboard(d.UserID)
			h.evicted(models.RoleDashboard, d.UserID)
			evicted++
			continue
		}
		d.Alive = false
		d.Socket.Ping()
	}

	if evicted > 0 {
		st := h.registry.Stats()
		h.log.Infow("heartbeat_cycle", "evicted", evicted, "devices", st.DeviceCount, "dashboards", st.DashboardCount)
	}
	return evicted
}

func (h *HeartbeatMonitor) evicted(role models.Role, key string) {
	if h.onEvict != nil {
		h.onEvict(role, key)
	}
}
