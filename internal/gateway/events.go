package gateway

import (
	"fmt"

	"motor_gateway/internal/models"
)

// event is one unit of work for the gateway loop.
type event interface {
	apply(g *Gateway)
}

// peerRef names the socket an event came from. key is the device id or user id.
type peerRef struct {
	sock Socket
	role models.Role
	key  string
}

// lookup returns the registry entry for ref, or nil when ref's socket is no
// longer the registered one (evicted, removed or superseded).
func (g *Gateway) lookup(ref peerRef) *Connection {
	switch ref.role {
	case models.RoleDevice:
		if dc, ok := g.registry.Device(ref.key); ok && dc.Socket == ref.sock {
			return &dc.Connection
		}
	case models.RoleDashboard:
		if dc, ok := g.registry.Dashboard(ref.key); ok && dc.Socket == ref.sock {
			return &dc.Connection
		}
	}
	return nil
}

type joinDevice struct {
	peerRef
	ip string
}

func (e joinDevice) apply(g *Gateway) {
	g.registry.RegisterDevice(e.key, e.sock, e.ip)
	st := g.registry.Stats()
	g.log.Infow("device_connected", "device_id", e.key, "ip", e.ip, "devices", st.DeviceCount)

	g.router.AnnounceDevice(e.key, "connected")
	g.record(models.EventDeviceConnected, models.RoleDevice, e.key,
		fmt.Sprintf("Device %s connected", e.key), map[string]any{"ip": e.ip})
}

type joinDashboard struct {
	peerRef
	username string
}

func (e joinDashboard) apply(g *Gateway) {
	dc := g.registry.RegisterDashboard(e.key, e.sock)
	dc.Username = e.username
	st := g.registry.Stats()
	g.log.Infow("dashboard_connected", "user_id", e.key, "username", e.username, "dashboards", st.DashboardCount)

	g.reply(e.sock, models.NewConnection("Connected to server", st))
	g.record(models.EventDashboardConnected, models.RoleDashboard, e.key,
		fmt.Sprintf("Dashboard %s connected", e.username), nil)
}

type inbound struct {
	peerRef
	data []byte
}

func (e inbound) apply(g *Gateway) {
	conn := g.lookup(e.peerRef)
	if conn == nil {
		return
	}
	conn.LastHeartbeat = g.now().UTC()

	switch e.role {
	case models.RoleDevice:
		g.handleDeviceFrame(e.key, e.data)
	case models.RoleDashboard:
		g.handleDashboardFrame(e.sock, e.key, e.data)
	}
}

type pong struct {
	peerRef
}

func (e pong) apply(g *Gateway) {
	if conn := g.lookup(e.peerRef); conn != nil {
		conn.Alive = true
		conn.LastHeartbeat = g.now().UTC()
	}
}

// left reports that a socket's read side ended: peer close, transport error
// or a recovered panic in the read pump.
type left struct {
	peerRef
	cause error
}

func (e left) apply(g *Gateway) {
	if g.lookup(e.peerRef) == nil {
		return
	}
	e.sock.Terminate()

	reason := describeCause(e.cause)

	switch e.role {
	case models.RoleDevice:
		g.registry.RemoveDevice(e.key)
		g.log.Infow("device_disconnected", "device_id", e.key, "reason", reason)
		g.router.AnnounceDevice(e.key, "disconnected")
		g.record(models.EventDeviceDisconnected, models.RoleDevice, e.key,
			fmt.Sprintf("Device %s disconnected", e.key), map[string]any{"reason": reason})
	case models.RoleDashboard:
		g.registry.RemoveDashboard(e.key)
		g.log.Infow("dashboard_disconnected", "user_id", e.key, "reason", reason)
		g.record(models.EventDashboardDisconnected, models.RoleDashboard, e.key,
			fmt.Sprintf("Dashboard %s disconnected", e.key), map[string]any{"reason": reason})
	}
}

type forwardRequest struct {
	cmd   models.Command
	reply chan<- bool
}

func (e forwardRequest) apply(g *Gateway) {
	e.reply <- g.forward(e.cmd, "rest", "")
}

type statsRequest struct {
	reply chan<- models.Stats
}

func (e statsRequest) apply(g *Gateway) {
	e.reply <- g.registry.Stats()
}
