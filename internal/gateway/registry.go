package gateway

import (
	"sort"
	"time"

	"motor_gateway/internal/models"
)

// Socket is the gateway's handle on one live peer. Implementations must never
// block the caller: Send and Ping only enqueue.
type Socket interface {
	// Send enqueues payload for delivery. false means it was not accepted
	// (socket closed or its queue full).
	Send(payload []byte) bool
	// Ping enqueues a heartbeat ping.
	Ping() bool
	// Close sends a close frame with code and reason, then drops the transport.
	Close(code int, reason string)
	// Terminate drops the transport immediately.
	Terminate()
}

// Connection is the state shared by both roles.
type Connection struct {
	Socket        Socket
	Role          models.Role
	Alive         bool
	ConnectedAt   time.Time
	LastHeartbeat time.Time
}

type DeviceConnection struct {
	Connection
	DeviceID string
	SourceIP string
}

type DashboardConnection struct {
	Connection
	UserID   string
	Username string
}

// Registry is the authoritative map of live connections. It has no locking:
// only the gateway loop touches it.
type Registry struct {
	devices    map[string]*DeviceConnection
	dashboards map[string]*DashboardConnection
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		devices:    make(map[string]*DeviceConnection),
		dashboards: make(map[string]*DashboardConnection),
		now:        time.Now,
	}
}

func (r *Registry) newConnection(sock Socket, role models.Role) Connection {
	now := r.now().UTC()
	return Connection{
		Socket:        sock,
		Role:          role,
		Alive:         true,
		ConnectedAt:   now,
		LastHeartbeat: now,
	}
}

// RegisterDevice stores a device under id. An existing entry for id is
// replaced and its socket closed with CloseSuperseded.
func (r *Registry) RegisterDevice(id string, sock Socket, ip string) *DeviceConnection {
	if prev, ok := r.devices[id]; ok && prev.Socket != sock {
		prev.Socket.Close(CloseSuperseded, supersededReason)
	}
	dc := &DeviceConnection{
		Connection: r.newConnection(sock, models.RoleDevice),
		DeviceID:   id,
		SourceIP:   ip,
	}
	r.devices[id] = dc
	return dc
}

// RegisterDashboard stores a dashboard under userID, replacing and closing
// any previous one.
func (r *Registry) RegisterDashboard(userID string, sock Socket) *DashboardConnection {
	if prev, ok := r.dashboards[userID]; ok && prev.Socket != sock {
		prev.Socket.Close(CloseSuperseded, supersededReason)
	}
	dc := &DashboardConnection{
		Connection: r.newConnection(sock, models.RoleDashboard),
		UserID:     userID,
	}
	r.dashboards[userID] = dc
	return dc
}

// RemoveDevice is idempotent; it reports whether an entry was removed.
func (r *Registry) RemoveDevice(id string) bool {
	if _, ok := r.devices[id]; !ok {
		return false
	}
	delete(r.devices, id)
	return true
}

// RemoveDashboard is idempotent; it reports whether an entry was removed.
func (r *Registry) RemoveDashboard(userID string) bool {
	if _, ok := r.dashboards[userID]; !ok {
		return false
	}
	delete(r.dashboards, userID)
	return true
}

func (r *Registry) Device(id string) (*DeviceConnection, bool) {
	dc, ok := r.devices[id]
	return dc, ok
}

func (r *Registry) Dashboard(userID string) (*DashboardConnection, bool) {
	dc, ok := r.dashboards[userID]
	return dc, ok
}

// AllDevices returns a snapshot ordered by device id. Callers may mutate the
// registry while ranging over it.
func (r *Registry) AllDevices() []*DeviceConnection {
	out := make([]*DeviceConnection, 0, len(r.devices))
	for _, dc := range r.devices {
		out = append(out, dc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// AllDashboards returns a snapshot ordered by user id.
func (r *Registry) AllDashboards() []*DashboardConnection {
	out := make([]*DashboardConnection, 0, len(r.dashboards))
	for _, dc := range r.dashboards {
		out = append(out, dc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *Registry) Stats() models.Stats {
	return models.Stats{
		DeviceCount:    len(r.devices),
		DashboardCount: len(r.dashboards),
	}
}

// Reset drops every entry without touching sockets.
func (r *Registry) Reset() {
	r.devices = make(map[string]*DeviceConnection)
	r.dashboards = make(map[string]*DashboardConnection)
}
