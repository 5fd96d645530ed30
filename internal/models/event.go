package models

import "time"

// Gateway event types recorded in the event log.
const (
	EventDeviceConnected       = "DEVICE_CONNECTED"
	EventDeviceDisconnected    = "DEVICE_DISCONNECTED"
	EventDashboardConnected    = "DASHBOARD_CONNECTED"
	EventDashboardDisconnected = "DASHBOARD_DISCONNECTED"
	EventHeartbeatTimeout      = "HEARTBEAT_TIMEOUT"
	EventAuthFailure           = "AUTH_FAILURE"
	EventCommand               = "COMMAND"
)

// Event is a single gateway log entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Role        Role      `json:"role,omitempty"`
	Peer        string    `json:"peer,omitempty"` // device id or user id
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}

// Presence reports whether the event changes a device's online state, and to what.
func (e Event) Presence() (online bool, ok bool) {
	if e.Role != RoleDevice || e.Peer == "" {
		return false, false
	}
	switch e.Type {
	case EventDeviceConnected:
		return true, true
	case EventDeviceDisconnected, EventHeartbeatTimeout:
		return false, true
	}
	return false, false
}
