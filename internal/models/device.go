package models

import "time"

// Role is the side of the gateway a connection belongs to.
type Role string

const (
	RoleDevice    Role = "device"
	RoleDashboard Role = "dashboard"
)

// DeviceRecord is the persisted presence of a device.
type DeviceRecord struct {
	DeviceID  string    `json:"device_id"`
	IP        string    `json:"ip,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Online    bool      `json:"online"`
}
