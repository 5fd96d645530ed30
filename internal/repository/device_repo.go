package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"motor_gateway/internal/models"
)

type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite { return &DeviceSQLite{db: db} }

var _ DeviceRepo = (*DeviceSQLite)(nil)

const (
	upsertDeviceOnlineSQL = `
		INSERT INTO devices (device_id, ip, first_seen, last_seen, online)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(device_id) DO UPDATE SET
			ip=excluded.ip,
			last_seen=excluded.last_seen,
			online=1
	`
	markDeviceOfflineSQL = `UPDATE devices SET online = 0, last_seen = ? WHERE device_id = ?`
	resetPresenceSQL     = `UPDATE devices SET online = 0 WHERE online = 1`
	selectDevicesSQL     = `SELECT device_id, ip, first_seen, last_seen, online FROM devices ORDER BY device_id ASC`
)

// MarkOnline records a device connection, creating the row on first sight.
func (r *DeviceSQLite) MarkOnline(ctx context.Context, deviceID, ip string, at time.Time) error {
	ts := formatTime(at)
	if _, err := r.db.ExecContext(ctx, upsertDeviceOnlineSQL, deviceID, ip, ts, ts); err != nil {
		return fmt.Errorf("mark device %q online: %w", deviceID, err)
	}
	return nil
}

// MarkOffline is a no-op for devices never seen.
func (r *DeviceSQLite) MarkOffline(ctx context.Context, deviceID string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, markDeviceOfflineSQL, formatTime(at), deviceID); err != nil {
		return fmt.Errorf("mark device %q offline: %w", deviceID, err)
	}
	return nil
}

// ResetPresence marks every device offline. The registry starts empty, so
// rows left online by a previous process are stale.
func (r *DeviceSQLite) ResetPresence(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, resetPresenceSQL)
	if err != nil {
		return 0, fmt.Errorf("reset device presence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset device presence rows: %w", err)
	}
	return n, nil
}

func (r *DeviceSQLite) List(ctx context.Context) ([]models.DeviceRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectDevicesSQL)
	if err != nil {
		return nil, fmt.Errorf("select devices: %w", err)
	}
	defer rows.Close()

	var out []models.DeviceRecord
	for rows.Next() {
		var (
			d  models.DeviceRecord
			ip sql.NullString
		)
		if err := rows.Scan(&d.DeviceID, &ip, &d.FirstSeen, &d.LastSeen, &d.Online); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		d.IP = ip.String
		d.FirstSeen = d.FirstSeen.UTC()
		d.LastSeen = d.LastSeen.UTC()
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate devices: %w", err)
	}
	return out, nil
}
