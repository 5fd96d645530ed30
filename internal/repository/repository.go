package repository

import (
	"context"
	"database/sql"
	"time"

	"motor_gateway/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error)
}

type DeviceRepo interface {
	MarkOnline(ctx context.Context, deviceID, ip string, at time.Time) error
	MarkOffline(ctx context.Context, deviceID string, at time.Time) error
	ResetPresence(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]models.DeviceRecord, error)
}

type Repository struct {
	EventRepo  EventRepo
	DeviceRepo DeviceRepo
	Auth       Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:  NewEventSQLite(db),
		DeviceRepo: NewDeviceSQLite(db),
		Auth:       NewOperatorRepo(db),
	}
}

// sqliteTimeLayout keeps stored timestamps lexically ordered.
const sqliteTimeLayout = "2006-01-02 15:04:05.000"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}
