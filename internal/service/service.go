package service

import (
	"context"

	"motor_gateway/internal/logger"
	"motor_gateway/internal/models"
	"motor_gateway/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (models.Identity, error)
	GenerateDeviceToken(deviceID string) (string, error)
	VerifyDashboardToken(token string) (models.Identity, error)
	VerifyDeviceToken(token string) (string, error)
}

// Commands builds motor commands and hands them to the gateway.
type Commands interface {
	Start(ctx context.Context, motor models.Motor) (CommandResult, error)
	Stop(ctx context.Context, motor models.Motor) (CommandResult, error)
	SetSpeed(ctx context.Context, motor models.Motor, speed float64) (CommandResult, error)
	Reset(ctx context.Context, motor models.Motor) (CommandResult, error)
}

// EventLog persists gateway events off the gateway loop and serves history.
type EventLog interface {
	Record(e models.Event)
	Run(ctx context.Context)
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
}

type Devices interface {
	List(ctx context.Context) ([]models.DeviceRecord, error)
	ResetPresence(ctx context.Context) (int64, error)
}

type Service struct {
	Authorization
	Commands
	EventLog
	Devices
}

// NewService wires the repository layer into services. Commands needs the
// gateway, which itself depends on Authorization and EventLog, so it is
// attached with WithForwarder once the gateway exists.
func NewService(repos *repository.Repository, cfg Config, log *logger.Logger) *Service {
	return &Service{
		Authorization: NewAuthService(repos.Auth, cfg.Auth),
		EventLog:      NewEventLogService(repos.EventRepo, repos.DeviceRepo, cfg.EventBuffer, log),
		Devices:       NewDeviceService(repos.DeviceRepo),
	}
}

// WithForwarder attaches the command service.
func (s *Service) WithForwarder(fwd Forwarder) *Service {
	s.Commands = NewCommandService(fwd)
	return s
}

type Config struct {
	Auth        AuthConfig
	EventBuffer int
}
