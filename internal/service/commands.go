package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"motor_gateway/internal/models"
)

const (
	MinSpeed = 0.0
	MaxSpeed = 100.0
)

var (
	ErrInvalidMotor    = errors.New("invalid motor: must be A or B")
	ErrSpeedOutOfRange = fmt.Errorf("speed must be between %.0f and %.0f", MinSpeed, MaxSpeed)
)

// Forwarder delivers a command to every connected device and reports whether
// any device was connected.
type Forwarder interface {
	ForwardCommand(ctx context.Context, cmd models.Command) (bool, error)
}

type CommandResult struct {
	Sent    bool           `json:"sent"`
	Command models.Command `json:"command"`
}

type CommandService struct {
	fwd Forwarder
	now func() time.Time
}

func NewCommandService(fwd Forwarder) *CommandService {
	return &CommandService{fwd: fwd, now: time.Now}
}

func (s *CommandService) Start(ctx context.Context, motor models.Motor) (CommandResult, error) {
	m, err := requireMotor(motor)
	if err != nil {
		return CommandResult{}, err
	}
	return s.send(ctx, models.CommandStart, m, nil)
}

func (s *CommandService) Stop(ctx context.Context, motor models.Motor) (CommandResult, error) {
	m, err := requireMotor(motor)
	if err != nil {
		return CommandResult{}, err
	}
	return s.send(ctx, models.CommandStop, m, nil)
}

// SetSpeed sets the target speed of motor, in percent.
func (s *CommandService) SetSpeed(ctx context.Context, motor models.Motor, speed float64) (CommandResult, error) {
	m, err := requireMotor(motor)
	if err != nil {
		return CommandResult{}, err
	}
	if speed < MinSpeed || speed > MaxSpeed {
		return CommandResult{}, ErrSpeedOutOfRange
	}
	return s.send(ctx, models.CommandSetSpeed, m, &speed)
}

// Reset clears a fault on motor, or on the whole controller when motor is empty.
func (s *CommandService) Reset(ctx context.Context, motor models.Motor) (CommandResult, error) {
	m := normalizeMotor(motor)
	if m != "" && m != models.MotorA && m != models.MotorB {
		return CommandResult{}, ErrInvalidMotor
	}
	return s.send(ctx, models.CommandReset, m, nil)
}

func (s *CommandService) send(ctx context.Context, name models.CommandName, motor models.Motor, value *float64) (CommandResult, error) {
	cmd := models.NewCommand(name, motor, value, s.now())
	sent, err := s.fwd.ForwardCommand(ctx, cmd)
	if err != nil {
		return CommandResult{}, fmt.Errorf("forward %s: %w", name, err)
	}
	return CommandResult{Sent: sent, Command: cmd}, nil
}

func normalizeMotor(m models.Motor) models.Motor {
	return models.Motor(strings.ToUpper(strings.TrimSpace(string(m))))
}

func requireMotor(m models.Motor) (models.Motor, error) {
	switch m = normalizeMotor(m); m {
	case models.MotorA, models.MotorB:
		return m, nil
	}
	return "", ErrInvalidMotor
}
