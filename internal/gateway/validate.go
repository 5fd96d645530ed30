package gateway

import (
	"motor_gateway/internal/models"
)

// ValidateTelemetry requires both motor blocks, each with voltage, current,
// rpm and a known motor status.
func ValidateTelemetry(t models.Telemetry) error {
	if err := validateMotorStatus("motorA", t.MotorA); err != nil {
		return err
	}
	return validateMotorStatus("motorB", t.MotorB)
}

func validateMotorStatus(name string, m *models.MotorStatus) error {
	switch {
	case m == nil:
		return invalid(models.TypeTelemetry, "%s missing", name)
	case m.Voltage == nil:
		return invalid(models.TypeTelemetry, "%s.voltage missing", name)
	case m.Current == nil:
		return invalid(models.TypeTelemetry, "%s.current missing", name)
	case m.RPM == nil:
		return invalid(models.TypeTelemetry, "%s.rpm missing", name)
	}
	switch m.Status {
	case models.MotorIdle, models.MotorRunning, models.MotorError:
		return nil
	}
	return invalid(models.TypeTelemetry, "%s.status %q not one of idle, running, error", name, m.Status)
}

func ValidateStatus(s models.Status) error {
	switch s.State {
	case models.StateIdle, models.StateRunning, models.StateError:
		return nil
	}
	return invalid(models.TypeStatus, "state %q not one of IDLE, RUNNING, ERROR", s.State)
}

func ValidateCommand(c models.Command) error {
	switch c.Command {
	case models.CommandStart, models.CommandStop, models.CommandSetSpeed, models.CommandReset:
	default:
		return invalid(models.TypeCommand, "command %q not one of START, STOP, SET_SPEED, RESET", c.Command)
	}
	switch c.Motor {
	case "", models.MotorA, models.MotorB:
		return nil
	}
	return invalid(models.TypeCommand, "motor %q not one of A, B", c.Motor)
}

// Validate dispatches to the validator for the message's type. Types that
// carry no constraints always pass.
func Validate(m models.Message) error {
	switch v := m.(type) {
	case models.Telemetry:
		return ValidateTelemetry(v)
	case models.Status:
		return ValidateStatus(v)
	case models.Command:
		return ValidateCommand(v)
	case models.Ack, models.Connection, models.Error, models.StatusRequest, models.StatusResponse:
		return nil
	}
	return ErrUnknownType
}
