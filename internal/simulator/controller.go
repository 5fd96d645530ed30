// Package simulator emulates a dual-motor controller that speaks the device
// side of the gateway protocol.
package simulator

import (
	"fmt"
	"math"
	"sync"
	"time"

	"motor_gateway/internal/models"
)

// Physical model constants.
const (
	RatedRPM        = 3000.0 // rpm at 100% speed
	RampRPMPerSec   = 1500.0
	SupplyVoltage   = 12.0
	NoLoadCurrent   = 0.2  // A while spinning
	CurrentPerRPM   = 0.0005
	StallCurrent    = 3.5  // A while jammed
	JamCurrentLimit = 2.5  // A; above this a motor reports a jam
	VoltageSagPerA  = 0.15 // V per A drawn
	AmbientC        = 25.0
	HeatPerA2       = 0.8  // degC/s per A^2
	CoolingRate     = 0.05 // 1/s toward ambient
	DefaultSpeed    = 20.0 // % applied by START when no speed was set
)

type motor struct {
	running bool
	speed   float64 // target, percent
	rpm     float64
	jammed  bool
}

func (m *motor) targetRPM() float64 {
	if !m.running || m.jammed {
		return 0
	}
	return RatedRPM * m.speed / 100
}

func (m *motor) current() float64 {
	switch {
	case m.jammed && m.running:
		return StallCurrent
	case m.rpm <= 0:
		return 0
	}
	return NoLoadCurrent + CurrentPerRPM*m.rpm
}

func (m *motor) state() models.MotorState {
	switch {
	case m.jammed:
		return models.MotorError
	case m.running:
		return models.MotorRunning
	}
	return models.MotorIdle
}

// Controller holds the simulated hardware state. Safe for concurrent use.
type Controller struct {
	mu          sync.Mutex
	motors      map[models.Motor]*motor
	temperature float64
}

func NewController() *Controller {
	return &Controller{
		motors: map[models.Motor]*motor{
			models.MotorA: {},
			models.MotorB: {},
		},
		temperature: AmbientC,
	}
}

// targets returns the motors cmd addresses; an empty motor means both.
func (c *Controller) targets(m models.Motor) ([]*motor, error) {
	switch m {
	case "":
		return []*motor{c.motors[models.MotorA], c.motors[models.MotorB]}, nil
	case models.MotorA, models.MotorB:
		return []*motor{c.motors[m]}, nil
	}
	return nil, fmt.Errorf("unknown motor %q", m)
}

// Apply executes cmd and returns the acknowledgement to send back.
func (c *Controller) Apply(cmd models.Command) models.Ack {
	c.mu.Lock()
	defer c.mu.Unlock()

	ms, err := c.targets(cmd.Motor)
	if err != nil {
		return models.NewAck(false, err.Error())
	}

	switch cmd.Command {
	case models.CommandStart:
		for _, m := range ms {
			if m.jammed {
				return models.NewAck(false, "Motor jammed, RESET required")
			}
		}
		for _, m := range ms {
			if m.speed == 0 {
				m.speed = DefaultSpeed
			}
			m.running = true
		}
	case models.CommandStop:
		for _, m := range ms {
			m.running = false
		}
	case models.CommandSetSpeed:
		if cmd.Value == nil {
			return models.NewAck(false, "SET_SPEED requires a value")
		}
		v := *cmd.Value
		if v < 0 || v > 100 {
			return models.NewAck(false, fmt.Sprintf("speed %.0f out of range", v))
		}
		for _, m := range ms {
			m.speed = v
		}
	case models.CommandReset:
		for _, m := range ms {
			m.jammed = false
			m.running = false
			m.rpm = 0
		}
	default:
		return models.NewAck(false, fmt.Sprintf("unsupported command %q", cmd.Command))
	}
	return models.NewAck(true, executedMessage(cmd))
}

func executedMessage(cmd models.Command) string {
	target := "all motors"
	if cmd.Motor != "" {
		target = "motor " + string(cmd.Motor)
	}
	return fmt.Sprintf("%s executed on %s", cmd.Command, target)
}

// Jam forces motor into a stalled state until RESET.
func (c *Controller) Jam(m models.Motor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mo, ok := c.motors[m]; ok {
		mo.jammed = true
		mo.rpm = 0
	}
}

// Step advances the model by dt.
func (c *Controller) Step(dt time.Duration) {
	sec := dt.Seconds()
	if sec <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var heat float64
	for _, m := range c.motors {
		target := m.targetRPM()
		delta := RampRPMPerSec * sec
		switch {
		case m.rpm < target:
			m.rpm = math.Min(m.rpm+delta, target)
		case m.rpm > target:
			m.rpm = math.Max(m.rpm-delta, target)
		}
		i := m.current()
		heat += HeatPerA2 * i * i
	}
	c.temperature += (heat - CoolingRate*(c.temperature-AmbientC)) * sec
}

// Telemetry snapshots the current state.
func (c *Controller) Telemetry(at time.Time) models.Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, b := c.motors[models.MotorA], c.motors[models.MotorB]
	jammed := a.current() > JamCurrentLimit || b.current() > JamCurrentLimit
	vibration := round2((a.rpm+b.rpm)/(2*RatedRPM)*0.5 + jamVibration(a) + jamVibration(b))
	temp := round2(c.temperature)

	return models.Telemetry{
		Type:        models.TypeTelemetry,
		MotorA:      status(a),
		MotorB:      status(b),
		Temperature: &temp,
		Vibration:   &vibration,
		IsJammed:    &jammed,
		Timestamp:   models.Timestamp(at),
	}
}

// SystemState summarises both motors for status messages.
func (c *Controller) SystemState() models.SystemState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := models.StateIdle
	for _, m := range c.motors {
		if m.jammed {
			return models.StateError
		}
		if m.running {
			state = models.StateRunning
		}
	}
	return state
}

func status(m *motor) *models.MotorStatus {
	i := round2(m.current())
	v := round2(SupplyVoltage - VoltageSagPerA*i)
	rpm := math.Round(m.rpm)
	return &models.MotorStatus{Voltage: &v, Current: &i, RPM: &rpm, Status: m.state()}
}

func jamVibration(m *motor) float64 {
	if m.jammed && m.running {
		return 1.5
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
