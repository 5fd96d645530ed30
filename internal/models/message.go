package models

import "time"

// MessageType is the `type` discriminant of every wire message.
type MessageType string

const (
	TypeTelemetry      MessageType = "telemetry"
	TypeStatus         MessageType = "status"
	TypeCommand        MessageType = "command"
	TypeAck            MessageType = "ack"
	TypeConnection     MessageType = "connection"
	TypeError          MessageType = "error"
	TypeStatusRequest  MessageType = "status_request"
	TypeStatusResponse MessageType = "status_response"
)

// Message is the closed set of wire messages. Only types in this package implement it.
type Message interface {
	MessageType() MessageType
	isMessage()
}

// MotorState is the per-motor status reported in telemetry.
type MotorState string

const (
	MotorIdle    MotorState = "idle"
	MotorRunning MotorState = "running"
	MotorError   MotorState = "error"
)

// SystemState is the device-level state reported in status messages.
type SystemState string

const (
	StateIdle    SystemState = "IDLE"
	StateRunning SystemState = "RUNNING"
	StateError   SystemState = "ERROR"
)

// CommandName is the action requested of a device.
type CommandName string

const (
	CommandStart    CommandName = "START"
	CommandStop     CommandName = "STOP"
	CommandSetSpeed CommandName = "SET_SPEED"
	CommandReset    CommandName = "RESET"
)

// Motor selects one of the two motors on a controller.
type Motor string

const (
	MotorA Motor = "A"
	MotorB Motor = "B"
)

// Stats is the registry population snapshot.
type Stats struct {
	DeviceCount    int `json:"deviceCount"`
	DashboardCount int `json:"dashboardCount"`
}

// MotorStatus fields are pointers so a missing reading is distinguishable from zero.
type MotorStatus struct {
	Voltage *float64   `json:"voltage"`
	Current *float64   `json:"current"`
	RPM     *float64   `json:"rpm"`
	Status  MotorState `json:"status"`
}

type Telemetry struct {
	Type        MessageType  `json:"type"`
	MotorA      *MotorStatus `json:"motorA"`
	MotorB      *MotorStatus `json:"motorB"`
	Temperature *float64     `json:"temperature,omitempty"`
	Vibration   *float64     `json:"vibration,omitempty"`
	IsJammed    *bool        `json:"isJammed,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

type Status struct {
	Type    MessageType `json:"type"`
	State   SystemState `json:"state"`
	Message string      `json:"message,omitempty"`
}

type Command struct {
	Type      MessageType `json:"type"`
	Command   CommandName `json:"command"`
	Motor     Motor       `json:"motor,omitempty"`
	Value     *float64    `json:"value,omitempty"`
	Timestamp string      `json:"timestamp"`
}

type Ack struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
	Success bool        `json:"success"`
}

// Connection greets a dashboard right after registration.
type Connection struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
	Stats   Stats       `json:"stats"`
}

type Error struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

type StatusRequest struct {
	Type MessageType `json:"type"`
}

type StatusResponse struct {
	Type  MessageType `json:"type"`
	Stats Stats       `json:"stats"`
}

func (Telemetry) MessageType() MessageType      { return TypeTelemetry }
func (Status) MessageType() MessageType         { return TypeStatus }
func (Command) MessageType() MessageType        { return TypeCommand }
func (Ack) MessageType() MessageType            { return TypeAck }
func (Connection) MessageType() MessageType     { return TypeConnection }
func (Error) MessageType() MessageType          { return TypeError }
func (StatusRequest) MessageType() MessageType  { return TypeStatusRequest }
func (StatusResponse) MessageType() MessageType { return TypeStatusResponse }

func (Telemetry) isMessage()      {}
func (Status) isMessage()         {}
func (Command) isMessage()        {}
func (Ack) isMessage()            {}
func (Connection) isMessage()     {}
func (Error) isMessage()          {}
func (StatusRequest) isMessage()  {}
func (StatusResponse) isMessage() {}

// TimestampLayout matches the millisecond ISO-8601 form devices and dashboards send.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t in UTC with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func NewStatus(state SystemState, message string) Status {
	return Status{Type: TypeStatus, State: state, Message: message}
}

func NewAck(success bool, message string) Ack {
	return Ack{Type: TypeAck, Success: success, Message: message}
}

func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}

func NewConnection(message string, stats Stats) Connection {
	return Connection{Type: TypeConnection, Message: message, Stats: stats}
}

func NewStatusResponse(stats Stats) StatusResponse {
	return StatusResponse{Type: TypeStatusResponse, Stats: stats}
}

// NewCommand builds a command stamped with at. value may be nil.
func NewCommand(name CommandName, motor Motor, value *float64, at time.Time) Command {
	return Command{
		Type:      TypeCommand,
		Command:   name,
		Motor:     motor,
		Value:     value,
		Timestamp: Timestamp(at),
	}
}
