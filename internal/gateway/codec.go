package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"motor_gateway/internal/models"
)

// Protocol violations. The frame is dropped and the connection stays open.
var (
	ErrOversized   = errors.New("message exceeds size limit")
	ErrEmpty       = errors.New("empty message")
	ErrNotUTF8     = errors.New("message is not valid utf-8")
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

// ErrInvalidMessage marks a validation failure: the frame names a known type
// but its body does not satisfy that type.
var ErrInvalidMessage = errors.New("invalid message")

// InvalidMessageError describes a validation failure for one message type.
type InvalidMessageError struct {
	Type   models.MessageType
	Reason string
}

func (e *InvalidMessageError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Type, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidMessage) match.
func (e *InvalidMessageError) Is(target error) bool {
	return target == ErrInvalidMessage
}

func invalid(typ models.MessageType, format string, args ...any) error {
	return &InvalidMessageError{Type: typ, Reason: fmt.Sprintf(format, args...)}
}

// IsProtocolViolation reports whether err came from a frame that could not be
// interpreted as any message at all.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrOversized) ||
		errors.Is(err, ErrEmpty) ||
		errors.Is(err, ErrNotUTF8) ||
		errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrUnknownType)
}

// Decode parses a single frame into one of the wire message types.
// The size limit is enforced by the reader before Decode is called.
func Decode(data []byte) (models.Message, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}
	if !utf8.Valid(data) {
		return nil, ErrNotUTF8
	}

	var head struct {
		Type models.MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch head.Type {
	case models.TypeTelemetry:
		return decodeAs[models.Telemetry](head.Type, data)
	case models.TypeStatus:
		return decodeAs[models.Status](head.Type, data)
	case models.TypeCommand:
		return decodeAs[models.Command](head.Type, data)
	case models.TypeAck:
		return decodeAs[models.Ack](head.Type, data)
	case models.TypeConnection:
		return decodeAs[models.Connection](head.Type, data)
	case models.TypeError:
		return decodeAs[models.Error](head.Type, data)
	case models.TypeStatusRequest:
		return decodeAs[models.StatusRequest](head.Type, data)
	case models.TypeStatusResponse:
		return decodeAs[models.StatusResponse](head.Type, data)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrUnknownType)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}

func decodeAs[T models.Message](typ models.MessageType, data []byte) (models.Message, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, invalid(typ, "%v", err)
	}
	return m, nil
}

// Encode serializes a message. Every message type marshals cleanly, so an
// error here means a programming mistake.
func Encode(m models.Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.MessageType(), err)
	}
	return b, nil
}
