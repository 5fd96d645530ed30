package gateway

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"motor_gateway/internal/models"

	"github.com/stretchr/testify/require"
)

// fakeSocket records everything the gateway does to it.
type fakeSocket struct {
	sent       [][]byte
	pings      int
	closeCode  int
	closeText  string
	terminated bool
	full       bool
}

func (f *fakeSocket) Send(payload []byte) bool {
	if f.terminated || f.closeCode != 0 || f.full {
		return false
	}
	f.sent = append(f.sent, payload)
	return true
}

func (f *fakeSocket) Ping() bool {
	if f.terminated {
		return false
	}
	f.pings++
	return true
}

func (f *fakeSocket) Close(code int, reason string) {
	f.closeCode = code
	f.closeText = reason
}

func (f *fakeSocket) Terminate() { f.terminated = true }

func (f *fakeSocket) last(t *testing.T) map[string]any {
	t.Helper()
	require.NotEmpty(t, f.sent, "nothing sent")
	var out map[string]any
	require.NoError(t, json.Unmarshal(f.sent[len(f.sent)-1], &out))
	return out
}

// stubAuth accepts dashboard tokens "user-<id>" and device tokens "device-<id>".
type stubAuth struct{}

func (stubAuth) VerifyDashboardToken(token string) (models.Identity, error) {
	if id, ok := strings.CutPrefix(token, "user-"); ok {
		return models.Identity{UserID: id, Username: "operator" + id}, nil
	}
	return models.Identity{}, errors.New("bad token")
}

func (stubAuth) VerifyDeviceToken(token string) (string, error) {
	if id, ok := strings.CutPrefix(token, "device-"); ok && id != "" {
		return id, nil
	}
	return "", errors.New("bad token")
}

// memRecorder keeps recorded events; Record is called from several goroutines.
type memRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (m *memRecorder) Record(e models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *memRecorder) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

const telemetryFrame = `{"type":"telemetry","motorA":{"voltage":11.8,"current":0.9,"rpm":1200,"status":"running"},"motorB":{"voltage":11.7,"current":0.0,"rpm":0,"status":"idle"},"timestamp":"T"}`

func f64(v float64) *float64 { return &v }

func validTelemetry() models.Telemetry {
	return models.Telemetry{
		Type:      models.TypeTelemetry,
		MotorA:    &models.MotorStatus{Voltage: f64(11.8), Current: f64(0.9), RPM: f64(1200), Status: models.MotorRunning},
		MotorB:    &models.MotorStatus{Voltage: f64(11.7), Current: f64(0), RPM: f64(0), Status: models.MotorIdle},
		Timestamp: "T",
	}
}
