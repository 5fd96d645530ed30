package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"motor_gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLoopless builds a gateway whose events are applied directly by the test.
func newLoopless(rec Recorder) *Gateway {
	g := New(Config{}, stubAuth{}, rec, nil)
	g.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return g
}

func TestDeviceJoin_AnnouncesAndRecords(t *testing.T) {
	rec := &memRecorder{}
	g := newLoopless(rec)
	dash := &fakeSocket{}
	joinDashboard{peerRef: peerRef{sock: dash, role: models.RoleDashboard, key: "7"}, username: "operator7"}.apply(g)

	greeting := dash.last(t)
	assert.Equal(t, "connection", greeting["type"])
	assert.Equal(t, "Connected to server", greeting["message"])
	assert.Equal(t, map[string]any{"deviceCount": 0.0, "dashboardCount": 1.0}, greeting["stats"])

	dev := &fakeSocket{}
	joinDevice{peerRef: peerRef{sock: dev, role: models.RoleDevice, key: "esp32_default"}, ip: "10.0.0.7"}.apply(g)

	got := dash.last(t)
	assert.Equal(t, "status", got["type"])
	assert.Equal(t, "Device esp32_default connected", got["message"])
	assert.Equal(t, models.Stats{DeviceCount: 1, DashboardCount: 1}, g.registry.Stats())
	assert.Equal(t, []string{models.EventDashboardConnected, models.EventDeviceConnected}, rec.types())
}

func TestLeft_IgnoresSupersededSocket(t *testing.T) {
	rec := &memRecorder{}
	g := newLoopless(rec)
	dash := &fakeSocket{}
	g.registry.RegisterDashboard("u", dash)

	old := &fakeSocket{}
	joinDevice{peerRef: peerRef{sock: old, role: models.RoleDevice, key: "d1"}}.apply(g)
	fresh := &fakeSocket{}
	joinDevice{peerRef: peerRef{sock: fresh, role: models.RoleDevice, key: "d1"}}.apply(g)
	require.Equal(t, CloseSuperseded, old.closeCode)
	sentBefore := len(dash.sent)

	left{peerRef: peerRef{sock: old, role: models.RoleDevice, key: "d1"}}.apply(g)

	dc, ok := g.registry.Device("d1")
	require.True(t, ok, "stale close must not remove the replacement")
	assert.Same(t, fresh, dc.Socket)
	assert.Len(t, dash.sent, sentBefore, "no disconnect announcement for a superseded socket")
}

func TestLeft_DeviceRemovedOnce(t *testing.T) {
	rec := &memRecorder{}
	g := newLoopless(rec)
	dash1, dash2 := &fakeSocket{}, &fakeSocket{}
	g.registry.RegisterDashboard("a", dash1)
	g.registry.RegisterDashboard("b", dash2)

	dev := &fakeSocket{}
	ref := peerRef{sock: dev, role: models.RoleDevice, key: "esp32_default"}
	joinDevice{peerRef: ref}.apply(g)

	left{peerRef: ref, cause: errors.New("connection reset")}.apply(g)
	left{peerRef: ref}.apply(g)

	assert.True(t, dev.terminated)
	assert.Zero(t, g.registry.Stats().DeviceCount)
	for _, d := range []*fakeSocket{dash1, dash2} {
		got := d.last(t)
		assert.Equal(t, "status", got["type"])
		assert.Equal(t, "IDLE", got["state"])
		assert.Equal(t, "Device esp32_default disconnected", got["message"])
		assert.Len(t, d.sent, 2) // connected + disconnected
	}

	var disconnects int
	for _, typ := range rec.types() {
		if typ == models.EventDeviceDisconnected {
			disconnects++
		}
	}
	assert.Equal(t, 1, disconnects)
}

func TestInbound_DeviceTelemetryRelayedVerbatim(t *testing.T) {
	g := newLoopless(nil)
	a, b := &fakeSocket{}, &fakeSocket{}
	g.registry.RegisterDashboard("a", a)
	g.registry.RegisterDashboard("b", b)
	dev := &fakeSocket{}
	g.registry.RegisterDevice("esp32_default", dev, "")

	inbound{peerRef: peerRef{sock: dev, role: models.RoleDevice, key: "esp32_default"}, data: []byte(telemetryFrame)}.apply(g)

	for _, s := range []*fakeSocket{a, b} {
		require.Len(t, s.sent, 1)
		assert.Equal(t, telemetryFrame, string(s.sent[0]))
	}
	assert.Empty(t, dev.sent)
}

func TestInbound_DeviceInvalidTelemetryDropped(t *testing.T) {
	g := newLoopless(nil)
	dash := &fakeSocket{}
	g.registry.RegisterDashboard("a", dash)
	dev := &fakeSocket{}
	g.registry.RegisterDevice("d", dev, "")
	ref := peerRef{sock: dev, role: models.RoleDevice, key: "d"}

	for _, frame := range []string{
		`{"type":"telemetry","motorA":{"voltage":1,"current":1,"rpm":1,"status":"running"}}`,
		`not json`,
		`{"type":"mystery"}`,
		`{"type":"command","command":"START"}`,
		`{"type":"status","state":"BROKEN","message":"x"}`,
		`{"type":"telemetry","motorA":{"voltage":1,"current":1,"rpm":1,"status":"spinning"},"motorB":{"voltage":1,"current":1,"rpm":1,"status":"idle"}}`,
	} {
		inbound{peerRef: ref, data: []byte(frame)}.apply(g)
	}

	assert.Empty(t, dash.sent)
	assert.Empty(t, dev.sent)
	_, ok := g.registry.Device("d")
	assert.True(t, ok, "bad frames never close the connection")
}

func TestInbound_DeviceStatusAndAckRelayed(t *testing.T) {
	g := newLoopless(nil)
	dash := &fakeSocket{}
	g.registry.RegisterDashboard("a", dash)
	dev := &fakeSocket{}
	g.registry.RegisterDevice("d", dev, "")
	ref := peerRef{sock: dev, role: models.RoleDevice, key: "d"}

	status := `{"type":"status","state":"RUNNING","message":"Motor A started"}`
	ack := `{"type":"ack","message":"START executed","success":true}`
	inbound{peerRef: ref, data: []byte(status)}.apply(g)
	inbound{peerRef: ref, data: []byte(ack)}.apply(g)

	require.Len(t, dash.sent, 2)
	assert.Equal(t, status, string(dash.sent[0]))
	assert.Equal(t, ack, string(dash.sent[1]))
}

func TestInbound_DashboardCommand(t *testing.T) {
	tests := []struct {
		name       string
		frame      string
		withDevice bool
		wantType   string
		wantMsg    string
		forwarded  bool
	}{
		{
			name:       "delivered",
			frame:      `{"type":"command","command":"START","motor":"A","timestamp":"T"}`,
			withDevice: true,
			wantType:   "ack",
			wantMsg:    "Command sent to device",
			forwarded:  true,
		},
		{
			name:     "no devices",
			frame:    `{"type":"command","command":"STOP","motor":"B","timestamp":"T"}`,
			wantType: "ack",
			wantMsg:  "No devices connected",
		},
		{
			name:       "unknown command",
			frame:      `{"type":"command","command":"EXPLODE","timestamp":"T"}`,
			withDevice: true,
			wantType:   "error",
			wantMsg:    "Invalid command format",
		},
		{
			name:       "value of wrong type",
			frame:      `{"type":"command","command":"SET_SPEED","value":"fast"}`,
			withDevice: true,
			wantType:   "error",
			wantMsg:    "Invalid command format",
		},
		{
			name:       "unparseable",
			frame:      `{"type":`,
			withDevice: true,
			wantType:   "error",
			wantMsg:    "Invalid message format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memRecorder{}
			g := newLoopless(rec)
			dash := &fakeSocket{}
			g.registry.RegisterDashboard("7", dash)
			dev := &fakeSocket{}
			if tt.withDevice {
				g.registry.RegisterDevice("d", dev, "")
			}

			inbound{peerRef: peerRef{sock: dash, role: models.RoleDashboard, key: "7"}, data: []byte(tt.frame)}.apply(g)

			got := dash.last(t)
			assert.Equal(t, tt.wantType, got["type"])
			assert.Equal(t, tt.wantMsg, got["message"])
			if tt.wantType == "ack" {
				assert.Equal(t, tt.forwarded, got["success"])
			}
			if tt.forwarded {
				require.Len(t, dev.sent, 1)
				assert.Contains(t, rec.types(), models.EventCommand)
			} else {
				assert.Empty(t, dev.sent)
			}
			_, ok := g.registry.Dashboard("7")
			assert.True(t, ok)
		})
	}
}

func TestInbound_StatusRequest(t *testing.T) {
	g := newLoopless(nil)
	dash := &fakeSocket{}
	g.registry.RegisterDashboard("7", dash)
	g.registry.RegisterDevice("d1", &fakeSocket{}, "")

	inbound{peerRef: peerRef{sock: dash, role: models.RoleDashboard, key: "7"}, data: []byte(`{"type":"status_request"}`)}.apply(g)

	assert.JSONEq(t, `{"type":"status_response","stats":{"deviceCount":1,"dashboardCount":1}}`, string(dash.sent[0]))
}

func TestInbound_UpdatesHeartbeat(t *testing.T) {
	g := newLoopless(nil)
	dev := &fakeSocket{}
	dc := g.registry.RegisterDevice("d", dev, "")
	dc.LastHeartbeat = time.Time{}

	later := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return later }
	inbound{peerRef: peerRef{sock: dev, role: models.RoleDevice, key: "d"}, data: []byte(`{"type":"ack","message":"x","success":true}`)}.apply(g)

	assert.Equal(t, later, dc.LastHeartbeat)
}

func TestPong_MarksAlive(t *testing.T) {
	g := newLoopless(nil)
	dev := &fakeSocket{}
	dc := g.registry.RegisterDevice("d", dev, "")
	dc.Alive = false

	pong{peerRef: peerRef{sock: dev, role: models.RoleDevice, key: "d"}}.apply(g)
	assert.True(t, dc.Alive)

	stale := &fakeSocket{}
	dc.Alive = false
	pong{peerRef: peerRef{sock: stale, role: models.RoleDevice, key: "d"}}.apply(g)
	assert.False(t, dc.Alive, "pong from another socket is ignored")
}

func TestHeartbeatEvictionIsRecorded(t *testing.T) {
	rec := &memRecorder{}
	g := newLoopless(rec)
	g.registry.RegisterDevice("d", &fakeSocket{}, "")

	g.heartbeat.Tick()
	g.heartbeat.Tick()

	assert.Equal(t, []string{models.EventHeartbeatTimeout}, rec.types())
}

func TestForwardCommand_RejectsInvalidWithoutLoop(t *testing.T) {
	g := newLoopless(nil)
	_, err := g.ForwardCommand(context.Background(), models.Command{Command: "NOPE"})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}
