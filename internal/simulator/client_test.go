package simulator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"motor_gateway/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway upgrades /ws/device and hands the connection to handle.
func fakeGateway(t *testing.T, handle func(r *http.Request, conn *websocket.Conn)) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(r, conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/device"
}

// readType skips frames until one of type want arrives; nil on read failure.
func readType(conn *websocket.Conn, want models.MessageType) map[string]any {
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		var m map[string]any
		if json.Unmarshal(data, &m) == nil && m["type"] == string(want) {
			return m
		}
	}
}

func drain(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Time{})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestClient_StreamsTelemetryAndAcksCommands(t *testing.T) {
	type seen struct {
		query     string
		telemetry map[string]any
		ack       map[string]any
	}
	result := make(chan seen, 1)

	url := fakeGateway(t, func(r *http.Request, conn *websocket.Conn) {
		var s seen
		s.query = r.URL.RawQuery
		s.telemetry = readType(conn, models.TypeTelemetry)
		if err := conn.WriteJSON(models.NewCommand(models.CommandStart, models.MotorA, nil, time.Now())); err != nil {
			return
		}
		s.ack = readType(conn, models.TypeAck)
		result <- s
		drain(conn)
	})

	ctrl := NewController()
	client := NewClient(Config{URL: url, DeviceID: "sim-1", Token: "tok", Interval: 20 * time.Millisecond}, ctrl, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	var s seen
	select {
	case s = <-result:
	case <-time.After(3 * time.Second):
		t.Fatal("gateway never saw the full exchange")
	}

	assert.Contains(t, s.query, "device_id=sim-1")
	assert.Contains(t, s.query, "token=tok")
	assert.Contains(t, s.telemetry, "motorA")
	assert.Contains(t, s.telemetry, "motorB")
	assert.Equal(t, true, s.ack["success"])
	assert.Equal(t, models.StateRunning, ctrl.SystemState())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClient_StopsOnRejection(t *testing.T) {
	url := fakeGateway(t, func(_ *http.Request, conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(4001, "Invalid token")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})

	client := NewClient(Config{URL: url, DeviceID: "sim-1", Token: "bad", MaxBackoff: 10 * time.Millisecond}, NewController(), nil)

	done := make(chan error, 1)
	go func() { done <- client.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrRejected)
	case <-time.After(3 * time.Second):
		t.Fatal("client kept retrying after rejection")
	}
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	client := NewClient(Config{
		URL:        "ws://127.0.0.1:1/ws/device",
		DeviceID:   "sim-1",
		MaxBackoff: 5 * time.Millisecond,
		MaxRetries: 2,
	}, NewController(), nil)

	err := client.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial gateway")
}

func TestClient_RequiresDeviceID(t *testing.T) {
	client := NewClient(Config{URL: "ws://127.0.0.1:1/ws/device"}, NewController(), nil)
	err := client.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device id is empty")
}
