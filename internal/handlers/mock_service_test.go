package handlers

import (
	"context"
	"net/http"
	"time"

	"motor_gateway/internal/models"
	"motor_gateway/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseIdentity models.Identity
	parseErr      error
	deviceToken   string
	deviceErr     error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
	lastDeviceID       string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (models.Identity, error) {
	m.lastParseToken = token
	return m.parseIdentity, m.parseErr
}
func (m *mockAuth) GenerateDeviceToken(deviceID string) (string, error) {
	m.lastDeviceID = deviceID
	return m.deviceToken, m.deviceErr
}
func (m *mockAuth) VerifyDashboardToken(token string) (models.Identity, error) {
	return m.ParseToken(token)
}
func (m *mockAuth) VerifyDeviceToken(token string) (string, error) {
	return m.lastDeviceID, m.parseErr
}

type mockCommands struct {
	sent bool
	err  error

	calls     int
	lastName  models.CommandName
	lastMotor models.Motor
	lastSpeed float64
}

func (m *mockCommands) result(name models.CommandName, motor models.Motor, value *float64) (service.CommandResult, error) {
	m.calls++
	m.lastName = name
	m.lastMotor = motor
	if m.err != nil {
		return service.CommandResult{}, m.err
	}
	cmd := models.NewCommand(name, motor, value, time.Unix(0, 0))
	return service.CommandResult{Sent: m.sent, Command: cmd}, nil
}

func (m *mockCommands) Start(ctx context.Context, motor models.Motor) (service.CommandResult, error) {
	return m.result(models.CommandStart, motor, nil)
}
func (m *mockCommands) Stop(ctx context.Context, motor models.Motor) (service.CommandResult, error) {
	return m.result(models.CommandStop, motor, nil)
}
func (m *mockCommands) SetSpeed(ctx context.Context, motor models.Motor, speed float64) (service.CommandResult, error) {
	m.lastSpeed = speed
	return m.result(models.CommandSetSpeed, motor, &speed)
}
func (m *mockCommands) Reset(ctx context.Context, motor models.Motor) (service.CommandResult, error) {
	return m.result(models.CommandReset, motor, nil)
}

type mockEventLog struct {
	resp     []models.Event
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) Record(e models.Event)   {}
func (m *mockEventLog) Run(ctx context.Context) {}
func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

type mockDevices struct {
	resp []models.DeviceRecord
	err  error
}

func (m *mockDevices) List(ctx context.Context) ([]models.DeviceRecord, error) {
	return m.resp, m.err
}
func (m *mockDevices) ResetPresence(ctx context.Context) (int64, error) {
	return 0, nil
}

type mockGateway struct {
	stats   models.Stats
	err     error
	wsCalls int
	lastWS  string
}

func (m *mockGateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	m.wsCalls++
	m.lastWS = r.URL.Path
	w.WriteHeader(http.StatusTeapot)
}
func (m *mockGateway) Stats(ctx context.Context) (models.Stats, error) {
	return m.stats, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	return newTestRouterWithGateway(s, &mockGateway{})
}

func newTestRouterWithGateway(s *service.Service, gw Gateway) *gin.Engine {
	h := NewHandler(s, gw, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func validAuth() *mockAuth {
	return &mockAuth{parseIdentity: models.Identity{UserID: "7", Username: "op"}}
}
