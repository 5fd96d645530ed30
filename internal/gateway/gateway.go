// Package gateway bridges motor-controller devices and operator dashboards
// over WebSocket connections.
//
// A single goroutine (Run) owns the Registry, Router and HeartbeatMonitor.
// Socket read pumps, HTTP handlers and the heartbeat ticker reach that state
// only by posting events to it, so none of it needs locking.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"motor_gateway/internal/logger"
	"motor_gateway/internal/models"

	"github.com/gorilla/websocket"
)

// Close codes sent to peers.
const (
	CloseInvalidToken    = 4001
	CloseMissingIdentity = 4002
	CloseSuperseded      = 4003
	CloseUnknownPath     = websocket.ClosePolicyViolation
	CloseShutdown        = websocket.CloseGoingAway

	supersededReason = "Superseded by a newer connection"
	shutdownReason   = "Server shutting down"
)

// ErrGatewayStopped is returned by calls made after Run has returned.
var ErrGatewayStopped = errors.New("gateway stopped")

// Authenticator verifies session tokens. Implementations must be safe for
// concurrent use and free of side effects. VerifyDeviceToken returns the
// device id the token was issued for.
type Authenticator interface {
	VerifyDashboardToken(token string) (models.Identity, error)
	VerifyDeviceToken(token string) (string, error)
}

// Recorder receives gateway events. Record must not block and must be safe
// for concurrent use.
type Recorder interface {
	Record(e models.Event)
}

type nopRecorder struct{}

func (nopRecorder) Record(models.Event) {}

// Config tunes the gateway. Zero fields take the defaults from DefaultConfig.
type Config struct {
	HeartbeatInterval time.Duration
	WriteWait         time.Duration
	HandshakeTimeout  time.Duration
	MaxMessageBytes   int64
	SendBuffer        int
	EventBuffer       int
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
}

const (
	defaultHeartbeatInterval = 25 * time.Second
	defaultWriteWait         = 10 * time.Second
	defaultHandshakeTimeout  = 10 * time.Second
	defaultMaxMessageBytes   = 64 << 10 // 64 KiB
	defaultSendBuffer        = 64
	defaultEventBuffer       = 256
)

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: defaultHeartbeatInterval,
		WriteWait:         defaultWriteWait,
		HandshakeTimeout:  defaultHandshakeTimeout,
		MaxMessageBytes:   defaultMaxMessageBytes,
		SendBuffer:        defaultSendBuffer,
		EventBuffer:       defaultEventBuffer,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = d.MaxMessageBytes
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return c
}

// Gateway is one independent gateway instance.
type Gateway struct {
	cfg      Config
	auth     Authenticator
	recorder Recorder
	log      *logger.Logger
	now      func() time.Time

	registry  *Registry
	router    *Router
	heartbeat *HeartbeatMonitor

	upgrader websocket.Upgrader
	events   chan event
	stopped  chan struct{}
	running  atomic.Bool
}

// New builds a gateway. rec and log may be nil.
func New(cfg Config, auth Authenticator, rec Recorder, log *logger.Logger) *Gateway {
	cfg = cfg.withDefaults()
	log = logger.OrNop(log)
	if rec == nil {
		rec = nopRecorder{}
	}

	registry := NewRegistry()
	router := NewRouter(registry, log)
	g := &Gateway{
		cfg:       cfg,
		auth:      auth,
		recorder:  rec,
		log:       log,
		now:       time.Now,
		registry:  registry,
		router:    router,
		heartbeat: NewHeartbeatMonitor(registry, router, log),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      cfg.CheckOrigin,
		},
		events:  make(chan event, cfg.EventBuffer),
		stopped: make(chan struct{}),
	}
	g.heartbeat.onEvict = g.recordTimeout
	return g
}

// Run processes events and heartbeat ticks until ctx is canceled, then closes
// every registered socket. It may be called once.
func (g *Gateway) Run(ctx context.Context) {
	if !g.running.CompareAndSwap(false, true) {
		g.log.Warnw("gateway_already_running")
		return
	}
	defer close(g.stopped)

	ticker := time.NewTicker(g.cfg.HeartbeatInterval)
	defer ticker.Stop()

	g.log.Infow("gateway_started", "heartbeat_interval", g.cfg.HeartbeatInterval.String())
	for {
		select {
		case <-ctx.Done():
			g.shutdown()
			return
		case <-ticker.C:
			g.heartbeat.Tick()
		case ev := <-g.events:
			ev.apply(g)
		}
	}
}

func (g *Gateway) shutdown() {
	st := g.registry.Stats()
	for _, d := range g.registry.AllDevices() {
		d.Socket.Close(CloseShutdown, shutdownReason)
	}
	for _, d := range g.registry.AllDashboards() {
		d.Socket.Close(CloseShutdown, shutdownReason)
	}
	g.registry.Reset()
	pending := g.drainJoins()
	g.log.Infow("gateway_stopped", "devices", st.DeviceCount, "dashboards", st.DashboardCount, "pending_joins", pending)
}

// drainJoins closes the sockets of joins still queued when the loop stops.
// Other queued events are discarded; their callers give up on g.stopped.
func (g *Gateway) drainJoins() int {
	n := 0
	for {
		select {
		case ev := <-g.events:
			switch e := ev.(type) {
			case joinDevice:
				e.sock.Close(CloseShutdown, shutdownReason)
				n++
			case joinDashboard:
				e.sock.Close(CloseShutdown, shutdownReason)
				n++
			}
		default:
			return n
		}
	}
}

// Done is closed once Run has returned.
func (g *Gateway) Done() <-chan struct{} {
	return g.stopped
}

// post hands ev to the loop. It returns false once the gateway has stopped.
func (g *Gateway) post(ev event) bool {
	select {
	case <-g.stopped:
		return false
	default:
	}
	select {
	case g.events <- ev:
		return true
	case <-g.stopped:
		return false
	}
}

func (g *Gateway) postCtx(ctx context.Context, ev event) error {
	select {
	case <-g.stopped:
		return ErrGatewayStopped
	default:
	}
	select {
	case g.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-g.stopped:
		return ErrGatewayStopped
	}
}

// ForwardCommand validates cmd and sends it to every registered device. It
// reports whether any device was registered. Safe for concurrent use.
func (g *Gateway) ForwardCommand(ctx context.Context, cmd models.Command) (bool, error) {
	if err := ValidateCommand(cmd); err != nil {
		return false, err
	}
	reply := make(chan bool, 1)
	if err := g.postCtx(ctx, forwardRequest{cmd: cmd, reply: reply}); err != nil {
		return false, err
	}
	select {
	case sent := <-reply:
		return sent, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-g.stopped:
		return false, ErrGatewayStopped
	}
}

// Stats returns the registry population. Safe for concurrent use.
func (g *Gateway) Stats(ctx context.Context) (models.Stats, error) {
	reply := make(chan models.Stats, 1)
	if err := g.postCtx(ctx, statsRequest{reply: reply}); err != nil {
		return models.Stats{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return models.Stats{}, ctx.Err()
	case <-g.stopped:
		return models.Stats{}, ErrGatewayStopped
	}
}

func (g *Gateway) record(typ string, role models.Role, peer, desc string, meta any) {
	g.recorder.Record(models.Event{
		OccurredAt:  g.now().UTC(),
		Type:        typ,
		Role:        role,
		Peer:        peer,
		Description: desc,
		Metadata:    meta,
	})
}

func (g *Gateway) recordTimeout(role models.Role, key string) {
	g.record(models.EventHeartbeatTimeout, role, key, string(role)+" "+key+" missed heartbeat", nil)
}
