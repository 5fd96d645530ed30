package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"motor_gateway/internal/logger"
	"motor_gateway/internal/models"

	"github.com/codeGROOVE-dev/retry"
	"github.com/gorilla/websocket"
)

const (
	defaultInterval   = time.Second
	defaultMaxBackoff = 30 * time.Second
	writeWait         = 10 * time.Second
	closeGrace        = 200 * time.Millisecond

	closeInvalidToken    = 4001
	closeMissingIdentity = 4002
)

// ErrRejected means the gateway refused the connection with an
// authentication close code; reconnecting would not help.
var ErrRejected = errors.New("rejected by gateway")

// Config describes how a simulated device reaches the gateway.
type Config struct {
	URL        string // ws://host:port/ws/device
	DeviceID   string
	Token      string
	Interval   time.Duration
	MaxBackoff time.Duration
	// MaxRetries of 0 retries until ctx is canceled.
	MaxRetries uint
}

// Client streams telemetry from a Controller and applies received commands.
type Client struct {
	cfg    Config
	ctrl   *Controller
	dialer *websocket.Dialer
	log    *logger.Logger
	now    func() time.Time
}

func NewClient(cfg Config, ctrl *Controller, log *logger.Logger) *Client {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &Client{
		cfg:    cfg,
		ctrl:   ctrl,
		dialer: websocket.DefaultDialer,
		log:    logger.OrNop(log),
		now:    time.Now,
	}
}

func (c *Client) endpoint() (string, error) {
	if c.cfg.DeviceID == "" {
		return "", errors.New("device id is empty")
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("device_id", c.cfg.DeviceID)
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run connects and serves sessions, reconnecting with jittered backoff until
// ctx is canceled, retries run out, or the gateway rejects the credentials.
func (c *Client) Run(ctx context.Context) error {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.MaxDelay(c.cfg.MaxBackoff),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warnw("sim_connection_lost", "device_id", c.cfg.DeviceID, "attempt", n+1, "err", err)
		}),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrRejected)
		}),
	}
	if c.cfg.MaxRetries > 0 {
		opts = append(opts, retry.Attempts(c.cfg.MaxRetries))
	} else {
		opts = append(opts, retry.UntilSucceeded())
	}

	err := retry.Do(func() error {
		if ctx.Err() != nil {
			return retry.Unrecoverable(ctx.Err())
		}
		return c.session(ctx)
	}, opts...)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// session runs one connection. It returns nil only when ctx ends it.
func (c *Client) session(ctx context.Context) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return retry.Unrecoverable(err)
	}
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()
	c.log.Infow("sim_connected", "device_id", c.cfg.DeviceID, "url", c.cfg.URL)

	commands := make(chan models.Command, 8)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go c.readLoop(conn, commands, readErr, done)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	last := c.now()

	if err := c.write(conn, models.NewStatus(c.ctrl.SystemState(), "Device "+c.cfg.DeviceID+" online")); err != nil {
		return closeCause(readErr, err)
	}

	for {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "simulator stopping")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return retry.Unrecoverable(ctx.Err())
		case err := <-readErr:
			return readFailure(err)
		case cmd := <-commands:
			before := c.ctrl.SystemState()
			ack := c.ctrl.Apply(cmd)
			c.log.Infow("sim_command", "device_id", c.cfg.DeviceID, "command", cmd.Command, "motor", cmd.Motor, "success", ack.Success)
			if err := c.write(conn, ack); err != nil {
				return closeCause(readErr, err)
			}
			if after := c.ctrl.SystemState(); after != before {
				if err := c.write(conn, models.NewStatus(after, "")); err != nil {
					return closeCause(readErr, err)
				}
			}
		case now := <-ticker.C:
			c.ctrl.Step(now.Sub(last))
			last = now
			if err := c.write(conn, c.ctrl.Telemetry(now)); err != nil {
				return closeCause(readErr, err)
			}
		}
	}
}

func readFailure(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) && (ce.Code == closeInvalidToken || ce.Code == closeMissingIdentity) {
		return fmt.Errorf("%w: %s (code %d)", ErrRejected, ce.Text, ce.Code)
	}
	return fmt.Errorf("read: %w", err)
}

// closeCause prefers the gateway's close frame over the local write error it
// usually causes.
func closeCause(readErr <-chan error, werr error) error {
	select {
	case err := <-readErr:
		return readFailure(err)
	case <-time.After(closeGrace):
		return werr
	}
}

func (c *Client) readLoop(conn *websocket.Conn, out chan<- models.Command, errc chan<- error, done <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		var cmd models.Command
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Type != models.TypeCommand {
			c.log.Debugw("sim_frame_ignored", "device_id", c.cfg.DeviceID, "bytes", len(data))
			continue
		}
		select {
		case out <- cmd:
		case <-done:
			return
		}
	}
}

func (c *Client) write(conn *websocket.Conn, m any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(m); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
