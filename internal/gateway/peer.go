package gateway

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"motor_gateway/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type closeFrame struct {
	code   int
	reason string
}

// wsPeer is the Socket over a gorilla connection. The write pump is the only
// writer of data frames; Send, Ping and Close just enqueue for it.
type wsPeer struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	ping      chan struct{}
	closing   chan closeFrame
	done      chan struct{}
	once      sync.Once
	writeWait time.Duration
	log       *logger.Logger
}

func newPeer(conn *websocket.Conn, cfg Config, log *logger.Logger) *wsPeer {
	return &wsPeer{
		id:        uuid.NewString(),
		conn:      conn,
		send:      make(chan []byte, cfg.SendBuffer),
		ping:      make(chan struct{}, 1),
		closing:   make(chan closeFrame, 1),
		done:      make(chan struct{}),
		writeWait: cfg.WriteWait,
		log:       log,
	}
}

func (p *wsPeer) Send(payload []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- payload:
		return true
	default:
		return false
	}
}

func (p *wsPeer) Ping() bool {
	select {
	case <-p.done:
		return false
	case p.ping <- struct{}{}:
		return true
	default:
		// a ping is already pending
		return true
	}
}

func (p *wsPeer) Close(code int, reason string) {
	select {
	case p.closing <- closeFrame{code: code, reason: reason}:
	default:
	}
}

func (p *wsPeer) Terminate() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *wsPeer) deadline() time.Time {
	return time.Now().Add(p.writeWait)
}

func (p *wsPeer) writePump() {
	defer p.Terminate()
	for {
		select {
		case <-p.done:
			return
		case payload := <-p.send:
			_ = p.conn.SetWriteDeadline(p.deadline())
			if err := p.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				p.log.Infow("ws_write_failed", "peer", p.id, "err", err)
				return
			}
		case <-p.ping:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, p.deadline()); err != nil {
				p.log.Infow("ws_ping_failed", "peer", p.id, "err", err)
				return
			}
		case cf := <-p.closing:
			msg := websocket.FormatCloseMessage(cf.code, cf.reason)
			if err := p.conn.WriteControl(websocket.CloseMessage, msg, p.deadline()); err != nil {
				p.log.Debugw("ws_close_write_failed", "peer", p.id, "err", err)
			}
			return
		}
	}
}

// readFrame returns the next data frame, at most limit bytes. A larger frame
// yields ErrOversized; its remainder is discarded by the next NextReader.
func (p *wsPeer) readFrame(limit int64) ([]byte, error) {
	_, r, err := p.conn.NextReader()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrOversized, limit)
	}
	return data, nil
}

// frameSource yields inbound data frames of at most limit bytes.
type frameSource interface {
	readFrame(limit int64) ([]byte, error)
}

// readPump feeds the loop until src fails. It is the error boundary for one
// connection: frame errors and panics end this connection only.
func (g *Gateway) readPump(src frameSource, ref peerRef) {
	var cause error
	defer func() {
		if r := recover(); r != nil {
			cause = fmt.Errorf("read pump panic: %v", r)
			g.log.Errorw("ws_reader_panic", "role", ref.role, "key", ref.key, "err", cause)
		}
		ref.sock.Terminate()
		g.post(left{peerRef: ref, cause: cause})
	}()

	for {
		data, err := src.readFrame(g.cfg.MaxMessageBytes)
		if errors.Is(err, ErrOversized) {
			g.log.Warnw("ws_frame_dropped", "role", ref.role, "key", ref.key, "err", err)
			continue
		}
		if err != nil {
			cause = err
			return
		}
		if !g.post(inbound{peerRef: ref, data: data}) {
			return
		}
	}
}

func describeCause(err error) string {
	if err == nil {
		return "closed"
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return fmt.Sprintf("peer closed (code %d)", ce.Code)
	}
	return err.Error()
}
