package gateway

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"motor_gateway/internal/models"

	"github.com/gorilla/websocket"
)

var (
	// ErrMissingIdentity is reported when a peer authenticates without a usable identity.
	ErrMissingIdentity = errors.New("missing identity")
	// ErrIdentityMismatch is reported when a device token names another device.
	ErrIdentityMismatch = errors.New("token issued for another device")
)

const (
	devicePath    = "/ws/device"
	dashboardPath = "/ws/dashboard"
)

// RoleForPath decides a connection's role from its request path. It is the
// only place role is derived.
func RoleForPath(path string) (models.Role, bool) {
	switch {
	case strings.Contains(path, devicePath):
		return models.RoleDevice, true
	case strings.Contains(path, dashboardPath):
		return models.RoleDashboard, true
	}
	return "", false
}

// ServeWS upgrades the request, authenticates it and, on success, serves the
// connection until it closes. Rejected peers get a close frame with a code
// naming the reason and are never registered.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	role, known := RoleForPath(r.URL.Path)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Infow("ws_upgrade_failed", "path", r.URL.Path, "err", err)
		return
	}

	if !known {
		g.log.Infow("ws_unknown_path", "path", r.URL.Path)
		g.reject(conn, CloseUnknownPath, "Unknown WebSocket path")
		return
	}

	q := r.URL.Query()
	switch role {
	case models.RoleDevice:
		g.serveDevice(conn, q, clientIP(r))
	case models.RoleDashboard:
		g.serveDashboard(conn, q)
	}
}

func (g *Gateway) serveDevice(conn *websocket.Conn, q url.Values, ip string) {
	deviceID := strings.TrimSpace(q.Get("device_id"))
	claimed, err := g.auth.VerifyDeviceToken(q.Get("token"))
	if err != nil {
		g.authFailed(conn, models.RoleDevice, deviceID, CloseInvalidToken, "Invalid token", err)
		return
	}
	if deviceID == "" {
		g.authFailed(conn, models.RoleDevice, "", CloseMissingIdentity, "Missing device_id", ErrMissingIdentity)
		return
	}
	if claimed != deviceID {
		g.authFailed(conn, models.RoleDevice, deviceID, CloseInvalidToken, "Token does not match device_id",
			fmt.Errorf("%w: token for %q", ErrIdentityMismatch, claimed))
		return
	}

	p := newPeer(conn, g.cfg, g.log)
	ref := peerRef{sock: p, role: models.RoleDevice, key: deviceID}
	g.serve(p, ref, joinDevice{peerRef: ref, ip: ip})
}

func (g *Gateway) serveDashboard(conn *websocket.Conn, q url.Values) {
	identity, err := g.auth.VerifyDashboardToken(q.Get("token"))
	if err != nil {
		g.authFailed(conn, models.RoleDashboard, "", CloseInvalidToken, "Invalid token", err)
		return
	}
	if identity.UserID == "" {
		g.authFailed(conn, models.RoleDashboard, "", CloseMissingIdentity, "Missing user identity", ErrMissingIdentity)
		return
	}

	p := newPeer(conn, g.cfg, g.log)
	ref := peerRef{sock: p, role: models.RoleDashboard, key: identity.UserID}
	g.serve(p, ref, joinDashboard{peerRef: ref, username: identity.Username})
}

// serve registers the peer and blocks in its read pump. The peer is closed
// with CloseShutdown once the loop stops, registered or not.
func (g *Gateway) serve(p *wsPeer, ref peerRef, join event) {
	go p.writePump()
	go func() {
		select {
		case <-g.stopped:
			p.Close(CloseShutdown, shutdownReason)
		case <-p.done:
		}
	}()
	if !g.post(join) {
		return
	}
	p.conn.SetPongHandler(func(string) error {
		g.post(pong{peerRef: ref})
		return nil
	})
	g.readPump(p, ref)
}

func (g *Gateway) authFailed(conn *websocket.Conn, role models.Role, key string, code int, reason string, err error) {
	g.log.Infow("ws_auth_failed", "role", role, "key", key, "code", code, "err", err)
	g.record(models.EventAuthFailure, role, key, reason, map[string]any{"code": code})
	g.reject(conn, code, reason)
}

// reject closes a connection that was never registered.
func (g *Gateway) reject(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(g.cfg.WriteWait)); err != nil {
		g.log.Debugw("ws_reject_write_failed", "code", code, "err", err)
	}
	_ = conn.Close()
}

// clientIP prefers the first X-Forwarded-For hop, then the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
