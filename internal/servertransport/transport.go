// Package servertransport implements the server-mode transport (§4.4 of
// SPEC_FULL.md): a single WebSocket connection to a relay, with an outer
// reconnect loop, an auth handshake accepting either shape the relay may
// reply with, and a steady-state send/receive pair wired to the runtime
// Fanout and Applier.
package servertransport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"nhooyr.io/websocket"

	"github.com/rustsynccv/rustsynccv-go/internal/rscverr"
	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
	"github.com/rustsynccv/rustsynccv-go/internal/runtime"
)

const (
	reconnectDelay = 5 * time.Second
	authFailDelay  = 3 * time.Second
)

// Deps is the subset of the running core a Transport drives: the fan-out it
// reads outbound clipboard changes from, the applier it forwards inbound
// content to, and the bus it reports connection state and errors on.
type Deps struct {
	Fanout  *runtime.Fanout
	Applier *runtime.Applier
	Bus     *runtime.Bus
}

// Config is the subset of the core Config a Transport needs.
type Config struct {
	ServerURL         string
	Token             string
	Username          string
	Password          string
	TrustInsecureCert bool
}

// Transport owns one server-mode session's lifecycle.
type Transport struct {
	cfg  Config
	deps Deps

	// reconnectDelay is a field rather than the constant so tests can shrink
	// it without sleeping on production timing.
	reconnectDelay time.Duration
}

// New returns a Transport. It does not connect until Run is called.
func New(cfg Config, deps Deps) *Transport {
	return &Transport{cfg: cfg, deps: deps, reconnectDelay: reconnectDelay}
}

// Run loops connecting, authenticating, and running the steady-state session
// until ctx is cancelled. Every failure is logged and followed by a fixed
// delay before retrying (5s, or 3s after an auth failure); cancellation
// breaks the loop at any select.
func (t *Transport) Run(ctx context.Context) {
	for {
		t.deps.Bus.PublishConnection(runtime.StateConnecting)
		err := t.runOnce(ctx)
		if ctx.Err() != nil {
			t.deps.Bus.PublishConnection(runtime.StateDisconnected)
			return
		}

		delay := t.reconnectDelay
		if err != nil {
			t.deps.Bus.PublishError(err)
			if isAuthFailure(err) {
				delay = authFailDelay
			}
			t.deps.Bus.PublishLog(slog.LevelWarn, "server transport session ended", "err", err)
		}
		t.deps.Bus.PublishConnection(runtime.StateReconnecting)

		select {
		case <-ctx.Done():
			t.deps.Bus.PublishConnection(runtime.StateDisconnected)
			return
		case <-time.After(delay):
		}
	}
}

type authFailureError struct{ message string }

func (e *authFailureError) Error() string { return "auth failed: " + e.message }

func (e *authFailureError) Unwrap() error { return rscverr.ErrAuthFailed }

func isAuthFailure(err error) bool {
	_, ok := err.(*authFailureError)
	return ok
}

// runOnce dials, authenticates, and runs one session to completion or error.
func (t *Transport) runOnce(ctx context.Context) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	if err := t.authenticate(ctx, conn); err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "auth failed")
		return err
	}

	t.deps.Bus.PublishConnection(runtime.StateConnected)
	t.deps.Bus.PublishStatus("connected to relay")

	return t.steadyState(ctx, conn)
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(t.cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	opts := &websocket.DialOptions{}
	if u.Scheme == "wss" && t.cfg.TrustInsecureCert {
		t.deps.Bus.PublishLog(slog.LevelWarn, "trusting any TLS certificate for server connection", "url", t.cfg.ServerURL)
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{TLSClientConfig: insecureTLSConfig()},
		}
	}

	conn, _, err := websocket.Dial(ctx, t.cfg.ServerURL, opts)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (t *Transport) authenticate(ctx context.Context, conn *websocket.Conn) error {
	req := rscvmsg.AuthRequest{Token: t.cfg.Token}
	if req.Token == "" {
		req.Username = t.cfg.Username
		req.Password = t.cfg.Password
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode auth request: %w", err)
	}

	if err := conn.Write(ctx, websocket.MessageText, body); err != nil {
		return fmt.Errorf("send auth request: %w", err)
	}

	typ, raw, err := conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("read auth reply: %w", err)
	}
	if typ != websocket.MessageText {
		return &authFailureError{message: "non-text auth reply"}
	}

	reply, err := rscvmsg.DecodeAuthReply(raw)
	if err != nil {
		return fmt.Errorf("decode auth reply: %w", err)
	}
	if !reply.Success {
		return &authFailureError{message: reply.Message}
	}
	return nil
}

// steadyState runs the send and receive goroutines until either fails or ctx
// is cancelled.
func (t *Transport) steadyState(ctx context.Context, conn *websocket.Conn) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- t.sendLoop(sessionCtx, conn) }()
	go func() { errCh <- t.receiveLoop(sessionCtx, conn) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (t *Transport) sendLoop(ctx context.Context, conn *websocket.Conn) error {
	id, ch := t.deps.Fanout.Subscribe()
	defer t.deps.Fanout.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-ch:
			if !ok {
				return nil
			}
			body, err := rscvmsg.EncodeRelayUpdate(update)
			if err != nil {
				t.deps.Bus.PublishLog(slog.LevelWarn, "encode clipboard update failed", "err", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, body); err != nil {
				return fmt.Errorf("write clipboard update: %w", err)
			}
		}
	}
}

func (t *Transport) receiveLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, raw, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}

		payload, ok := rscvmsg.DecodeRelayBroadcast(raw)
		if !ok {
			t.deps.Bus.PublishLog(slog.LevelWarn, "dropping unrecognized relay frame")
			continue
		}
		t.deps.Applier.Enqueue(ctx, payload)
	}
}
