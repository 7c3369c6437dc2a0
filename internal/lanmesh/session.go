// Package lanmesh implements the LAN TCP peer mesh (§4.6 of SPEC_FULL.md): an
// antisymmetric connector that opens exactly one session per discovered peer
// pair, a Hello/Welcome handshake, and a steady-state session loop shared by
// both the listening and connecting sides.
package lanmesh

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rustsynccv/rustsynccv-go/internal/lanauth"
	"github.com/rustsynccv/rustsynccv-go/internal/rscverr"
	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
	"github.com/rustsynccv/rustsynccv-go/internal/runtime"
	"github.com/rustsynccv/rustsynccv-go/internal/wireproto"
)

const (
	handshakeTimeout = 10 * time.Second
	heartbeatTick    = 5 * time.Second
	heartbeatDead    = 15 * time.Second
)

// Deps wires a session into the running core.
type Deps struct {
	Fanout  *runtime.Fanout
	Applier *runtime.Applier
	Bus     *runtime.Bus
}

// session runs the steady-state loop shared by host and client sides of a
// mesh connection. The read half and write half are behind separate mutexes
// so heartbeat and clipboard sends can share the writer safely while only
// one goroutine reads at a time. heartbeatTick/heartbeatDead are fields
// rather than constants so tests can shrink them without sleeping on
// production timing.
type session struct {
	conn     *wireproto.Conn
	peerID   string
	peerName string
	deps     Deps

	heartbeatTick time.Duration
	heartbeatDead time.Duration

	writeMu sync.Mutex

	lastPongMu sync.Mutex
	lastPong   time.Time
}

func newSession(conn *wireproto.Conn, peerID, peerName string, deps Deps) *session {
	return &session{
		conn:          conn,
		peerID:        peerID,
		peerName:      peerName,
		deps:          deps,
		heartbeatTick: heartbeatTick,
		heartbeatDead: heartbeatDead,
		lastPong:      time.Now(),
	}
}

func (s *session) writeFrame(msg rscvmsg.PeerMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteFrame(msg)
}

func (s *session) touchPong() {
	s.lastPongMu.Lock()
	defer s.lastPongMu.Unlock()
	s.lastPong = time.Now()
}

func (s *session) sincePong() time.Duration {
	s.lastPongMu.Lock()
	defer s.lastPongMu.Unlock()
	return time.Since(s.lastPong)
}

// run drives the session until ctx is cancelled, the peer disconnects, a
// heartbeat times out, or a protocol error occurs.
func (s *session) run(ctx context.Context) error {
	defer s.conn.Close()

	frameCh := make(chan rscvmsg.PeerMessage)
	readErrCh := make(chan error, 1)
	go s.readLoop(ctx, frameCh, readErrCh)

	fanoutID, updates := s.deps.Fanout.Subscribe()
	defer s.deps.Fanout.Unsubscribe(fanoutID)

	ticker := time.NewTicker(s.heartbeatTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if s.sincePong() > s.heartbeatDead {
				return rscverr.ErrHeartbeatTimeout
			}
			if err := s.writeFrame(rscvmsg.PeerMessage{Type: rscvmsg.PeerPing, TS: time.Now().UnixMilli()}); err != nil {
				return fmt.Errorf("send ping: %w", err)
			}

		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := rscvmsg.PeerMessage{
				Type:        rscvmsg.PeerClipboard,
				ContentType: update.ContentType,
				Data:        update.Data,
			}
			if err := s.writeFrame(msg); err != nil {
				return fmt.Errorf("send clipboard: %w", err)
			}

		case err := <-readErrCh:
			return err

		case frame := <-frameCh:
			s.dispatch(frame)
		}
	}
}

func (s *session) readLoop(ctx context.Context, out chan<- rscvmsg.PeerMessage, errCh chan<- error) {
	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				errCh <- nil
				return
			}
			errCh <- fmt.Errorf("read frame: %w", err)
			return
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			return
		}
	}
}

func (s *session) dispatch(frame rscvmsg.PeerMessage) {
	switch frame.Type {
	case rscvmsg.PeerPing:
		if err := s.writeFrame(rscvmsg.PeerMessage{Type: rscvmsg.PeerPong, TS: frame.TS}); err != nil {
			s.deps.Bus.PublishLog(slog.LevelWarn, "pong send failed", "peer", s.peerID, "err", err)
		}
	case rscvmsg.PeerPong:
		s.touchPong()
	case rscvmsg.PeerClipboard:
		s.deps.Applier.Enqueue(context.Background(), rscvmsg.ClipboardPayload{
			ContentType: frame.ContentType,
			Data:        frame.Data,
		})
	case rscvmsg.PeerHello, rscvmsg.PeerWelcome:
		s.deps.Bus.PublishLog(slog.LevelWarn, "unexpected handshake message after handshake", "peer", s.peerID, "type", frame.Type)
	default:
		s.deps.Bus.PublishLog(slog.LevelWarn, "unrecognized peer message", "peer", s.peerID, "type", frame.Type)
	}
}

// acceptHandshake reads a Hello and replies Welcome. Used by the listener side.
func acceptHandshake(conn *wireproto.Conn, selfID, selfName string) (peerID, peerName string, err error) {
	conn.SetReadDeadline(handshakeTimeout)
	defer conn.SetReadDeadline(0)

	frame, err := conn.ReadFrame()
	if err != nil {
		return "", "", fmt.Errorf("read hello: %w", err)
	}
	if frame.Type != rscvmsg.PeerHello {
		return "", "", rscverr.ErrBadHandshake
	}
	welcome := rscvmsg.PeerMessage{Type: rscvmsg.PeerWelcome, DeviceID: selfID, DeviceName: selfName}
	if err := conn.WriteFrame(welcome); err != nil {
		return "", "", fmt.Errorf("send welcome: %w", err)
	}
	return frame.DeviceID, frame.DeviceName, nil
}

// initiateHandshake sends a Hello and reads the Welcome. Used by the connector side.
func initiateHandshake(conn *wireproto.Conn, selfID, selfName string) (peerID, peerName string, err error) {
	hello := rscvmsg.PeerMessage{Type: rscvmsg.PeerHello, DeviceID: selfID, DeviceName: selfName}
	if err := conn.WriteFrame(hello); err != nil {
		return "", "", fmt.Errorf("send hello: %w", err)
	}

	conn.SetReadDeadline(handshakeTimeout)
	defer conn.SetReadDeadline(0)

	frame, err := conn.ReadFrame()
	if err != nil {
		return "", "", fmt.Errorf("read welcome: %w", err)
	}
	if frame.Type != rscvmsg.PeerWelcome {
		return "", "", rscverr.ErrBadHandshake
	}
	return frame.DeviceID, frame.DeviceName, nil
}

func wrapConn(nc net.Conn, key *lanauth.Key) *wireproto.Conn {
	return wireproto.New(nc, key)
}
