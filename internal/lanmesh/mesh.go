package lanmesh

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rustsynccv/rustsynccv-go/internal/lanauth"
	"github.com/rustsynccv/rustsynccv-go/internal/landiscover"
	"github.com/rustsynccv/rustsynccv-go/internal/runtime"
)

const (
	// DefaultPort is the well-known TCP port the peer mesh listens on.
	DefaultPort = 52742

	scanInterval   = 4 * time.Second
	backoffInitial = time.Second
	backoffCeiling = 30 * time.Second
)

// Mesh owns the TCP listener and connector that together keep exactly one
// session alive per discovered peer.
type Mesh struct {
	Table      *landiscover.Table
	Deps       Deps
	DeviceID   string
	DeviceName string
	Port       int
	Key        *lanauth.Key

	mu        sync.Mutex
	attempted map[string]struct{}
	sessionWG sync.WaitGroup
	cancelFns map[string]context.CancelFunc

	ln net.Listener
}

// New returns a Mesh. psk may be empty to disable frame encryption.
func New(table *landiscover.Table, deps Deps, deviceID, deviceName string, psk string) (*Mesh, error) {
	var key *lanauth.Key
	if psk != "" {
		k, err := lanauth.DeriveKey(psk)
		if err != nil {
			return nil, fmt.Errorf("derive lan psk: %w", err)
		}
		key = k
	}
	return &Mesh{
		Table:      table,
		Deps:       deps,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Port:       DefaultPort,
		Key:        key,
		attempted:  make(map[string]struct{}),
		cancelFns:  make(map[string]context.CancelFunc),
	}, nil
}

// Bind opens the TCP listener. Callers that need a listen failure to be
// visible before any goroutine is spawned (the Supervisor's task-set build
// step) call this synchronously ahead of Run; Run itself calls it too, so a
// caller that skips the explicit step (tests, standalone use) still gets a
// bound listener. Safe to call more than once.
func (m *Mesh) Bind() error {
	if m.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp4", fmt.Sprintf("0.0.0.0:%d", m.Port))
	if err != nil {
		return fmt.Errorf("listen lan mesh: %w", err)
	}
	m.ln = ln
	return nil
}

// Run spawns the accept loop and connector scan loop, blocking until ctx is
// cancelled. The TCP listener is bound by Bind, called here if the caller
// has not already done so.
func (m *Mesh) Run(ctx context.Context) error {
	if err := m.Bind(); err != nil {
		return err
	}
	ln := m.ln
	defer ln.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); m.acceptLoop(ctx, ln) }()
	go func() { defer wg.Done(); m.connectorLoop(ctx) }()

	<-ctx.Done()
	m.stopAll()
	wg.Wait()
	m.sessionWG.Wait()
	return nil
}

func (m *Mesh) acceptLoop(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.Deps.Bus.PublishLog(slog.LevelWarn, "lan mesh accept failed", "err", err)
			continue
		}
		m.sessionWG.Add(1)
		go func() {
			defer m.sessionWG.Done()
			m.serveAccepted(ctx, nc)
		}()
	}
}

func (m *Mesh) serveAccepted(ctx context.Context, nc net.Conn) {
	conn := wrapConn(nc, m.Key)
	peerID, peerName, err := acceptHandshake(conn, m.DeviceID, m.DeviceName)
	if err != nil {
		m.Deps.Bus.PublishLog(slog.LevelWarn, "lan mesh handshake failed", "err", err)
		conn.Close()
		return
	}

	sess := newSession(conn, peerID, peerName, m.Deps)
	if err := sess.run(ctx); err != nil {
		m.Deps.Bus.PublishLog(slog.LevelWarn, "lan mesh session ended", "peer", peerID, "err", err)
	}
}

// connectorLoop scans the peer table every 4s and spawns a connector
// goroutine for every eligible peer not already attempted.
func (m *Mesh) connectorLoop(ctx context.Context) {
	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.scanAndConnect(ctx)
		}
	}
}

// ShouldInitiate reports whether selfID is responsible for dialing peerID,
// per the antisymmetric rule in §4.6: the lexicographically greater device
// id initiates, guaranteeing exactly one TCP session per unordered pair
// without any negotiation.
func ShouldInitiate(selfID, peerID string) bool {
	return selfID > peerID
}

func (m *Mesh) scanAndConnect(ctx context.Context) {
	for _, p := range m.Table.Snapshot() {
		if !ShouldInitiate(m.DeviceID, p.DeviceID) {
			continue // the other side initiates
		}

		m.mu.Lock()
		_, already := m.attempted[p.DeviceID]
		if !already {
			m.attempted[p.DeviceID] = struct{}{}
		}
		m.mu.Unlock()
		if already {
			continue
		}

		peerCtx, cancel := context.WithCancel(ctx)
		m.mu.Lock()
		m.cancelFns[p.DeviceID] = cancel
		m.mu.Unlock()

		m.sessionWG.Add(1)
		go func(peer landiscover.Peer) {
			defer m.sessionWG.Done()
			m.connectLoop(peerCtx, peer)
		}(p)
	}
}

// stopAll cancels every tracked per-peer connector context. The mesh's own
// ctx cancellation already does this for sessions derived directly from it;
// this exists so a future per-peer removal (§9 open question) has a hook
// without needing to cancel the whole mesh.
func (m *Mesh) stopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cancel := range m.cancelFns {
		cancel()
		delete(m.cancelFns, id)
	}
}

// connectLoop dials peer with exponential backoff until it succeeds, ctx is
// cancelled, or the session ends (at which point it is retried from scratch,
// since the connector only attempts once per peer lifetime via m.attempted).
func (m *Mesh) connectLoop(ctx context.Context, peer landiscover.Peer) {
	backoff := backoffInitial
	for {
		if ctx.Err() != nil {
			return
		}
		addr := fmt.Sprintf("%s:%d", peer.Addr, peer.TCPPort)
		nc, err := net.DialTimeout("tcp4", addr, 5*time.Second)
		if err != nil {
			m.Deps.Bus.PublishLog(slog.LevelWarn, "lan mesh dial failed", "peer", peer.DeviceID, "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > backoffCeiling {
				backoff = backoffCeiling
			}
			continue
		}
		backoff = backoffInitial

		conn := wrapConn(nc, m.Key)
		peerID, peerName, err := initiateHandshake(conn, m.DeviceID, m.DeviceName)
		if err != nil {
			m.Deps.Bus.PublishLog(slog.LevelWarn, "lan mesh handshake failed", "peer", peer.DeviceID, "err", err)
			conn.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}

		sess := newSession(conn, peerID, peerName, m.Deps)
		if err := sess.run(ctx); err != nil {
			m.Deps.Bus.PublishLog(slog.LevelWarn, "lan mesh session ended", "peer", peerID, "err", err)
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}
