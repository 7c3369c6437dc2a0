// Package landiscover implements the LAN discovery transport (§4.5 of
// SPEC_FULL.md): a UDP broadcaster announcing this device every 3 seconds,
// and a listener maintaining a peer table pruned on a 15-second expiry.
package landiscover

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
	"github.com/rustsynccv/rustsynccv-go/internal/runtime"
)

const (
	// DefaultPort is the well-known UDP port discovery runs on.
	DefaultPort = 52741

	magic = "RSCV_LAN"

	beaconInterval = 3 * time.Second
	peerExpiry     = 15 * time.Second
	maxDatagram    = 2048
)

// Peer is one entry in the discovered-peer table.
type Peer struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Addr       string    `json:"addr"`
	TCPPort    int       `json:"tcp_port"`
	LastSeen   time.Time `json:"last_seen"`
}

// Table is the shared, thread-safe peer table the connector in
// internal/lanmesh reads and the listener writes.
type Table struct {
	mu    sync.RWMutex
	peers map[string]Peer
}

// NewTable returns an empty Table.
func NewTable() *Table { return &Table{peers: make(map[string]Peer)} }

// Snapshot returns a point-in-time copy of all known peers.
func (t *Table) Snapshot() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// upsert inserts or updates a peer, reporting whether any visible field
// (device_name, addr, tcp_port) changed — a pure last_seen bump returns false.
func (t *Table) upsert(p Peer) (changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.peers[p.DeviceID]
	if !ok {
		t.peers[p.DeviceID] = p
		return true
	}
	changed = existing.DeviceName != p.DeviceName || existing.Addr != p.Addr || existing.TCPPort != p.TCPPort
	t.peers[p.DeviceID] = p
	return changed
}

// prune removes entries whose last beacon is older than peerExpiry, reporting
// whether anything was removed.
func (t *Table) prune(now time.Time) (removed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, p := range t.peers {
		if now.Sub(p.LastSeen) >= peerExpiry {
			delete(t.peers, id)
			removed = true
		}
	}
	return removed
}

// Service runs the broadcaster and listener tasks that keep Table current.
type Service struct {
	Table *Table

	DeviceID   string
	DeviceName string
	TCPPort    int
	Port       int

	Bus *runtime.Bus

	conn *net.UDPConn
}

// New returns a Service bound to table, announcing self under deviceID.
func New(table *Table, bus *runtime.Bus, deviceID, deviceName string, tcpPort int) *Service {
	port := DefaultPort
	return &Service{
		Table:      table,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		TCPPort:    tcpPort,
		Port:       port,
		Bus:        bus,
	}
}

// Bind opens the listener socket. Callers that need a bind failure to be
// visible before any goroutine is spawned (the Supervisor's task-set build
// step) call this synchronously ahead of Run; Run itself calls it too, so a
// caller that skips the explicit step (tests, standalone use) still gets a
// bound socket. Safe to call more than once.
func (s *Service) Bind() error {
	if s.conn != nil {
		return nil
	}
	conn, err := listen(s.Port)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// Run spawns the broadcaster and listener loops and blocks until ctx is
// cancelled. The listener socket is bound by Bind, called here if the caller
// has not already done so.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Bind(); err != nil {
		return err
	}
	conn := s.conn
	defer conn.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.broadcastLoop(ctx) }()
	go func() { defer wg.Done(); s.listenLoop(ctx, conn) }()

	<-ctx.Done()
	_ = conn.SetReadDeadline(time.Now())
	wg.Wait()
	return nil
}

func (s *Service) broadcastLoop(ctx context.Context) {
	dest := &net.UDPAddr{IP: net.IPv4bcast, Port: s.Port}
	sock, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		s.Bus.PublishLog(slog.LevelWarn, "discovery broadcaster socket failed", "err", err)
		return
	}
	defer sock.Close()
	if err := setBroadcast(sock); err != nil {
		s.Bus.PublishLog(slog.LevelWarn, "enable SO_BROADCAST failed", "err", err)
	}

	ticker := time.NewTicker(beaconInterval)
	defer ticker.Stop()

	var seq uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beacon := rscvmsg.DiscoveryBeacon{
				DeviceID:   s.DeviceID,
				DeviceName: s.DeviceName,
				TCPPort:    s.TCPPort,
				Seq:        seq,
			}
			seq++
			body, err := json.Marshal(beacon)
			if err != nil {
				continue
			}
			datagram := append([]byte(magic), body...)
			if _, err := sock.WriteToUDP(datagram, dest); err != nil {
				s.Bus.PublishLog(slog.LevelWarn, "discovery beacon send failed", "err", err)
			}
		}
	}
}

func (s *Service) listenLoop(ctx context.Context, conn *net.UDPConn) {
	buf := make([]byte, maxDatagram)
	for {
		if ctx.Err() != nil {
			return
		}
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				_ = conn.SetReadDeadline(time.Now().Add(time.Second))
				continue
			}
			s.Bus.PublishLog(slog.LevelWarn, "discovery listener read failed", "err", err)
			continue
		}
		s.handleDatagram(buf[:n], src)
		s.pruneAndMaybeNotify()
	}
}

func (s *Service) handleDatagram(data []byte, src *net.UDPAddr) {
	if len(data) < len(magic) || string(data[:len(magic)]) != magic {
		return
	}
	var beacon rscvmsg.DiscoveryBeacon
	if err := json.Unmarshal(data[len(magic):], &beacon); err != nil {
		return
	}
	if beacon.DeviceID == s.DeviceID {
		return
	}

	p := Peer{
		DeviceID:   beacon.DeviceID,
		DeviceName: beacon.DeviceName,
		Addr:       src.IP.String(),
		TCPPort:    beacon.TCPPort,
		LastSeen:   time.Now(),
	}
	if s.Table.upsert(p) {
		s.notifyChanged()
	}
}

func (s *Service) pruneAndMaybeNotify() {
	if s.Table.prune(time.Now()) {
		s.notifyChanged()
	}
}

func (s *Service) notifyChanged() {
	snap := s.Table.Snapshot()
	body, err := json.Marshal(snap)
	if err != nil {
		return
	}
	s.Bus.PublishLanPeersChanged(string(body))
}
