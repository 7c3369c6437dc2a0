package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rustsynccv/rustsynccv-go/internal/clip"
)

// supervisorState is the Supervisor's internal state machine (§4.1).
type supervisorState int

const (
	stateIdle supervisorState = iota
	stateRunning
	statePaused
)

// reloadGrace bounds how long Reload/Shutdown wait for a hard-cancelled task
// set to unwind before proceeding regardless of stragglers (§5).
const reloadGrace = 1 * time.Second

// Transport is implemented by whichever transport the active Config selects
// (internal/servertransport or internal/lanmesh, wired by cmd/rscvd). It is
// defined here, rather than imported, so the Supervisor can be built and
// tested before either concrete transport exists.
type Transport interface {
	// Run blocks until ctx is cancelled or the transport gives up permanently.
	Run(ctx context.Context)
}

// ConfigLike is the minimal slice of configuration the Supervisor itself
// consults; callers pass their internal/config.Config, which satisfies this
// through its own ImageLimitKB method.
type ConfigLike interface {
	ImageLimitKB() int
}

// TransportFactory builds the Transport(s) to run for a given Config, using
// the already-constructed Fanout, Applier, and Bus. It returns the list of
// transports to run concurrently (server mode: one; LAN mode: discovery +
// mesh, both satisfy Transport).
type TransportFactory func(cfg ConfigLike, fanout *Fanout, applier *Applier, bus *Bus) ([]Transport, error)

// Supervisor owns the lifecycle of the clipboard Monitor, Applier, and the
// configured transport(s), reacting to an async command queue (§4.1).
type Supervisor struct {
	backend  clip.Backend
	bus      *Bus
	deviceID string
	buildTransports TransportFactory

	cmdCh chan command

	mu         sync.Mutex
	state      supervisorState
	lastConfig ConfigLike
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	suppressed *atomic.Bool
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdPause
	cmdResume
	cmdReload
	cmdShutdown
)

type command struct {
	kind   commandKind
	config ConfigLike
	done   chan error
}

// NewSupervisor returns a Supervisor. Call Run in a goroutine to start its
// command loop, then send commands via Start/Pause/Resume/Reload/Shutdown.
func NewSupervisor(backend clip.Backend, bus *Bus, buildTransports TransportFactory) *Supervisor {
	deviceID := uuid.NewString()
	return &Supervisor{
		backend:         backend,
		bus:             bus,
		deviceID:        deviceID,
		buildTransports: buildTransports,
		cmdCh:           make(chan command, 8),
		suppressed:      &atomic.Bool{},
	}
}

// DeviceID returns this process's generated device identifier.
func (s *Supervisor) DeviceID() string { return s.deviceID }

// Run processes commands strictly in order, one at a time, until ctx is
// cancelled (the process is shutting down entirely). Call in a goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.doShutdown()
			return
		case cmd := <-s.cmdCh:
			err := s.handle(cmd)
			if cmd.done != nil {
				cmd.done <- err
			}
			if cmd.kind == cmdShutdown {
				return
			}
		}
	}
}

func (s *Supervisor) send(kind commandKind, cfg ConfigLike) error {
	done := make(chan error, 1)
	s.cmdCh <- command{kind: kind, config: cfg, done: done}
	return <-done
}

// Start transitions Idle → Running: load cfg, spawn the task set.
func (s *Supervisor) Start(cfg ConfigLike) error { return s.send(cmdStart, cfg) }

// Pause soft-cancels the running task set (await drain, not abort).
func (s *Supervisor) Pause() error { return s.send(cmdPause, nil) }

// Resume respawns the task set using the remembered Config.
func (s *Supervisor) Resume() error { return s.send(cmdResume, nil) }

// Reload hard-aborts the active task set and starts it again with cfg.
func (s *Supervisor) Reload(cfg ConfigLike) error { return s.send(cmdReload, cfg) }

// Shutdown hard-aborts and ends the command loop.
func (s *Supervisor) Shutdown() error { return s.send(cmdShutdown, nil) }

func (s *Supervisor) handle(cmd command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.kind {
	case cmdStart:
		if s.state != stateIdle {
			return fmt.Errorf("supervisor: Start called in non-idle state")
		}
		return s.startLocked(cmd.config)

	case cmdPause:
		if s.state != stateRunning {
			return fmt.Errorf("supervisor: Pause called while not running")
		}
		s.softCancelLocked()
		s.state = statePaused
		s.bus.PublishConnection(StatePaused)
		s.bus.PublishStatus("paused")
		return nil

	case cmdResume:
		if s.state != statePaused {
			return fmt.Errorf("supervisor: Resume called while not paused")
		}
		return s.startLocked(s.lastConfig)

	case cmdReload:
		if s.state == stateRunning || s.state == statePaused {
			s.hardCancelLocked()
		}
		s.state = stateIdle
		return s.startLocked(cmd.config)

	case cmdShutdown:
		if s.state == stateRunning || s.state == statePaused {
			s.hardCancelLocked()
		}
		s.state = stateIdle
		s.bus.PublishConnection(StateDisconnected)
		s.bus.PublishStatus("shutdown")
		return nil
	}
	return fmt.Errorf("supervisor: unknown command")
}

func (s *Supervisor) startLocked(cfg ConfigLike) error {
	if cfg == nil {
		return fmt.Errorf("supervisor: Start/Resume called with no remembered config")
	}

	fanout := NewFanout()
	applier := NewApplier(s.backend, s.bus, s.suppressed)
	monitor := NewMonitor(s.backend, s.bus, fanout, s.suppressed, s.deviceID, cfg.ImageLimitKB())

	transports, err := s.buildTransports(cfg, fanout, applier, s.bus)
	if err != nil {
		s.bus.PublishError(err)
		return fmt.Errorf("supervisor: build transports: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.lastConfig = cfg
	s.state = stateRunning

	s.wg.Add(2 + len(transports))
	go func() { defer s.wg.Done(); monitor.Run(ctx) }()
	go func() { defer s.wg.Done(); applier.Run(ctx) }()
	for _, t := range transports {
		t := t
		go func() { defer s.wg.Done(); t.Run(ctx) }()
	}

	s.bus.PublishConnection(StateConnecting)
	s.bus.PublishStatus("running")
	return nil
}

// softCancelLocked cancels the task set and blocks until every task has
// exited (Pause semantics — awaited, not abandoned).
func (s *Supervisor) softCancelLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// hardCancelLocked cancels the task set and returns without waiting for
// stragglers beyond the grace period (Reload/Shutdown semantics).
func (s *Supervisor) hardCancelLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(reloadGrace):
	}
}

func (s *Supervisor) doShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateRunning || s.state == statePaused {
		s.hardCancelLocked()
	}
	s.state = stateIdle
}
