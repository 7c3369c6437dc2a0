package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfig struct{ imageLimitKB int }

func (c fakeConfig) ImageLimitKB() int { return c.imageLimitKB }

type fakeTransport struct {
	started chan struct{}
	once    sync.Once
	runFor  time.Duration
}

func (t *fakeTransport) Run(ctx context.Context) {
	t.once.Do(func() { close(t.started) })
	select {
	case <-ctx.Done():
	case <-time.After(t.runFor):
	}
}

func newTestSupervisor(transports ...Transport) (*Supervisor, *fakeBackend) {
	backend := newFakeBackend()
	bus := NewBus()
	go func() {
		for range bus.Events() {
		}
	}()
	sup := NewSupervisor(backend, bus, func(ConfigLike, *Fanout, *Applier, *Bus) ([]Transport, error) {
		return transports, nil
	})
	return sup, backend
}

func TestSupervisorStartThenShutdown(t *testing.T) {
	sup, _ := newTestSupervisor()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	require.NoError(t, sup.Start(fakeConfig{imageLimitKB: 512}))
	require.Error(t, sup.Start(fakeConfig{imageLimitKB: 512}), "Start while already running must fail")

	require.NoError(t, sup.Shutdown())
}

func TestSupervisorPauseThenResume(t *testing.T) {
	sup, _ := newTestSupervisor()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	require.NoError(t, sup.Start(fakeConfig{imageLimitKB: 512}))
	require.NoError(t, sup.Pause())
	require.Error(t, sup.Pause(), "Pause while already paused must fail")
	require.NoError(t, sup.Resume())
	require.NoError(t, sup.Shutdown())
}

func TestSupervisorReloadCancelsPreviousTaskSetPromptly(t *testing.T) {
	slow := &fakeTransport{started: make(chan struct{}), runFor: 10 * time.Second}
	sup, _ := newTestSupervisor(slow)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	require.NoError(t, sup.Start(fakeConfig{imageLimitKB: 512}))
	<-slow.started

	start := time.Now()
	require.NoError(t, sup.Reload(fakeConfig{imageLimitKB: 256}))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second, "Reload must not wait for the full transport lifetime")
}

func TestSupervisorDeviceIDStable(t *testing.T) {
	sup, _ := newTestSupervisor()
	id1 := sup.DeviceID()
	id2 := sup.DeviceID()
	assert.Equal(t, id1, id2)
	assert.NotEmpty(t, id1)
}
