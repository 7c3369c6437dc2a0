package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rustsynccv/rustsynccv-go/internal/clip"
	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
)

// applierQueueDepth is the single-consumer queue's buffer. Enqueue blocks
// once it fills, applying backpressure to whichever read loop produced the
// payload, rather than dropping content.
const applierQueueDepth = 32

// Applier writes inbound payloads to the OS clipboard under the suppression
// guard, preventing the monitor from re-observing its own write (§4.3).
type Applier struct {
	backend    clip.Backend
	bus        *Bus
	suppressed *atomic.Bool
	queue      chan rscvmsg.ClipboardPayload
}

// NewApplier returns an Applier backed by backend.
func NewApplier(backend clip.Backend, bus *Bus, suppressed *atomic.Bool) *Applier {
	return &Applier{
		backend:    backend,
		bus:        bus,
		suppressed: suppressed,
		queue:      make(chan rscvmsg.ClipboardPayload, applierQueueDepth),
	}
}

// Enqueue delivers p to the applier's queue, blocking only until ctx is
// cancelled — a full queue applies backpressure to the caller's read loop
// rather than dropping content, but a shutdown in progress still unblocks it.
func (a *Applier) Enqueue(ctx context.Context, p rscvmsg.ClipboardPayload) {
	select {
	case a.queue <- p:
	case <-ctx.Done():
	}
}

// Run consumes payloads until ctx is cancelled. Call in a goroutine.
func (a *Applier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-a.queue:
			a.apply(p)
		}
	}
}

// apply writes one payload to the OS clipboard under the suppression guard.
// The flag is cleared unconditionally, including on error, via defer.
func (a *Applier) apply(p rscvmsg.ClipboardPayload) {
	a.suppressed.Store(true)
	defer a.suppressed.Store(false)

	var err error
	switch p.ContentType {
	case rscvmsg.ContentText:
		err = a.backend.WriteText(p.Data)
	case rscvmsg.ContentImage:
		var png []byte
		png, err = p.DecodeImage()
		if err == nil {
			err = a.backend.WriteImage(png)
		}
	default:
		a.bus.PublishLog(slog.LevelWarn, "unknown clipboard content type, discarding", "content_type", p.ContentType)
		return
	}

	if err != nil {
		a.bus.PublishError(fmt.Errorf("clipboard apply failed (%s): %w", p.ContentType, err))
		return
	}
	a.bus.PublishClipboardReceived(p.ContentType)
}
