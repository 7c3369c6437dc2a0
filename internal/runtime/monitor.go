package runtime

import (
	"bytes"
	"context"
	"encoding/base64"
	"hash/fnv"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rustsynccv/rustsynccv-go/internal/clip"
	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultRateLimit    = 400 * time.Millisecond
)

// Monitor observes the local clipboard and publishes ClipboardUpdate onto a
// Fanout whenever the content changes (§4.2). pollInterval and rateLimit are
// fields rather than constants so tests can shrink them without
// sleeping on production timing.
type Monitor struct {
	backend       clip.Backend
	bus           *Bus
	fanout        *Fanout
	suppressed    *atomic.Bool
	deviceID      string
	maxImageBytes int

	pollInterval time.Duration
	rateLimit    time.Duration

	lastText      string
	lastImageHash uint64
	lastEmit      time.Time
}

// NewMonitor returns a Monitor with production timing defaults.
func NewMonitor(backend clip.Backend, bus *Bus, fanout *Fanout, suppressed *atomic.Bool, deviceID string, maxImageKB int) *Monitor {
	return &Monitor{
		backend:       backend,
		bus:           bus,
		fanout:        fanout,
		suppressed:    suppressed,
		deviceID:      deviceID,
		maxImageBytes: maxImageKB * 1024,
		pollInterval:  defaultPollInterval,
		rateLimit:     defaultRateLimit,
	}
}

// Run polls until ctx is cancelled. Call in a goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Each read runs in its own goroutine so a hung OS clipboard call
			// cannot hold up cancellation.
			done := make(chan struct{})
			go func() { defer close(done); m.poll() }()
			select {
			case <-done:
			case <-ctx.Done():
				return
			}
		}
	}
}

// poll runs one read-and-maybe-emit cycle.
func (m *Monitor) poll() {
	if m.suppressed.Load() {
		return
	}

	text, ok, err := m.backend.ReadText()
	if err == nil && ok && text != "" && text != m.lastText {
		if m.emit(rscvmsg.ContentText, text) {
			m.lastText = text
		}
		return
	}

	raw, ok, err := m.backend.ReadImage()
	if err != nil || !ok {
		return
	}
	pngBytes, changed, hash, withinLimit := m.normalizeImage(raw)
	if !changed {
		return
	}
	if !withinLimit {
		m.bus.PublishLog(slog.LevelWarn, "skip oversized image",
			"encoded_bytes", len(pngBytes), "limit_bytes", m.maxImageBytes)
		return
	}
	encoded := base64.StdEncoding.EncodeToString(pngBytes)
	if m.emit(rscvmsg.ContentImage, encoded) {
		m.lastImageHash = hash
	}
}

// normalizeImage decodes raw image bytes, re-encodes them as canonical PNG,
// and reports whether the content hash differs from the last broadcast one
// and whether the re-encoded size is within the configured limit.
func (m *Monitor) normalizeImage(raw []byte) (pngBytes []byte, changed bool, hash uint64, withinLimit bool) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, false, 0, false
	}
	rgba := toRGBA(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, false, 0, false
	}
	pngBytes = buf.Bytes()

	h := fnv.New64a()
	_, _ = h.Write(pngBytes)
	hash = h.Sum64()

	if hash == m.lastImageHash {
		return pngBytes, false, hash, true
	}
	return pngBytes, true, hash, len(pngBytes) <= m.maxImageBytes
}

// toRGBA converts an arbitrary decoded image to *image.RGBA, the canonical
// in-memory form applied to the clipboard on the receiving side.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}

// emit applies the 400ms global rate limit and, if it passes, publishes the
// update on both the fan-out channel and the event bus.
func (m *Monitor) emit(ct rscvmsg.ContentType, data string) bool {
	now := time.Now()
	if !m.lastEmit.IsZero() && now.Sub(m.lastEmit) < m.rateLimit {
		return false
	}
	m.lastEmit = now

	m.fanout.Publish(rscvmsg.ClipboardUpdate{
		ContentType:    ct,
		Data:           data,
		SenderDeviceID: m.deviceID,
	})
	m.bus.PublishClipboardSent(ct)
	return true
}
