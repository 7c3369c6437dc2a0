package runtime

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
)

func newTestMonitor(backend *fakeBackend, maxImageKB int) (*Monitor, *Fanout) {
	fanout := NewFanout()
	bus := NewBus()
	go func() {
		for range bus.Events() {
		}
	}()
	m := NewMonitor(backend, bus, fanout, &atomic.Bool{}, "device-a", maxImageKB)
	m.rateLimit = time.Millisecond
	return m, fanout
}

func encodePNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMonitorEmitsOnTextChange(t *testing.T) {
	backend := newFakeBackend()
	m, fanout := newTestMonitor(backend, 512)
	_, ch := fanout.Subscribe()

	backend.setText("hello")
	m.poll()

	select {
	case u := <-ch:
		assert.Equal(t, rscvmsg.ContentText, u.ContentType)
		assert.Equal(t, "hello", u.Data)
		assert.Equal(t, "device-a", u.SenderDeviceID)
	case <-time.After(time.Second):
		t.Fatal("no update emitted for new text")
	}
}

func TestMonitorSkipsUnchangedText(t *testing.T) {
	backend := newFakeBackend()
	m, fanout := newTestMonitor(backend, 512)
	_, ch := fanout.Subscribe()

	backend.setText("same")
	m.poll()
	<-ch

	time.Sleep(2 * time.Millisecond) // clear the rate limit window
	m.poll()

	select {
	case <-ch:
		t.Fatal("unchanged text should not re-emit")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorRateLimitSuppressesBurst(t *testing.T) {
	backend := newFakeBackend()
	m, fanout := newTestMonitor(backend, 512)
	m.rateLimit = time.Hour // never clears within this test
	_, ch := fanout.Subscribe()

	backend.setText("first")
	m.poll()
	<-ch

	backend.setText("second")
	m.poll()

	select {
	case <-ch:
		t.Fatal("second emit should have been suppressed by the rate limit")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorSuppressedSkipsPoll(t *testing.T) {
	fanout := NewFanout()
	bus := NewBus()
	go func() {
		for range bus.Events() {
		}
	}()
	suppressed := &atomic.Bool{}
	suppressed.Store(true)
	backend := newFakeBackend()
	backend.setText("should not be read")
	m := NewMonitor(backend, bus, fanout, suppressed, "device-a", 512)
	_, ch := fanout.Subscribe()

	m.poll()

	select {
	case <-ch:
		t.Fatal("poll should be a no-op while suppressed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorRejectsOversizedImage(t *testing.T) {
	backend := newFakeBackend()
	raw := encodePNG(t, color.RGBA{R: 255, A: 255})
	backend.mu.Lock()
	backend.image, backend.imageOK = raw, true
	backend.mu.Unlock()

	m, fanout := newTestMonitor(backend, 512)
	m.maxImageBytes = 1 // force rejection regardless of actual encoded size
	_, ch := fanout.Subscribe()

	m.poll()

	select {
	case <-ch:
		t.Fatal("oversized image should not be emitted")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorEmitsImageWithinLimit(t *testing.T) {
	backend := newFakeBackend()
	raw := encodePNG(t, color.RGBA{G: 255, A: 255})
	backend.mu.Lock()
	backend.image, backend.imageOK = raw, true
	backend.mu.Unlock()

	m, fanout := newTestMonitor(backend, 512)
	_, ch := fanout.Subscribe()

	m.poll()

	select {
	case u := <-ch:
		assert.Equal(t, rscvmsg.ContentImage, u.ContentType)
		decoded, err := rscvmsg.ClipboardPayload{ContentType: u.ContentType, Data: u.Data}.DecodeImage()
		require.NoError(t, err)
		assert.NotEmpty(t, decoded)
	case <-time.After(time.Second):
		t.Fatal("no update emitted for new image")
	}
}
