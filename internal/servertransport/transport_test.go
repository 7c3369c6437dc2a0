package servertransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/rustsynccv/rustsynccv-go/internal/clip"
	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
	"github.com/rustsynccv/rustsynccv-go/internal/runtime"
)

type discardBackend struct{}

func (discardBackend) Name() string                        { return "discard" }
func (discardBackend) ReadText() (string, bool, error)      { return "", false, nil }
func (discardBackend) ReadImage() ([]byte, bool, error)     { return nil, false, nil }
func (discardBackend) WriteText(string) error               { return nil }
func (discardBackend) WriteImage([]byte) error               { return nil }
func (discardBackend) Watch() <-chan struct{}                { return nil }
func (discardBackend) Close()                                {}

func newTestDeps() (Deps, *runtime.Bus) {
	bus := runtime.NewBus()
	applier := runtime.NewApplier(discardBackend{}, bus, &atomic.Bool{})
	return Deps{Fanout: runtime.NewFanout(), Applier: applier, Bus: bus}, bus
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageText, b))
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, isAuthFailure(&authFailureError{message: "nope"}))
	assert.False(t, isAuthFailure(nil))
	assert.False(t, isAuthFailure(context.Canceled))
}

func TestAuthenticateSucceedsOnWrappedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer c.CloseNow()

		_, raw, err := c.Read(r.Context())
		require.NoError(t, err)
		var req rscvmsg.AuthRequest
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Equal(t, "good-token", req.Token)

		writeJSON(t, c, struct {
			Type    string            `json:"type"`
			Payload rscvmsg.AuthReply `json:"payload"`
		}{Type: "auth_reply", Payload: rscvmsg.AuthReply{Success: true, Message: "welcome"}})
	}))
	defer srv.Close()

	deps, _ := newTestDeps()
	tr := New(Config{ServerURL: wsURL(srv.URL), Token: "good-token"}, deps)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := tr.dial(ctx)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, tr.authenticate(ctx, conn))
}

func TestAuthenticateFailsOnRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer c.CloseNow()

		_, _, err = c.Read(r.Context())
		require.NoError(t, err)

		writeJSON(t, c, rscvmsg.AuthReply{Success: false, Message: "bad token"})
	}))
	defer srv.Close()

	deps, _ := newTestDeps()
	tr := New(Config{ServerURL: wsURL(srv.URL), Token: "wrong"}, deps)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := tr.dial(ctx)
	require.NoError(t, err)
	defer conn.CloseNow()

	err = tr.authenticate(ctx, conn)
	require.Error(t, err)
	assert.True(t, isAuthFailure(err))
}

func TestRunReconnectsAfterSessionEnds(t *testing.T) {
	var attempts int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		c, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer c.CloseNow()

		_, _, err = c.Read(r.Context())
		require.NoError(t, err)
		writeJSON(t, c, rscvmsg.AuthReply{Success: true, Message: "ok"})

		if n == 1 {
			// drop the connection immediately to force a reconnect.
			_ = c.Close(websocket.StatusNormalClosure, "bye")
			return
		}
		// keep the second connection alive until the test cancels ctx.
		_, _, _ = c.Read(r.Context())
	}))
	defer srv.Close()

	deps, bus := newTestDeps()
	tr := New(Config{ServerURL: wsURL(srv.URL), Token: "t"}, deps)
	tr.reconnectDelay = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go func() {
		for range bus.Events() {
		}
	}()

	go tr.Run(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func wsURL(httpURL string) string {
	return "ws" + httpURL[len("http"):]
}

var _ clip.Backend = discardBackend{}
