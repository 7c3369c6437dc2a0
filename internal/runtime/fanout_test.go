package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
)

func TestFanoutDeliversToAllSubscribers(t *testing.T) {
	f := NewFanout()
	_, ch1 := f.Subscribe()
	_, ch2 := f.Subscribe()
	require.Equal(t, 2, f.Len())

	f.Publish(rscvmsg.ClipboardUpdate{ContentType: rscvmsg.ContentText, Data: "hello"})

	for _, ch := range []<-chan rscvmsg.ClipboardUpdate{ch1, ch2} {
		select {
		case u := <-ch:
			assert.Equal(t, "hello", u.Data)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fanout delivery")
		}
	}
}

func TestFanoutUnsubscribeStopsDelivery(t *testing.T) {
	f := NewFanout()
	id, ch := f.Subscribe()
	f.Unsubscribe(id)
	require.Equal(t, 0, f.Len())

	f.Publish(rscvmsg.ClipboardUpdate{ContentType: rscvmsg.ContentText, Data: "after unsubscribe"})

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should not receive after unsubscribe, nor be closed")
	case <-time.After(50 * time.Millisecond):
		// expected: nothing delivered
	}
}

func TestFanoutLaggedSubscriberDoesNotBlockPublish(t *testing.T) {
	f := NewFanout()
	_, ch := f.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < fanoutBuffer+10; i++ {
			f.Publish(rscvmsg.ClipboardUpdate{ContentType: rscvmsg.ContentText, Data: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}

	assert.Equal(t, fanoutBuffer, len(ch))
}
