package runtime

import (
	"log/slog"
	"sync"

	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
)

// fanoutBuffer is the per-subscriber ring depth described in §3/§5: "a
// bounded ring (capacity 100; lag is reported, never blocks producers)".
const fanoutBuffer = 100

// Fanout is the many-producer-many-subscriber broadcast of ClipboardUpdate
// from the monitor to every active transport sender. A native Go channel
// has exactly one logical consumer per value, so subscribers each get their
// own buffered channel and Publish writes to all of them non-blockingly.
type Fanout struct {
	mu     sync.RWMutex
	subs   map[int]chan rscvmsg.ClipboardUpdate
	nextID int
}

// NewFanout returns an empty Fanout.
func NewFanout() *Fanout {
	return &Fanout{subs: make(map[int]chan rscvmsg.ClipboardUpdate)}
}

// Subscribe registers a new subscriber and returns its id (for Unsubscribe)
// and the channel to receive ClipboardUpdates on.
func (f *Fanout) Subscribe() (id int, ch <-chan rscvmsg.ClipboardUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id = f.nextID
	f.nextID++
	c := make(chan rscvmsg.ClipboardUpdate, fanoutBuffer)
	f.subs[id] = c
	return id, c
}

// Unsubscribe removes a subscriber. Safe to call more than once.
func (f *Fanout) Unsubscribe(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}

// Publish delivers u to every current subscriber. A subscriber whose buffer
// is full is skipped and logged at Warn ("lagged"); Publish never blocks.
func (f *Fanout) Publish(u rscvmsg.ClipboardUpdate) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for id, c := range f.subs {
		select {
		case c <- u:
		default:
			slog.Warn("fanout subscriber lagged, dropping update", "subscriber", id)
		}
	}
}

// Len reports the current subscriber count, mostly useful for tests.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
