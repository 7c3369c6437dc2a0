// Package runtime implements the synchronization core: the clipboard
// monitor and applier, the fan-out broadcast, the event bus, and the
// supervisor that owns their lifecycle (§4.1–§4.3, §4.7 of SPEC_FULL.md).
package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
)

// EventKind tags the variant of a RuntimeEvent.
type EventKind string

const (
	EventStatus             EventKind = "status"
	EventConnection         EventKind = "connection"
	EventLog                EventKind = "log"
	EventClipboardSent      EventKind = "clipboard_sent"
	EventClipboardReceived  EventKind = "clipboard_received"
	EventError              EventKind = "error"
	EventLanPeersChanged    EventKind = "lan_peers_changed"
)

// ConnState enumerates the connection lifecycle states a transport reports.
type ConnState string

const (
	StateIdle         ConnState = "idle"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateDisconnected ConnState = "disconnected"
	StatePaused       ConnState = "paused"
)

// RuntimeEvent is a single item on the event bus. Only the fields relevant
// to Kind are populated.
type RuntimeEvent struct {
	Kind EventKind

	Status     string
	Connection ConnState

	LogLevel slog.Level
	LogMsg   string

	ContentType rscvmsg.ContentType

	Err string

	LanPeersJSON string
}

// busCapacity is the Event Bus's bounded queue depth (§4.7).
const busCapacity = 512

// connectionSendGrace is how long Publish waits to deliver a ConnectionState
// transition before logging a warning. ConnectionState transitions are never
// dropped the way log-level events may be: after the warning Publish keeps
// blocking until the event is delivered.
const connectionSendGrace = 2 * time.Second

// Bus is the bounded many-producer single-consumer event queue the
// supervisor and transports publish onto and exactly one UI/CLI task drains.
type Bus struct {
	ch chan RuntimeEvent
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{ch: make(chan RuntimeEvent, busCapacity)}
}

// Events returns the channel to range over for consuming events.
func (b *Bus) Events() <-chan RuntimeEvent { return b.ch }

// Publish delivers ev onto the bus. ConnectionState events are never
// silently dropped: Publish blocks up to connectionSendGrace and logs if the
// bus stays full beyond that. All other events are drop-on-full.
func (b *Bus) Publish(ev RuntimeEvent) {
	if ev.Kind == EventConnection {
		select {
		case b.ch <- ev:
		case <-time.After(connectionSendGrace):
			slog.Warn("event bus full, connection event delayed", "state", ev.Connection)
			b.ch <- ev
		}
		return
	}
	select {
	case b.ch <- ev:
	default:
		slog.Debug("event bus full, dropping event", "kind", ev.Kind)
	}
}

// PublishStatus is a convenience wrapper for EventStatus.
func (b *Bus) PublishStatus(s string) {
	b.Publish(RuntimeEvent{Kind: EventStatus, Status: s})
}

// PublishConnection is a convenience wrapper for EventConnection.
func (b *Bus) PublishConnection(s ConnState) {
	b.Publish(RuntimeEvent{Kind: EventConnection, Connection: s})
}

// PublishLog is a convenience wrapper for EventLog; it also forwards to slog
// so a single log stream carries both core and glue code messages.
func (b *Bus) PublishLog(level slog.Level, msg string, args ...any) {
	slog.Log(context.Background(), level, msg, args...)
	b.Publish(RuntimeEvent{Kind: EventLog, LogLevel: level, LogMsg: msg})
}

// PublishError is a convenience wrapper for EventError.
func (b *Bus) PublishError(err error) {
	b.Publish(RuntimeEvent{Kind: EventError, Err: err.Error()})
}

// PublishClipboardSent is a convenience wrapper for EventClipboardSent.
func (b *Bus) PublishClipboardSent(ct rscvmsg.ContentType) {
	b.Publish(RuntimeEvent{Kind: EventClipboardSent, ContentType: ct})
}

// PublishClipboardReceived is a convenience wrapper for EventClipboardReceived.
func (b *Bus) PublishClipboardReceived(ct rscvmsg.ContentType) {
	b.Publish(RuntimeEvent{Kind: EventClipboardReceived, ContentType: ct})
}

// PublishLanPeersChanged is a convenience wrapper for EventLanPeersChanged.
func (b *Bus) PublishLanPeersChanged(snapshotJSON string) {
	b.Publish(RuntimeEvent{Kind: EventLanPeersChanged, LanPeersJSON: snapshotJSON})
}
