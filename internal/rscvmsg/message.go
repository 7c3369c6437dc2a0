// Package rscvmsg defines the wire message shapes shared by both transports:
// the server-relay JSON-over-WebSocket protocol and the LAN TCP peer protocol.
//
// Both protocols carry clipboard content as either a UTF-8 string (text/plain)
// or base64-encoded PNG bytes (image/png); the two transports differ only in
// framing and in which fields are present (the LAN protocol never carries a
// sender device id).
package rscvmsg

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ContentType identifies the kind of clipboard payload carried on the wire.
type ContentType string

const (
	ContentText  ContentType = "text/plain"
	ContentImage ContentType = "image/png"
)

// ClipboardUpdate is what the monitor publishes and the server transport sends.
// It round-trips through the wrapped relay envelope below.
type ClipboardUpdate struct {
	ContentType    ContentType `json:"content_type"`
	Data           string      `json:"data"` // utf8 text or base64 png
	SenderDeviceID string      `json:"sender_device_id"`
}

// ClipboardPayload is what the applier consumes: content without provenance.
type ClipboardPayload struct {
	ContentType ContentType
	Data        string
}

// NewTextPayload builds a ClipboardPayload from a plain string.
func NewTextPayload(text string) ClipboardPayload {
	return ClipboardPayload{ContentType: ContentText, Data: text}
}

// NewImagePayload builds a ClipboardPayload from raw PNG bytes, base64-encoding them.
func NewImagePayload(png []byte) ClipboardPayload {
	return ClipboardPayload{
		ContentType: ContentImage,
		Data:        base64.StdEncoding.EncodeToString(png),
	}
}

// DecodeImage returns the raw PNG bytes of an image payload.
func (p ClipboardPayload) DecodeImage() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Data)
}

// relayEnvelope is the outbound server-mode frame: {"type":"clipboard_update","payload":{...}}.
type relayEnvelope struct {
	Type    string          `json:"type"`
	Payload ClipboardUpdate `json:"payload"`
}

// EncodeRelayUpdate serialises a ClipboardUpdate in the wrapped relay shape.
func EncodeRelayUpdate(u ClipboardUpdate) ([]byte, error) {
	env := relayEnvelope{Type: "clipboard_update", Payload: u}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode relay update: %w", err)
	}
	return b, nil
}

// relayWrapped and relayFlat mirror the two broadcast shapes the spec requires
// the client to accept: {"type":...,"payload":{...}} and a bare payload.
type relayWrapped struct {
	Type    string `json:"type"`
	Payload struct {
		ContentType ContentType `json:"content_type"`
		Data        string      `json:"data"`
	} `json:"payload"`
}

type relayFlat struct {
	ContentType ContentType `json:"content_type"`
	Data        string      `json:"data"`
}

// DecodeRelayBroadcast parses an inbound relay frame, trying the wrapped shape
// first and falling back to the flat shape. Returns ok=false if neither
// shape's required fields are present.
func DecodeRelayBroadcast(raw []byte) (payload ClipboardPayload, ok bool) {
	var wrapped relayWrapped
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Payload.ContentType != "" {
		return ClipboardPayload{
			ContentType: wrapped.Payload.ContentType,
			Data:        wrapped.Payload.Data,
		}, true
	}
	var flat relayFlat
	if err := json.Unmarshal(raw, &flat); err == nil && flat.ContentType != "" {
		return ClipboardPayload{ContentType: flat.ContentType, Data: flat.Data}, true
	}
	return ClipboardPayload{}, false
}

// AuthRequest is the outbound auth frame: either a token or a username/password pair.
type AuthRequest struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// AuthReply is the inbound auth response, accepted in wrapped or flat shape.
type AuthReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// DecodeAuthReply parses either {"type":...,"payload":{success,message,token}}
// or the flat {"success":...,"message":...} shape.
func DecodeAuthReply(raw []byte) (AuthReply, error) {
	var wrapped struct {
		Type    string     `json:"type"`
		Payload *AuthReply `json:"payload"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Payload != nil {
		return *wrapped.Payload, nil
	}
	var flat AuthReply
	if err := json.Unmarshal(raw, &flat); err != nil {
		return AuthReply{}, fmt.Errorf("decode auth reply: %w", err)
	}
	return flat, nil
}

// PeerMsgType tags the LAN mesh protocol's message union.
type PeerMsgType string

const (
	PeerHello     PeerMsgType = "Hello"
	PeerWelcome   PeerMsgType = "Welcome"
	PeerPing      PeerMsgType = "Ping"
	PeerPong      PeerMsgType = "Pong"
	PeerClipboard PeerMsgType = "Clipboard"
)

// PeerMessage is the tagged union carried over the LAN TCP mesh (see §4.6/§6).
// Only the fields relevant to Type are populated; json tags omit empties so
// frames stay minimal on the wire.
type PeerMessage struct {
	Type PeerMsgType `json:"type"`

	// Hello / Welcome
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`

	// Ping / Pong
	TS int64 `json:"ts,omitempty"`

	// Clipboard
	ContentType ContentType `json:"content_type,omitempty"`
	Data        string      `json:"data,omitempty"`
}

// Encode serialises a PeerMessage to JSON (no trailing newline — framing is
// the caller's concern, see internal/wireproto).
func (m PeerMessage) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode peer message: %w", err)
	}
	return b, nil
}

// DecodePeerMessage parses a single PeerMessage frame body.
func DecodePeerMessage(raw []byte) (PeerMessage, error) {
	var m PeerMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return PeerMessage{}, fmt.Errorf("decode peer message: %w", err)
	}
	return m, nil
}

// DiscoveryBeacon is the UDP discovery payload following the 8-byte magic
// prefix (see internal/landiscover).
type DiscoveryBeacon struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	TCPPort    int    `json:"tcp_port"`
	Seq        uint32 `json:"seq"`
}
