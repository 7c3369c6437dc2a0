package rscvmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImagePayloadRoundTrip(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}
	payload := NewImagePayload(raw)
	assert.Equal(t, ContentImage, payload.ContentType)

	decoded, err := payload.DecodeImage()
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestEncodeRelayUpdateWrapsTypeAndPayload(t *testing.T) {
	u := ClipboardUpdate{ContentType: ContentText, Data: "hi", SenderDeviceID: "dev-1"}
	raw, err := EncodeRelayUpdate(u)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"clipboard_update"`)
	assert.Contains(t, string(raw), `"sender_device_id":"dev-1"`)
}

func TestDecodeRelayBroadcastAcceptsWrappedShape(t *testing.T) {
	raw := []byte(`{"type":"clipboard_update","payload":{"content_type":"text/plain","data":"wrapped"}}`)
	payload, ok := DecodeRelayBroadcast(raw)
	require.True(t, ok)
	assert.Equal(t, ContentText, payload.ContentType)
	assert.Equal(t, "wrapped", payload.Data)
}

func TestDecodeRelayBroadcastAcceptsFlatShape(t *testing.T) {
	raw := []byte(`{"content_type":"image/png","data":"flat"}`)
	payload, ok := DecodeRelayBroadcast(raw)
	require.True(t, ok)
	assert.Equal(t, ContentImage, payload.ContentType)
	assert.Equal(t, "flat", payload.Data)
}

func TestDecodeRelayBroadcastRejectsNeitherShape(t *testing.T) {
	_, ok := DecodeRelayBroadcast([]byte(`{"unrelated":"field"}`))
	assert.False(t, ok)
}

func TestDecodeAuthReplyAcceptsWrappedShape(t *testing.T) {
	raw := []byte(`{"type":"auth_reply","payload":{"success":true,"message":"welcome"}}`)
	reply, err := DecodeAuthReply(raw)
	require.NoError(t, err)
	assert.True(t, reply.Success)
	assert.Equal(t, "welcome", reply.Message)
}

func TestDecodeAuthReplyAcceptsFlatShape(t *testing.T) {
	raw := []byte(`{"success":false,"message":"bad token"}`)
	reply, err := DecodeAuthReply(raw)
	require.NoError(t, err)
	assert.False(t, reply.Success)
	assert.Equal(t, "bad token", reply.Message)
}

func TestPeerMessageEncodeDecodeRoundTrip(t *testing.T) {
	msg := PeerMessage{Type: PeerHello, DeviceID: "d1", DeviceName: "laptop"}
	raw, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := DecodePeerMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}
