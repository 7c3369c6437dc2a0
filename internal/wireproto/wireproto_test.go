package wireproto

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustsynccv/rustsynccv-go/internal/lanauth"
	"github.com/rustsynccv/rustsynccv-go/internal/rscverr"
	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
)

func TestWriteReadFrameRoundTripPlain(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	writer := New(client, nil)
	reader := New(server, nil)

	msg := rscvmsg.PeerMessage{Type: rscvmsg.PeerClipboard, ContentType: rscvmsg.ContentText, Data: "hi"}
	go func() { _ = writer.WriteFrame(msg) }()

	got, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestWriteReadFrameRoundTripEncrypted(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	key, err := lanauth.DeriveKey("shared-psk")
	require.NoError(t, err)

	writer := New(client, key)
	reader := New(server, key)

	msg := rscvmsg.PeerMessage{Type: rscvmsg.PeerPing, TS: 123}
	go func() { _ = writer.WriteFrame(msg) }()

	got, err := reader.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestReadFrameRejectsOversizedLengthPrefix(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	reader := New(server, nil)

	go func() {
		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], MaxFrameSize+1)
		_, _ = client.Write(prefix[:])
	}()

	_, err := reader.ReadFrame()
	assert.ErrorIs(t, err, rscverr.ErrFrameTooLarge)
}

func TestReadFrameFailsOnMismatchedKeys(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	keyA, err := lanauth.DeriveKey("a")
	require.NoError(t, err)
	keyB, err := lanauth.DeriveKey("b")
	require.NoError(t, err)

	writer := New(client, keyA)
	reader := New(server, keyB)

	go func() { _ = writer.WriteFrame(rscvmsg.PeerMessage{Type: rscvmsg.PeerPing}) }()

	_, err = reader.ReadFrame()
	assert.Error(t, err)
}
