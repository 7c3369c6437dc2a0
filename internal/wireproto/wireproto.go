// Package wireproto frames LAN mesh messages on a net.Conn.
//
// Every frame is a 4-byte big-endian length prefix followed by that many
// bytes of UTF-8 JSON (see SPEC_FULL.md §4.6/§6):
//
//	u32_be(len) ‖ json(PeerMessage)
//
// When a pre-shared key is configured the JSON body is replaced by a NaCl
// secretbox ciphertext of that body; the length prefix always describes the
// bytes that actually follow it, so framing is identical either way.
package wireproto

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rustsynccv/rustsynccv-go/internal/lanauth"
	"github.com/rustsynccv/rustsynccv-go/internal/rscverr"
	"github.com/rustsynccv/rustsynccv-go/internal/rscvmsg"
)

// MaxFrameSize is the largest frame this module will read (16 MiB).
const MaxFrameSize = 16 * 1024 * 1024

const writeDeadline = 5 * time.Second

// Conn wraps a net.Conn with length-prefixed framing and optional
// PSK-derived encryption of the frame body.
type Conn struct {
	conn net.Conn
	key  *lanauth.Key // nil = no encryption
}

// New wraps conn. If key is non-nil every frame body is sealed with
// NaCl secretbox before being written and opened after being read.
func New(conn net.Conn, key *lanauth.Key) *Conn {
	return &Conn{conn: conn, key: key}
}

// Underlying returns the wrapped net.Conn.
func (c *Conn) Underlying() net.Conn { return c.conn }

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.conn.Close() }

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// SetReadDeadline sets or clears the read deadline.
func (c *Conn) SetReadDeadline(d time.Duration) {
	if d == 0 {
		_ = c.conn.SetReadDeadline(time.Time{})
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(d))
	}
}

// WriteFrame serialises msg to JSON, optionally encrypts it, and writes the
// length-prefixed frame.
func (c *Conn) WriteFrame(msg rscvmsg.PeerMessage) error {
	body, err := msg.Encode()
	if err != nil {
		return err
	}
	if c.key != nil {
		body, err = lanauth.Seal(body, c.key)
		if err != nil {
			return fmt.Errorf("seal frame: %w", err)
		}
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	defer c.conn.SetWriteDeadline(time.Time{})

	if _, err := c.conn.Write(prefix[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := c.conn.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame, optionally decrypts it, and
// deserialises it into a PeerMessage. The length prefix is validated against
// MaxFrameSize before any payload buffer is allocated.
func (c *Conn) ReadFrame() (rscvmsg.PeerMessage, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(c.conn, prefix[:]); err != nil {
		return rscvmsg.PeerMessage{}, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxFrameSize {
		return rscvmsg.PeerMessage{}, rscverr.ErrFrameTooLarge
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return rscvmsg.PeerMessage{}, fmt.Errorf("read frame body: %w", err)
	}

	if c.key != nil {
		var err error
		body, err = lanauth.Open(body, c.key)
		if err != nil {
			return rscvmsg.PeerMessage{}, fmt.Errorf("open frame: %w", err)
		}
	}

	return rscvmsg.DecodePeerMessage(body)
}
