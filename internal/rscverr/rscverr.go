// Package rscverr holds the sentinel errors shared across transports so
// callers can classify failures with errors.Is instead of string matching.
package rscverr

import "errors"

var (
	// ErrAuthFailed is wrapped by the server transport's auth-failure error
	// when the relay rejects the auth handshake.
	ErrAuthFailed = errors.New("auth failed")

	// ErrFrameTooLarge is returned when an inbound length-prefixed frame
	// exceeds the 16 MiB cap, before the payload is read into memory.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// ErrHeartbeatTimeout is returned when a peer session sees no Pong
	// within the heartbeat deadline.
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")

	// ErrBadHandshake is returned when a peer's first frame is not the
	// expected Hello or Welcome.
	ErrBadHandshake = errors.New("unexpected handshake message")

	// ErrImageTooLarge describes an encoded PNG that exceeds the configured
	// max_image_kb. The monitor does not return it: it logs the oversized
	// image at Warn and drops it.
	ErrImageTooLarge = errors.New("image exceeds configured size limit")

	// ErrUnknownContentType describes a payload whose content_type is not
	// recognised. The applier does not return it: it logs such a payload at
	// Warn and discards it.
	ErrUnknownContentType = errors.New("unknown content type")
)
