// Package lanauth provides optional NaCl secretbox encryption for LAN peer
// mesh frames.
//
// A 32-byte symmetric key is derived from the configured pre-shared key
// using HKDF-SHA256. Every frame body is encrypted with a random 24-byte
// nonce prepended to the ciphertext:
//
//	[ 24-byte nonce ][ ciphertext ]
//
// If no PSK is configured, callers should not use this package — wireproto
// passes a nil key and frames are sent as plain JSON.
package lanauth

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

var hkdfInfo = []byte("rscv-lan-v1")

// Key is a derived 32-byte secretbox key.
type Key [keySize]byte

// DeriveKey derives a Key from the LAN pre-shared key using HKDF-SHA256.
// Every peer on the mesh must configure the same psk to interoperate.
func DeriveKey(psk string) (*Key, error) {
	h := hkdf.New(sha256.New, []byte(psk), nil, hkdfInfo)
	var key Key
	if _, err := io.ReadFull(h, key[:]); err != nil {
		return nil, fmt.Errorf("lan key derivation: %w", err)
	}
	return &key, nil
}

// Seal encrypts plaintext with key, prepending a random nonce.
func Seal(plaintext []byte, key *Key) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	k := [keySize]byte(*key)
	return secretbox.Seal(nonce[:], plaintext, &nonce, &k), nil
}

// Open decrypts ciphertext (nonce+ciphertext) with key.
func Open(ciphertext []byte, key *Key) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	k := [keySize]byte(*key)
	plain, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &k)
	if !ok {
		return nil, fmt.Errorf("lan frame decryption failed (wrong psk?)")
	}
	return plain, nil
}
