// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package crypto implements the AEAD primitives that every byte
// persisted by efs passes through. The construction is fixed rather
// than pluggable (unlike the teacher's KeyRegistry abstraction, which
// supported multiple ciphers): a 256-bit ChaCha20-Poly1305 key, a
// random 96-bit nonce per encryption, and a 128-bit authentication
// tag, giving an on-wire envelope of exactly nonce || ciphertext ||
// tag with no additional header. A single fixed construction keeps
// the envelope bit-exact for interop between implementations.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/efscore/efs/errors"
)

// KeySize is the length in bytes of an efs master key.
const KeySize = chacha20poly1305.KeySize // 32

// NonceSize is the length in bytes of the random nonce prefixed to
// every ciphertext.
const NonceSize = chacha20poly1305.NonceSize // 12

// TagSize is the length in bytes of the Poly1305 authentication tag
// suffixed to every ciphertext.
const TagSize = chacha20poly1305.Overhead // 16

// GenerateKey returns a fresh, cryptographically random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.E(errors.Other, "crypto.GenerateKey", err)
	}
	return key, nil
}

// Encrypt seals plain under key, returning nonce‖ciphertext‖tag. A
// fresh random nonce is drawn for every call, so encrypting the same
// plaintext twice under the same key yields different ciphertexts.
func Encrypt(key, plain []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.E(errors.Other, "crypto.Encrypt: nonce", err)
	}
	// Seal appends to the first argument, so the returned slice already
	// has the form nonce || ciphertext || tag.
	return aead.Seal(nonce, nonce, plain, nil), nil
}

// Decrypt opens cipher, which must have the form nonce‖ciphertext‖tag,
// under key. It returns (plain, true) on success. On authentication
// failure — a key mismatch, truncation, or tampering — it returns
// (nil, false) rather than an error: the caller decides whether that
// absence is itself an error (kvstore surfaces it as Corruption).
func Decrypt(key, cipher []byte) ([]byte, bool) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, false
	}
	if len(cipher) < NonceSize {
		return nil, false
	}
	nonce, ciphertext := cipher[:NonceSize], cipher[NonceSize:]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, false
	}
	return plain, true
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, errors.E(errors.InvalidArgument, "crypto: key must be 32 bytes")
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.E(errors.InvalidArgument, "crypto: bad key", err)
	}
	return aead, nil
}
