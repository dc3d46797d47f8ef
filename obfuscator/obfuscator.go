/*
 * Copyright (c) 2014, Yawning Angel <yawning at torproject dot org>
 * All rights reserved.
 *
 * Redistribution and use in source and binary forms, with or without
 * modification, are permitted provided that the following conditions are met:
 *
 *  * Redistributions of source code must retain the above copyright notice,
 *    this list of conditions and the following disclaimer.
 *
 *  * Redistributions in binary form must reproduce the above copyright notice,
 *    this list of conditions and the following disclaimer in the documentation
 *    and/or other materials provided with the distribution.
 *
 * THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
 * AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
 * IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
 * ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
 * LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
 * CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
 * SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
 * INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
 * CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
 * ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
 * POSSIBILITY OF SUCH DAMAGE.
 */

// Package obfuscator implements the keyword-seeded, length-randomized stream
// obfuscator used to hide the meek cookie's encrypted payload from a casual
// observer. It is a self-delimiting construction: the seed message it emits
// is a variable-length prefix that a relay holding the same keyword can read
// to re-derive the same keystream, without any out-of-band length field.
package obfuscator

import (
	"crypto/rc4"
	"crypto/sha256"
	"fmt"

	"github.com/obfsmeek/meekclient/csrand"
)

const (
	// SeedLength is the size, in bytes, of the random seed that anchors the
	// derived keystream.
	SeedLength = 16

	// lengthFieldLength is the size, in bytes, of the obfuscated padding
	// length field that immediately follows the seed.
	lengthFieldLength = 2

	// maxPaddingLength is the largest seed message (seed || length field ||
	// padding) New may emit, 32 bytes; the random padding run itself is at
	// most maxPaddingLength - SeedLength - lengthFieldLength = 14 bytes.
	maxPaddingLength = SeedLength + lengthFieldLength + 14
	minPaddingLength = 0
)

// Obfuscator derives a keystream from a keyword and a random seed, and
// applies it to outbound bytes. One Obfuscator is good for exactly one
// cookie; it is not safe to reuse across sessions since the seed is only
// transmitted once.
type Obfuscator struct {
	seedMessage []byte
	stream      *rc4.Cipher
}

// New creates a client-side Obfuscator seeded from keyword. It consumes
// some of the derived keystream immediately to obfuscate its own padding
// length field and padding bytes, so the returned Obfuscator is ready to
// have Obfuscate called on the encrypted payload that follows.
func New(keyword string) (*Obfuscator, error) {
	seed := make([]byte, SeedLength)
	if err := csrand.Bytes(seed); err != nil {
		return nil, fmt.Errorf("obfuscator: failed to generate seed: %w", err)
	}

	key := sha256.Sum256(append(append([]byte{}, seed...), []byte(keyword)...))
	stream, err := rc4.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("obfuscator: failed to init keystream: %w", err)
	}

	padLen := csrand.IntRange(minPaddingLength, maxPaddingLength-SeedLength-lengthFieldLength)

	lengthField := []byte{byte(padLen >> 8), byte(padLen)}
	stream.XORKeyStream(lengthField, lengthField)

	padding := make([]byte, padLen)
	if padLen > 0 {
		if err := csrand.Bytes(padding); err != nil {
			return nil, fmt.Errorf("obfuscator: failed to generate padding: %w", err)
		}
	}
	stream.XORKeyStream(padding, padding)

	seedMessage := make([]byte, 0, SeedLength+lengthFieldLength+padLen)
	seedMessage = append(seedMessage, seed...)
	seedMessage = append(seedMessage, lengthField...)
	seedMessage = append(seedMessage, padding...)

	return &Obfuscator{seedMessage: seedMessage, stream: stream}, nil
}

// SeedMessage returns the prefix a relay needs to re-derive this
// Obfuscator's keystream. It must be transmitted ahead of the obfuscated
// payload.
func (o *Obfuscator) SeedMessage() []byte {
	return o.seedMessage
}

// Obfuscate applies the obfuscator's keystream to buf in place, continuing
// from wherever the stream was left after consuming the padding. It must be
// called at most once per Obfuscator, on the full payload to hide.
func (o *Obfuscator) Obfuscate(buf []byte) {
	o.stream.XORKeyStream(buf, buf)
}
