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

// Package cookie builds the opaque session cookie a meek client sends on
// every request of a session: a small connection descriptor, sealed with
// authenticated public-key encryption to the relay's known public key, and
// optionally hidden behind a keyword-seeded stream obfuscator.
package cookie

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"github.com/obfsmeek/meekclient/csrand"
	"github.com/obfsmeek/meekclient/obfuscator"
)

// protocolVersion is the only descriptor version this client emits.
const protocolVersion = 1

// Params carries the per-session values that go into a cookie. It is
// intentionally narrower than the client's full configuration: the cookie
// builder has no business seeing fronting hosts or HTTP timeouts.
type Params struct {
	// SessionID opaquely identifies this client session to the relay.
	SessionID string
	// TargetAddress is the host:port the relay should dial on success.
	TargetAddress string
	// RecipientPublicKey is the relay's NaCl box public key.
	RecipientPublicKey [32]byte
	// ObfuscationKeyword, if non-empty, wraps the encrypted descriptor in
	// a length-randomized stream obfuscator.
	ObfuscationKeyword string
}

// descriptor is the small structured record sealed inside the cookie. The
// canonical serialization the relay expects comes from canonicalJSON, which
// writes the fields in the fixed order v, s, p.
type descriptor struct {
	V int    `json:"v"`
	S string `json:"s"`
	P string `json:"p"`
}

// canonicalJSON serializes d by hand, in the fixed field order v, s, p, so
// serialization never depends on encoding/json's (unspecified) map or
// struct-field iteration order.
func (d descriptor) canonicalJSON() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, `{"v":`...)
	buf = appendInt(buf, d.V)
	buf = append(buf, `,"s":`...)
	buf = appendJSONString(buf, d.S)
	buf = append(buf, `,"p":`...)
	buf = appendJSONString(buf, d.P)
	buf = append(buf, '}')
	return buf
}

func appendInt(buf []byte, v int) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	neg := v < 0
	if neg {
		v = -v
	}
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		tmp[i] = '-'
	}
	return append(buf, tmp[i:]...)
}

func appendJSONString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf = append(buf, '\\', byte(r))
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			buf = append(buf, string(r)...)
		}
	}
	return append(buf, '"')
}

// Make builds the value of the Cookie request header for one session, per
// the wire format:
//
//	cookie = k "=" base64( seed || obf(ephemeralPub32 || box(descriptor)) )
//
// where obf() and seed are omitted entirely when no ObfuscationKeyword is
// configured. k is a uniformly random uppercase letter, chosen purely to
// vary an observable surface feature across sessions.
func Make(p Params) (string, error) {
	desc := descriptor{V: protocolVersion, S: p.SessionID, P: p.TargetAddress}
	plaintext := desc.canonicalJSON()

	ephPub, ephPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("cookie: failed to generate ephemeral key: %w", err)
	}

	// The nonce is fixed at all-zero. This is safe only because the sender
	// key pair above is freshly generated and used exactly once: nonce
	// uniqueness comes from key uniqueness, not from the nonce itself.
	var nonce [24]byte

	sealed := box.Seal(nil, plaintext, &nonce, &p.RecipientPublicKey, ephPriv)

	encryptedPayload := make([]byte, 0, len(ephPub)+len(sealed))
	encryptedPayload = append(encryptedPayload, ephPub[:]...)
	encryptedPayload = append(encryptedPayload, sealed...)

	var blob []byte
	if p.ObfuscationKeyword != "" {
		obf, err := obfuscator.New(p.ObfuscationKeyword)
		if err != nil {
			return "", fmt.Errorf("cookie: failed to build obfuscator: %w", err)
		}
		obf.Obfuscate(encryptedPayload)
		blob = make([]byte, 0, len(obf.SeedMessage())+len(encryptedPayload))
		blob = append(blob, obf.SeedMessage()...)
		blob = append(blob, encryptedPayload...)
	} else {
		blob = encryptedPayload
	}

	encoded := base64.StdEncoding.EncodeToString(blob)
	name := csrand.LetterAZ()

	return string(name) + "=" + encoded, nil
}
