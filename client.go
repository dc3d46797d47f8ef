/*
 * Copyright (c) 2019 Yawning Angel <yawning at schwanenlied dot me>
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package meek implements the client side of the meek pluggable transport:
// it tunnels one TCP byte stream per accepted local connection through a
// sequence of short HTTP(S) POST exchanges to a relay, optionally behind a
// domain-fronting CDN.
package meek

import (
	"encoding/base64"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/obfsmeek/meekclient/transport"
)

// Mode selects whether a Client reaches its relay through a fronting CDN or
// directly.
type Mode int

const (
	// Fronted routes through a CDN: the TLS SNI and outer URL host name a
	// permitted front, while the HTTP Host header selects the true relay.
	Fronted Mode = iota
	// Unfronted talks to the relay directly over plain HTTP.
	Unfronted
)

func (m Mode) String() string {
	switch m {
	case Fronted:
		return "fronted"
	case Unfronted:
		return "unfronted"
	default:
		return "unknown"
	}
}

// Meek protocol constants, shared by the whole session loop. These mirror
// the reference meek-client's constants.
const (
	// MaxPayloadLength bounds both an upload chunk and a response body.
	MaxPayloadLength = 0x10000

	// MinPollInterval is the fastest the Session Loop ever polls.
	MinPollInterval = 1 * time.Millisecond
	// IdlePollInterval is the poll interval used the first time a
	// session goes idle, before geometric backoff takes over.
	IdlePollInterval = 100 * time.Millisecond
	// MaxPollInterval caps the geometric backoff.
	MaxPollInterval = 5000 * time.Millisecond
	// PollIntervalMultiplier is the geometric backoff factor applied on
	// successive idle iterations.
	PollIntervalMultiplier = 1.5

	// MeekServerTimeout bounds every HTTP request, enforced both by the
	// HTTP client's own timeout and by a separate per-request abort
	// timer, per the at-most-one-in-flight contract.
	MeekServerTimeout = 20 * time.Second

	// sessionExpiryFactor is how many multiples of MeekServerTimeout may
	// elapse since the last successful request before a session is
	// presumed dead by the relay and torn down locally.
	sessionExpiryFactor = 2

	// sleepSkewGraceInterval is added to the current poll interval to
	// decide whether an unusually long local read indicates the device
	// slept through the read rather than a slow but live client.
	sleepSkewGraceInterval = 1000 * time.Millisecond
)

// Config is the full, immutable configuration of a Client. All fields are
// construction parameters: there is no environment variable, file, or CLI
// configuration surface in this package.
type Config struct {
	Mode Mode

	// SessionID opaquely identifies this client's session to the relay.
	SessionID string
	// TargetAddress is the host:port the relay should dial on success.
	TargetAddress string
	// RecipientPublicKeyBase64 is the relay's 32-byte NaCl box public
	// key, base64-encoded.
	RecipientPublicKeyBase64 string
	// ObfuscationKeyword, if non-empty, wraps the cookie's encrypted
	// payload in a length-randomized stream obfuscator.
	ObfuscationKeyword string

	// FrontingDomain and FrontingHost are used only when Mode == Fronted.
	FrontingDomain string
	FrontingHost   string

	// RelayHost and RelayPort are used only when Mode == Unfronted.
	RelayHost string
	RelayPort int

	// Protect is invoked on every outbound socket before connect.
	Protect ProtectFunc
	// Resolve resolves hostnames outside of the tunnel. May be nil.
	Resolve ResolveFunc

	// Logger absorbs all diagnostic output. Defaults to DiscardLogger
	// when nil.
	Logger Logger
}

// Client is a single meek tunneling engine: a local loopback acceptor that
// spawns one Session Loop per accepted connection. A Client is either
// stopped (no listener, no live clients, LocalPort() == -1) or running.
type Client struct {
	cfg        Config
	recipient  [32]byte
	transportC transport.Config

	mu           sync.Mutex
	listener     net.Listener
	localPort    int
	acceptorDone chan struct{}
	clients      *connSet
	// closing is read by the acceptor goroutine to distinguish a listener
	// closed by Stop from a genuine accept error. It must not require
	// c.mu: stopLocked holds c.mu while joining the acceptor, so the
	// acceptor has to be able to observe this without contending for the
	// same lock its exit is blocking on.
	closing atomic.Bool
}

// New validates cfg and returns a stopped Client ready to be Start()ed.
func New(cfg Config) (*Client, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(cfg.RecipientPublicKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("meek: invalid recipient public key: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("meek: recipient public key must be 32 bytes, got %d", len(keyBytes))
	}
	var recipient [32]byte
	copy(recipient[:], keyBytes)

	if cfg.Logger == nil {
		cfg.Logger = DiscardLogger
	}

	tc := transport.Config{
		Fronted:        cfg.Mode == Fronted,
		FrontingDomain: cfg.FrontingDomain,
		FrontingHost:   cfg.FrontingHost,
		RelayHost:      cfg.RelayHost,
		RelayPort:      cfg.RelayPort,
		Timeout:        MeekServerTimeout,
	}

	return &Client{
		cfg:        cfg,
		recipient:  recipient,
		transportC: tc,
		localPort:  -1,
	}, nil
}
