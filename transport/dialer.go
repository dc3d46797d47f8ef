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

package transport

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"
)

// ProtectFunc is invoked on every outbound socket's file descriptor before
// connect, so the host can exclude the connection from a VPN/tun route that
// would otherwise route it back through this very tunnel.
type ProtectFunc func(fd uintptr) error

// ResolveFunc resolves a hostname to a set of addresses outside of the
// tunnel. It is optional: when nil, the dialer falls back to the Go
// resolver, still routed through ProtectFunc.
type ResolveFunc func(hostname string) ([]string, error)

// DialContextFunc matches net.Dialer.DialContext and http.Transport's
// DialContext/DialTLSContext hooks.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// newProtectedDialer returns a net.Dialer whose Control hook calls protect
// on the raw socket before the kernel connects it. This is the standard Go
// idiom for "touch the fd before connect" and is how protectSocket(fd) is
// actually wired to a real socket.
func newProtectedDialer(protect ProtectFunc, connectTimeout time.Duration) *net.Dialer {
	d := &net.Dialer{Timeout: connectTimeout}
	if protect == nil {
		return d
	}
	d.Control = func(_, _ string, c syscall.RawConn) error {
		var controlErr error
		err := c.Control(func(fd uintptr) {
			controlErr = protect(fd)
		})
		if err != nil {
			return err
		}
		return controlErr
	}
	// The Go resolver's own DNS sockets go through the same hook, so a
	// lookup made without a host ResolveFunc is protected as well.
	dnsDialer := &net.Dialer{Timeout: connectTimeout, Control: d.Control}
	d.Resolver = &net.Resolver{
		PreferGo: true,
		Dial:     dnsDialer.DialContext,
	}
	return d
}

// newDialContext builds the DialContextFunc used for both the plaintext and
// the TLS-wrapped transports. When resolve is non-nil, it is consulted
// first and the resulting address is dialed directly, bypassing Go's own
// resolver; the protected net.Dialer is still used for the TCP connect
// either way. The lookup itself is left entirely to the host's resolve.
func newDialContext(protect ProtectFunc, resolve ResolveFunc, connectTimeout time.Duration) DialContextFunc {
	dialer := newProtectedDialer(protect, connectTimeout)

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if resolve == nil {
			return dialer.DialContext(ctx, network, addr)
		}

		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("transport: invalid dial address %q: %w", addr, err)
		}
		if net.ParseIP(host) != nil {
			// Already an address literal, nothing to resolve.
			return dialer.DialContext(ctx, network, addr)
		}

		addrs, err := resolve(host)
		if err != nil {
			return nil, fmt.Errorf("transport: resolve %q: %w", host, err)
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("transport: resolve %q: no addresses", host)
		}

		var lastErr error
		for _, a := range addrs {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(a, port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, fmt.Errorf("transport: all resolved addresses for %q failed: %w", host, lastErr)
	}
}
