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

package meek

import (
	"fmt"
	"net"
)

// Start binds the local loopback listener and launches the acceptor. It is
// idempotent: calling Start on an already-running Client first stops it,
// then starts fresh.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("meek: failed to bind local listener: %w", err)
	}

	c.listener = ln
	c.localPort = ln.Addr().(*net.TCPAddr).Port
	c.clients = newConnSet()
	c.closing.Store(false)
	c.acceptorDone = make(chan struct{})

	go c.runAcceptor(ln, c.clients, c.acceptorDone)

	return nil
}

// Stop closes the listener, waits for the acceptor to exit, and force-closes
// every live local socket. Session Loops driving those sockets are not
// joined; they observe the close on their next local read/write, or on
// their in-flight request's abort timer, and terminate asynchronously. Stop
// on an already-stopped Client is a no-op.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// stopLocked implements Stop assuming c.mu is already held. It is also used
// by Start to make startup idempotent.
func (c *Client) stopLocked() {
	if c.listener == nil {
		return
	}

	c.closing.Store(true)
	c.listener.Close()
	<-c.acceptorDone

	if c.clients != nil {
		c.clients.CloseAll()
	}

	c.listener = nil
	c.localPort = -1
	c.acceptorDone = nil
}

// LocalPort returns the port the loopback listener is bound to, or -1 if
// the Client is not running.
func (c *Client) LocalPort() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localPort
}
