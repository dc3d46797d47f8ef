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
	"net"
	"sync"
)

// connSet is a mutex-guarded registry of the currently live local
// connections, so that Stop can force-close every one of them instead of
// waiting for their Session Loops to notice the listener went away.
type connSet struct {
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func newConnSet() *connSet {
	return &connSet{conns: make(map[net.Conn]struct{})}
}

func (s *connSet) Add(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *connSet) Remove(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// CloseAll force-closes every registered connection and empties the set.
func (s *connSet) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
	s.conns = make(map[net.Conn]struct{})
}

// runAcceptor accepts local connections on ln until it is closed, spawning
// one Session Loop per connection. It signals done on return so Stop can
// join it before force-closing the clients registry.
//
// ln and set are captured as parameters, not read from c under c.mu, for
// the same reason closing is an atomic.Bool: stopLocked holds c.mu for the
// whole of its wait on done, so anything the acceptor needs in order to
// reach close(done) must not require that lock.
func (c *Client) runAcceptor(ln net.Listener, set *connSet, done chan struct{}) {
	defer close(done)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if c.closing.Load() {
				// Expected: Stop() closed the listener out from under us.
				return
			}
			c.cfg.Logger.Logf(LevelError, false, "acceptor: accept failed: %v", err)
			return
		}

		set.Add(conn)

		go func() {
			defer set.Remove(conn)
			defer conn.Close()
			c.runSession(conn)
		}()
	}
}
