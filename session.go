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
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/obfsmeek/meekclient/cookie"
	"github.com/obfsmeek/meekclient/transport"
)

// now is overridden by tests that simulate sleep-skew and session expiry
// without actually waiting in real time.
var now = time.Now

// transportNewClient is transport.NewClient indirected through a var so
// tests can substitute a stub relay's http.Client without a real dial.
var transportNewClient = transport.NewClient

// runSession drives one accepted local connection S through the meek
// session protocol until it terminates, by any path. It never returns an
// error: every termination simply ends the goroutine, per the Acceptor's
// fire-and-forget contract. Setup failures, request failures and session
// expiry are logged; local EOF or a local read error ends it quietly.
func (c *Client) runSession(s net.Conn) {
	requestURL, err := c.transportC.RequestURL()
	if err != nil {
		c.cfg.Logger.Logf(LevelError, false, "session: invalid request URL: %v", err)
		return
	}
	hostHeader, err := c.transportC.HostHeader()
	if err != nil {
		c.cfg.Logger.Logf(LevelError, false, "session: invalid host header: %v", err)
		return
	}
	sessionCookie, err := cookie.Make(cookie.Params{
		SessionID:          c.cfg.SessionID,
		TargetAddress:      c.cfg.TargetAddress,
		RecipientPublicKey: c.recipient,
		ObfuscationKeyword: c.cfg.ObfuscationKeyword,
	})
	if err != nil {
		c.cfg.Logger.Logf(LevelError, false, "session: failed to build cookie: %v", err)
		return
	}
	httpClient, err := transportNewClient(c.transportC, c.cfg.Protect, c.cfg.Resolve)
	if err != nil {
		c.cfg.Logger.Logf(LevelError, false, "session: failed to build HTTP client: %v", err)
		return
	}

	payloadBuf := make([]byte, MaxPayloadLength)
	pollIntervalMs := MinPollInterval
	var lastSuccess time.Time

	for {
		// a. Read local upstream with timeout. The socket deadline always
		// tracks real wall-clock time: it is the OS, not our bookkeeping
		// clock, that has to wake the read up. readStart/readElapsed below
		// use the (possibly injected, for tests) bookkeeping clock so that
		// a simulated clock jump is observed the same way a real device
		// sleep would be.
		s.SetReadDeadline(time.Now().Add(pollIntervalMs))
		readStart := now()
		n, readErr := s.Read(payloadBuf)
		readElapsed := now().Sub(readStart)

		var payloadLength int
		switch {
		case n > 0:
			payloadLength = n
		case readErr == io.EOF:
			return
		case isTimeout(readErr):
			payloadLength = 0
		case readErr != nil:
			// Any other local I/O error ends the session; there is no
			// upstream socket left to serve.
			return
		}

		// b. Sleep-skew detection.
		skewed := readElapsed > pollIntervalMs+sleepSkewGraceInterval
		sessionDead := !lastSuccess.IsZero() && now().Sub(lastSuccess) > sessionExpiryFactor*MeekServerTimeout
		if skewed {
			c.cfg.Logger.Logf(LevelInfo, false, "session: read took %v, longer than poll interval %v; device may have slept", readElapsed, pollIntervalMs)
		}
		if skewed && sessionDead {
			continue
		}

		// c. Pre-request session-death check.
		if sessionDead {
			c.cfg.Logger.Logf(LevelInfo, false, "session: %v", errSessionExpired)
			return
		}

		// d. Issue request with one retry.
		var (
			uploadedBytes   = payloadLength > 0
			downloadedBytes bool
			succeeded       bool
		)
		for attempt := 0; attempt < 2; attempt++ {
			ok, received, reqErr := c.doRequest(httpClient, requestURL.String(), hostHeader, sessionCookie, payloadBuf[:payloadLength], s)
			if reqErr != nil {
				c.cfg.Logger.Logf(LevelWarn, false, "session: request attempt %d failed: %v", attempt+1, reqErr)
				continue
			}
			if !ok {
				c.cfg.Logger.Logf(LevelWarn, false, "session: request attempt %d returned non-200", attempt+1)
				continue
			}
			succeeded = true
			downloadedBytes = received
			break
		}

		if !succeeded {
			return
		}
		lastSuccess = now()

		// e. Adaptive poll interval.
		switch {
		case uploadedBytes || downloadedBytes:
			pollIntervalMs = MinPollInterval
		case pollIntervalMs == MinPollInterval:
			pollIntervalMs = IdlePollInterval
		default:
			next := time.Duration(float64(pollIntervalMs) * PollIntervalMultiplier)
			if next > MaxPollInterval {
				next = MaxPollInterval
			}
			pollIntervalMs = next
		}
	}
}

// doRequest issues a single POST attempt and, on a 200 response, streams the
// body into s. It reports whether the attempt succeeded (HTTP 200) and
// whether any response byte was actually delivered downstream.
func (c *Client) doRequest(client *http.Client, url, hostHeader, sessionCookie string, body []byte, s net.Conn) (ok bool, receivedData bool, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), MeekServerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, false, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Cookie", sessionCookie)
	if hostHeader != "" {
		req.Host = hostHeader
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, false, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return false, false, nil
	}

	written, copyErr := io.Copy(s, resp.Body)
	if copyErr != nil {
		c.cfg.Logger.Logf(LevelWarn, false, "session: error streaming response to local socket: %v", copyErr)
	}
	return true, written > 0, nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
