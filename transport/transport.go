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

// Package transport builds the HTTP client a meek session uses to talk to
// its relay: a client that never follows cookies or retries on its own, and
// whose socket factory always runs outbound connections (TCP and, where
// applicable, DNS) through a host-provided protect hook before they touch
// the network.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/idna"
)

// Config describes how to reach one relay. Exactly one of the fronted or
// unfronted field groups is meaningful, selected by Fronted.
type Config struct {
	Fronted bool

	// FrontingDomain is the TLS SNI, DNS target, and URL host used in
	// fronted mode.
	FrontingDomain string
	// FrontingHost is the HTTP Host header that selects the true relay
	// behind the front, used only in fronted mode.
	FrontingHost string

	// RelayHost and RelayPort are used directly, in unfronted mode, for
	// both the URL and (implicitly) the HTTP Host header.
	RelayHost string
	RelayPort int

	// Timeout bounds connect, and is also applied as the client's overall
	// per-request timeout (MEEK_SERVER_TIMEOUT).
	Timeout time.Duration
}

// RequestURL returns the URL every request of a session is sent to.
func (c Config) RequestURL() (*url.URL, error) {
	if c.Fronted {
		return url.Parse(fmt.Sprintf("https://%s/", c.FrontingDomain))
	}
	return url.Parse(fmt.Sprintf("http://%s/", net.JoinHostPort(c.RelayHost, strconv.Itoa(c.RelayPort))))
}

// HostHeader returns the HTTP Host header override to apply to every
// request, or "" when none is needed (unfronted mode uses the URL's own
// host).
func (c Config) HostHeader() (string, error) {
	if !c.Fronted {
		return "", nil
	}
	return idna.Lookup.ToASCII(c.FrontingHost)
}

// sniHost returns the hostname (no port) that the TLS handshake's SNI
// extension, and certificate hostname verification, should target.
func (c Config) sniHost() (string, error) {
	host := c.FrontingDomain
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return idna.Lookup.ToASCII(host)
}

// NewClient builds an http.Client configured per the spec: no cookie jar
// (the Cookie header is set explicitly, per request), no internal retries,
// and connect/read/write timeouts all equal to Config.Timeout. protect and
// resolve are the host collaborators; resolve may be nil.
func NewClient(cfg Config, protect ProtectFunc, resolve ResolveFunc) (*http.Client, error) {
	dial := newDialContext(protect, resolve, cfg.Timeout)

	rt := &http.Transport{
		DialContext: dial,
		// A meek session issues exactly one request at a time; disable
		// idle-conn reuse complexity by keeping this modest rather than
		// the package default, which assumes many concurrent hosts.
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       cfg.Timeout,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if cfg.Fronted {
		sni, err := cfg.sniHost()
		if err != nil {
			return nil, fmt.Errorf("transport: invalid fronting domain: %w", err)
		}
		rt.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			rawConn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			tlsConn := tls.Client(rawConn, &tls.Config{ServerName: sni})
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				rawConn.Close()
				return nil, fmt.Errorf("transport: TLS handshake with %s failed: %w", sni, err)
			}
			return tlsConn, nil
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
		// Never follow redirects and never share cookies automatically;
		// the Cookie header is set by hand on every request.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}
