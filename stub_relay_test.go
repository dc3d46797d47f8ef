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
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// stubRelay wraps an httptest.Server with a per-test handler and a log of
// every request it received, so one relay type serves every end-to-end
// scenario in this package's tests.
type stubRelay struct {
	*httptest.Server
	Addr string

	mu     sync.Mutex
	reqLog []capturedRequest
}

type capturedRequest struct {
	Host   string
	Cookie string
	Body   []byte
}

func newStubRelay(handler http.HandlerFunc) *stubRelay {
	r := &stubRelay{}
	r.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.reqLog = append(r.reqLog, capturedRequest{
			Host:   req.Host,
			Cookie: req.Header.Get("Cookie"),
			Body:   body,
		})
		r.mu.Unlock()
		req.Body = io.NopCloser(bytes.NewReader(body))
		handler(w, req)
	}))
	r.Addr = r.Server.Listener.Addr().String()
	return r
}

func (r *stubRelay) requests() []capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]capturedRequest, len(r.reqLog))
	copy(out, r.reqLog)
	return out
}

// stubAlwaysFail always returns 503, regardless of payload.
func stubAlwaysFail(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusServiceUnavailable)
}

// stubEcho echoes the request body back as the response, with 200.
func stubEcho(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
