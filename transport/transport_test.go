package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestUnfrontedURLAndRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(w, r.Body)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server URL: %v", err)
	}
	host := u.Hostname()
	portNum, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	var protectCalls int32
	protect := func(fd uintptr) error {
		atomic.AddInt32(&protectCalls, 1)
		return nil
	}

	cfg := Config{
		Fronted:   false,
		RelayHost: host,
		RelayPort: portNum,
		Timeout:   2 * time.Second,
	}

	client, err := NewClient(cfg, protect, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	reqURL, err := cfg.RequestURL()
	if err != nil {
		t.Fatalf("RequestURL: %v", err)
	}
	if reqURL.Scheme != "http" {
		t.Fatalf("expected http scheme in unfronted mode, got %s", reqURL.Scheme)
	}

	resp, err := client.Post(reqURL.String(), "application/octet-stream", nil)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if atomic.LoadInt32(&protectCalls) == 0 {
		t.Fatalf("protect hook was never invoked")
	}
}

func TestFrontedURLAndHostHeader(t *testing.T) {
	cfg := Config{
		Fronted:        true,
		FrontingDomain: "front.example.com",
		FrontingHost:   "relay.example.org",
		Timeout:        time.Second,
	}

	u, err := cfg.RequestURL()
	if err != nil {
		t.Fatalf("RequestURL: %v", err)
	}
	if u.Scheme != "https" || u.Host != "front.example.com" {
		t.Fatalf("unexpected fronted URL: %v", u)
	}

	host, err := cfg.HostHeader()
	if err != nil {
		t.Fatalf("HostHeader: %v", err)
	}
	if host != "relay.example.org" {
		t.Fatalf("unexpected Host header: %q", host)
	}
}

func TestUnfrontedHasNoHostHeaderOverride(t *testing.T) {
	cfg := Config{Fronted: false, RelayHost: "127.0.0.1", RelayPort: 8080}
	host, err := cfg.HostHeader()
	if err != nil {
		t.Fatalf("HostHeader: %v", err)
	}
	if host != "" {
		t.Fatalf("expected no Host header override in unfronted mode, got %q", host)
	}
}
