package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ringclient/ring-client-go/internal/hardware"
)

func TestCreateSessionSendsDeviceMetadata(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			writeToken(w, "token-1")
		case "/clients_api/session":
			json.NewDecoder(r.Body).Decode(&gotBody)
			json.NewEncoder(w).Encode(map[string]any{"profile": map[string]any{"id": 42}})
		}
	}))
	defer server.Close()

	c, _ := newTestClient(t, server)
	defer c.ClearTimers()

	session, err := c.createSession(context.Background())
	if err != nil {
		t.Fatalf("createSession failed: %v", err)
	}
	if session.Profile.ID != 42 {
		t.Fatalf("profile id = %d, want 42", session.Profile.ID)
	}

	device, _ := gotBody["device"].(map[string]any)
	if device == nil {
		t.Fatalf("body = %v, want device block", gotBody)
	}
	if want := hardware.FromSeed("test-system"); device["hardware_id"] != want {
		t.Fatalf("hardware_id = %v, want %q", device["hardware_id"], want)
	}
	if device["os"] != "android" {
		t.Fatalf("os = %v, want android", device["os"])
	}
	metadata, _ := device["metadata"].(map[string]any)
	if metadata["device_model"] != "ring-client-go" {
		t.Fatalf("device_model = %v, want ring-client-go", metadata["device_model"])
	}
}

func TestCreateSession401ForcesTokenRefresh(t *testing.T) {
	var tokenCalls, sessionCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			if atomic.AddInt32(&tokenCalls, 1) == 1 {
				writeToken(w, "stale-token")
			} else {
				writeToken(w, "fresh-token")
			}
		case "/clients_api/session":
			atomic.AddInt32(&sessionCalls, 1)
			if r.Header.Get("Authorization") == "Bearer stale-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"profile": map[string]any{"id": 1}})
		}
	}))
	defer server.Close()

	c, _ := newTestClient(t, server)
	defer c.ClearTimers()

	if _, err := c.createSession(context.Background()); err != nil {
		t.Fatalf("createSession failed: %v", err)
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 2 {
		t.Fatalf("token endpoint called %d times, want forced refresh after 401", got)
	}
	if got := atomic.LoadInt32(&sessionCalls); got != 2 {
		t.Fatalf("session endpoint called %d times, want retry after refresh", got)
	}
}

func TestCreateSession429WaitsRetryAfterPlusOne(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			writeToken(w, "token-1")
		case "/clients_api/session":
			if atomic.AddInt32(&calls, 1) == 1 {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"profile": map[string]any{"id": 1}})
		}
	}))
	defer server.Close()

	c, rec := newTestClient(t, server)
	defer c.ClearTimers()

	if _, err := c.createSession(context.Background()); err != nil {
		t.Fatalf("createSession failed: %v", err)
	}
	delays := rec.recorded()
	if len(delays) != 1 {
		t.Fatalf("delays = %v, want exactly one rate-limit wait", delays)
	}
	if delays[0] < 4*time.Second {
		t.Fatalf("waited %v, want at least Retry-After+1 = 4s", delays[0])
	}
}

func TestCreateSession429MissingHeaderUsesDefault(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			writeToken(w, "token-1")
		case "/clients_api/session":
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"profile": map[string]any{"id": 1}})
		}
	}))
	defer server.Close()

	c, rec := newTestClient(t, server)
	defer c.ClearTimers()

	if _, err := c.createSession(context.Background()); err != nil {
		t.Fatalf("createSession failed: %v", err)
	}
	delays := rec.recorded()
	if len(delays) != 1 || delays[0] != 201*time.Second {
		t.Fatalf("delays = %v, want the 200s default plus one second", delays)
	}
}

func TestRefreshSessionSettlesAndUnblocksRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			writeToken(w, "token-1")
		case "/clients_api/session":
			json.NewEncoder(w).Encode(map[string]any{"profile": map[string]any{"id": 1}})
		case "/clients_api/ping":
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}))
	defer server.Close()

	c, _ := newTestClient(t, server)
	defer c.ClearTimers()

	c.RefreshSession()

	// A request issued while the session is being created must wait for
	// it to settle, then succeed.
	var out map[string]any
	if _, err := c.Request(context.Background(), RequestSpec{URL: c.clientAPIBase + "ping"}, &out); err != nil {
		t.Fatalf("request failed: %v", err)
	}

	_, settled := c.sessionState()
	select {
	case <-settled:
	case <-time.After(2 * time.Second):
		t.Fatal("session creation did not settle")
	}
}
