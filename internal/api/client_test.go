// internal/api/client_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazmap/simkit/internal/fault"
	"github.com/hazmap/simkit/pkg/core"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000", "secret123")

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected baseURL=http://localhost:5000, got %s", c.baseURL)
	}
	if c.apiKey != "secret123" {
		t.Errorf("expected apiKey=secret123, got %s", c.apiKey)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("expected path /healthcheck, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "", WithRegistry(fault.NewRegistry()))
	if err := c.Healthcheck(context.Background()); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, "", WithRegistry(fault.NewRegistry()))
	err := c.Healthcheck(context.Background())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", statusErr.Status)
	}
}

func TestFetchHazards_Success(t *testing.T) {
	zones := []core.HazardZone{{ID: "hz-1", Kind: core.HazardFlood, Severity: 0.7}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/hazards" {
			t.Errorf("expected path /api/v1/hazards, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "key" {
			t.Error("expected api key header")
		}
		_ = json.NewEncoder(w).Encode(zones)
	}))
	defer server.Close()

	c := New(server.URL, "key", WithRegistry(fault.NewRegistry()))
	got, err := c.FetchHazards(context.Background())
	if err != nil {
		t.Fatalf("FetchHazards failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "hz-1" {
		t.Errorf("unexpected zones: %+v", got)
	}
}

func TestFetchHazards_InjectedFaultMatchesRealFailure(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	reg := fault.NewRegistry()
	c := New(server.URL, "", WithRegistry(reg))

	// Real 503 from the server.
	_, realErr := c.FetchHazards(context.Background())

	// Injected 503, no request made at all.
	reg.Set(fault.HTTPFault{Status: http.StatusServiceUnavailable})
	_, fakeErr := c.FetchHazards(context.Background())

	var realStatus, fakeStatus *StatusError
	if !errors.As(realErr, &realStatus) || !errors.As(fakeErr, &fakeStatus) {
		t.Fatalf("expected StatusError from both paths, got %v and %v", realErr, fakeErr)
	}
	if realStatus.Status != fakeStatus.Status {
		t.Errorf("injected fault should match the real failure: %d vs %d", realStatus.Status, fakeStatus.Status)
	}
	if !fakeStatus.Unavailable() {
		t.Error("503 should report Unavailable")
	}
	if hits != 1 {
		t.Errorf("injected fault must not reach the server, got %d hits", hits)
	}
}

func TestPerformanceFaultInjectsDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]core.HazardZone{})
	}))
	defer server.Close()

	reg := fault.NewRegistry()
	reg.Set(fault.PerformanceFault{Delay: 60 * time.Millisecond})
	c := New(server.URL, "", WithRegistry(reg))

	start := time.Now()
	if _, err := c.FetchHazards(context.Background()); err != nil {
		t.Fatalf("FetchHazards failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("expected injected delay, elapsed %v", elapsed)
	}
}

func TestPerformanceFaultRespectsContext(t *testing.T) {
	reg := fault.NewRegistry()
	reg.Set(fault.PerformanceFault{Delay: 5 * time.Second})
	c := New("http://localhost:59999", "", WithRegistry(reg))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.FetchHazards(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}
