package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexusgds/pushcore/pkg/certstore"
	"github.com/nexusgds/pushcore/pkg/certverify"
	"github.com/nexusgds/pushcore/pkg/channels"
	"github.com/nexusgds/pushcore/pkg/dispatch"
	"github.com/nexusgds/pushcore/pkg/events"
	"github.com/nexusgds/pushcore/pkg/types"
)

func TestHealthHandler(t *testing.T) {
	hs := NewHealthServer(nil, nil, nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET request succeeds", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST request fails", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
		{name: "PUT request fails", method: http.MethodPut, expectedStatus: http.StatusMethodNotAllowed},
		{name: "DELETE request fails", method: http.MethodDelete, expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()
			hs.healthHandler(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusOK {
				var response HealthResponse
				if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if response.Status != "healthy" {
					t.Fatalf("expected status %q, got %q", "healthy", response.Status)
				}
				if response.Timestamp.IsZero() {
					t.Fatalf("expected a non-zero timestamp")
				}
			}
		})
	}
}

func TestReadyHandlerReportsNotReadyWithoutDispatch(t *testing.T) {
	hs := NewHealthServer(nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	hs.readyHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var response ReadyResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Status != "not ready" {
		t.Fatalf("expected status %q, got %q", "not ready", response.Status)
	}
}

func TestReadyHandlerReportsGroupOKWithWiredDispatch(t *testing.T) {
	stores := map[types.Group]certstore.Store{
		types.GroupApplication: certstore.NewMemStore(),
	}
	srv := dispatch.NewServer(
		dispatch.Config{ApplicationURI: "urn:example:server", PermissiveURICheck: true},
		stores,
		certverify.New(certverify.Config{}),
		channels.NewRegistry(),
		events.NewBroker(),
	)
	hs := NewHealthServer(srv, nil, []types.Group{types.GroupApplication})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	hs.readyHandler(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 since the session registry is still nil, got %d", w.Code)
	}
	var response ReadyResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Checks["group:"+string(types.GroupApplication)] != "ok" {
		t.Fatalf("expected the wired dispatch group check to report ok, got %q", response.Checks["group:"+string(types.GroupApplication)])
	}
}
