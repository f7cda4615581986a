package api

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nexusgds/pushcore/pkg/dispatch"
	"github.com/nexusgds/pushcore/pkg/metrics"
	"github.com/nexusgds/pushcore/pkg/session"
	"github.com/nexusgds/pushcore/pkg/types"
)

// HealthServer provides the HTTP health/readiness/metrics endpoints
// pushcored exposes alongside the dispatcher's method surface.
type HealthServer struct {
	dispatch *dispatch.Server
	sessions *session.Registry
	groups   []types.Group
	mux      *http.ServeMux
}

// NewHealthServer creates a new health check HTTP server. dispatch and
// sessions may be nil - readiness then reports "not initialized" rather
// than panicking, so the endpoint can be wired up before the rest of
// pushcored has finished starting.
func NewHealthServer(d *dispatch.Server, sessions *session.Registry, groups []types.Group) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{dispatch: d, sessions: sessions, groups: groups, mux: mux}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start starts the health check HTTP server. When tlsConfig is non-nil
// (the administrative CertAuthority issued it a server certificate -
// see cmd/pushcored), the listener serves HTTPS; otherwise it serves
// plain HTTP, which is only appropriate for local development.
func (hs *HealthServer) Start(addr string, tlsConfig *tls.Config) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		TLSConfig:    tlsConfig,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if tlsConfig != nil {
		return server.ListenAndServeTLS("", "")
	}
	return server.ListenAndServe()
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler implements the /health endpoint - a plain liveness
// check, true as soon as the process can answer HTTP requests at all.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	response := HealthResponse{Status: "healthy", Timestamp: time.Now()}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler implements the /ready endpoint: it reports whether the
// dispatcher and session registry are wired up and the dispatcher
// reports FileInfo for every configured certificate group. The group
// check does not read any trust list.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	var message string

	if hs.dispatch == nil {
		checks["dispatch"] = "not initialized"
		ready = false
		message = "dispatcher not initialized"
	} else {
		for _, group := range hs.groups {
			if _, err := hs.dispatch.FileInfo(group); err != nil {
				checks["group:"+string(group)] = "error: " + err.Error()
				ready = false
				if message == "" {
					message = "trust-list group unreachable"
				}
				continue
			}
			checks["group:"+string(group)] = "ok"
		}
	}

	if hs.sessions == nil {
		checks["sessions"] = "not initialized"
		ready = false
		if message == "" {
			message = "session registry not initialized"
		}
	} else {
		checks["sessions"] = "ok"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{Status: status, Timestamp: time.Now(), Checks: checks, Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers.
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
