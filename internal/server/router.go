package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatewatch-systems/gatewatch/internal/auth"
	"github.com/gatewatch-systems/gatewatch/internal/handlers"
	"github.com/gatewatch-systems/gatewatch/internal/middleware"
)

// NewRouter constructs a ServeMux with the dashboard API routes registered.
// All /api routes require an authenticated principal; health and metrics are
// open.
func NewRouter(h *handlers.Handler, authn *auth.Middleware) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", h.HealthCheck)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/stats/overview", authn.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.Overview(w, r)
	}))

	mux.HandleFunc("/api/events", authn.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.ListEvents(w, r)
	}))

	mux.HandleFunc("/api/bans", authn.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListBans(w, r)
		case http.MethodPost:
			h.CreateBan(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.HandleFunc("/api/bans/history", authn.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.BanHistory(w, r)
	}))

	mux.HandleFunc("/api/bans/", authn.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.DeleteBan(w, r)
	}))

	return middleware.RequestID(mux)
}
