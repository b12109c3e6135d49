package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gatewatch-systems/gatewatch/internal/engine"
	"github.com/gatewatch-systems/gatewatch/internal/logging"
	"github.com/gatewatch-systems/gatewatch/internal/models"
	"github.com/gatewatch-systems/gatewatch/internal/query"
	"github.com/gatewatch-systems/gatewatch/internal/service"
)

// Handler serves the dashboard API. Responses use the
// {success, data} / {success: false, error} envelope.
type Handler struct {
	service *service.Service
	query   *query.Service
	logger  *logging.Logger
}

// NewHandler creates the API handler.
func NewHandler(svc *service.Service, q *query.Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: svc, query: q, logger: logger}
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Default().Error("failed to encode JSON response", "error", err)
	}
}

func respondSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

// respondEngineError maps engine error types to HTTP status codes.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrBanNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// HealthCheck handles GET /healthz.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Overview handles GET /api/stats/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.service.Overview())
}

// ListEvents handles GET /api/events?search=&type=&page=&limit=.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &models.EventFilter{
		Search: q.Get("search"),
		Type:   models.EventType(q.Get("type")),
		Page:   parseInt(q.Get("page"), 1),
		Limit:  parseInt(q.Get("limit"), 50),
	}
	if filter.Type != "" && !models.ValidEventTypes[filter.Type] {
		respondError(w, http.StatusBadRequest, "unknown event type "+string(filter.Type))
		return
	}

	page, err := h.query.Query(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "event query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch events")
		return
	}
	respondSuccess(w, http.StatusOK, page)
}

// ListBans handles GET /api/bans.
func (h *Handler) ListBans(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.service.ListBans())
}

// BanHistory handles GET /api/bans/history?limit=.
func (h *Handler) BanHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 100)
	respondSuccess(w, http.StatusOK, h.service.History(limit))
}

// CreateBan handles POST /api/bans.
func (h *Handler) CreateBan(w http.ResponseWriter, r *http.Request) {
	var req models.BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.service.Ban(&req)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "ban applied",
		"ip", record.IPAddress, "permanent", record.Permanent)
	respondSuccess(w, http.StatusCreated, record)
}

// DeleteBan handles DELETE /api/bans/{id-or-ip}.
func (h *Handler) DeleteBan(w http.ResponseWriter, r *http.Request) {
	idOrIP := strings.TrimPrefix(r.URL.Path, "/api/bans/")
	if idOrIP == "" {
		respondError(w, http.StatusBadRequest, "ban id or IP required")
		return
	}

	if err := h.service.Unban(idOrIP); err != nil {
		respondEngineError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"message": "IP unbanned"})
}

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
