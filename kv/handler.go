package kv

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// Handler exposes the Service over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler creates a new Redis handler
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the Redis routes with a gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/redis/set", h.SetValue).Methods(http.MethodPost)
	r.HandleFunc("/redis/get", h.GetValue).Methods(http.MethodGet)
}

// SetValue handles POST /redis/set?key=&value=
func (h *Handler) SetValue(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeText(w, http.StatusBadRequest, "key is required")
		return
	}
	value := r.URL.Query().Get("value")

	if err := h.service.SetValue(r.Context(), key, value); err != nil {
		h.logger.ErrorContext(r.Context(), "redis set failed", slog.String("key", key), slog.String("error", err.Error()))
		writeText(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeText(w, http.StatusOK, fmt.Sprintf("Success: %s -> %s", key, value))
}

// GetValue handles GET /redis/get?key=
func (h *Handler) GetValue(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeText(w, http.StatusBadRequest, "key is required")
		return
	}

	value, ok, err := h.service.GetValue(r.Context(), key)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "redis get failed", slog.String("key", key), slog.String("error", err.Error()))
		writeText(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !ok {
		writeText(w, http.StatusNotFound, "key not found")
		return
	}
	writeText(w, http.StatusOK, value)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
