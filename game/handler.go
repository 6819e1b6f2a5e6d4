package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fernandezvara/gamekit"
)

// Catalog is the set of game operations served over HTTP.
type Catalog interface {
	GetGameByCode(ctx context.Context, gameCode string) (*Game, error)
	GetGamesByGroup(ctx context.Context, groupKey string, page, pageSize int) (*gamekit.OffsetPage[Game], error)
	CreateGame(ctx context.Context, g *Game) (*Game, error)
	UpdateGame(ctx context.Context, id int64, g *Game) (*Game, error)
	DeleteGame(ctx context.Context, id int64) error
}

var _ Catalog = (*Service)(nil)

// Handler provides HTTP handlers for the game catalogue
type Handler struct {
	catalog Catalog
	logger  *slog.Logger
}

// NewHandler creates a new game handler
func NewHandler(catalog Catalog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{catalog: catalog, logger: logger}
}

// RegisterRoutes registers the game routes with a gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/games", h.CreateGame).Methods(http.MethodPost)
	r.HandleFunc("/games/group/{groupKey}", h.GetGamesByGroup).Methods(http.MethodGet)
	r.HandleFunc("/games/{gameCode}", h.GetGame).Methods(http.MethodGet)
	r.HandleFunc("/games/{id:[0-9]+}", h.UpdateGame).Methods(http.MethodPut)
	r.HandleFunc("/games/{id:[0-9]+}", h.DeleteGame).Methods(http.MethodDelete)
}

// GetGame handles GET /games/{gameCode}
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.catalog.GetGameByCode(r.Context(), mux.Vars(r)["gameCode"])
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// GetGamesByGroup handles GET /games/group/{groupKey}?page=&pageSize=
func (h *Handler) GetGamesByGroup(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("pageSize"))

	games, err := h.catalog.GetGamesByGroup(r.Context(), mux.Vars(r)["groupKey"], page, pageSize)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if games.Items == nil {
		games.Items = []Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

// CreateGame handles POST /games
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var g Game
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.catalog.CreateGame(r.Context(), &g)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateGame handles PUT /games/{id}
func (h *Handler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, "Invalid game id", http.StatusBadRequest)
		return
	}

	var g Game
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.catalog.UpdateGame(r.Context(), id, &g)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteGame handles DELETE /games/{id}
func (h *Handler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, "Invalid game id", http.StatusBadRequest)
		return
	}

	if err := h.catalog.DeleteGame(r.Context(), id); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeFailure maps a service error onto a status code.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidGame):
		writeError(w, err.Error(), http.StatusBadRequest)
	case gamekit.IsNotFound(err):
		writeError(w, "Game not found", http.StatusNotFound)
	case gamekit.IsDuplicate(err):
		writeError(w, "Game code already exists", http.StatusConflict)
	default:
		h.logger.ErrorContext(r.Context(), "game request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
