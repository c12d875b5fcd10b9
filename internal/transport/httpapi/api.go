// Package httpapi provides the HTTP surface around the broker: lobby code
// creation, occupancy checks, aggregate status, session validation, the
// command endpoint, and the parameter catalog.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/goatshell/server/internal/game/lobby"
	"github.com/goatshell/server/internal/game/params"
	"github.com/goatshell/server/internal/interpreter"
	"github.com/goatshell/server/internal/session"
)

// API bundles the HTTP handlers and their dependencies.
type API struct {
	registry *lobby.Registry
	interp   interpreter.Interpreter
	catalog  *params.Catalog
	logger   *zap.Logger
}

// NewAPI creates the HTTP API.
//
// Precondition: all dependencies must be non-nil.
func NewAPI(registry *lobby.Registry, interp interpreter.Interpreter, catalog *params.Catalog, logger *zap.Logger) *API {
	return &API{
		registry: registry,
		interp:   interp,
		catalog:  catalog,
		logger:   logger,
	}
}

// Register mounts all HTTP routes on the given mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", a.handleRoot)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /command", a.handleCommand)
	mux.HandleFunc("GET /parameters", a.handleParameters)
	mux.HandleFunc("POST /create-lobby", a.handleCreateLobby)
	mux.HandleFunc("GET /check-lobby/{code}", a.handleCheckLobby)
	mux.HandleFunc("GET /websocket-status", a.handleStatus)
	mux.HandleFunc("GET /validate-session/{lobby_code}/{session_id}", a.handleValidateSession)
}

func (a *API) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the Goat In The Shell broker",
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCommand forwards free text to the interpreter. Collaborator failures
// degrade to the structured unavailable result; the endpoint never surfaces a
// raw interpreter error.
func (a *API) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := a.interp.Process(r.Context(), req.Command)
	if err != nil {
		a.logger.Warn("command interpretation failed", zap.Error(err))
		res = interpreter.Unavailable()
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleParameters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"parameters": a.catalog.All(),
	})
}

// handleCreateLobby issues a fresh unique lobby code. The lobby itself is
// created when its first member connects.
func (a *API) handleCreateLobby(w http.ResponseWriter, _ *http.Request) {
	code, err := a.registry.GenerateUniqueCode()
	if err != nil {
		if errors.Is(err, lobby.ErrCodeExhausted) {
			a.logger.Error("lobby code generation exhausted", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "could not allocate a lobby code",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"lobby_code": code})
}

func (a *API) handleCheckLobby(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	snap, err := a.registry.Lookup(code)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"code":   code,
			"exists": false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":         snap.Code,
		"exists":       true,
		"connections":  snap.MemberCount,
		"has_goat":     snap.HasGoat,
		"has_prompter": snap.HasPrompter,
	})
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	total, snaps := a.registry.Status()
	lobbies := make([]map[string]any, 0, len(snaps))
	for _, s := range snaps {
		lobbies = append(lobbies, map[string]any{
			"code":         s.Code,
			"connections":  s.MemberCount,
			"has_goat":     s.HasGoat,
			"has_prompter": s.HasPrompter,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active_connections": total,
		"active_lobbies":     len(snaps),
		"lobbies":            lobbies,
	})
}

// handleValidateSession checks the opaque token shape and lobby existence.
// Tokens are advisory and not persisted, so shape is the only local check.
func (a *API) handleValidateSession(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("lobby_code")
	id := r.PathValue("session_id")

	_, err := a.registry.Lookup(code)
	lobbyExists := err == nil
	valid := session.ValidShape(id) && lobbyExists

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":        valid,
		"lobby_exists": lobbyExists,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
