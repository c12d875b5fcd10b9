package ws

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/goatshell/server/internal/game/director"
	"github.com/goatshell/server/internal/game/lobby"
	"github.com/goatshell/server/internal/interpreter"
	"github.com/goatshell/server/internal/protocol"
	"github.com/goatshell/server/internal/session"
)

// Router owns the per-connection receive loop: it admits connections, decodes
// inbound envelopes into typed messages, and dispatches them. Role violations
// and unknown kinds produce personal error replies; the connection stays open.
type Router struct {
	registry    *lobby.Registry
	broadcaster *lobby.Broadcaster
	director    *director.Director
	interp      interpreter.Interpreter
	minter      *session.Minter
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// NewRouter creates a Router.
//
// Precondition: all dependencies must be non-nil.
func NewRouter(
	registry *lobby.Registry,
	broadcaster *lobby.Broadcaster,
	dir *director.Director,
	interp interpreter.Interpreter,
	minter *session.Minter,
	logger *zap.Logger,
) *Router {
	return &Router{
		registry:    registry,
		broadcaster: broadcaster,
		director:    dir,
		interp:      interp,
		minter:      minter,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from arbitrary origins; tokens, not
			// origins, gate anything sensitive.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the WebSocket endpoint on the given mux.
func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{lobby_code}/{player_role}", r.handleConnect)
}

// handleConnect validates the address, upgrades, admits, and runs the receive
// loop until disconnect.
func (r *Router) handleConnect(w http.ResponseWriter, req *http.Request) {
	code := req.PathValue("lobby_code")
	role, err := lobby.ParseRole(req.PathValue("player_role"))
	if err != nil {
		// Rejected before admission; no lobby state is touched.
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed",
			zap.String("lobby", code),
			zap.Error(err),
		)
		return
	}

	h := NewHandle(conn, role, code)
	snap, err := r.registry.Admit(code, role, h)
	if err != nil {
		if errors.Is(err, lobby.ErrRoleConflict) {
			_ = h.Send(protocol.NewError(protocol.CodeRoleConflict, err.Error()))
		}
		_ = h.Close(protocol.CodeRoleConflict)
		return
	}

	r.broadcaster.Unicast(h, protocol.NewWelcome(h.ID(), snap))
	r.broadcaster.BroadcastExcept(code, h.ID(), protocol.NewPlayerJoined(role, snap))

	if code == lobby.SinglePlayerCode && role == lobby.RoleGoat {
		r.director.Start(h)
	}

	r.readLoop(req.Context(), h)

	// Disconnect path: the handle owns its registry and director bindings.
	r.director.Forget(h.ID())
	left, bound := r.registry.Remove(h.ID())
	if bound && left.MemberCount > 0 {
		r.broadcaster.Broadcast(code, protocol.NewPlayerLeft(role, left))
	}
	_ = h.Close("")
	r.logger.Info("connection closed",
		zap.String("lobby", code),
		zap.String("role", role.String()),
		zap.String("peer", h.ID()),
	)
}

// readLoop consumes inbound envelopes until the peer disconnects or the
// request context is cancelled.
func (r *Router) readLoop(ctx context.Context, h *Handle) {
	for {
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			return
		}
		r.registry.Touch(h.LobbyCode())

		msg, err := protocol.DecodeInbound(data)
		if err != nil {
			var unknown *protocol.UnknownKindError
			code := protocol.CodeMalformedEnvelope
			if errors.As(err, &unknown) {
				code = protocol.CodeUnknownMessageKind
			}
			r.broadcaster.Unicast(h, protocol.NewError(code, err.Error()))
			continue
		}

		r.dispatch(ctx, h, msg)
	}
}

// dispatch routes one typed message. The kind set is closed; every variant is
// handled here.
func (r *Router) dispatch(ctx context.Context, h *Handle, msg protocol.Inbound) {
	switch m := msg.(type) {
	case *protocol.StartGame:
		r.handleStartGame(h)
	case *protocol.Command:
		r.handleCommand(ctx, h, m)
	case *protocol.PlayerState:
		r.handlePlayerState(h, m)
	case *protocol.PlaceItem:
		r.handlePlaceItem(h, m)
	case *protocol.GameEvent:
		r.handleGameEvent(h, m)
	case *protocol.Ping:
		snap, _ := r.registry.Lookup(h.LobbyCode())
		r.broadcaster.Unicast(h, protocol.NewPong(m.Timestamp, snap))
	case *protocol.GetSessionToken:
		r.broadcaster.Unicast(h, protocol.NewSessionToken(r.minter.Mint()))
	}
}

func (r *Router) handleStartGame(h *Handle) {
	if h.Role() != lobby.RolePrompter {
		r.denied(h, protocol.KindStartGame)
		return
	}

	snap, err := r.registry.Lookup(h.LobbyCode())
	if err != nil || !snap.HasGoat || !snap.HasPrompter {
		r.broadcaster.Unicast(h, protocol.NewError(
			protocol.CodeLobbyNotReady,
			"both goat and prompter must be connected to start",
		))
		return
	}
	r.broadcaster.Broadcast(h.LobbyCode(), protocol.NewLobbyReady(snap))
}

func (r *Router) handleCommand(ctx context.Context, h *Handle, m *protocol.Command) {
	if h.Role() == lobby.RoleGoat {
		r.denied(h, protocol.KindCommand)
		return
	}

	res, err := r.interp.Process(ctx, m.Command)
	if err != nil {
		r.logger.Warn("command interpretation failed",
			zap.String("peer", h.ID()),
			zap.Error(err),
		)
		res = interpreter.Unavailable()
	}

	out := protocol.NewCommandResult(res)
	if h.Role() == lobby.RolePrompter {
		// The whole lobby sees prompter commands take effect.
		r.broadcaster.Broadcast(h.LobbyCode(), out)
		return
	}
	// Spectator commands are conversational only.
	r.broadcaster.Unicast(h, out)
}

func (r *Router) handlePlayerState(h *Handle, m *protocol.PlayerState) {
	if h.Role() != lobby.RoleGoat {
		r.denied(h, protocol.KindPlayerState)
		return
	}
	r.broadcaster.BroadcastExcept(h.LobbyCode(), h.ID(), protocol.NewGameState(m.Data, m.Timestamp))
}

func (r *Router) handlePlaceItem(h *Handle, m *protocol.PlaceItem) {
	singlePlayerGoat := h.LobbyCode() == lobby.SinglePlayerCode && h.Role() == lobby.RoleGoat
	if h.Role() != lobby.RolePrompter && !singlePlayerGoat {
		r.denied(h, protocol.KindPlaceItem)
		return
	}
	r.broadcaster.Broadcast(h.LobbyCode(), protocol.NewPlaceItem(m.Data, m.Timestamp))
}

func (r *Router) handleGameEvent(h *Handle, m *protocol.GameEvent) {
	r.broadcaster.Broadcast(h.LobbyCode(), protocol.NewGameEvent(m.Data))

	if h.LobbyCode() == lobby.SinglePlayerCode && m.Terminal() {
		r.director.Interrupt(h)
	}
}

// denied sends the personal unauthorized-action reply. The loop continues.
func (r *Router) denied(h *Handle, kind string) {
	r.broadcaster.Unicast(h, protocol.NewError(
		protocol.CodeUnauthorizedAction,
		"role "+h.Role().String()+" may not send "+kind,
	))
}
