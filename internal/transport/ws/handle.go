// Package ws provides the WebSocket transport: the connection handle, the
// per-connection message router, and the HTTP upgrade endpoint.
package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/goatshell/server/internal/game/lobby"
)

// writeTimeout bounds each outbound frame so one stalled peer cannot wedge a
// broadcast.
const writeTimeout = 10 * time.Second

// Handle is one live WebSocket endpoint with its assigned role and lobby
// membership. It satisfies lobby.Peer. Writes are serialized through a mutex;
// gorilla/websocket permits at most one concurrent writer.
type Handle struct {
	id        string
	role      lobby.Role
	lobbyCode string
	conn      *websocket.Conn

	writeMu sync.Mutex
	closed  bool
}

// NewHandle wraps an upgraded connection.
//
// Precondition: conn must be non-nil; role must be valid.
func NewHandle(conn *websocket.Conn, role lobby.Role, lobbyCode string) *Handle {
	return &Handle{
		id:        uuid.NewString(),
		role:      role,
		lobbyCode: lobbyCode,
		conn:      conn,
	}
}

// ID returns the opaque connection identity.
func (h *Handle) ID() string { return h.id }

// Role returns the role assigned at admission.
func (h *Handle) Role() lobby.Role { return h.role }

// LobbyCode returns the owning lobby code.
func (h *Handle) LobbyCode() string { return h.lobbyCode }

// Send writes one JSON message to the peer.
//
// Postcondition: Returns an error if the handle is closed or the write fails.
func (h *Handle) Send(v any) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if h.closed {
		return fmt.Errorf("handle %s is closed", h.id)
	}
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := h.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("writing to %s: %w", h.id, err)
	}
	return nil
}

// Close sends a close frame carrying a machine-readable reason, then closes
// the underlying connection. Idempotent.
func (h *Handle) Close(reason string) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = h.conn.WriteMessage(websocket.CloseMessage, msg)
	return h.conn.Close()
}

// IsClosed reports whether Close has been called.
func (h *Handle) IsClosed() bool {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.closed
}
