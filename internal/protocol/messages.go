// Package protocol defines the JSON message envelopes exchanged over the
// WebSocket transport. Inbound envelopes are decoded into a closed set of
// typed messages up front; unrecognized kinds surface as a typed decode error
// routed to the standard error reply path.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/goatshell/server/internal/game/lobby"
	"github.com/goatshell/server/internal/interpreter"
	"github.com/goatshell/server/internal/session"
)

// Client-to-server message kinds.
const (
	KindStartGame       = "start_game"
	KindCommand         = "command"
	KindPlayerState     = "player_state"
	KindPlaceItem       = "place_item"
	KindGameEvent       = "game_event"
	KindPing            = "ping"
	KindGetSessionToken = "get_session_token"
)

// Server-to-client message kinds.
const (
	KindWelcome       = "welcome"
	KindSystemMessage = "system_message"
	KindPlayerJoined  = "player_joined"
	KindPlayerLeft    = "player_left"
	KindPong          = "pong"
	KindCommandResult = "command_result"
	KindGameState     = "game_state"
	KindAICommand     = "ai_command"
	KindSessionToken  = "session_token"
	KindError         = "error"
	KindLobbyReady    = "lobby_ready"
)

// Error codes carried in Error envelopes.
const (
	CodeRoleConflict       = "role_conflict"
	CodeInvalidRole        = "invalid_role"
	CodeUnauthorizedAction = "unauthorized_action"
	CodeUnknownMessageKind = "unknown_message_kind"
	CodeMalformedEnvelope  = "malformed_envelope"
	CodeLobbyNotReady      = "lobby_not_ready"
)

// Terminal single-player game event outcomes.
const (
	EventWin      = "win"
	EventGameOver = "gameover"
)

// Inbound is one decoded client-to-server message.
type Inbound interface {
	isInbound()
}

// StartGame asks the broker to signal lobby readiness.
type StartGame struct{}

// Command carries free text for the command interpreter.
type Command struct {
	Command   string  `json:"command"`
	Timestamp float64 `json:"timestamp"`
}

// PlayerState carries the goat's physics state for relay to the lobby.
type PlayerState struct {
	Data      json.RawMessage `json:"data"`
	Timestamp float64         `json:"timestamp"`
}

// PlaceItem carries an item placement for relay to the lobby.
type PlaceItem struct {
	Data      json.RawMessage `json:"data"`
	Timestamp float64         `json:"timestamp"`
}

// GameEvent carries a gameplay event; win and gameover are terminal in
// single-player mode.
type GameEvent struct {
	Data GameEventData `json:"data"`
}

// GameEventData is the payload of a GameEvent.
type GameEventData struct {
	EventType string  `json:"event_type"`
	Timestamp float64 `json:"timestamp"`
}

// Terminal reports whether the event ends a single-player run.
func (g GameEvent) Terminal() bool {
	return g.Data.EventType == EventWin || g.Data.EventType == EventGameOver
}

// Ping requests a pong echo.
type Ping struct {
	Timestamp float64 `json:"timestamp"`
}

// GetSessionToken requests a freshly minted session token.
type GetSessionToken struct{}

func (StartGame) isInbound()       {}
func (Command) isInbound()         {}
func (PlayerState) isInbound()     {}
func (PlaceItem) isInbound()       {}
func (GameEvent) isInbound()       {}
func (Ping) isInbound()            {}
func (GetSessionToken) isInbound() {}

// UnknownKindError is returned by DecodeInbound for kinds outside the closed set.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown message kind %q", e.Kind)
}

// DecodeInbound decodes one client envelope into its typed message.
//
// Postcondition: Returns a typed Inbound, an *UnknownKindError for an
// unrecognized type field, or a wrapped error for malformed JSON.
func DecodeInbound(data []byte) (Inbound, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}

	switch probe.Type {
	case KindStartGame:
		var m StartGame
		return &m, nil
	case KindCommand:
		var m Command
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", probe.Type, err)
		}
		return &m, nil
	case KindPlayerState:
		var m PlayerState
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", probe.Type, err)
		}
		return &m, nil
	case KindPlaceItem:
		var m PlaceItem
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", probe.Type, err)
		}
		return &m, nil
	case KindGameEvent:
		var m GameEvent
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", probe.Type, err)
		}
		return &m, nil
	case KindPing:
		var m Ping
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", probe.Type, err)
		}
		return &m, nil
	case KindGetSessionToken:
		var m GetSessionToken
		return &m, nil
	default:
		return nil, &UnknownKindError{Kind: probe.Type}
	}
}

// Welcome greets a newly admitted connection.
type Welcome struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Lobby     lobby.Snapshot `json:"lobby"`
	Message   string         `json:"message"`
}

// NewWelcome builds the admission greeting.
func NewWelcome(sessionID string, snap lobby.Snapshot) Welcome {
	return Welcome{
		Type:      KindWelcome,
		SessionID: sessionID,
		Lobby:     snap,
		Message:   fmt.Sprintf("Connected to lobby %s", snap.Code),
	}
}

// SystemMessage is a broker-originated informational notice.
type SystemMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewSystemMessage builds a system notice.
func NewSystemMessage(message string) SystemMessage {
	return SystemMessage{Type: KindSystemMessage, Message: message}
}

// PlayerJoined announces a new member and the updated occupancy.
type PlayerJoined struct {
	Type  string         `json:"type"`
	Role  string         `json:"role"`
	Lobby lobby.Snapshot `json:"lobby"`
}

// NewPlayerJoined builds a join announcement.
func NewPlayerJoined(role lobby.Role, snap lobby.Snapshot) PlayerJoined {
	return PlayerJoined{Type: KindPlayerJoined, Role: role.String(), Lobby: snap}
}

// PlayerLeft announces a departure and the updated occupancy.
type PlayerLeft struct {
	Type  string         `json:"type"`
	Role  string         `json:"role"`
	Lobby lobby.Snapshot `json:"lobby"`
}

// NewPlayerLeft builds a departure announcement.
func NewPlayerLeft(role lobby.Role, snap lobby.Snapshot) PlayerLeft {
	return PlayerLeft{Type: KindPlayerLeft, Role: role.String(), Lobby: snap}
}

// Pong echoes a ping timestamp with the current lobby snapshot.
type Pong struct {
	Type      string         `json:"type"`
	Timestamp float64        `json:"timestamp"`
	Lobby     lobby.Snapshot `json:"lobby"`
}

// NewPong builds a ping reply.
func NewPong(timestamp float64, snap lobby.Snapshot) Pong {
	return Pong{Type: KindPong, Timestamp: timestamp, Lobby: snap}
}

// CommandResult carries an interpreter result to clients.
type CommandResult struct {
	Type string `json:"type"`
	interpreter.Result
}

// NewCommandResult wraps an interpreter result for the wire.
func NewCommandResult(res interpreter.Result) CommandResult {
	return CommandResult{Type: KindCommandResult, Result: res}
}

// GameState relays the goat's state to the rest of the lobby.
type GameState struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp float64         `json:"timestamp"`
}

// NewGameState builds a state relay envelope.
func NewGameState(data json.RawMessage, timestamp float64) GameState {
	return GameState{Type: KindGameState, Data: data, Timestamp: timestamp}
}

// PlaceItemOut relays an item placement to the lobby.
type PlaceItemOut struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp float64         `json:"timestamp"`
}

// NewPlaceItem builds an item placement relay envelope.
func NewPlaceItem(data json.RawMessage, timestamp float64) PlaceItemOut {
	return PlaceItemOut{Type: KindPlaceItem, Data: data, Timestamp: timestamp}
}

// GameEventOut relays a gameplay event to the lobby.
type GameEventOut struct {
	Type string        `json:"type"`
	Data GameEventData `json:"data"`
}

// NewGameEvent builds a gameplay event relay envelope.
func NewGameEvent(data GameEventData) GameEventOut {
	return GameEventOut{Type: KindGameEvent, Data: data}
}

// AICommand carries a generated single-player event.
type AICommand struct {
	Type string `json:"type"`
	interpreter.Result
	Timestamp float64 `json:"timestamp"`
}

// NewAICommand wraps a generated interpreter result for the wire.
func NewAICommand(res interpreter.Result, timestamp float64) AICommand {
	return AICommand{Type: KindAICommand, Result: res, Timestamp: timestamp}
}

// SessionToken delivers a freshly minted token.
type SessionToken struct {
	Type string `json:"type"`
	session.Token
}

// NewSessionToken wraps a token for the wire.
func NewSessionToken(tok session.Token) SessionToken {
	return SessionToken{Type: KindSessionToken, Token: tok}
}

// Error is a personal error reply. Receiving one never closes the connection.
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds a typed error reply.
func NewError(code, message string) Error {
	return Error{Type: KindError, Code: code, Message: message}
}

// LobbyReady announces that both exclusive roles are present.
type LobbyReady struct {
	Type  string         `json:"type"`
	Lobby lobby.Snapshot `json:"lobby"`
}

// NewLobbyReady builds a readiness announcement.
func NewLobbyReady(snap lobby.Snapshot) LobbyReady {
	return LobbyReady{Type: KindLobbyReady, Lobby: snap}
}
