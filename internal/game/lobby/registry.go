package lobby

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goatshell/server/internal/config"
)

// SinglePlayerCode is the reserved lobby code for single-player sessions.
const SinglePlayerCode = "SINGLEPLAYER"

// codeAlphabet is the character set for generated lobby codes.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	// ErrRoleConflict indicates an exclusive role is already held in the lobby.
	ErrRoleConflict = errors.New("role already occupied in lobby")
	// ErrNotFound indicates the lobby code is not present in the registry.
	ErrNotFound = errors.New("lobby not found")
	// ErrCodeExhausted indicates unique code generation exceeded its retry budget.
	ErrCodeExhausted = errors.New("lobby code generation exhausted retry budget")
)

// Peer is one live transport endpoint. The registry references peers but does
// not own them; the connection's router loop owns the underlying transport.
type Peer interface {
	// ID returns the opaque connection identity.
	ID() string
	// Send delivers one message to the peer.
	Send(v any) error
	// Close force-closes the peer with a machine-readable reason.
	Close(reason string) error
}

// Member binds a peer to its role within a lobby.
type Member struct {
	Peer Peer
	Role Role
}

// Snapshot is a point-in-time occupancy view of a lobby.
type Snapshot struct {
	Code        string `json:"code"`
	MemberCount int    `json:"member_count"`
	HasGoat     bool   `json:"has_goat"`
	HasPrompter bool   `json:"has_prompter"`
}

type lobbyState struct {
	code         string
	createdAt    time.Time
	lastActivity time.Time
	members      map[string]Member // peer ID → member
	hasGoat      bool
	hasPrompter  bool
}

func (ls *lobbyState) snapshot() Snapshot {
	return Snapshot{
		Code:        ls.code,
		MemberCount: len(ls.members),
		HasGoat:     ls.hasGoat,
		HasPrompter: ls.hasPrompter,
	}
}

// Registry is the authoritative map of lobby code → members and occupancy.
// All methods are safe for concurrent use; every mutation is serialized
// through a single mutex.
//
// Invariant: a lobby is present iff it has at least one member.
// Invariant: at most one member holds goat, at most one holds prompter.
type Registry struct {
	mu      sync.RWMutex
	lobbies map[string]*lobbyState
	byPeer  map[string]string // peer ID → lobby code

	codeLength      int
	codeMaxAttempts int
	logger          *zap.Logger
	now             func() time.Time
}

// NewRegistry creates an empty lobby Registry.
//
// Precondition: cfg must be validated; logger must be non-nil.
func NewRegistry(cfg config.LobbyConfig, logger *zap.Logger) *Registry {
	return &Registry{
		lobbies:         make(map[string]*lobbyState),
		byPeer:          make(map[string]string),
		codeLength:      cfg.CodeLength,
		codeMaxAttempts: cfg.CodeMaxAttempts,
		logger:          logger,
		now:             time.Now,
	}
}

// Admit binds a peer to the lobby identified by code, creating the lobby on
// first admission to an unknown code.
//
// Precondition: role must be a valid Role; peer must be non-nil.
// Postcondition: Returns the post-admission Snapshot, or ErrRoleConflict when
// an exclusive role is already held. A rejected admission changes no state.
func (r *Registry) Admit(code string, role Role, peer Peer) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ls, ok := r.lobbies[code]
	if !ok {
		ls = &lobbyState{
			code:      code,
			createdAt: r.now(),
			members:   make(map[string]Member),
		}
	}

	switch role {
	case RoleGoat:
		if ls.hasGoat {
			return Snapshot{}, fmt.Errorf("admitting goat to %s: %w", code, ErrRoleConflict)
		}
		ls.hasGoat = true
	case RolePrompter:
		if ls.hasPrompter {
			return Snapshot{}, fmt.Errorf("admitting prompter to %s: %w", code, ErrRoleConflict)
		}
		ls.hasPrompter = true
	case RoleSpectator:
		// unbounded
	}

	ls.members[peer.ID()] = Member{Peer: peer, Role: role}
	ls.lastActivity = r.now()
	r.lobbies[code] = ls
	r.byPeer[peer.ID()] = code

	r.logger.Info("peer admitted",
		zap.String("lobby", code),
		zap.String("role", role.String()),
		zap.String("peer", peer.ID()),
		zap.Int("members", len(ls.members)),
	)
	return ls.snapshot(), nil
}

// Remove unbinds the peer from its lobby. The lobby is deleted entirely when
// its last member leaves. Unknown peers are a no-op.
//
// Postcondition: Returns the post-removal Snapshot (MemberCount 0 when the
// lobby was deleted) and whether the peer was bound at all.
func (r *Registry) Remove(peerID string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.byPeer[peerID]
	if !ok {
		return Snapshot{}, false
	}
	delete(r.byPeer, peerID)

	ls := r.lobbies[code]
	member, ok := ls.members[peerID]
	if ok {
		delete(ls.members, peerID)
		switch member.Role {
		case RoleGoat:
			ls.hasGoat = false
		case RolePrompter:
			ls.hasPrompter = false
		}
	}

	if len(ls.members) == 0 {
		delete(r.lobbies, code)
		r.logger.Info("lobby deleted", zap.String("lobby", code))
		return Snapshot{Code: code}, true
	}

	r.logger.Info("peer removed",
		zap.String("lobby", code),
		zap.String("peer", peerID),
		zap.Int("members", len(ls.members)),
	)
	return ls.snapshot(), true
}

// Touch updates the lobby's last-activity timestamp. Unknown codes are a no-op.
func (r *Registry) Touch(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ls, ok := r.lobbies[code]; ok {
		ls.lastActivity = r.now()
	}
}

// Lookup returns the occupancy snapshot for code.
//
// Postcondition: Returns ErrNotFound when the lobby does not exist.
func (r *Registry) Lookup(code string) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ls, ok := r.lobbies[code]
	if !ok {
		return Snapshot{}, fmt.Errorf("lobby %s: %w", code, ErrNotFound)
	}
	return ls.snapshot(), nil
}

// LobbyOf returns the lobby code the peer is bound to.
func (r *Registry) LobbyOf(peerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.byPeer[peerID]
	return code, ok
}

// Members returns a point-in-time copy of the lobby's member list. Callers
// deliver to this snapshot without holding the registry lock, so a peer
// admitted mid-broadcast receives either the whole message or none of it.
func (r *Registry) Members(code string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ls, ok := r.lobbies[code]
	if !ok {
		return nil
	}
	out := make([]Member, 0, len(ls.members))
	for _, m := range ls.members {
		out = append(out, m)
	}
	return out
}

// Expired returns the codes of all lobbies idle longer than threshold.
// The result is a snapshot; membership may change while the caller iterates.
func (r *Registry) Expired(threshold time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.now()
	var codes []string
	for code, ls := range r.lobbies {
		if now.Sub(ls.lastActivity) > threshold {
			codes = append(codes, code)
		}
	}
	return codes
}

// Purge removes an entire lobby and all member bindings, returning the
// members that were bound so the caller can close them.
func (r *Registry) Purge(code string) []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls, ok := r.lobbies[code]
	if !ok {
		return nil
	}
	members := make([]Member, 0, len(ls.members))
	for id, m := range ls.members {
		members = append(members, m)
		delete(r.byPeer, id)
	}
	delete(r.lobbies, code)
	r.logger.Info("lobby purged", zap.String("lobby", code), zap.Int("members", len(members)))
	return members
}

// GenerateUniqueCode draws random codes until one not present in the registry
// is found.
//
// Postcondition: Returns an unused code, or ErrCodeExhausted once the attempt
// budget is spent. Never retries unboundedly under collision pressure.
func (r *Registry) GenerateUniqueCode() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	buf := make([]byte, r.codeLength)
	for attempt := 0; attempt < r.codeMaxAttempts; attempt++ {
		for i := range buf {
			buf[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := r.lobbies[code]; !taken && code != SinglePlayerCode {
			return code, nil
		}
	}
	return "", fmt.Errorf("after %d attempts: %w", r.codeMaxAttempts, ErrCodeExhausted)
}

// Status returns the total connection count and a snapshot of every lobby,
// for the websocket-status endpoint.
func (r *Registry) Status() (int, []Snapshot) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	snaps := make([]Snapshot, 0, len(r.lobbies))
	for _, ls := range r.lobbies {
		total += len(ls.members)
		snaps = append(snaps, ls.snapshot())
	}
	return total, snaps
}

// LobbyCount returns the number of active lobbies.
func (r *Registry) LobbyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lobbies)
}
