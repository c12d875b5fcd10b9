package lobby

import (
	"go.uber.org/zap"
)

// Broadcaster fans messages out to lobby members. Per-peer delivery failures
// are isolated: one failing peer never prevents delivery to the rest, and no
// broadcast call escalates an error to its caller. Failing peers are left for
// the router's disconnect path to remove.
type Broadcaster struct {
	registry *Registry
	logger   *zap.Logger
}

// NewBroadcaster creates a Broadcaster over the given registry.
//
// Precondition: registry and logger must be non-nil.
func NewBroadcaster(registry *Registry, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		logger:   logger,
	}
}

// Broadcast delivers v to every member currently bound to code and stamps the
// lobby's activity clock. Membership is snapshotted up front, so the set of
// recipients is fixed relative to concurrent registry mutations.
//
// Postcondition: Returns the number of successful deliveries.
func (b *Broadcaster) Broadcast(code string, v any) int {
	members := b.registry.Members(code)
	if len(members) == 0 {
		return 0
	}

	delivered := 0
	for _, m := range members {
		if err := m.Peer.Send(v); err != nil {
			b.logger.Warn("broadcast delivery failed",
				zap.String("lobby", code),
				zap.String("peer", m.Peer.ID()),
				zap.String("role", m.Role.String()),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}

	b.registry.Touch(code)
	return delivered
}

// BroadcastExcept delivers v to every member of code except the peer with the
// given ID. Used for relaying one member's state to the rest of the lobby.
//
// Postcondition: Returns the number of successful deliveries.
func (b *Broadcaster) BroadcastExcept(code string, exceptID string, v any) int {
	members := b.registry.Members(code)
	delivered := 0
	for _, m := range members {
		if m.Peer.ID() == exceptID {
			continue
		}
		if err := m.Peer.Send(v); err != nil {
			b.logger.Warn("broadcast delivery failed",
				zap.String("lobby", code),
				zap.String("peer", m.Peer.ID()),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}

	b.registry.Touch(code)
	return delivered
}

// Unicast delivers v to exactly one peer and stamps its lobby's activity
// clock. Failures are logged, never escalated.
func (b *Broadcaster) Unicast(peer Peer, v any) {
	if err := peer.Send(v); err != nil {
		b.logger.Warn("unicast delivery failed",
			zap.String("peer", peer.ID()),
			zap.Error(err),
		)
		return
	}
	if code, ok := b.registry.LobbyOf(peer.ID()); ok {
		b.registry.Touch(code)
	}
}
