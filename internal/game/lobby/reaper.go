package lobby

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goatshell/server/internal/config"
)

// CloseReasonIdle is the machine-readable close reason sent to members of a
// reclaimed lobby.
const CloseReasonIdle = "idle_timeout"

// idleNotice is the system_message envelope broadcast before a lobby is
// reclaimed.
type idleNotice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// IdleReaper periodically reclaims lobbies whose last activity is older than
// the configured threshold. Each sweep iterates over a snapshot of the lobby
// set; lobbies removed concurrently by normal disconnects are simply skipped.
type IdleReaper struct {
	registry    *Registry
	broadcaster *Broadcaster
	threshold   time.Duration
	interval    time.Duration
	logger      *zap.Logger

	quit chan struct{}
	once sync.Once
}

// NewIdleReaper creates a reaper over the given registry.
//
// Precondition: cfg must be validated; registry, broadcaster, and logger must be non-nil.
func NewIdleReaper(cfg config.LobbyConfig, registry *Registry, broadcaster *Broadcaster, logger *zap.Logger) *IdleReaper {
	return &IdleReaper{
		registry:    registry,
		broadcaster: broadcaster,
		threshold:   cfg.IdleThreshold,
		interval:    cfg.ReapInterval,
		logger:      logger,
		quit:        make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called. Blocks, satisfying the
// lifecycle Service contract.
func (ir *IdleReaper) Start() error {
	ticker := time.NewTicker(ir.interval)
	defer ticker.Stop()

	ir.logger.Info("idle reaper started",
		zap.Duration("interval", ir.interval),
		zap.Duration("threshold", ir.threshold),
	)

	for {
		select {
		case <-ir.quit:
			return nil
		case <-ticker.C:
			ir.sweep()
		}
	}
}

// Stop terminates the sweep loop.
func (ir *IdleReaper) Stop() {
	ir.once.Do(func() { close(ir.quit) })
}

// sweep reclaims every lobby idle past the threshold: broadcast a shutdown
// notice, force-close each member with a machine-readable reason, then purge.
func (ir *IdleReaper) sweep() {
	start := time.Now()
	expired := ir.registry.Expired(ir.threshold)
	if len(expired) == 0 {
		return
	}

	for _, code := range expired {
		ir.broadcaster.Broadcast(code, idleNotice{
			Type:    "system_message",
			Message: "Lobby closed due to inactivity.",
			Reason:  CloseReasonIdle,
		})

		members := ir.registry.Purge(code)
		for _, m := range members {
			if err := m.Peer.Close(CloseReasonIdle); err != nil {
				ir.logger.Warn("closing idle peer",
					zap.String("lobby", code),
					zap.String("peer", m.Peer.ID()),
					zap.Error(err),
				)
			}
		}
		ir.logger.Info("idle lobby reclaimed",
			zap.String("lobby", code),
			zap.Int("members", len(members)),
		)
	}

	ir.logger.Info("idle sweep complete",
		zap.Int("reclaimed", len(expired)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
