// Package director drives synthetic single-player events: a cancellable
// periodic task per connection that asks the command interpreter to generate
// an obstacle and delivers it as an ai_command envelope.
package director

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goatshell/server/internal/config"
	"github.com/goatshell/server/internal/game/lobby"
	"github.com/goatshell/server/internal/interpreter"
	"github.com/goatshell/server/internal/protocol"
)

// Director manages the generated-event loop for single-player connections.
// At most one loop is active per connection at any instant; a monotonically
// increasing generation counter per connection guarantees that a stale
// cancellation or delayed restart can never affect a newer loop.
type Director struct {
	interp      interpreter.Interpreter
	broadcaster *lobby.Broadcaster
	grace       time.Duration
	interval    time.Duration
	cooldown    time.Duration
	logger      *zap.Logger

	mu     sync.Mutex
	states map[string]*connState // peer ID → state
}

type connState struct {
	generation uint64
	cancel     context.CancelFunc
	peer       lobby.Peer
}

// NewDirector creates a Director.
//
// Precondition: cfg must be validated; interp, broadcaster, and logger must be non-nil.
func NewDirector(cfg config.DirectorConfig, interp interpreter.Interpreter, broadcaster *lobby.Broadcaster, logger *zap.Logger) *Director {
	return &Director{
		interp:      interp,
		broadcaster: broadcaster,
		grace:       cfg.GraceDelay,
		interval:    cfg.EventInterval,
		cooldown:    cfg.RestartCooldown,
		logger:      logger,
		states:      make(map[string]*connState),
	}
}

// Start begins directing the given connection. Any previously active loop for
// the same connection is cancelled first.
//
// Precondition: peer must be a single-player goat connection.
func (d *Director) Start(peer lobby.Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startLocked(peer)
}

// startLocked bumps the generation, cancels the old loop, and launches a new one.
func (d *Director) startLocked(peer lobby.Peer) {
	st := d.states[peer.ID()]
	if st == nil {
		st = &connState{peer: peer}
		d.states[peer.ID()] = st
	}
	if st.cancel != nil {
		st.cancel()
	}
	st.generation++
	gen := st.generation

	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel

	d.logger.Info("director started",
		zap.String("peer", peer.ID()),
		zap.Uint64("generation", gen),
	)
	go d.run(ctx, peer, gen)
}

// Interrupt cancels the active loop after a terminal game event and schedules
// a restart once the cooldown elapses. The restart is abandoned if the
// connection disconnected or a newer generation superseded it in the meantime.
func (d *Director) Interrupt(peer lobby.Peer) {
	d.mu.Lock()
	st, ok := d.states[peer.ID()]
	if !ok {
		d.mu.Unlock()
		return
	}
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	st.generation++
	gen := st.generation
	d.mu.Unlock()

	d.logger.Info("director interrupted",
		zap.String("peer", peer.ID()),
		zap.Uint64("generation", gen),
		zap.Duration("cooldown", d.cooldown),
	)

	go func() {
		time.Sleep(d.cooldown)

		d.mu.Lock()
		defer d.mu.Unlock()
		st, ok := d.states[peer.ID()]
		if !ok || st.generation != gen {
			// Disconnected or superseded while cooling down.
			return
		}
		d.startLocked(peer)
	}()
}

// Forget cancels any active loop for the connection and drops its state.
// Called from the router's disconnect path. Idempotent.
func (d *Director) Forget(peerID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.states[peerID]
	if !ok {
		return
	}
	if st.cancel != nil {
		st.cancel()
	}
	delete(d.states, peerID)
}

// Shutdown cancels every active loop.
func (d *Director) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, st := range d.states {
		if st.cancel != nil {
			st.cancel()
		}
		delete(d.states, id)
	}
}

// ActiveCount returns the number of tracked connections.
func (d *Director) ActiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.states)
}

// run is the periodic event loop. Cancellation is observed at every wait; a
// cancelled loop sends no further events.
func (d *Director) run(ctx context.Context, peer lobby.Peer, gen uint64) {
	if !d.sleep(ctx, d.grace) {
		return
	}

	for {
		res, err := d.interp.Generate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Warn("event generation failed",
				zap.String("peer", peer.ID()),
				zap.Uint64("generation", gen),
				zap.Error(err),
			)
			res = interpreter.Unavailable()
		}

		if ctx.Err() != nil {
			return
		}
		d.broadcaster.Unicast(peer, protocol.NewAICommand(res, float64(time.Now().UnixMilli())/1000.0))

		if !d.sleep(ctx, d.interval) {
			return
		}
	}
}

// sleep waits for dur or cancellation, reporting whether the loop should continue.
func (d *Director) sleep(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
