package director

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/goatshell/server/internal/config"
	"github.com/goatshell/server/internal/game/lobby"
	"github.com/goatshell/server/internal/interpreter"
)

type fakePeer struct {
	id string

	mu    sync.Mutex
	sends []time.Time
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(_ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, time.Now())
	return nil
}

func (p *fakePeer) Close(_ string) error { return nil }

func (p *fakePeer) sendCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sends)
}

func (p *fakePeer) sendTimes() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Time, len(p.sends))
	copy(out, p.sends)
	return out
}

type fakeInterpreter struct{}

func (fakeInterpreter) Process(_ context.Context, _ string) (interpreter.Result, error) {
	return interpreter.Result{Response: "ok", Success: true}, nil
}

func (fakeInterpreter) Generate(_ context.Context) (interpreter.Result, error) {
	return interpreter.Result{Response: "incoming", Success: true, ObstacleType: "dart_wall"}, nil
}

func testDirectorConfig() config.DirectorConfig {
	return config.DirectorConfig{
		GraceDelay:      80 * time.Millisecond,
		EventInterval:   80 * time.Millisecond,
		RestartCooldown: 120 * time.Millisecond,
	}
}

func newTestDirector(t *testing.T) *Director {
	t.Helper()
	logger := zaptest.NewLogger(t)
	registry := lobby.NewRegistry(config.LobbyConfig{
		CodeLength:      6,
		CodeMaxAttempts: 100,
		IdleThreshold:   time.Hour,
		ReapInterval:    time.Hour,
	}, logger)
	broadcaster := lobby.NewBroadcaster(registry, logger)
	return NewDirector(testDirectorConfig(), fakeInterpreter{}, broadcaster, logger)
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestDirector_NoEventBeforeGrace(t *testing.T) {
	d := newTestDirector(t)
	defer d.Shutdown()

	peer := &fakePeer{id: "sp1"}
	d.Start(peer)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, peer.sendCount(), "no event may arrive before the grace delay")

	require.True(t, waitFor(t, time.Second, func() bool { return peer.sendCount() >= 1 }))
}

func TestDirector_EventsSpacedByInterval(t *testing.T) {
	d := newTestDirector(t)
	defer d.Shutdown()

	peer := &fakePeer{id: "sp1"}
	d.Start(peer)

	require.True(t, waitFor(t, 2*time.Second, func() bool { return peer.sendCount() >= 3 }))

	times := peer.sendTimes()
	for i := 1; i < 3; i++ {
		gap := times[i].Sub(times[i-1])
		assert.GreaterOrEqual(t, gap, 60*time.Millisecond,
			"events %d and %d arrived %v apart", i-1, i, gap)
	}
}

func TestDirector_InterruptHaltsEvents(t *testing.T) {
	d := newTestDirector(t)
	defer d.Shutdown()

	peer := &fakePeer{id: "sp1"}
	d.Start(peer)
	require.True(t, waitFor(t, time.Second, func() bool { return peer.sendCount() >= 1 }))

	d.Interrupt(peer)

	// An event may already be in flight; let it land before snapshotting.
	time.Sleep(20 * time.Millisecond)
	halted := peer.sendCount()

	// Inside the cooldown window no further events arrive.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, halted, peer.sendCount())
}

func TestDirector_InterruptResumesAfterCooldown(t *testing.T) {
	d := newTestDirector(t)
	defer d.Shutdown()

	peer := &fakePeer{id: "sp1"}
	d.Start(peer)
	require.True(t, waitFor(t, time.Second, func() bool { return peer.sendCount() >= 1 }))

	d.Interrupt(peer)
	halted := peer.sendCount()

	// cooldown + grace later, events resume.
	require.True(t, waitFor(t, 2*time.Second, func() bool { return peer.sendCount() > halted }))
}

func TestDirector_ForgetStopsPermanently(t *testing.T) {
	d := newTestDirector(t)

	peer := &fakePeer{id: "sp1"}
	d.Start(peer)
	require.True(t, waitFor(t, time.Second, func() bool { return peer.sendCount() >= 1 }))

	d.Forget(peer.ID())
	assert.Equal(t, 0, d.ActiveCount())

	time.Sleep(20 * time.Millisecond)
	count := peer.sendCount()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, count, peer.sendCount(), "no events after Forget")
}

func TestDirector_DisconnectDuringCooldownAbandonsRestart(t *testing.T) {
	d := newTestDirector(t)

	peer := &fakePeer{id: "sp1"}
	d.Start(peer)
	require.True(t, waitFor(t, time.Second, func() bool { return peer.sendCount() >= 1 }))

	d.Interrupt(peer)
	d.Forget(peer.ID())

	time.Sleep(20 * time.Millisecond)
	count := peer.sendCount()
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, count, peer.sendCount(), "a stale restart must not resurrect the loop")
	assert.Equal(t, 0, d.ActiveCount())
}

func TestDirector_RestartSupersededByNewerGeneration(t *testing.T) {
	d := newTestDirector(t)
	defer d.Shutdown()

	peer := &fakePeer{id: "sp1"}
	d.Start(peer)
	require.True(t, waitFor(t, time.Second, func() bool { return peer.sendCount() >= 1 }))

	// A second interrupt supersedes the first pending restart; only one loop
	// may come back.
	d.Interrupt(peer)
	d.Interrupt(peer)

	require.True(t, waitFor(t, 2*time.Second, func() bool { return peer.sendCount() >= 3 }))
	times := peer.sendTimes()
	last := times[len(times)-1]
	prev := times[len(times)-2]
	assert.GreaterOrEqual(t, last.Sub(prev), 60*time.Millisecond,
		"two racing loops would halve the event spacing")
}

func TestDirector_ForgetUnknownPeerIsNoop(t *testing.T) {
	d := newTestDirector(t)
	d.Forget("ghost")
	d.Interrupt(&fakePeer{id: "ghost"})
	assert.Equal(t, 0, d.ActiveCount())
}

func TestDirector_ShutdownCancelsAll(t *testing.T) {
	d := newTestDirector(t)

	p1 := &fakePeer{id: "sp1"}
	p2 := &fakePeer{id: "sp2"}
	d.Start(p1)
	d.Start(p2)
	assert.Equal(t, 2, d.ActiveCount())

	d.Shutdown()
	assert.Equal(t, 0, d.ActiveCount())
}
