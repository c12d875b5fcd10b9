package lobby

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBroadcaster_DeliversToAllMembers(t *testing.T) {
	r := newTestRegistry(t)
	b := NewBroadcaster(r, zaptest.NewLogger(t))

	goat := newFakePeer("g1")
	prompter := newFakePeer("pr1")
	spectator := newFakePeer("s1")
	_, _ = r.Admit("ABC123", RoleGoat, goat)
	_, _ = r.Admit("ABC123", RolePrompter, prompter)
	_, _ = r.Admit("ABC123", RoleSpectator, spectator)

	delivered := b.Broadcast("ABC123", "hello")
	assert.Equal(t, 3, delivered)
	assert.Equal(t, 1, goat.sentCount())
	assert.Equal(t, 1, prompter.sentCount())
	assert.Equal(t, 1, spectator.sentCount())
}

func TestBroadcaster_IsolatesFailingPeer(t *testing.T) {
	r := newTestRegistry(t)
	b := NewBroadcaster(r, zaptest.NewLogger(t))

	ok1 := newFakePeer("ok1")
	bad := newFakePeer("bad")
	bad.failSend = true
	ok2 := newFakePeer("ok2")
	_, _ = r.Admit("ABC123", RoleGoat, ok1)
	_, _ = r.Admit("ABC123", RolePrompter, bad)
	_, _ = r.Admit("ABC123", RoleSpectator, ok2)

	delivered := b.Broadcast("ABC123", "hello")
	assert.Equal(t, 2, delivered)
	assert.Equal(t, 1, ok1.sentCount())
	assert.Equal(t, 1, ok2.sentCount())

	// The failing peer is not removed here; that is the router's job.
	snap, err := r.Lookup("ABC123")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.MemberCount)
}

func TestBroadcaster_UnknownLobbyDeliversNothing(t *testing.T) {
	r := newTestRegistry(t)
	b := NewBroadcaster(r, zaptest.NewLogger(t))
	assert.Equal(t, 0, b.Broadcast("NOPE42", "hello"))
}

func TestBroadcaster_BroadcastExcept(t *testing.T) {
	r := newTestRegistry(t)
	b := NewBroadcaster(r, zaptest.NewLogger(t))

	goat := newFakePeer("g1")
	prompter := newFakePeer("pr1")
	_, _ = r.Admit("ABC123", RoleGoat, goat)
	_, _ = r.Admit("ABC123", RolePrompter, prompter)

	delivered := b.BroadcastExcept("ABC123", "g1", "state")
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, goat.sentCount())
	assert.Equal(t, 1, prompter.sentCount())
}

func TestBroadcaster_BroadcastTouchesLobby(t *testing.T) {
	r := newTestRegistry(t)
	b := NewBroadcaster(r, zaptest.NewLogger(t))

	base := time.Now()
	r.now = func() time.Time { return base }
	_, _ = r.Admit("ABC123", RoleGoat, newFakePeer("g1"))

	r.now = func() time.Time { return base.Add(59 * time.Minute) }
	b.Broadcast("ABC123", "keepalive")

	r.now = func() time.Time { return base.Add(90 * time.Minute) }
	assert.Empty(t, r.Expired(time.Hour))
}

func TestBroadcaster_UnicastFailureLoggedNotEscalated(t *testing.T) {
	r := newTestRegistry(t)
	b := NewBroadcaster(r, zaptest.NewLogger(t))

	bad := newFakePeer("bad")
	bad.failSend = true
	_, _ = r.Admit("ABC123", RoleGoat, bad)

	// Must not panic or return anything to escalate.
	b.Unicast(bad, "hello")
	assert.Equal(t, 0, bad.sentCount())
}
