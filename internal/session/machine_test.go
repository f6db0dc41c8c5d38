package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letscooee/cooee-go/internal/kv"
)

const idle = 30 * time.Minute

func newMachineAt(store kv.Store, at *time.Time) *Machine {
	m := NewMachine(store, idle)
	m.now = func() time.Time { return *at }
	return m
}

func TestEnsureActive_FirstRunStartsSession(t *testing.T) {
	now := time.Now()
	m := newMachineAt(kv.NewMemoryStore(), &now)

	started := m.EnsureActive()
	assert.True(t, started)

	id, number, ok := m.Current()
	require.True(t, ok)
	assert.NotEmpty(t, id)
	assert.Equal(t, int64(1), number)
}

func TestEnsureActive_RehydratesWithinIdleWindow(t *testing.T) {
	store := kv.NewMemoryStore()
	now := time.Now()

	first := newMachineAt(store, &now)
	require.True(t, first.EnsureActive())
	id, number, _ := first.Current()

	// A new page load ten minutes later rehydrates silently
	now = now.Add(10 * time.Minute)
	second := newMachineAt(store, &now)
	assert.False(t, second.EnsureActive())

	gotID, gotNumber, ok := second.Current()
	require.True(t, ok)
	assert.Equal(t, id, gotID)
	assert.Equal(t, number, gotNumber)
}

func TestEnsureActive_IdleElapsedStartsNewSession(t *testing.T) {
	store := kv.NewMemoryStore()
	now := time.Now()

	first := newMachineAt(store, &now)
	first.EnsureActive()
	oldID, oldNumber, _ := first.Current()

	now = now.Add(idle + time.Minute)
	second := newMachineAt(store, &now)
	assert.True(t, second.EnsureActive())

	id, number, _ := second.Current()
	assert.NotEqual(t, oldID, id)
	assert.Greater(t, number, oldNumber, "session number strictly increases")
}

func TestConclude(t *testing.T) {
	store := kv.NewMemoryStore()
	now := time.Now()
	m := newMachineAt(store, &now)
	m.EnsureActive()
	id, _, _ := m.Current()

	now = now.Add(95 * time.Second)
	out, err := m.Conclude()
	require.NoError(t, err)
	assert.Equal(t, id, out.SessionID)
	assert.Equal(t, 95*time.Second, out.Duration)

	// Back to NO_SESSION; id and start are cleared, number survives
	_, _, ok := m.Current()
	assert.False(t, ok)
	assert.False(t, kv.Has(store, kv.KeySessionID))
	assert.False(t, kv.Has(store, kv.KeySessionStart))
	assert.Equal(t, "1", kv.GetDefault(store, kv.KeySessionNumber, ""))

	// Concluding with no active session is an error
	_, err = m.Conclude()
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestSessionNumber_SurvivesConclusion(t *testing.T) {
	store := kv.NewMemoryStore()
	now := time.Now()
	m := newMachineAt(store, &now)

	m.EnsureActive()
	_, err := m.Conclude()
	require.NoError(t, err)

	id, number := m.StartNew()
	assert.NotEmpty(t, id)
	assert.Equal(t, int64(2), number)
}

func TestSetVisible_IdleExpiryOnReturn(t *testing.T) {
	store := kv.NewMemoryStore()
	now := time.Now()
	m := newMachineAt(store, &now)
	m.EnsureActive()

	// Hide, come back quickly: nothing expires
	m.SetVisible(false)
	now = now.Add(time.Minute)
	assert.False(t, m.SetVisible(true))

	// Hide, come back after the idle window: expired
	m.SetVisible(false)
	now = now.Add(idle + time.Second)
	assert.True(t, m.SetVisible(true))

	// The caller then concludes and starts anew with a greater number
	_, oldNumber, _ := m.Current()
	_, err := m.Conclude()
	require.NoError(t, err)
	_, newNumber := m.StartNew()
	assert.Greater(t, newNumber, oldNumber)
}

func TestTouch_PushesIdleDeadline(t *testing.T) {
	store := kv.NewMemoryStore()
	now := time.Now()
	m := newMachineAt(store, &now)
	m.EnsureActive()

	now = now.Add(idle - time.Minute)
	m.Touch()

	now = now.Add(idle - time.Minute)
	assert.False(t, m.IdleExceeded())

	now = now.Add(2 * time.Minute)
	assert.True(t, m.IdleExceeded())
}
