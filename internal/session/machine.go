// Package session tracks the current session id/number and the
// idle-timeout-driven renewal cycle without any server round-trip.
package session

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/letscooee/cooee-go/internal/kv"
)

// ErrNoActiveSession is returned by Conclude when no session is active;
// the duration of a never-started session is undefined.
var ErrNoActiveSession = errors.New("session: no active session to conclude")

// Concluded reports the outcome of ending a session.
type Concluded struct {
	SessionID string
	Occurred  time.Time
	Duration  time.Duration
}

// Machine is the NO_SESSION -> ACTIVE -> (IDLE_EXPIRED) -> NO_SESSION
// lifecycle. Session numbers strictly increase across the identity's
// lifetime; ids are minted fresh per session.
type Machine struct {
	store kv.Store
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	sessionID string
	number    int64
	startTime time.Time

	lastVisible time.Time
	lastHidden  time.Time
}

// NewMachine creates the machine over the durable store. idle is the
// inactivity window after which the next activity rolls the session.
func NewMachine(store kv.Store, idle time.Duration) *Machine {
	return &Machine{store: store, idle: idle, now: time.Now}
}

// EnsureActive moves the machine to ACTIVE. It rehydrates the persisted
// session when one exists and the idle threshold has not elapsed since
// the last recorded activity; otherwise it starts a new session.
// It reports whether a new session was started, so the caller knows to
// emit a "session started" event (rehydration emits nothing).
func (m *Machine) EnsureActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionID != "" {
		return false
	}

	persisted, err := m.store.Get(kv.KeySessionID)
	if err == nil && persisted != "" && !m.idleExceededLocked() {
		m.sessionID = persisted
		m.number = parseInt(kv.GetDefault(m.store, kv.KeySessionNumber, "0"))
		m.startTime = time.UnixMilli(parseInt(kv.GetDefault(m.store, kv.KeySessionStart, "0")))
		m.touchLocked()
		log.Debug().Str("session_id", m.sessionID).Int64("number", m.number).Msg("Rehydrated session")
		return false
	}

	m.startLocked()
	return true
}

// StartNew unconditionally begins a new session, replacing any active
// one, and returns its id and number.
func (m *Machine) StartNew() (string, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startLocked()
	return m.sessionID, m.number
}

func (m *Machine) startLocked() {
	m.sessionID = uuid.NewString()
	m.number = parseInt(kv.GetDefault(m.store, kv.KeySessionNumber, "0")) + 1
	m.startTime = m.now()

	m.store.Set(kv.KeySessionID, m.sessionID)
	m.store.Set(kv.KeySessionNumber, strconv.FormatInt(m.number, 10))
	m.store.Set(kv.KeySessionStart, strconv.FormatInt(m.startTime.UnixMilli(), 10))
	m.touchLocked()

	log.Info().Str("session_id", m.sessionID).Int64("number", m.number).Msg("Session started")
}

// Current returns the active session id and number. ok is false in
// NO_SESSION.
func (m *Machine) Current() (id string, number int64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID, m.number, m.sessionID != ""
}

// Touch records activity now, pushing the idle deadline out.
func (m *Machine) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchLocked()
}

func (m *Machine) touchLocked() {
	m.store.Set(kv.KeyLastActive, strconv.FormatInt(m.now().UnixMilli(), 10))
}

// IdleExceeded reports whether the idle threshold has elapsed since the
// last recorded activity. With no recorded activity it reports true.
func (m *Machine) IdleExceeded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idleExceededLocked()
}

func (m *Machine) idleExceededLocked() bool {
	last := parseInt(kv.GetDefault(m.store, kv.KeyLastActive, "0"))
	if last == 0 {
		return true
	}
	return m.now().Sub(time.UnixMilli(last)) > m.idle
}

// Conclude ends the active session: it computes the elapsed duration,
// clears the persisted id and start time (the number survives for the
// next session) and moves back to NO_SESSION. The caller submits the
// conclude call with the returned record.
func (m *Machine) Conclude() (Concluded, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionID == "" {
		return Concluded{}, ErrNoActiveSession
	}

	now := m.now()
	out := Concluded{
		SessionID: m.sessionID,
		Occurred:  now,
		Duration:  now.Sub(m.startTime),
	}

	m.store.Delete(kv.KeySessionID)
	m.store.Delete(kv.KeySessionStart)
	m.sessionID = ""
	m.startTime = time.Time{}

	log.Info().Str("session_id", out.SessionID).Dur("duration", out.Duration).Msg("Session concluded")
	return out, nil
}

// SetVisible records a visibility transition. On the return to visible
// it reports whether the idle threshold elapsed while hidden, in which
// case the caller concludes the old session and starts a new one.
func (m *Machine) SetVisible(visible bool) (idleExpired bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !visible {
		m.lastHidden = now
		m.touchLocked()
		return false
	}

	m.lastVisible = now
	expired := m.sessionID != "" && m.idleExceededLocked()
	m.touchLocked()
	return expired
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
