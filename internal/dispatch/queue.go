// Package dispatch buffers outbound backend calls behind a one-shot
// gate that opens when authentication completes.
package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/letscooee/cooee-go/internal/api"
	"github.com/letscooee/cooee-go/internal/device"
	"github.com/letscooee/cooee-go/internal/session"
)

// Stamp is the session/screen context applied to events at flush time,
// not at enqueue time: the session may have rolled over in between.
type Stamp struct {
	SessionID     string
	SessionNumber int64
	Screen        string
}

// StampFunc yields the stamp active right now.
type StampFunc func() Stamp

// Queue orders every outbound call. Until the gate opens, calls queue
// in FIFO order; Open replays them exactly once in that order, and
// every later call executes immediately, strictly after all pre-gate
// calls. The gate never re-closes for the lifetime of the queue.
//
// Delivery is best-effort at-most-once: a failed call is logged and
// dropped, never retried.
type Queue struct {
	client *api.Client
	stamp  StampFunc

	mu       sync.Mutex
	open     bool
	draining bool
	pending  []task
}

type task struct {
	name string
	run  func(ctx context.Context) error
}

// NewQueue creates a closed queue over the API client.
func NewQueue(client *api.Client, stamp StampFunc) *Queue {
	return &Queue{client: client, stamp: stamp}
}

// Open opens the gate and replays everything queued, in order. Calls
// arriving while the backlog drains are appended behind it, so no
// post-gate call ever overtakes a pre-gate one. Open is idempotent.
func (q *Queue) Open() {
	q.mu.Lock()
	if q.open || q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.open = true
			q.draining = false
			q.mu.Unlock()
			log.Debug().Msg("Dispatch gate open")
			return
		}
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.execute(next)
	}
}

// submit runs the task now when the gate is open, else queues it.
func (q *Queue) submit(t task) {
	q.mu.Lock()
	if !q.open {
		q.pending = append(q.pending, t)
		q.mu.Unlock()
		log.Debug().Str("call", t.name).Msg("Queued behind dispatch gate")
		return
	}
	q.mu.Unlock()

	q.execute(t)
}

func (q *Queue) execute(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := t.run(ctx); err != nil {
		// Accepted data-loss tradeoff: no retry for submissions.
		log.Error().Err(err).Str("call", t.name).Msg("Dispatch failed, dropping call")
	}
}

// SendEvent submits one event. The session id/number and screen name
// are stamped when the call actually dispatches.
func (q *Queue) SendEvent(event *api.Event) {
	q.submit(task{
		name: "event/track",
		run: func(ctx context.Context) error {
			s := q.stamp()
			return q.client.TrackEvent(ctx, event.WithSession(s.SessionID, s.SessionNumber, s.Screen))
		},
	})
}

// UpdateProfile pushes user data and properties.
func (q *Queue) UpdateProfile(userData, userProperties map[string]any) {
	q.submit(task{
		name: "user/update",
		run: func(ctx context.Context) error {
			return q.client.UpdateProfile(ctx, api.ProfileUpdateRequest{
				UserData:       userData,
				UserProperties: userProperties,
			})
		},
	})
}

// UpdateDeviceProperties pushes a fresh device snapshot as user
// properties.
func (q *Queue) UpdateDeviceProperties(props device.Properties) {
	q.submit(task{
		name: "user/update(device)",
		run: func(ctx context.Context) error {
			asMap := map[string]any{}
			data, err := json.Marshal(props)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &asMap); err != nil {
				return err
			}
			return q.client.UpdateProfile(ctx, api.ProfileUpdateRequest{UserProperties: asMap})
		},
	})
}

// ConcludeSession ends a session server-side.
func (q *Queue) ConcludeSession(rec session.Concluded) {
	q.submit(task{
		name: "session/conclude",
		run: func(ctx context.Context) error {
			return q.client.ConcludeSession(ctx, api.ConcludeRequest{
				SessionID: rec.SessionID,
				Occurred:  rec.Occurred,
				Duration:  int64(rec.Duration.Seconds()),
			})
		},
	})
}
