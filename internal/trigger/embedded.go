package trigger

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/letscooee/cooee-go/internal/kv"
)

// Embedded is the durable subset of a trigger persisted to replay
// "active trigger" state across page loads. It is derived from the
// payload and never authoritative.
type Embedded struct {
	TriggerID    string `json:"triggerID"`
	EngagementID string `json:"engagementID"`
	ExpireAt     int64  `json:"expireAt"` // epoch millis
}

// NewEmbedded derives the durable record from a payload.
func NewEmbedded(p *Payload) Embedded {
	return Embedded{
		TriggerID:    p.ID,
		EngagementID: p.EngagementID,
		ExpireAt:     p.ExpireAt,
	}
}

// Expired reports whether the record's expiry has passed.
func (e Embedded) Expired(now time.Time) bool {
	return now.UnixMilli() > e.ExpireAt
}

// EmbeddedStore persists the single "current" active trigger slot and
// the append-only active list.
type EmbeddedStore struct {
	store kv.Store
	now   func() time.Time
}

// NewEmbeddedStore creates a store over the durable kv backend.
func NewEmbeddedStore(store kv.Store) *EmbeddedStore {
	return &EmbeddedStore{store: store, now: time.Now}
}

// SetActive overwrites the single current slot and appends the trigger
// to the active list. Storing the same trigger again refreshes the slot
// without growing the list; an already-expired trigger is ignored
// entirely.
func (s *EmbeddedStore) SetActive(e Embedded) {
	if e.Expired(s.now()) {
		log.Debug().Str("trigger_id", e.TriggerID).Msg("Refusing to store expired trigger")
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := s.store.Set(kv.KeyActiveTrigger, string(data)); err != nil {
		log.Error().Err(err).Msg("Failed to persist active trigger")
		return
	}

	list := s.ActiveList()
	for _, existing := range list {
		if existing.TriggerID == e.TriggerID {
			return
		}
	}
	list = append(list, e)
	s.writeList(list)
}

// Active returns the current slot, if any and not expired.
func (s *EmbeddedStore) Active() (Embedded, bool) {
	raw, err := s.store.Get(kv.KeyActiveTrigger)
	if err != nil {
		return Embedded{}, false
	}

	var e Embedded
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Embedded{}, false
	}
	if e.Expired(s.now()) {
		return Embedded{}, false
	}
	return e, true
}

// ActiveList returns every persisted trigger that has not yet expired.
// Expired entries are pruned from durable state as a side effect.
func (s *EmbeddedStore) ActiveList() []Embedded {
	raw, err := s.store.Get(kv.KeyActiveTriggerList)
	if err != nil {
		return nil
	}

	var list []Embedded
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}

	now := s.now()
	alive := list[:0]
	for _, e := range list {
		if !e.Expired(now) {
			alive = append(alive, e)
		}
	}
	if len(alive) != len(list) {
		s.writeList(alive)
	}
	return alive
}

func (s *EmbeddedStore) writeList(list []Embedded) {
	data, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := s.store.Set(kv.KeyActiveTriggerList, string(data)); err != nil {
		log.Error().Err(err).Msg("Failed to persist active trigger list")
	}
}
