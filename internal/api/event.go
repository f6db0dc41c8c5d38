package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/letscooee/cooee-go/internal/trigger"
)

// Event is one outbound analytics event. It is immutable once built;
// the dispatch queue stamps the session and screen fields at flush time
// through WithSession, which copies.
type Event struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Properties    map[string]any `json:"properties,omitempty"`
	OccurredAt    time.Time      `json:"occurred"`
	SessionID     string         `json:"sessionID,omitempty"`
	SessionNumber int64          `json:"sessionNumber,omitempty"`
	ScreenName    string         `json:"screenName,omitempty"`

	// ActiveTriggers replays the persisted embedded triggers so the
	// backend can attribute the event; Trigger is the one trigger this
	// event belongs to, when any.
	ActiveTriggers []trigger.Embedded `json:"activeTriggers,omitempty"`
	Trigger        *trigger.Embedded  `json:"trigger,omitempty"`
}

// NewEvent constructs an event with a time-sortable unique id and
// OccurredAt fixed at construction time.
func NewEvent(name string, properties map[string]any) *Event {
	return &Event{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Name:       name,
		Properties: properties,
		OccurredAt: time.Now(),
	}
}

// WithSession returns a copy stamped with the session and screen active
// at flush time. The receiver is left untouched.
func (e *Event) WithSession(sessionID string, sessionNumber int64, screenName string) *Event {
	stamped := *e
	stamped.SessionID = sessionID
	stamped.SessionNumber = sessionNumber
	stamped.ScreenName = screenName
	return &stamped
}
