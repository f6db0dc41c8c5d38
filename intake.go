package cooee

import "sync"

// Intake buffers SDK calls issued before the SDK exists. Host pages
// that load asynchronously construct an Intake up front, point their
// instrumentation at it, and bind it once New has run; buffered calls
// replay in issue order and later calls pass straight through.
type Intake struct {
	mu     sync.Mutex
	sdk    *SDK
	queued []func(*SDK)
}

func NewIntake() *Intake {
	return &Intake{}
}

// Bind attaches the SDK and drains the buffer in order. Calls racing
// the drain are ordered behind it.
func (i *Intake) Bind(s *SDK) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sdk = s
	for _, call := range i.queued {
		call(s)
	}
	i.queued = nil
}

// SendEvent tracks an event, immediately or once bound.
func (i *Intake) SendEvent(name string, properties map[string]any) {
	i.do(func(s *SDK) { s.SendEvent(name, properties) })
}

// UpdateProfile pushes user data and user properties, immediately or
// once bound.
func (i *Intake) UpdateProfile(userData, userProperties map[string]any) {
	i.do(func(s *SDK) { s.UpdateProfile(userData, userProperties) })
}

// SetScreen names the current screen, immediately or once bound.
func (i *Intake) SetScreen(name string) {
	i.do(func(s *SDK) { s.SetScreen(name) })
}

func (i *Intake) do(call func(*SDK)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.sdk != nil {
		call(i.sdk)
		return
	}
	i.queued = append(i.queued, call)
}
