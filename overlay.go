package cooee

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/letscooee/cooee-go/internal/action"
	"github.com/letscooee/cooee-go/internal/api"
	"github.com/letscooee/cooee-go/internal/render"
	"github.com/letscooee/cooee-go/internal/trigger"
)

// Overlay is one displayed trigger: the computed render tree plus its
// lifecycle. The host paints Root, forwards clicks on actionable nodes
// to Click, and calls Close when the user dismisses the surface
// without an action.
type Overlay struct {
	// Root is the computed node tree, sized for the viewport the
	// trigger was rendered against.
	Root *render.Node

	sdk     *SDK
	payload *trigger.Payload
	shownAt time.Time

	mu     sync.Mutex
	closed bool
	timer  *time.Timer
}

// ShowTrigger parses a raw trigger payload, renders it against the
// host's current viewport and returns the live overlay. Expired
// payloads and malformed scenes return an error without side effects;
// a successful show emits the displayed event immediately.
func (s *SDK) ShowTrigger(raw []byte) (*Overlay, error) {
	p, err := trigger.Parse(raw)
	if err != nil {
		return nil, err
	}

	engine := render.NewEngine(s.cfg.Renderer.Margin, s.cfg.Renderer.CustomHost)
	root, err := engine.Render(p, s.hst.Viewport())
	if err != nil {
		return nil, err
	}

	o := &Overlay{
		Root:    root,
		sdk:     s,
		payload: p,
		shownAt: time.Now(),
	}

	embedded := trigger.NewEmbedded(p)
	shown := api.NewEvent(EventTriggerShown, nil)
	shown.Trigger = &embedded
	s.queue.SendEvent(shown)

	if dur := p.InApp.Container.AutoClose; dur > 0 {
		o.timer = time.AfterFunc(time.Duration(dur*float64(time.Second)), func() {
			o.close(action.CloseBehaviourAuto)
		})
	}
	return o, nil
}

// Click executes the action bound to a rendered node. Nodes without an
// action are inert. extraKV is merged over the action's own key-values
// before the CTA event fires.
func (o *Overlay) Click(n *render.Node, extraKV map[string]any) {
	if n == nil || n.Action == nil {
		return
	}
	o.sdk.executor.Execute(n.Action, o.payload, extraKV, o.close)
}

// Close dismisses the overlay without an action.
func (o *Overlay) Close() {
	o.close(action.CloseBehaviourPlain)
}

// Closed reports whether the overlay has been dismissed.
func (o *Overlay) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// close runs at most once; later invocations, including a racing
// auto-close countdown, are no-ops.
func (o *Overlay) close(behaviour string) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	if o.timer != nil {
		o.timer.Stop()
	}
	o.mu.Unlock()

	duration := math.Round(time.Since(o.shownAt).Seconds())
	closedEvent := api.NewEvent(EventTriggerClosed, map[string]any{
		"closeBehaviour": behaviour,
		"duration":       duration,
	})
	embedded := trigger.NewEmbedded(o.payload)
	closedEvent.Trigger = &embedded
	o.sdk.queue.SendEvent(closedEvent)

	log.Debug().
		Str("triggerID", o.payload.ID).
		Str("behaviour", behaviour).
		Float64("duration", duration).
		Msg("Trigger closed")
}
