// Package action interprets click-action definitions as a small
// run-to-completion state machine with side effects on the host and
// the dispatch queue.
package action

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/letscooee/cooee-go/internal/dispatch"
	"github.com/letscooee/cooee-go/internal/host"
	"github.com/letscooee/cooee-go/internal/trigger"
)

// CTAEventName is the custom host event carrying merged key-values.
const CTAEventName = "onCooeeCTA"

// Close behaviours reported through the overlay close callback.
const (
	CloseBehaviourPlain = "Close"
	CloseBehaviourCTA   = "CTA"
	CloseBehaviourAuto  = "Auto"
)

// CloseFunc dismisses the overlay; the renderer emits the "closed"
// event with this behaviour and the on-screen duration.
type CloseFunc func(behaviour string)

// Executor runs click actions. It keeps no state between invocations;
// each Execute call runs once to completion.
type Executor struct {
	queue    *dispatch.Queue
	hst      host.Host
	triggers *trigger.EmbeddedStore
}

// NewExecutor wires the executor.
func NewExecutor(queue *dispatch.Queue, h host.Host, triggers *trigger.EmbeddedStore) *Executor {
	return &Executor{queue: queue, hst: h, triggers: triggers}
}

// Execute runs the click action bound to a node of payload's overlay.
// extraKV is merged over the action's own key-values before the CTA
// event fires. closeFn may be nil for non-dismissable surfaces.
//
// An invalid or unrecognised action type skips only the type dispatch;
// the active-trigger recording, the close, and the unconditional
// profile/key-value effects still run.
func (x *Executor) Execute(a *trigger.ClickAction, payload *trigger.Payload, extraKV map[string]any, closeFn CloseFunc) {
	if a == nil {
		return
	}

	// 1. A real CTA marks this trigger as the active one before any
	// close; a close-only action is a plain dismissal.
	hasCTA := a.HasCTA()
	if hasCTA && payload != nil {
		x.triggers.SetActive(trigger.NewEmbedded(payload))
	}

	// 2. Close
	if a.Close && closeFn != nil {
		behaviour := CloseBehaviourPlain
		if hasCTA {
			behaviour = CloseBehaviourCTA
		}
		closeFn(behaviour)
	}

	// 3. Type dispatch, isolated so an unknown type cannot suppress
	// the unconditional effects below
	if err := x.dispatchType(a); err != nil {
		log.Warn().Err(err).Str("type", a.Type).Msg("Click action type dispatch skipped")
	}

	// 4. Unconditional effects
	if len(a.Profile) > 0 {
		x.queue.UpdateProfile(a.Profile, nil)
	}
	if len(a.KV) > 0 || len(extraKV) > 0 {
		x.emitKV(a.KV, extraKV)
	}
}

func (x *Executor) dispatchType(a *trigger.ClickAction) error {
	switch a.Type {
	case "":
		return nil

	case trigger.ActionExternal:
		if a.Ext == nil || a.Ext.URL == "" {
			return errors.New("external action without url")
		}
		return x.hst.OpenURL(ensureScheme(a.Ext.URL), true)

	case trigger.ActionInAppWeb:
		if a.InApp == nil || a.InApp.URL == "" {
			return errors.New("in-app browser action without url")
		}
		browser, ok := x.hst.(host.InPageBrowser)
		if !ok {
			log.Warn().Msg("Host has no in-page browser capability")
			return nil
		}
		return browser.OpenInPage(ensureScheme(a.InApp.URL))

	case trigger.ActionNavigate:
		if a.Nav == nil || a.Nav.URL == "" {
			return errors.New("navigate action without url")
		}
		return x.hst.OpenURL(ensureScheme(a.Nav.URL), false)

	case trigger.ActionShare:
		sharer, ok := x.hst.(host.Sharer)
		if !ok {
			log.Warn().Msg("Host has no share capability")
			return nil
		}
		var title, text, url string
		if a.Share != nil {
			title, text, url = a.Share.Title, a.Share.Text, a.Share.URL
		}
		return sharer.Share(title, text, url)

	case trigger.ActionPrompt:
		return x.prompt(a.Prompt)

	case trigger.ActionKeyValue:
		// The key-value emit is the unconditional step below; the
		// type only selects it.
		return nil

	default:
		return fmt.Errorf("unrecognised action type %q", a.Type)
	}
}

// prompt asks for a permission and pushes the resulting state, grant
// or denial alike, back through the queue as a profile update.
func (x *Executor) prompt(kind string) error {
	prompter, ok := x.hst.(host.PermissionPrompter)
	if !ok {
		log.Warn().Msg("Host has no permission prompt capability")
		return nil
	}

	var perm host.PermissionKind
	switch kind {
	case "LOCATION":
		perm = host.PermissionLocation
	case "PUSH":
		perm = host.PermissionPush
	case "CAMERA":
		perm = host.PermissionCamera
	default:
		return fmt.Errorf("unrecognised permission %q", kind)
	}

	state, err := prompter.RequestPermission(perm)
	if err != nil {
		return err
	}
	x.queue.UpdateProfile(nil, map[string]any{
		"permission_" + string(perm): state,
	})
	return nil
}

func (x *Executor) emitKV(actionKV, extraKV map[string]any) {
	merged := make(map[string]any, len(actionKV)+len(extraKV))
	for k, v := range actionKV {
		merged[k] = v
	}
	for k, v := range extraKV {
		merged[k] = v
	}
	x.hst.DispatchEvent(CTAEventName, merged)
}

// ensureScheme repairs scheme-less URLs by prefixing //, leaving the
// protocol choice to the host page.
func ensureScheme(url string) string {
	if strings.Contains(url, "://") || strings.HasPrefix(url, "//") {
		return url
	}
	return "//" + url
}
