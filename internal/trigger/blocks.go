package trigger

// Style blocks carried by containers, layers and elements. JSON field
// names mirror the wire schema's abbreviated names (t, bg, br, clc, shd,
// spc, trf, a, w/h/x/y) and stay abbreviated here so payloads round-trip
// unchanged.

// Background is one of solid colour, linear gradient, glossy (blurred)
// fill or image. When several are present the renderer applies the first
// in that priority order.
type Background struct {
	Solid  *Colour   `json:"solid,omitempty"`
	Glossy *Glossy   `json:"glossy,omitempty"`
	Image  *Image    `json:"img,omitempty"`
	Grad   *Gradient `json:"grad,omitempty"`
}

// Colour is a hex colour with optional alpha percent.
type Colour struct {
	Hex   string   `json:"hex"`
	Alpha *float64 `json:"a,omitempty"`
}

// Gradient is a two-stop linear gradient.
type Gradient struct {
	Start Colour  `json:"c1"`
	End   Colour  `json:"c2"`
	Angle float64 `json:"ang"`
}

// Glossy is a backdrop-blurred fill.
type Glossy struct {
	Radius float64 `json:"radius"`
	Colour *Colour `json:"clr,omitempty"`
}

// Image is a remote image fill.
type Image struct {
	URL string `json:"url"`
}

// Border describes the stroke around a node. A zero or negative width
// disables everything but the radius.
type Border struct {
	Radius float64 `json:"radius"`
	Width  float64 `json:"width"`
	Dashed bool    `json:"dashed"`
	Colour *Colour `json:"clr,omitempty"`
}

// Shadow is a drop shadow with a spread given as elevation.
type Shadow struct {
	Elevation float64 `json:"elevation"`
	Colour    *Colour `json:"clr,omitempty"`
}

// Spacing carries per-side padding. The wire format also carries margins
// but the renderer forces those to zero.
type Spacing struct {
	PaddingLeft   float64 `json:"pl"`
	PaddingRight  float64 `json:"pr"`
	PaddingTop    float64 `json:"pt"`
	PaddingBottom float64 `json:"pb"`
}

// Transform carries node rotation in degrees. Rotation is the only
// transform the wire format defines.
type Transform struct {
	Rotate float64 `json:"rot"`
}

// Action types understood by the click executor.
const (
	ActionExternal = "EXTERNAL"
	ActionInAppWeb = "IAB"
	ActionNavigate = "NAVIGATE"
	ActionShare    = "SHARE"
	ActionPrompt   = "PROMPT"
	ActionKeyValue = "KV"
)

// ClickAction is the full click-to-action definition attached to a node.
// The profile update and key-value payloads apply regardless of the
// action type; Close may be set on its own for a plain dismissal.
type ClickAction struct {
	Type    string         `json:"at,omitempty"`
	Close   bool           `json:"close,omitempty"`
	Ext     *ActionURL     `json:"ext,omitempty"`
	InApp   *ActionURL     `json:"iab,omitempty"`
	Nav     *ActionURL     `json:"nav,omitempty"`
	Share   *ShareData     `json:"share,omitempty"`
	Prompt  string         `json:"pmpt,omitempty"`
	KV      map[string]any `json:"kv,omitempty"`
	Profile map[string]any `json:"up,omitempty"`
}

// ActionURL wraps a URL target.
type ActionURL struct {
	URL string `json:"u"`
}

// ShareData is the payload handed to the host share capability.
type ShareData struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
	URL   string `json:"u,omitempty"`
}

// HasCTA reports whether the action carries click-to-action semantics
// worth recording as an active trigger: custom key-values, a profile
// update, a permission prompt or a share. Pure navigation and a
// close-only action are plain dismissals.
func (a *ClickAction) HasCTA() bool {
	if a == nil {
		return false
	}
	return len(a.KV) > 0 || len(a.Profile) > 0 || a.Prompt != "" || a.Share != nil
}
