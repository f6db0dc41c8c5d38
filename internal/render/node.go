package render

import "github.com/letscooee/cooee-go/internal/trigger"

// NodeKind names what a render node draws.
type NodeKind string

const (
	KindContainer NodeKind = "container"
	KindLayer     NodeKind = "layer"
	KindImage     NodeKind = "image"
	KindText      NodeKind = "text"
	KindButton    NodeKind = "button"
	KindShape     NodeKind = "shape"
	KindGroup     NodeKind = "group"
)

// Positioning of a node within its parent.
type Positioning string

const (
	// PositionFixed pins the root overlay to the window.
	PositionFixed Positioning = "fixed"
	// PositionAbsolute places the node at X/Y inside its parent.
	PositionAbsolute Positioning = "absolute"
	// PositionFlow lets the parent lay the node out.
	PositionFlow Positioning = ""
)

// Node is one element of the computed render tree the host paints.
// Every dimension is already in device pixels: authored values times
// the single scale factor.
type Node struct {
	Kind     NodeKind `json:"kind"`
	Style    Style    `json:"style"`
	Text     *Text    `json:"text,omitempty"`
	ImageURL string   `json:"imageURL,omitempty"`
	Children []*Node  `json:"children,omitempty"`

	// Action is the click-action bound to this node, nil when the
	// element carries no clc block. The host routes clicks on the
	// painted node into the click executor with this definition.
	Action *trigger.ClickAction `json:"action,omitempty"`
}

// Style is the computed visual state of a node, applied in the fixed
// order: size, position, border, background, spacing, transform,
// shadow.
type Style struct {
	Width  float64 `json:"w"`
	Height float64 `json:"h"`

	Position Positioning `json:"position,omitempty"`
	X        *float64    `json:"x,omitempty"`
	Y        *float64    `json:"y,omitempty"`

	// Cover marks the root spanning the full host viewport; Anchor
	// places a non-covering root at one of nine compass positions.
	Cover  bool   `json:"cover,omitempty"`
	Anchor string `json:"anchor,omitempty"`

	Alpha float64 `json:"alpha"`

	Border     *BorderStyle `json:"border,omitempty"`
	Background *Fill        `json:"background,omitempty"`

	// Padding is top, right, bottom, left. Margins are always zero.
	Padding [4]float64 `json:"padding"`

	// Rotate is the node rotation in degrees.
	Rotate float64 `json:"rotate,omitempty"`

	Shadow *ShadowStyle `json:"shadow,omitempty"`
}

// FillKind selects the background variant.
type FillKind string

const (
	FillSolid    FillKind = "solid"
	FillGradient FillKind = "gradient"
	FillGlossy   FillKind = "glossy"
	FillImage    FillKind = "image"
)

// Fill is the computed background.
type Fill struct {
	Kind     FillKind      `json:"kind"`
	Color    string        `json:"color,omitempty"`
	Gradient *GradientFill `json:"gradient,omitempty"`
	Blur     float64       `json:"blur,omitempty"`
	ImageURL string        `json:"imageURL,omitempty"`
}

// GradientFill is a two-stop linear gradient.
type GradientFill struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Angle float64 `json:"angle"`
}

// BorderStyle is the computed border. Width is zero when the authored
// width was not positive; the radius still applies for clipping.
type BorderStyle struct {
	Radius float64 `json:"radius"`
	Width  float64 `json:"width,omitempty"`
	Dashed bool    `json:"dashed,omitempty"`
	Color  string  `json:"color,omitempty"`
}

// ShadowStyle is the computed drop shadow.
type ShadowStyle struct {
	Blur  float64 `json:"blur"`
	Color string  `json:"color,omitempty"`
}

// Text is the computed text content of a text or button node.
type Text struct {
	// Parts are the styled runs; a sole plain part when the element
	// declared none.
	Parts []TextRun `json:"parts"`
	Align string    `json:"align,omitempty"`
	Size  float64   `json:"size,omitempty"`
	Color string    `json:"color,omitempty"`
}

// TextRun is one styled run inside the text container.
type TextRun struct {
	Text      string `json:"text"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
	Strike    bool   `json:"strike,omitempty"`
	Color     string `json:"color,omitempty"`
}
