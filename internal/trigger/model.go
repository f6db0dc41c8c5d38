package trigger

import (
	"encoding/json"
	"fmt"
	"time"
)

// ElementType is the wire code in an element's `t` field.
type ElementType int

const (
	ElementImage  ElementType = 1
	ElementText   ElementType = 2
	ElementButton ElementType = 3
	ElementShape  ElementType = 4
	ElementGroup  ElementType = 5
)

func (t ElementType) String() string {
	switch t {
	case ElementImage:
		return "image"
	case ElementText:
		return "text"
	case ElementButton:
		return "button"
	case ElementShape:
		return "shape"
	case ElementGroup:
		return "group"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Payload is one parsed trigger. It is immutable after Parse: renders
// walk it read-only and a re-render re-parses the raw payload rather
// than mutating a previous scene graph.
type Payload struct {
	ID              string         `json:"id"`
	EngagementID    string         `json:"engagementID"`
	ExpireAt        int64          `json:"expireAt"` // epoch millis
	Version         float64        `json:"version"`
	DisplayCriteria map[string]any `json:"displayCriteria,omitempty"`
	InApp           *InApp         `json:"ian"`
}

// InApp is the scene graph root: a container plus ordered layers. The
// same shape nests inside group elements.
type InApp struct {
	Container *Container `json:"cont"`
	Layers    []*Layer   `json:"layers"`
}

// Base carries the geometry and style blocks shared by every node kind.
type Base struct {
	Width     *float64     `json:"w,omitempty"`
	Height    *float64     `json:"h,omitempty"`
	X         *float64     `json:"x,omitempty"`
	Y         *float64     `json:"y,omitempty"`
	Alpha     *float64     `json:"a,omitempty"`
	BG        *Background  `json:"bg,omitempty"`
	Border    *Border      `json:"br,omitempty"`
	Click     *ClickAction `json:"clc,omitempty"`
	Shadow    *Shadow      `json:"shd,omitempty"`
	Spacing   *Spacing     `json:"spc,omitempty"`
	Transform *Transform   `json:"trf,omitempty"`
}

// Container is the scene root. Its authored width/height define the
// design canvas the scaling engine maps onto the viewport.
type Container struct {
	Base
	// Cover makes the root span the full viewport, ignoring the
	// authored size.
	Cover bool `json:"cover,omitempty"`
	// Anchor places a non-covering root at one of nine compass
	// positions ("C", "N", "NE", ...). Empty means center.
	Anchor string `json:"anchor,omitempty"`
	// AutoClose, in seconds, arms a countdown that dismisses the
	// overlay. Zero means no auto close.
	AutoClose float64 `json:"dur,omitempty"`
}

// Layer is an ordered slice of elements stacked over the container.
type Layer struct {
	Base
	Elements []*Element `json:"elems"`
}

// Element is the tagged union over the renderable node kinds. Exactly
// the variant named by Type is populated; the render engine dispatches
// on Type exhaustively.
type Element struct {
	Base
	Type ElementType `json:"t"`
	Text *TextData   `json:"txt,omitempty"`
	Img  *Image      `json:"img,omitempty"`
	// Group holds a nested scene graph when Type is ElementGroup.
	Group *InApp `json:"ian,omitempty"`
}

// TextData is the payload of text and button elements.
type TextData struct {
	// Plain is the fallback when no styled parts are declared.
	Plain string `json:"text,omitempty"`
	// Parts are styled runs rendered inside a single text container.
	Parts []TextPart `json:"prs,omitempty"`
	// Align is "left", "center" or "right".
	Align string  `json:"alg,omitempty"`
	Size  float64 `json:"f,omitempty"`
	Color *Colour `json:"clr,omitempty"`
}

// TextPart is one styled run.
type TextPart struct {
	Text      string  `json:"text"`
	Bold      bool    `json:"b,omitempty"`
	Italic    bool    `json:"i,omitempty"`
	Underline bool    `json:"u,omitempty"`
	Strike    bool    `json:"st,omitempty"`
	Color     *Colour `json:"c,omitempty"`
}

// ParseError reports why a raw payload was rejected.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "trigger: " + e.Reason
}

// Parse validates a raw trigger payload and instantiates its scene
// graph. An element of unknown type anywhere in the graph is a hard
// failure: nothing partial is ever handed to the renderer. Expiry is
// deliberately not checked here; the renderer checks it at display
// time.
func Parse(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ParseError{Reason: "malformed payload: " + err.Error()}
	}

	if p.ID == "" {
		return nil, &ParseError{Reason: "missing trigger id"}
	}
	if p.ExpireAt == 0 {
		return nil, &ParseError{Reason: "missing expireAt"}
	}
	if p.InApp == nil || p.InApp.Container == nil {
		return nil, &ParseError{Reason: "missing in-app scene graph"}
	}

	if err := validateScene(p.InApp); err != nil {
		return nil, err
	}
	return &p, nil
}

func validateScene(in *InApp) error {
	for _, layer := range in.Layers {
		if layer == nil {
			return &ParseError{Reason: "null layer"}
		}
		for _, el := range layer.Elements {
			if el == nil {
				return &ParseError{Reason: "null element"}
			}
			switch el.Type {
			case ElementImage, ElementText, ElementButton, ElementShape:
			case ElementGroup:
				if el.Group == nil || el.Group.Container == nil {
					return &ParseError{Reason: "group element without nested scene"}
				}
				if err := validateScene(el.Group); err != nil {
					return err
				}
			default:
				return &ParseError{Reason: fmt.Sprintf("unsupported element type %d", int(el.Type))}
			}
		}
	}
	return nil
}

// Expired reports whether the payload's absolute expiry has passed.
func (p *Payload) Expired(now time.Time) bool {
	return now.UnixMilli() > p.ExpireAt
}
