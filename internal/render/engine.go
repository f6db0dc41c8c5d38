// Package render interprets a parsed trigger scene graph into a
// pixel-resolved node tree scaled to the host viewport.
package render

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/letscooee/cooee-go/internal/host"
	"github.com/letscooee/cooee-go/internal/trigger"
)

// ErrExpired means the payload's expiry passed before rendering; the
// caller discards the trigger silently.
var ErrExpired = errors.New("render: trigger expired")

// Engine renders scene graphs. It holds no per-trigger state; a
// re-render re-parses and re-renders from the original payload.
type Engine struct {
	margin float64
	// customHost means the overlay is mounted inside a host-provided
	// container rather than the window, which turns the cover root's
	// fixed positioning into absolute.
	customHost bool
	now        func() time.Time
}

// NewEngine creates an engine reserving margin on every viewport side.
func NewEngine(margin float64, customHost bool) *Engine {
	return &Engine{margin: margin, customHost: customHost, now: time.Now}
}

// Render walks the payload's scene graph depth-first and returns the
// computed root node. Any failure aborts this trigger only; the host
// page is never affected.
func (e *Engine) Render(p *trigger.Payload, view host.Viewport) (*Node, error) {
	if p.Expired(e.now()) {
		return nil, ErrExpired
	}

	cont := p.InApp.Container
	canvasW := DefaultCanvasWidth
	canvasH := DefaultCanvasHeight
	if cont.Width != nil && *cont.Width > 0 {
		canvasW = *cont.Width
	}
	if cont.Height != nil && *cont.Height > 0 {
		canvasH = *cont.Height
	}

	scale := ScaleFactor(canvasW, canvasH, view.Width, view.Height, e.margin)

	root := &Node{
		Kind:  KindContainer,
		Style: e.baseStyle(cont.Base, scale),
	}

	// The root's size/position strategy depends on cover: a covering
	// overlay spans the full host and ignores the authored size, an
	// anchored one keeps its scaled authored size.
	if cont.Cover {
		root.Style.Cover = true
		root.Style.Width = view.Width
		root.Style.Height = view.Height
		root.Style.Position = PositionFixed
		if e.customHost {
			root.Style.Position = PositionAbsolute
		}
		root.Style.X = nil
		root.Style.Y = nil
	} else {
		root.Style.Width = canvasW * scale
		root.Style.Height = canvasH * scale
		root.Style.Anchor = anchorOf(cont.Anchor)
	}

	for _, layer := range p.InApp.Layers {
		node, err := e.renderLayer(layer, scale, root.Style.Width, root.Style.Height)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, node)
	}
	return root, nil
}

func (e *Engine) renderLayer(layer *trigger.Layer, scale, parentW, parentH float64) (*Node, error) {
	node := &Node{
		Kind:  KindLayer,
		Style: e.baseStyle(layer.Base, scale),
	}
	// A layer without an authored size spans its container
	if layer.Width == nil {
		node.Style.Width = parentW
	}
	if layer.Height == nil {
		node.Style.Height = parentH
	}

	for _, el := range layer.Elements {
		child, err := e.renderElement(el, scale)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

func (e *Engine) renderElement(el *trigger.Element, scale float64) (*Node, error) {
	node := &Node{Style: e.baseStyle(el.Base, scale)}
	node.Action = el.Click

	switch el.Type {
	case trigger.ElementImage:
		node.Kind = KindImage
		if el.Img != nil {
			node.ImageURL = el.Img.URL
		}

	case trigger.ElementText:
		node.Kind = KindText
		node.Text = renderText(el.Text, scale)

	case trigger.ElementButton:
		node.Kind = KindButton
		node.Text = renderText(el.Text, scale)

	case trigger.ElementShape:
		node.Kind = KindShape

	case trigger.ElementGroup:
		node.Kind = KindGroup
		inner := el.Group
		if inner == nil {
			return nil, fmt.Errorf("render: group element without nested scene")
		}
		if inner.Container != nil {
			// The nested container renders as a child of the group
			contNode := &Node{
				Kind:  KindContainer,
				Style: e.baseStyle(inner.Container.Base, scale),
			}
			node.Children = append(node.Children, contNode)
		}
		for _, layer := range inner.Layers {
			child, err := e.renderLayer(layer, scale, node.Style.Width, node.Style.Height)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}

	default:
		// Parse blocks unknown types already; this guards render paths
		// fed from elsewhere.
		return nil, fmt.Errorf("render: unsupported element type %s", el.Type)
	}
	return node, nil
}

// baseStyle computes the shared style blocks in the fixed order: size,
// position, border, background, spacing, transform, shadow.
func (e *Engine) baseStyle(b trigger.Base, scale float64) Style {
	s := Style{Alpha: 1}

	// Size
	if b.Width != nil {
		s.Width = *b.Width * scale
	}
	if b.Height != nil {
		s.Height = *b.Height * scale
	}

	// Position: absolute within the parent when x/y are authored
	if b.X != nil || b.Y != nil {
		s.Position = PositionAbsolute
		if b.X != nil {
			x := *b.X * scale
			s.X = &x
		}
		if b.Y != nil {
			y := *b.Y * scale
			s.Y = &y
		}
	}

	if b.Alpha != nil {
		s.Alpha = *b.Alpha / 100
	}

	// Border: the stroke needs a positive width, the radius always
	// applies
	if b.Border != nil {
		border := &BorderStyle{Radius: b.Border.Radius * scale}
		if b.Border.Width > 0 {
			border.Width = b.Border.Width * scale
			border.Dashed = b.Border.Dashed
			border.Color = colourString(b.Border.Colour)
		}
		s.Border = border
	}

	// Background, first match in priority order wins
	if b.BG != nil {
		switch {
		case b.BG.Solid != nil:
			s.Background = &Fill{Kind: FillSolid, Color: colourString(b.BG.Solid)}
		case b.BG.Grad != nil:
			s.Background = &Fill{Kind: FillGradient, Gradient: &GradientFill{
				Start: colourString(&b.BG.Grad.Start),
				End:   colourString(&b.BG.Grad.End),
				Angle: b.BG.Grad.Angle,
			}}
		case b.BG.Glossy != nil:
			s.Background = &Fill{
				Kind:  FillGlossy,
				Blur:  b.BG.Glossy.Radius,
				Color: colourString(b.BG.Glossy.Colour),
			}
		case b.BG.Image != nil:
			s.Background = &Fill{Kind: FillImage, ImageURL: b.BG.Image.URL}
		}
	}

	// Spacing: padding scales, margins stay zero
	if b.Spacing != nil {
		s.Padding = [4]float64{
			b.Spacing.PaddingTop * scale,
			b.Spacing.PaddingRight * scale,
			b.Spacing.PaddingBottom * scale,
			b.Spacing.PaddingLeft * scale,
		}
	}

	// Transform: rotation only
	if b.Transform != nil {
		s.Rotate = b.Transform.Rotate
	}

	if b.Shadow != nil {
		s.Shadow = &ShadowStyle{
			Blur:  b.Shadow.Elevation * scale,
			Color: colourString(b.Shadow.Colour),
		}
	}
	return s
}

func renderText(t *trigger.TextData, scale float64) *Text {
	if t == nil {
		return &Text{Parts: []TextRun{{}}}
	}

	out := &Text{
		Align: t.Align,
		Size:  t.Size * scale,
		Color: colourString(t.Color),
	}

	if len(t.Parts) == 0 {
		// Fall back to the plain text when no styled runs are declared
		out.Parts = []TextRun{{Text: t.Plain}}
		return out
	}
	for _, p := range t.Parts {
		out.Parts = append(out.Parts, TextRun{
			Text:      p.Text,
			Bold:      p.Bold,
			Italic:    p.Italic,
			Underline: p.Underline,
			Strike:    p.Strike,
			Color:     colourString(p.Color),
		})
	}
	return out
}

// anchorOf normalises the nine compass anchors; anything else centers.
func anchorOf(a string) string {
	switch a {
	case "NW", "N", "NE", "W", "E", "SW", "S", "SE":
		return a
	default:
		return "C"
	}
}

// colourString renders a Colour as #RRGGBB, or #RRGGBBAA when an alpha
// percent is declared.
func colourString(c *trigger.Colour) string {
	if c == nil {
		return ""
	}
	if c.Alpha == nil {
		return c.Hex
	}
	a := *c.Alpha
	if a < 0 {
		a = 0
	}
	if a > 100 {
		a = 100
	}
	return fmt.Sprintf("%s%02X", c.Hex, int(math.Round(a/100*255)))
}
