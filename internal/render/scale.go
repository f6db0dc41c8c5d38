package render

// Default design canvas, used when the root container declares no size.
const (
	DefaultCanvasWidth  = 1080.0
	DefaultCanvasHeight = 1920.0
)

// ScaleFactor maps the fixed authored canvas onto the viewport. A fixed
// margin is reserved on every side, the binding axis wins, and the
// result never exceeds 1: the overlay is never shown larger than its
// authored size.
func ScaleFactor(canvasW, canvasH, viewW, viewH, margin float64) float64 {
	if canvasW <= 0 {
		canvasW = DefaultCanvasWidth
	}
	if canvasH <= 0 {
		canvasH = DefaultCanvasHeight
	}

	availW := viewW - 2*margin
	availH := viewH - 2*margin
	if availW <= 0 || availH <= 0 {
		return 0
	}

	scale := availW / canvasW
	if h := availH / canvasH; h < scale {
		scale = h
	}
	if scale > 1 {
		scale = 1
	}
	return scale
}
