package host

// Noop is a Host that does nothing. It backs tests and headless hosts
// that only want event tracking.
type Noop struct {
	UA       string
	View     Viewport
	Display  Viewport
	PageInfo PageInfo

	// Dispatched collects every DispatchEvent call for inspection.
	Dispatched []DispatchedEvent
	// Opened collects every OpenURL call.
	Opened []OpenedURL
}

type DispatchedEvent struct {
	Name   string
	Detail map[string]any
}

type OpenedURL struct {
	URL    string
	NewTab bool
}

func (n *Noop) UserAgent() string  { return n.UA }
func (n *Noop) Viewport() Viewport { return n.View }
func (n *Noop) Screen() Viewport   { return n.Display }
func (n *Noop) Page() PageInfo     { return n.PageInfo }

func (n *Noop) DispatchEvent(name string, detail map[string]any) {
	n.Dispatched = append(n.Dispatched, DispatchedEvent{Name: name, Detail: detail})
}

func (n *Noop) OpenURL(url string, newTab bool) error {
	n.Opened = append(n.Opened, OpenedURL{URL: url, NewTab: newTab})
	return nil
}
