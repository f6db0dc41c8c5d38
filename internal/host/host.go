// Package host defines the surface the embedding application exposes to
// the SDK. The SDK never touches the page directly; every environment
// capability arrives through these interfaces so the engine stays
// testable and host-agnostic.
package host

// Viewport is a width/height pair in device pixels.
type Viewport struct {
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// PageInfo describes the page currently shown by the host.
type PageInfo struct {
	URL   string `json:"url"`
	Path  string `json:"path"`
	Title string `json:"title"`
}

// Host is the mandatory capability set. Optional capabilities below are
// discovered by type assertion; a host that lacks one simply yields an
// absent field or a skipped side effect.
type Host interface {
	// UserAgent returns the raw user-agent string of the environment.
	UserAgent() string
	// Viewport returns the render host's client dimensions.
	Viewport() Viewport
	// Screen returns the full display dimensions.
	Screen() Viewport
	// Page returns the currently shown page.
	Page() PageInfo
	// DispatchEvent raises a custom event (e.g. onCooeeCTA) on the host
	// page with the given detail record.
	DispatchEvent(name string, detail map[string]any)
	// OpenURL navigates: in a new tab when newTab is set, otherwise in
	// the current one.
	OpenURL(url string, newTab bool) error
}

// PermissionKind identifies a promptable permission.
type PermissionKind string

const (
	PermissionLocation PermissionKind = "location"
	PermissionPush     PermissionKind = "push"
	PermissionCamera   PermissionKind = "camera"
)

// BatteryProber reports battery state where the environment supports it.
type BatteryProber interface {
	Battery() (level float64, charging bool, err error)
}

// NetworkProber reports the connection type ("wifi", "4g", ...).
type NetworkProber interface {
	NetworkType() (string, error)
}

// MemoryProber reports available device memory in megabytes.
type MemoryProber interface {
	AvailableMemory() (int64, error)
}

// LocaleProvider reports the environment locale ("en-US", ...).
type LocaleProvider interface {
	Locale() (string, error)
}

// OrientationProvider reports the screen orientation.
type OrientationProvider interface {
	Orientation() (string, error)
}

// DPIProber reports the computed dots-per-inch of the display.
type DPIProber interface {
	DPI() (float64, error)
}

// Geolocator reports coordinates only when permission was already
// granted. Implementations must not prompt the user from Location.
type Geolocator interface {
	Location() (lat, lng float64, err error)
}

// Sharer exposes the host share capability.
type Sharer interface {
	Share(title, text, url string) error
}

// PermissionPrompter asks the user for a permission and reports the
// resulting state ("granted", "denied", ...).
type PermissionPrompter interface {
	RequestPermission(kind PermissionKind) (state string, err error)
}

// InPageBrowser renders an in-page browser overlay for a URL instead of
// leaving the page.
type InPageBrowser interface {
	OpenInPage(url string) error
}
