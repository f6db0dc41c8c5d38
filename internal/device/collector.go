package device

import (
	"context"
	"sync"
	"time"

	"github.com/mssola/useragent"
	"github.com/rs/zerolog/log"

	"github.com/letscooee/cooee-go/internal/host"
)

// Properties is the device/browser/network snapshot sent with device
// validation and attached to enriched events. Absent capabilities stay
// nil and marshal away.
type Properties struct {
	Browser        string   `json:"browser,omitempty"`
	BrowserVersion string   `json:"browserVersion,omitempty"`
	OS             string   `json:"os,omitempty"`
	OSVersion      string   `json:"osVersion,omitempty"`
	DeviceType     string   `json:"deviceType,omitempty"`
	Locale         string   `json:"locale,omitempty"`
	Orientation    string   `json:"orientation,omitempty"`
	NetworkType    string   `json:"networkType,omitempty"`
	MemoryMB       *int64   `json:"availableMemory,omitempty"`
	DPI            *float64 `json:"dpi,omitempty"`
	BatteryLevel   *float64 `json:"batteryLevel,omitempty"`
	BatteryCharge  *bool    `json:"batteryCharging,omitempty"`
	Latitude       *float64 `json:"lat,omitempty"`
	Longitude      *float64 `json:"lng,omitempty"`

	Viewport host.Viewport `json:"viewport"`
	Screen   host.Viewport `json:"screen"`

	// UTM carries the persisted attribution parameters of the landing
	// URL. The collector leaves it empty; the auth gateway stamps it
	// before device validation.
	UTM map[string]string `json:"utm,omitempty"`
}

// Collector gathers the snapshot from the host. Every probe runs in its
// own goroutine; a hung probe costs at most the probe timeout and never
// blocks the others. Collect always returns a usable snapshot.
type Collector struct {
	host    host.Host
	timeout time.Duration
}

// NewCollector creates a collector over h. timeout bounds each probe.
func NewCollector(h host.Host, timeout time.Duration) *Collector {
	return &Collector{host: h, timeout: timeout}
}

// Collect builds the snapshot. It never fails: probes the host does not
// implement, or that error or overrun the timeout, leave their fields
// absent.
func (c *Collector) Collect(ctx context.Context) Properties {
	var (
		mu    sync.Mutex
		props Properties
	)

	// Synchronous, cheap reads straight off the host
	props.Viewport = c.host.Viewport()
	props.Screen = c.host.Screen()

	if ua := c.host.UserAgent(); ua != "" {
		parsed := useragent.New(ua)
		props.Browser, props.BrowserVersion = parsed.Browser()
		props.OS = parsed.OS()
		props.DeviceType = deviceType(parsed)
		props.OSVersion = parsed.OSInfo().Version
	}

	probes := []struct {
		name string
		run  func() bool
	}{
		{"battery", func() bool {
			p, ok := c.host.(host.BatteryProber)
			if !ok {
				return false
			}
			level, charging, err := p.Battery()
			if err != nil {
				return false
			}
			mu.Lock()
			props.BatteryLevel = &level
			props.BatteryCharge = &charging
			mu.Unlock()
			return true
		}},
		{"network", func() bool {
			p, ok := c.host.(host.NetworkProber)
			if !ok {
				return false
			}
			nt, err := p.NetworkType()
			if err != nil {
				return false
			}
			mu.Lock()
			props.NetworkType = nt
			mu.Unlock()
			return true
		}},
		{"memory", func() bool {
			p, ok := c.host.(host.MemoryProber)
			if !ok {
				return false
			}
			mb, err := p.AvailableMemory()
			if err != nil {
				return false
			}
			mu.Lock()
			props.MemoryMB = &mb
			mu.Unlock()
			return true
		}},
		{"locale", func() bool {
			p, ok := c.host.(host.LocaleProvider)
			if !ok {
				return false
			}
			l, err := p.Locale()
			if err != nil {
				return false
			}
			mu.Lock()
			props.Locale = l
			mu.Unlock()
			return true
		}},
		{"orientation", func() bool {
			p, ok := c.host.(host.OrientationProvider)
			if !ok {
				return false
			}
			o, err := p.Orientation()
			if err != nil {
				return false
			}
			mu.Lock()
			props.Orientation = o
			mu.Unlock()
			return true
		}},
		{"dpi", func() bool {
			p, ok := c.host.(host.DPIProber)
			if !ok {
				return false
			}
			d, err := p.DPI()
			if err != nil {
				return false
			}
			mu.Lock()
			props.DPI = &d
			mu.Unlock()
			return true
		}},
		{"location", func() bool {
			// Geolocator contract: only answers when permission was
			// already granted, never prompts.
			p, ok := c.host.(host.Geolocator)
			if !ok {
				return false
			}
			lat, lng, err := p.Location()
			if err != nil {
				return false
			}
			mu.Lock()
			props.Latitude = &lat
			props.Longitude = &lng
			mu.Unlock()
			return true
		}},
	}

	var wg sync.WaitGroup
	done := make(chan struct{})

	for _, probe := range probes {
		wg.Add(1)
		go func(name string, run func() bool) {
			defer wg.Done()
			if !run() {
				log.Debug().Str("probe", name).Msg("Device probe unavailable")
			}
		}(probe.name, probe.run)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		log.Warn().Dur("timeout", c.timeout).Msg("Device probe fan-out timed out, returning partial snapshot")
	case <-ctx.Done():
	}

	// Late probe writes after the timeout are harmless: the snapshot
	// below is a copy taken under the lock.
	mu.Lock()
	snapshot := props
	mu.Unlock()
	return snapshot
}

func deviceType(ua *useragent.UserAgent) string {
	if ua.Mobile() {
		return "mobile"
	}
	if ua.Bot() {
		return "bot"
	}
	return "desktop"
}
