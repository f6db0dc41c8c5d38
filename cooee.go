// Package cooee is an embeddable instrumentation engine: it
// authenticates a device against the Cooee backend, tracks sessions and
// analytics events, and turns server-authored trigger payloads into
// render trees the host paints as in-page overlays.
//
// Everything is explicitly constructed: New wires one SDK per page
// context and hands it every collaborator. There are no package-level
// singletons.
package cooee

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/letscooee/cooee-go/internal/action"
	"github.com/letscooee/cooee-go/internal/api"
	"github.com/letscooee/cooee-go/internal/auth"
	"github.com/letscooee/cooee-go/internal/config"
	"github.com/letscooee/cooee-go/internal/device"
	"github.com/letscooee/cooee-go/internal/dispatch"
	"github.com/letscooee/cooee-go/internal/host"
	"github.com/letscooee/cooee-go/internal/identity"
	"github.com/letscooee/cooee-go/internal/kv"
	"github.com/letscooee/cooee-go/internal/session"
	"github.com/letscooee/cooee-go/internal/trigger"
)

// Config is the public alias of the SDK configuration.
type Config = config.Config

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Event names emitted by the SDK itself.
const (
	EventFirstLaunch    = "CE First Launch"
	EventWebLaunched    = "CE Web Launched"
	EventSessionStarted = "CE Session Started"
	EventTriggerShown   = "CE Trigger Displayed"
	EventTriggerClosed  = "CE Trigger Closed"
)

// SDK is the composition root. One SDK serves one page context; a
// fresh page load constructs a fresh SDK with a fresh dispatch gate.
type SDK struct {
	cfg      *config.Config
	hst      host.Host
	store    kv.Store
	client   *api.Client
	gateway  *auth.Gateway
	sessions *session.Machine
	queue    *dispatch.Queue
	triggers *trigger.EmbeddedStore
	executor *action.Executor
	collect  *device.Collector

	mu     sync.Mutex
	screen string
	closer func() error
}

// New wires an SDK over the host. The configuration selects the
// durable storage backend and the backend base URL; cfg must carry the
// application id.
func New(cfg *Config, h host.Host) (*SDK, error) {
	if cfg == nil || cfg.App.ID == "" {
		return nil, errors.New("cooee: missing app id")
	}
	cfg.ApplyDefaults()

	store, closer, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("cooee: opening storage: %w", err)
	}

	client := api.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	collector := device.NewCollector(h, cfg.Collect.ProbeTimeout)
	ident := identity.NewManager(store)
	gateway := auth.NewGateway(client, store, ident, collector, cfg.Backend.AuthRetryInterval)
	sessions := session.NewMachine(store, cfg.Session.IdleThreshold)

	s := &SDK{
		cfg:      cfg,
		hst:      h,
		store:    store,
		client:   client,
		gateway:  gateway,
		sessions: sessions,
		triggers: trigger.NewEmbeddedStore(store),
		collect:  collector,
		closer:   closer,
	}
	s.queue = dispatch.NewQueue(client, s.stamp)
	s.executor = action.NewExecutor(s.queue, h, s.triggers)
	return s, nil
}

// Start boots the engine: captures UTM parameters, begins device
// authentication, opens the dispatch gate on completion, ensures an
// active session and emits the launch events. Start returns
// immediately; authentication proceeds in the background and only
// delays dispatch, never fails it.
func (s *SDK) Start() {
	s.captureUTM()

	s.gateway.EnsureAuthenticated(s.cfg.App.ID)
	go func() {
		<-s.gateway.Done()
		s.queue.Open()
	}()

	if s.sessions.EnsureActive() {
		s.queue.SendEvent(api.NewEvent(EventSessionStarted, nil))
	}

	if !kv.Has(s.store, kv.KeyFirstLaunchSent) {
		s.queue.SendEvent(api.NewEvent(EventFirstLaunch, nil))
		s.store.Set(kv.KeyFirstLaunchSent, "true")
	}
	s.queue.SendEvent(api.NewEvent(EventWebLaunched, nil))
}

// SendEvent tracks a named event with optional properties. Events
// queue behind the dispatch gate until authentication completes and
// carry the session active at flush time.
func (s *SDK) SendEvent(name string, properties map[string]any) {
	s.ensureSession()
	s.sessions.Touch()

	e := api.NewEvent(name, properties)
	if list := s.triggers.ActiveList(); len(list) > 0 {
		e.ActiveTriggers = list
	}
	s.queue.SendEvent(e)
}

// UpdateProfile pushes user data and user properties.
func (s *SDK) UpdateProfile(userData, userProperties map[string]any) {
	s.sessions.Touch()
	s.queue.UpdateProfile(userData, userProperties)
}

// UpdateDeviceProperties re-collects the device snapshot and pushes it.
func (s *SDK) UpdateDeviceProperties(ctx context.Context) {
	props := s.collect.Collect(ctx)
	s.queue.UpdateDeviceProperties(props)
}

// SetScreen names the screen stamped onto subsequently flushed events.
// Without one the host page's path is used.
func (s *SDK) SetScreen(name string) {
	s.mu.Lock()
	s.screen = name
	s.mu.Unlock()
}

// OnVisibilityChange is called by the host when the page hides or
// becomes visible. Returning to visible after the idle threshold
// concludes the old session and starts a new one.
func (s *SDK) OnVisibilityChange(visible bool) {
	if !s.sessions.SetVisible(visible) {
		return
	}

	if rec, err := s.sessions.Conclude(); err == nil {
		s.queue.ConcludeSession(rec)
	}
	s.sessions.StartNew()
	s.queue.SendEvent(api.NewEvent(EventSessionStarted, nil))
}

// Conclude ends the active session explicitly. It is an error to
// conclude when no session is active.
func (s *SDK) Conclude() error {
	rec, err := s.sessions.Conclude()
	if err != nil {
		return err
	}
	s.queue.ConcludeSession(rec)
	return nil
}

// Close tears the SDK down: it abandons a still-running
// authentication loop and releases the storage backend. Queued calls
// that never dispatched are dropped, matching the page-unload
// semantics of the original environment.
func (s *SDK) Close() error {
	s.gateway.Stop()
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// ensureSession moves to ACTIVE, emitting the session-started event
// when a genuinely new session begins.
func (s *SDK) ensureSession() {
	if s.sessions.EnsureActive() {
		s.queue.SendEvent(api.NewEvent(EventSessionStarted, nil))
	}
}

// stamp yields the session/screen context at flush time.
func (s *SDK) stamp() dispatch.Stamp {
	s.ensureSession()
	id, number, _ := s.sessions.Current()

	s.mu.Lock()
	screen := s.screen
	s.mu.Unlock()
	if screen == "" {
		screen = s.hst.Page().Path
	}
	return dispatch.Stamp{SessionID: id, SessionNumber: number, Screen: screen}
}

// captureUTM persists the UTM parameters of the landing URL so later
// profile updates can attribute the visit.
func (s *SDK) captureUTM() {
	page := s.hst.Page()
	if page.URL == "" {
		return
	}
	u, err := url.Parse(page.URL)
	if err != nil {
		return
	}

	params := url.Values{}
	for key, vals := range u.Query() {
		if strings.HasPrefix(key, "utm_") && len(vals) > 0 {
			params.Set(key, vals[0])
		}
	}
	if len(params) == 0 {
		return
	}
	if err := s.store.Set(kv.KeyUTMParams, params.Encode()); err != nil {
		log.Error().Err(err).Msg("Failed to persist utm parameters")
	}
}

func openStore(cfg *config.Config) (kv.Store, func() error, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return kv.NewMemoryStore(), nil, nil
	case "file":
		s, err := kv.NewFileStore(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "redis":
		prefix := cfg.Storage.Redis.KeyPrefix
		if prefix == "" {
			prefix = "cooee:sdk"
		}
		s := kv.NewRedisStore(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		}, prefix)
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
