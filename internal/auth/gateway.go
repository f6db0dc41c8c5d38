// Package auth exchanges the device identity for a short-lived access
// token and broadcasts completion to everything waiting on it.
package auth

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/letscooee/cooee-go/internal/api"
	"github.com/letscooee/cooee-go/internal/device"
	"github.com/letscooee/cooee-go/internal/identity"
	"github.com/letscooee/cooee-go/internal/kv"
)

// Gateway authenticates the device once per page load. Failures are
// retried forever at a fixed interval and never surfaced to callers;
// they only delay the completion broadcast. At most one validation
// request is ever in flight.
type Gateway struct {
	client    *api.Client
	store     kv.Store
	ident     *identity.Manager
	collector *device.Collector
	interval  time.Duration

	mu      sync.Mutex
	started bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewGateway wires the gateway. interval is the fixed delay between
// failed validation attempts.
func NewGateway(client *api.Client, store kv.Store, ident *identity.Manager, collector *device.Collector, interval time.Duration) *Gateway {
	return &Gateway{
		client:    client,
		store:     store,
		ident:     ident,
		collector: collector,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Done is the completion broadcast: it is closed once authentication
// has succeeded, so a subscriber arriving afterwards unblocks
// immediately.
func (g *Gateway) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until authentication completes or ctx ends.
func (g *Gateway) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnsureAuthenticated starts authentication for appID if it is not
// already running or finished, and returns the completion broadcast.
// Concurrent calls share the single in-flight attempt.
func (g *Gateway) EnsureAuthenticated(appID string) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return g.done
	}
	g.started = true

	// Persisted credentials short-circuit the network entirely.
	token, tokenErr := g.store.Get(kv.KeySDKToken)
	userID := kv.GetDefault(g.store, kv.KeyUserID, "")
	if tokenErr == nil && token != "" {
		g.client.SetCredentials(api.Credentials{AppID: appID, AccessToken: token, UserID: userID})
		log.Debug().Msg("Reusing persisted sdk token")
		close(g.done)
		return g.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	go g.register(ctx, appID)
	return g.done
}

// Stop abandons a still-running retry loop. The broadcast stays open;
// Stop exists for host teardown, not for surfacing failure.
func (g *Gateway) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
}

// register runs the never-give-up validation loop on its own goroutine.
// A plain timer loop, not recursion, so a long-lived page cannot grow
// the stack.
func (g *Gateway) register(ctx context.Context, appID string) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		attempt++
		if g.attempt(ctx, appID) {
			close(g.done)
			return
		}

		log.Warn().
			Int("attempt", attempt).
			Dur("retry_in", g.interval).
			Msg("Device validation failed, retrying")
		timer.Reset(g.interval)
	}
}

func (g *Gateway) attempt(ctx context.Context, appID string) bool {
	props := g.collector.Collect(ctx)
	props.UTM = g.utmParams()

	resp, err := g.client.ValidateDevice(ctx, api.DeviceAuthRequest{
		AppID: appID,
		UUID:  g.ident.UUID(),
		Props: props,
	})
	if err != nil {
		log.Error().Err(err).Msg("Device validation request failed")
		return false
	}

	g.client.SetCredentials(api.Credentials{
		AppID:       appID,
		AccessToken: resp.SDKToken,
		UserID:      resp.UserID,
	})

	// Persist so future page loads skip re-authentication
	if err := g.store.Set(kv.KeySDKToken, resp.SDKToken); err != nil {
		log.Error().Err(err).Msg("Failed to persist sdk token")
	}
	if err := g.store.Set(kv.KeyUserID, resp.UserID); err != nil {
		log.Error().Err(err).Msg("Failed to persist user id")
	}

	log.Info().Str("user_id", resp.UserID).Msg("Device authenticated")
	return true
}

// utmParams loads the persisted attribution parameters, captured from
// the landing URL before authentication started.
func (g *Gateway) utmParams() map[string]string {
	raw, err := g.store.Get(kv.KeyUTMParams)
	if err != nil {
		return nil
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return nil
	}
	utm := make(map[string]string, len(vals))
	for key, v := range vals {
		if len(v) > 0 {
			utm[key] = v[0]
		}
	}
	return utm
}
