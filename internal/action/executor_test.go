package action

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letscooee/cooee-go/internal/api"
	"github.com/letscooee/cooee-go/internal/dispatch"
	"github.com/letscooee/cooee-go/internal/host"
	"github.com/letscooee/cooee-go/internal/kv"
	"github.com/letscooee/cooee-go/internal/trigger"
)

// capHost extends host.Noop with share, prompt and in-page capabilities.
type capHost struct {
	host.Noop
	shared     []string
	prompted   []host.PermissionKind
	promptResp string
	promptErr  error
	inPage     []string
}

func (c *capHost) Share(title, text, url string) error {
	c.shared = append(c.shared, url)
	return nil
}

func (c *capHost) RequestPermission(kind host.PermissionKind) (string, error) {
	c.prompted = append(c.prompted, kind)
	return c.promptResp, c.promptErr
}

func (c *capHost) OpenInPage(url string) error {
	c.inPage = append(c.inPage, url)
	return nil
}

type env struct {
	exec     *Executor
	hst      *capHost
	triggers *trigger.EmbeddedStore
	requests *[]string
	server   *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()

	var mu sync.Mutex
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	queue := dispatch.NewQueue(api.NewClient(server.URL, 2*time.Second), func() dispatch.Stamp {
		return dispatch.Stamp{SessionID: "s1", SessionNumber: 1}
	})
	queue.Open()

	hst := &capHost{promptResp: "granted"}
	triggers := trigger.NewEmbeddedStore(kv.NewMemoryStore())
	return &env{
		exec:     NewExecutor(queue, hst, triggers),
		hst:      hst,
		triggers: triggers,
		requests: &requests,
		server:   server,
	}
}

func livePayload() *trigger.Payload {
	return &trigger.Payload{
		ID:           "tr-1",
		EngagementID: "eng-1",
		ExpireAt:     time.Now().Add(time.Hour).UnixMilli(),
	}
}

func TestExecute_ExternalWithClose(t *testing.T) {
	e := newEnv(t)

	var behaviours []string
	closeFn := func(b string) { behaviours = append(behaviours, b) }

	// Scheme-less URL is repaired with //, opened in a new tab
	e.exec.Execute(&trigger.ClickAction{
		Type:  trigger.ActionExternal,
		Ext:   &trigger.ActionURL{URL: "example.com"},
		Close: true,
	}, livePayload(), nil, closeFn)

	require.Len(t, e.hst.Opened, 1)
	assert.Equal(t, "//example.com", e.hst.Opened[0].URL)
	assert.True(t, e.hst.Opened[0].NewTab)

	// Navigation alone is a plain dismissal: no CTA recorded
	assert.Equal(t, []string{CloseBehaviourPlain}, behaviours)
	_, ok := e.triggers.Active()
	assert.False(t, ok)
}

func TestExecute_CloseOnlyIsPlainDismissal(t *testing.T) {
	e := newEnv(t)

	var behaviour string
	e.exec.Execute(&trigger.ClickAction{Close: true}, livePayload(), nil, func(b string) { behaviour = b })

	assert.Equal(t, CloseBehaviourPlain, behaviour)

	// No CTA semantics: nothing recorded as active
	_, ok := e.triggers.Active()
	assert.False(t, ok)
	assert.Empty(t, e.hst.Opened)
}

func TestExecute_SchemedURLNotTouched(t *testing.T) {
	e := newEnv(t)

	e.exec.Execute(&trigger.ClickAction{
		Type: trigger.ActionExternal,
		Ext:  &trigger.ActionURL{URL: "https://example.com/x"},
	}, livePayload(), nil, nil)

	require.Len(t, e.hst.Opened, 1)
	assert.Equal(t, "https://example.com/x", e.hst.Opened[0].URL)
}

func TestExecute_Navigate(t *testing.T) {
	e := newEnv(t)

	e.exec.Execute(&trigger.ClickAction{
		Type: trigger.ActionNavigate,
		Nav:  &trigger.ActionURL{URL: "example.com/sale"},
	}, livePayload(), nil, nil)

	require.Len(t, e.hst.Opened, 1)
	assert.False(t, e.hst.Opened[0].NewTab, "navigate stays in the current tab")
}

func TestExecute_InPageBrowser(t *testing.T) {
	e := newEnv(t)

	e.exec.Execute(&trigger.ClickAction{
		Type:  trigger.ActionInAppWeb,
		InApp: &trigger.ActionURL{URL: "example.com/offer"},
	}, livePayload(), nil, nil)

	require.Len(t, e.hst.inPage, 1)
	assert.Equal(t, "//example.com/offer", e.hst.inPage[0])
}

func TestExecute_Share(t *testing.T) {
	e := newEnv(t)

	e.exec.Execute(&trigger.ClickAction{
		Type:  trigger.ActionShare,
		Share: &trigger.ShareData{URL: "https://example.com"},
	}, livePayload(), nil, nil)

	assert.Equal(t, []string{"https://example.com"}, e.hst.shared)
}

func TestExecute_PromptPushesPermissionState(t *testing.T) {
	e := newEnv(t)
	e.hst.promptResp = "denied"

	e.exec.Execute(&trigger.ClickAction{
		Type:   trigger.ActionPrompt,
		Prompt: "LOCATION",
	}, livePayload(), nil, nil)

	assert.Equal(t, []host.PermissionKind{host.PermissionLocation}, e.hst.prompted)

	// Denial still flows back as a profile update
	assert.Contains(t, *e.requests, "/v1/user/update")
}

func TestExecute_KeyValueMergesAndEmits(t *testing.T) {
	e := newEnv(t)

	e.exec.Execute(&trigger.ClickAction{
		Type: trigger.ActionKeyValue,
		KV:   map[string]any{"sku": "A-1", "source": "action"},
	}, livePayload(), map[string]any{"source": "caller", "qty": 2}, nil)

	require.Len(t, e.hst.Dispatched, 1)
	got := e.hst.Dispatched[0]
	assert.Equal(t, CTAEventName, got.Name)
	assert.Equal(t, "A-1", got.Detail["sku"])
	assert.Equal(t, "caller", got.Detail["source"], "caller key-values win the merge")
	assert.Equal(t, 2, got.Detail["qty"])
}

func TestExecute_UnknownTypeKeepsOtherEffects(t *testing.T) {
	e := newEnv(t)

	var behaviour string
	e.exec.Execute(&trigger.ClickAction{
		Type:    "TELEPORT",
		Close:   true,
		KV:      map[string]any{"k": "v"},
		Profile: map[string]any{"name": "x"},
	}, livePayload(), nil, func(b string) { behaviour = b })

	// Step 3 skipped, steps 1, 2 and 4 still ran
	assert.Empty(t, e.hst.Opened)
	assert.NotEmpty(t, behaviour)
	require.Len(t, e.hst.Dispatched, 1)

	assert.Contains(t, *e.requests, "/v1/user/update")

	// KV/profile payloads are CTA semantics: behaviour is CTA and the
	// trigger was recorded
	assert.Equal(t, CloseBehaviourCTA, behaviour)
	_, ok := e.triggers.Active()
	assert.True(t, ok)
}

func TestExecute_ProfileUpdateAppliesWithoutClose(t *testing.T) {
	e := newEnv(t)

	e.exec.Execute(&trigger.ClickAction{
		Profile: map[string]any{"plan": "pro"},
	}, livePayload(), nil, nil)

	assert.Contains(t, *e.requests, "/v1/user/update")
}

func TestExecute_NilActionIsNoop(t *testing.T) {
	e := newEnv(t)
	e.exec.Execute(nil, livePayload(), nil, func(string) { t.Fatal("no close expected") })
	assert.Empty(t, e.hst.Opened)
}

func TestEnsureScheme(t *testing.T) {
	assert.Equal(t, "//example.com", ensureScheme("example.com"))
	assert.Equal(t, "//example.com", ensureScheme("//example.com"))
	assert.Equal(t, "https://example.com", ensureScheme("https://example.com"))
}

func TestPrompt_ErrorSkipsProfileUpdate(t *testing.T) {
	e := newEnv(t)
	e.hst.promptErr = errors.New("dismissed")

	e.exec.Execute(&trigger.ClickAction{
		Type:   trigger.ActionPrompt,
		Prompt: "PUSH",
	}, livePayload(), nil, nil)

	assert.NotContains(t, *e.requests, "/v1/user/update")
}
