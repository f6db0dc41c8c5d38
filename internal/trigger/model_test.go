package trigger

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload(expireAt int64) string {
	return `{
		"id": "tr-1",
		"engagementID": "eng-1",
		"expireAt": ` + strconv.FormatInt(expireAt, 10) + `,
		"version": 2,
		"ian": {
			"cont": {"w": 1080, "h": 1920, "bg": {"solid": {"hex": "#102030"}}},
			"layers": [
				{"elems": [
					{"t": 2, "w": 400, "h": 80, "x": 100, "y": 200,
					 "txt": {"prs": [{"text": "Hello ", "b": true}, {"text": "there", "i": true}], "alg": "center"}},
					{"t": 3, "w": 200, "h": 60,
					 "txt": {"text": "Buy now"},
					 "clc": {"at": "EXTERNAL", "ext": {"u": "example.com"}, "close": true}}
				]}
			]
		}
	}`
}

func TestParse(t *testing.T) {
	expire := time.Now().Add(time.Hour).UnixMilli()
	p, err := Parse([]byte(samplePayload(expire)))
	require.NoError(t, err)

	assert.Equal(t, "tr-1", p.ID)
	assert.Equal(t, "eng-1", p.EngagementID)
	assert.Equal(t, expire, p.ExpireAt)
	require.NotNil(t, p.InApp.Container)
	assert.Equal(t, 1080.0, *p.InApp.Container.Width)

	require.Len(t, p.InApp.Layers, 1)
	elems := p.InApp.Layers[0].Elements
	require.Len(t, elems, 2)

	assert.Equal(t, ElementText, elems[0].Type)
	require.Len(t, elems[0].Text.Parts, 2)
	assert.True(t, elems[0].Text.Parts[0].Bold)

	assert.Equal(t, ElementButton, elems[1].Type)
	require.NotNil(t, elems[1].Click)
	assert.Equal(t, ActionExternal, elems[1].Click.Type)
	assert.True(t, elems[1].Click.Close)
}

func TestParse_Rejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"missing id", `{"expireAt": 1, "ian": {"cont": {}}}`},
		{"missing expiry", `{"id": "x", "ian": {"cont": {}}}`},
		{"missing scene", `{"id": "x", "expireAt": 1}`},
		{"unknown element type", `{"id": "x", "expireAt": 1,
			"ian": {"cont": {}, "layers": [{"elems": [{"t": 42}]}]}}`},
		{"group without nested scene", `{"id": "x", "expireAt": 1,
			"ian": {"cont": {}, "layers": [{"elems": [{"t": 5}]}]}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			require.Error(t, err)
		})
	}
}

func TestParse_NestedGroup(t *testing.T) {
	raw := `{"id": "x", "expireAt": 1, "ian": {"cont": {},
		"layers": [{"elems": [
			{"t": 5, "ian": {"cont": {"w": 100, "h": 100},
				"layers": [{"elems": [{"t": 4, "w": 10, "h": 10}]}]}}
		]}]}}`

	p, err := Parse([]byte(raw))
	require.NoError(t, err)

	group := p.InApp.Layers[0].Elements[0]
	assert.Equal(t, ElementGroup, group.Type)
	require.NotNil(t, group.Group)
	assert.Equal(t, ElementShape, group.Group.Layers[0].Elements[0].Type)

	// Unknown type inside a nested group still fails the whole parse
	bad := `{"id": "x", "expireAt": 1, "ian": {"cont": {},
		"layers": [{"elems": [
			{"t": 5, "ian": {"cont": {}, "layers": [{"elems": [{"t": 42}]}]}}
		]}]}}`
	_, err = Parse([]byte(bad))
	require.Error(t, err)
}

func TestPayload_Expired(t *testing.T) {
	now := time.Now()
	p := &Payload{ExpireAt: now.Add(-time.Second).UnixMilli()}
	assert.True(t, p.Expired(now))

	p.ExpireAt = now.Add(time.Second).UnixMilli()
	assert.False(t, p.Expired(now))
}

func TestClickAction_HasCTA(t *testing.T) {
	// A close-only action is a plain dismissal, not a CTA
	assert.False(t, (&ClickAction{Close: true}).HasCTA())
	assert.False(t, (*ClickAction)(nil).HasCTA())

	// Pure navigation does not make the action a CTA either
	assert.False(t, (&ClickAction{Type: ActionExternal, Ext: &ActionURL{URL: "example.com"}, Close: true}).HasCTA())

	assert.True(t, (&ClickAction{KV: map[string]any{"k": "v"}}).HasCTA())
	assert.True(t, (&ClickAction{Profile: map[string]any{"name": "x"}}).HasCTA())
	assert.True(t, (&ClickAction{Type: ActionPrompt, Prompt: "location"}).HasCTA())
	assert.True(t, (&ClickAction{Type: ActionShare, Share: &ShareData{URL: "example.com"}}).HasCTA())

	// Unrecognised type with no other payload is not a CTA
	assert.False(t, (&ClickAction{Type: "BOGUS"}).HasCTA())
}
