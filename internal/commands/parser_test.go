package commands

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdbus/internal/events"
)

func TestParse(t *testing.T) {
	b := newTestBus(t, nil)
	require.NoError(t, b.Register(Spec{
		ID:      "tickets.create",
		Aliases: []string{"ticket new"},
		Args: []Arg{
			{Name: "title", Type: TypeString, Required: true},
			{Name: "priority", Type: TypeEnum, Values: []string{"low", "high"}},
		},
		Handler: noopHandler,
	}, RegisterOptions{}))
	require.NoError(t, b.Register(Spec{ID: "deploy.run", Handler: noopHandler}, RegisterOptions{}))
	require.NoError(t, b.Register(Spec{
		ID: "cmd",
		Args: []Arg{
			{Name: "force", Type: TypeBoolean},
			{Name: "count", Type: TypeNumber},
		},
		Handler: noopHandler,
	}, RegisterOptions{}))

	tests := []struct {
		name string
		text string
		id   string
		args map[string]any
	}{
		{
			name: "quoted flag value",
			text: `tickets.create --title "VPN down" --priority high`,
			id:   "tickets.create",
			args: map[string]any{"title": "VPN down", "priority": "high"},
		},
		{
			name: "bare flags without schema",
			text: "deploy.run --dry-run --force",
			id:   "deploy.run",
			args: map[string]any{"dry-run": true, "force": true},
		},
		{
			name: "boolean flag skips lookahead",
			text: "cmd --force --count 5",
			id:   "cmd",
			args: map[string]any{"force": true, "count": "5"},
		},
		{
			name: "boolean flag does not eat next word",
			text: "cmd --force yes",
			id:   "cmd",
			args: map[string]any{"force": true},
		},
		{
			name: "colon pairs",
			text: "deploy.run env:prod note:a:b",
			id:   "deploy.run",
			args: map[string]any{"env": "prod", "note": "a:b"},
		},
		{
			name: "flag value with colon is not consumed",
			text: "deploy.run --at env:prod",
			id:   "deploy.run",
			args: map[string]any{"at": true, "env": "prod"},
		},
		{
			name: "separated key",
			text: "deploy.run -- region eu",
			id:   "deploy.run",
			args: map[string]any{"region": "eu"},
		},
		{
			name: "separated key without value",
			text: "deploy.run -- verbose --force",
			id:   "deploy.run",
			args: map[string]any{"verbose": true, "force": true},
		},
		{
			name: "trailing separator",
			text: "deploy.run --",
			id:   "deploy.run",
			args: map[string]any{},
		},
		{
			name: "positional words ignored",
			text: "deploy.run now please",
			id:   "deploy.run",
			args: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Parse(tt.text)
			require.NotNil(t, got)
			assert.Equal(t, tt.id, got.CommandID)
			assert.Equal(t, tt.text, got.RawText)
			if diff := cmp.Diff(tt.args, got.Args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseByIDOnly(t *testing.T) {
	b := newTestBus(t, nil)
	require.NoError(t, b.Register(Spec{ID: "tickets.create", Aliases: []string{"ticket"}, Handler: noopHandler}, RegisterOptions{}))

	assert.Nil(t, b.Parse("ticket --title x"))
	assert.Nil(t, b.Parse("unknown.command"))
	assert.Nil(t, b.Parse("   "))
}

func TestParseStripsPrefix(t *testing.T) {
	b := newTestBus(t, func(o *Options) { o.Prefix = "!" })
	rec := record(b)
	require.NoError(t, b.Register(Spec{ID: "echo", Handler: noopHandler}, RegisterOptions{}))

	got := b.Parse("!echo text:hi")
	require.NotNil(t, got)
	assert.Equal(t, "echo", got.CommandID)
	assert.Equal(t, "hi", got.Args["text"])

	evt, ok := rec.last(events.InvocationParsed)
	require.True(t, ok)
	assert.Equal(t, "echo", evt.CommandID)
	assert.Equal(t, "hi", evt.Args["text"])

	assert.NotNil(t, b.Parse("echo"), "prefix is optional")
	assert.Nil(t, b.Parse("  !echo"), "prefix must start the text")
	assert.NotNil(t, b.Parse("!  echo text:hi"))
}
