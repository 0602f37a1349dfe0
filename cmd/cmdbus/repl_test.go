package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatLoopSession(t *testing.T) {
	c := setupCLI(t)
	withUsers(t, c)

	h, err := newHost(context.Background(), c, false)
	require.NoError(t, err)
	defer h.Close()

	script := strings.Join([]string{
		"echo text:hi",
		"good morning everyone",
		":user alice",
		"deploy.run service:api env:staging",
		"maybe",
		"yes",
		"tickets.create --title Printer",
		"no",
		":quit",
		"echo text:unreachable",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), h, strings.NewReader(script), &out, h.origin("bob", "#ops")))

	got := out.String()
	assert.Contains(t, got, "bot: hi")
	assert.Contains(t, got, "(no command)")
	assert.Contains(t, got, "now alice (ops)")
	assert.Contains(t, got, "bot: About to run: `deploy.run --service api --env staging --dry-run false`")
	assert.Contains(t, got, "bot: Still waiting on `deploy.run --service api --env staging --dry-run false`. Reply yes or no.")
	assert.Contains(t, got, "bot: Deploying api to staging for Alice")
	assert.Contains(t, got, "bot: Cancelled.")
	assert.NotContains(t, got, "unreachable")
	assert.Equal(t, 0, h.bus.PendingCount())
}

func TestChatLoopStopsAtEOF(t *testing.T) {
	c := setupCLI(t)
	h, err := newHost(context.Background(), c, false)
	require.NoError(t, err)
	defer h.Close()

	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), h, strings.NewReader("echo text:once"), &out, h.origin("local", "#local")))
	assert.Contains(t, out.String(), "bot: once")
}

func TestChatLoopPrintsEvents(t *testing.T) {
	c := setupCLI(t)
	showEvents = true

	h, err := newHost(context.Background(), c, false)
	require.NoError(t, err)
	defer h.Close()

	var out bytes.Buffer
	require.NoError(t, chatLoop(context.Background(), h, strings.NewReader("echo text:hi\n"), &out, h.origin("local", "#local")))
	assert.Contains(t, out.String(), "bot: hi")
}

func TestSessionControl(t *testing.T) {
	c := setupCLI(t)
	withUsers(t, c)
	h, err := newHost(context.Background(), c, false)
	require.NoError(t, err)
	defer h.Close()

	w := &syncWriter{w: &bytes.Buffer{}}
	origin := h.origin("bob", "#general")
	assert.Equal(t, "Bob", origin.User.Name)

	next, quit := h.control(":room #ops", origin, w)
	assert.False(t, quit)
	assert.Equal(t, "#ops", next.Room)
	assert.Equal(t, "bob", next.User.ID)

	next, _ = h.control(":user alice", next, w)
	assert.Equal(t, []string{"ops"}, next.User.Roles)
	assert.Equal(t, "#ops", next.Room)

	_, quit = h.control(":quit", next, w)
	assert.True(t, quit)

	unknown := h.origin("carol", "#ops")
	assert.Equal(t, "carol", unknown.User.Name)
	assert.Empty(t, unknown.User.Roles)
}
