package listener

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHelp(t *testing.T) {
	bus, l, out := setup(t)
	require.NoError(t, RegisterHelp(bus))
	ctx := context.Background()

	_, err := l.Handle(ctx, msg("!help"))
	require.NoError(t, err)
	assert.Contains(t, out.last(), "!tickets.create: Create a support ticket")
	assert.Contains(t, out.last(), "!echo")

	_, err = l.Handle(ctx, msg("!help query:ticket"))
	require.NoError(t, err)
	assert.Equal(t, "!tickets.create: Create a support ticket", out.last())

	_, err = l.Handle(ctx, msg("!help --query nothing-matches"))
	require.NoError(t, err)
	assert.Equal(t, `No commands match "nothing-matches".`, out.last())

	_, err = l.Handle(ctx, msg("!help --command tickets.create"))
	require.NoError(t, err)
	assert.Contains(t, out.last(), "Usage: !tickets.create [options]")

	_, err = l.Handle(ctx, msg("!help --command nope"))
	require.NoError(t, err)
	assert.Equal(t, "Unknown command: nope", out.last())

	assert.Error(t, RegisterHelp(bus), "help can only be installed once")
}
