package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdbus/internal/events"
)

type roleProvider struct {
	allow bool
	err   error
	calls int
	roles []string
}

func (p *roleProvider) HasRole(ctx context.Context, user User, roles []string, origin Origin) (bool, error) {
	p.calls++
	p.roles = roles
	return p.allow, p.err
}

func TestExecuteRunsHandler(t *testing.T) {
	b := newTestBus(t, nil)
	rec := record(b)

	var got Request
	require.NoError(t, b.Register(Spec{
		ID: "echo",
		Handler: func(ctx context.Context, req Request) (any, error) {
			got = req
			return req.Args["text"], nil
		},
	}, RegisterOptions{}))

	result, err := b.Execute(context.Background(), "echo", map[string]any{"text": "hi"}, opsOrigin)
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
	assert.Equal(t, "echo", got.CommandID)
	assert.Equal(t, opsOrigin, got.Origin)

	evt, ok := rec.last(events.Executed)
	require.True(t, ok)
	assert.Equal(t, "hi", evt.Result)
	assert.Equal(t, "u1", evt.UserID)
}

func TestExecuteUnknownCommand(t *testing.T) {
	b := newTestBus(t, nil)
	_, err := b.Execute(context.Background(), "nope", nil, opsOrigin)
	assert.ErrorIs(t, err, ErrCommandNotFound)
}

func TestExecuteHandlerError(t *testing.T) {
	b := newTestBus(t, nil)
	rec := record(b)
	boom := errors.New("boom")
	require.NoError(t, b.Register(Spec{
		ID:      "fail",
		Handler: func(context.Context, Request) (any, error) { return nil, boom },
	}, RegisterOptions{}))

	_, err := b.Execute(context.Background(), "fail", nil, opsOrigin)
	assert.Same(t, boom, err)

	evt, ok := rec.last(events.Error)
	require.True(t, ok)
	assert.Equal(t, "boom", evt.Error)
	_, executed := rec.last(events.Executed)
	assert.False(t, executed)
}

func TestExecuteRoomPermission(t *testing.T) {
	tests := []struct {
		name    string
		origin  Origin
		allowed bool
	}{
		{"allowed room", opsOrigin, true},
		{"other room", Origin{User: User{ID: "u1"}, Room: "#general"}, false},
		{"no room", Origin{User: User{ID: "u1"}}, false},
		{"room name is matched exactly", Origin{User: User{ID: "u1"}, Room: "#OPS"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBus(t, nil)
			rec := record(b)
			calls := 0
			require.NoError(t, b.Register(Spec{
				ID:          "deploy.run",
				Permissions: Permissions{Rooms: []string{"#ops"}},
				Handler: func(context.Context, Request) (any, error) {
					calls++
					return "ok", nil
				},
			}, RegisterOptions{}))

			result, err := b.Execute(context.Background(), "deploy.run", nil, tt.origin)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, "ok", result)
				assert.Equal(t, 1, calls)
				_, denied := rec.last(events.PermissionDenied)
				assert.False(t, denied)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPermissionDenied)
			assert.Equal(t, "Permission denied: command not allowed in this room", err.Error())
			assert.Equal(t, 0, calls)

			var permErr *PermissionError
			require.True(t, errors.As(err, &permErr))
			assert.Equal(t, "deploy.run", permErr.CommandID)

			evt, ok := rec.last(events.PermissionDenied)
			require.True(t, ok)
			assert.Equal(t, ReasonRoom, evt.Reason)
			assert.Equal(t, tt.origin.Room, evt.Room)
			_, executed := rec.last(events.Executed)
			assert.False(t, executed)
		})
	}
}

func TestExecuteRolePermission(t *testing.T) {
	provider := &roleProvider{}
	b := newTestBus(t, func(o *Options) { o.PermissionProvider = provider })
	require.NoError(t, b.Register(Spec{
		ID:          "deploy.run",
		Permissions: Permissions{Roles: []string{"ops", "admin"}},
		Handler:     noopHandler,
	}, RegisterOptions{}))

	_, err := b.Execute(context.Background(), "deploy.run", nil, opsOrigin)
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, "Permission denied: insufficient role", err.Error())
	assert.Equal(t, []string{"ops", "admin"}, provider.roles)

	provider.allow = true
	result, err := b.Execute(context.Background(), "deploy.run", nil, opsOrigin)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, provider.calls)

	provider.err = errors.New("directory offline")
	_, err = b.Execute(context.Background(), "deploy.run", nil, opsOrigin)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), "directory offline")
}

func TestExecuteRolesWithoutProviderAllowed(t *testing.T) {
	b := newTestBus(t, nil)
	require.NoError(t, b.Register(Spec{
		ID:          "deploy.run",
		Permissions: Permissions{Roles: []string{"ops"}},
		Handler:     noopHandler,
	}, RegisterOptions{}))

	result, err := b.Execute(context.Background(), "deploy.run", nil, opsOrigin)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}
