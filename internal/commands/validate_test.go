package commands

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdbus/internal/events"
)

type staticUsers map[string]User

func (s staticUsers) Users() map[string]User { return s }

func TestValidateMissingRequired(t *testing.T) {
	b := newTestBus(t, nil)
	rec := record(b)
	require.NoError(t, b.Register(Spec{
		ID:      "tickets.create",
		Args:    []Arg{{Name: "title", Type: TypeString, Required: true}},
		Handler: noopHandler,
	}, RegisterOptions{}))

	v := b.Validate(context.Background(), "tickets.create", map[string]any{}, Origin{User: User{ID: "u1"}, Room: "#ops"})
	assert.False(t, v.OK)
	assert.Equal(t, []string{"title"}, v.Missing)
	assert.Empty(t, v.Errors)

	evt, ok := rec.last(events.ValidationFailed)
	require.True(t, ok)
	assert.Equal(t, []string{"title"}, evt.Missing)
	assert.Equal(t, "u1", evt.UserID)
}

func TestValidateUnknownCommand(t *testing.T) {
	b := newTestBus(t, nil)
	v := b.Validate(context.Background(), "nope", nil, Origin{})
	assert.False(t, v.OK)
	assert.Equal(t, []string{"Unknown command: nope"}, v.Errors)
}

func TestValidateDefaultsAndPassthrough(t *testing.T) {
	b := newTestBus(t, nil)
	require.NoError(t, b.Register(Spec{
		ID: "deploy.run",
		Args: []Arg{
			{Name: "env", Type: TypeEnum, Values: []string{"prod", "staging"}, Default: "staging"},
			{Name: "replicas", Type: TypeNumber, Default: "3"},
			{Name: "note", Type: TypeString},
		},
		Handler: noopHandler,
	}, RegisterOptions{}))

	v := b.Validate(context.Background(), "deploy.run", map[string]any{"extra": "kept"}, Origin{})
	require.True(t, v.OK, v.Errors)
	assert.Equal(t, "staging", v.Args["env"])
	assert.Equal(t, "3", v.Args["replicas"], "defaults are not coerced")
	assert.Equal(t, "kept", v.Args["extra"])
	assert.NotContains(t, v.Args, "note")
}

func TestBuiltinNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{"42", 42},
		{" 42 ", 42},
		{"", 0},
		{"-1.5", -1.5},
		{".5", 0.5},
		{"1e3", 1000},
		{"0x1F", 31},
		{"0o17", 15},
		{"0b101", 5},
		{"Infinity", math.Inf(1)},
		{true, 1},
		{false, 0},
		{7, 7},
		{2.5, 2.5},
	}
	for _, tt := range tests {
		got, err := toNumber(tt.in)
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got, "input %v", tt.in)
	}

	for _, bad := range []any{"abc", "12px", "inf", "NaN", "0x", "0xZZ", "-0x10", "1_000", math.NaN(), []string{"1"}} {
		_, err := toNumber(bad)
		assert.Error(t, err, "input %v", bad)
	}
}

func TestBuiltinBoolean(t *testing.T) {
	trueish := []any{"true", "T", "yes", "Y", "1", "on", "ON", true, 1, 2.5, "anything"}
	falseish := []any{"false", "f", "No", "n", "0", "off", false, 0, 0.0, "", nil}

	for _, v := range trueish {
		assert.True(t, toBoolean(v), "input %v", v)
	}
	for _, v := range falseish {
		assert.False(t, toBoolean(v), "input %v", v)
	}
}

func TestValidateCoercion(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.Local)
	b := newTestBus(t, func(o *Options) {
		o.Now = func() time.Time { return now }
		o.Users = staticUsers{
			"u1": {ID: "u1", Name: "alice", Roles: []string{"ops"}},
			"u2": {ID: "u2", Name: "bob"},
		}
	})
	require.NoError(t, b.Register(Spec{
		ID: "plan",
		Args: []Arg{
			{Name: "title", Type: TypeString},
			{Name: "count", Type: TypeNumber},
			{Name: "force", Type: TypeBoolean},
			{Name: "env", Type: TypeEnum, Values: []string{"prod", "staging"}},
			{Name: "owner", Type: TypeUser},
			{Name: "room", Type: TypeRoom},
			{Name: "due", Type: TypeDate},
			{Name: "start", Type: TypeDate},
			{Name: "blob", Type: "custom-unregistered"},
		},
		Handler: noopHandler,
	}, RegisterOptions{}))

	v := b.Validate(context.Background(), "plan", map[string]any{
		"title": true,
		"count": "0x10",
		"force": "off",
		"env":   "prod",
		"owner": "alice",
		"room":  "#ops",
		"due":   "tomorrow",
		"start": "2024-04-01",
		"blob":  "raw",
	}, Origin{})
	require.True(t, v.OK, v.Errors)

	assert.Equal(t, "true", v.Args["title"])
	assert.Equal(t, float64(16), v.Args["count"])
	assert.Equal(t, false, v.Args["force"])
	assert.Equal(t, "prod", v.Args["env"])
	assert.Equal(t, User{ID: "u1", Name: "alice", Roles: []string{"ops"}}, v.Args["owner"])
	assert.Equal(t, "#ops", v.Args["room"])
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.Local), v.Args["due"])
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.Local), v.Args["start"])
	assert.Equal(t, "raw", v.Args["blob"])

	byID := b.Validate(context.Background(), "plan", map[string]any{"owner": "u2", "due": "TODAY"}, Origin{})
	require.True(t, byID.OK, byID.Errors)
	assert.Equal(t, "bob", byID.Args["owner"].(User).Name)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.Local), byID.Args["due"])
}

func TestValidateCoercionErrors(t *testing.T) {
	b := newTestBus(t, func(o *Options) { o.Users = staticUsers{"u1": {ID: "u1", Name: "alice"}} })
	require.NoError(t, b.Register(Spec{
		ID: "plan",
		Args: []Arg{
			{Name: "count", Type: TypeNumber},
			{Name: "env", Type: TypeEnum, Values: []string{"prod", "staging"}},
			{Name: "empty", Type: TypeEnum},
			{Name: "owner", Type: TypeUser},
			{Name: "room", Type: TypeRoom},
			{Name: "due", Type: TypeDate},
		},
		Handler: noopHandler,
	}, RegisterOptions{}))

	v := b.Validate(context.Background(), "plan", map[string]any{
		"count": "many",
		"env":   "dev",
		"empty": "x",
		"owner": "mallory",
		"room":  "ops",
		"due":   "someday",
	}, Origin{})
	assert.False(t, v.OK)
	assert.Empty(t, v.Missing)
	require.Len(t, v.Errors, 6)
	assert.Equal(t, "Argument count: must be a number", v.Errors[0])
	assert.Equal(t, "Argument env: must be one of: prod, staging", v.Errors[1])
	assert.Contains(t, v.Errors[2], "Argument empty:")
	assert.Equal(t, "Argument owner: unknown user: mallory", v.Errors[3])
	assert.Contains(t, v.Errors[4], "Argument room:")
	assert.Contains(t, v.Errors[5], "Argument due:")
}

func TestRegisterTypeOverridesBuiltin(t *testing.T) {
	b := newTestBus(t, nil)
	require.NoError(t, b.Register(Spec{
		ID: "ship",
		Args: []Arg{
			{Name: "count", Type: TypeNumber},
			{Name: "sku", Type: "sku"},
		},
		Handler: noopHandler,
	}, RegisterOptions{}))

	require.NoError(t, b.RegisterType("number", func(ctx context.Context, value any, arg Arg, origin Origin) (any, error) {
		return "overridden:" + value.(string), nil
	}))
	require.NoError(t, b.RegisterType("sku", func(ctx context.Context, value any, arg Arg, origin Origin) (any, error) {
		if value != "SKU-1" {
			return nil, errors.New("unknown sku")
		}
		return value, nil
	}))

	v := b.Validate(context.Background(), "ship", map[string]any{"count": "2", "sku": "SKU-1"}, Origin{})
	require.True(t, v.OK)
	assert.Equal(t, "overridden:2", v.Args["count"])

	bad := b.Validate(context.Background(), "ship", map[string]any{"sku": "SKU-9"}, Origin{})
	assert.Equal(t, []string{"Argument sku: unknown sku"}, bad.Errors)
}

func TestRegisterTypeRejectsInvalid(t *testing.T) {
	b := newTestBus(t, nil)
	resolver := func(context.Context, any, Arg, Origin) (any, error) { return nil, nil }

	assert.ErrorIs(t, b.RegisterType("", resolver), ErrInvalidResolver)
	assert.ErrorIs(t, b.RegisterType("x", nil), ErrInvalidResolver)
}
