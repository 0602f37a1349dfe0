package commands

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdbus/internal/events"
)

var opsOrigin = Origin{User: User{ID: "u1", Name: "alice"}, Room: "#ops"}

func TestNeedsConfirmation(t *testing.T) {
	b := newTestBus(t, nil)
	specs := []Spec{
		{ID: "always", Confirm: ConfirmAlways, Handler: noopHandler},
		{ID: "never", Confirm: ConfirmNever, SideEffects: []string{"writes"}, Handler: noopHandler},
		{ID: "quiet", Handler: noopHandler},
		{ID: "loud", SideEffects: []string{"creates a ticket"}, Handler: noopHandler},
	}
	for _, spec := range specs {
		require.NoError(t, b.Register(spec, RegisterOptions{}))
	}

	assert.True(t, b.NeedsConfirmation("always"))
	assert.False(t, b.NeedsConfirmation("never"))
	assert.False(t, b.NeedsConfirmation("quiet"))
	assert.True(t, b.NeedsConfirmation("loud"))
	assert.False(t, b.NeedsConfirmation("unknown"))
}

func countingHandler(calls *atomic.Int32, last *atomic.Value) Handler {
	return func(ctx context.Context, req Request) (any, error) {
		calls.Add(1)
		if last != nil {
			last.Store(req.Args)
		}
		return "done", nil
	}
}

func TestProposeConfirmYes(t *testing.T) {
	b := newTestBus(t, nil)
	rec := record(b)
	var calls atomic.Int32
	var last atomic.Value
	require.NoError(t, b.Register(Spec{
		ID:          "deploy.run",
		Args:        []Arg{{Name: "env", Type: TypeString}},
		SideEffects: []string{"deploys"},
		Handler:     countingHandler(&calls, &last),
	}, RegisterOptions{}))

	ctx := context.Background()
	p, err := b.Propose(ctx, ProposalRequest{CommandID: "deploy.run", Args: map[string]any{"env": "prod"}}, opsOrigin)
	require.NoError(t, err)
	assert.Equal(t, "u1:#ops", p.ConfirmationKey)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "deploy.run --env prod", p.Preview)

	res, err := b.Confirm(ctx, "  YES ", opsOrigin)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Executed)
	assert.Equal(t, "done", res.Result)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, map[string]any{"env": "prod"}, last.Load())

	again, err := b.Confirm(ctx, "yes", opsOrigin)
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, []string{
		events.Registered,
		events.ProposalCreated,
		events.ProposalConfirmRequested,
		events.ProposalConfirmed,
		events.Executed,
	}, rec.types())
}

func TestProposeConfirmNo(t *testing.T) {
	for _, reply := range []string{"no", "N", "cancel"} {
		t.Run(reply, func(t *testing.T) {
			b := newTestBus(t, nil)
			rec := record(b)
			var calls atomic.Int32
			require.NoError(t, b.Register(Spec{ID: "deploy.run", Confirm: ConfirmAlways, Handler: countingHandler(&calls, nil)}, RegisterOptions{}))

			_, err := b.Propose(context.Background(), ProposalRequest{CommandID: "deploy.run"}, opsOrigin)
			require.NoError(t, err)

			res, err := b.Confirm(context.Background(), reply, opsOrigin)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.True(t, res.Cancelled)
			assert.Equal(t, int32(0), calls.Load())
			assert.Equal(t, 0, b.PendingCount())

			_, ok := rec.last(events.ProposalCancelled)
			assert.True(t, ok)
		})
	}
}

func TestConfirmUnrecognisedReplyKeepsPending(t *testing.T) {
	b := newTestBus(t, nil)
	var calls atomic.Int32
	require.NoError(t, b.Register(Spec{ID: "deploy.run", Confirm: ConfirmAlways, Handler: countingHandler(&calls, nil)}, RegisterOptions{}))
	_, err := b.Propose(context.Background(), ProposalRequest{CommandID: "deploy.run"}, opsOrigin)
	require.NoError(t, err)

	res, err := b.Confirm(context.Background(), "maybe", opsOrigin)
	require.NoError(t, err)
	assert.Nil(t, res)
	_, pending := b.PendingProposal(opsOrigin)
	assert.True(t, pending)

	other := Origin{User: User{ID: "u2"}, Room: "#ops"}
	res, err = b.Confirm(context.Background(), "yes", other)
	require.NoError(t, err)
	assert.Nil(t, res, "proposals are scoped to user and room")
	assert.Equal(t, int32(0), calls.Load())
}

func TestProposalExpires(t *testing.T) {
	b := newTestBus(t, func(o *Options) { o.ProposalTTL = 20 * time.Millisecond })
	var calls atomic.Int32
	require.NoError(t, b.Register(Spec{ID: "deploy.run", Confirm: ConfirmAlways, Handler: countingHandler(&calls, nil)}, RegisterOptions{}))

	_, err := b.Propose(context.Background(), ProposalRequest{CommandID: "deploy.run"}, opsOrigin)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return b.PendingCount() == 0 }, time.Second, 5*time.Millisecond)

	res, err := b.Confirm(context.Background(), "yes", opsOrigin)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, int32(0), calls.Load())
}

func TestProposeReplacesPending(t *testing.T) {
	b := newTestBus(t, func(o *Options) { o.ProposalTTL = 200 * time.Millisecond })
	var last atomic.Value
	var calls atomic.Int32
	require.NoError(t, b.Register(Spec{ID: "deploy.run", Confirm: ConfirmAlways, Handler: countingHandler(&calls, &last)}, RegisterOptions{}))

	ctx := context.Background()
	first, err := b.Propose(ctx, ProposalRequest{CommandID: "deploy.run", Args: map[string]any{"env": "staging"}}, opsOrigin)
	require.NoError(t, err)
	time.Sleep(120 * time.Millisecond)
	second, err := b.Propose(ctx, ProposalRequest{CommandID: "deploy.run", Args: map[string]any{"env": "prod"}}, opsOrigin)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// the first timer would have fired by now; the replacement must survive it
	time.Sleep(120 * time.Millisecond)
	pending, ok := b.PendingProposal(opsOrigin)
	require.True(t, ok)
	assert.Equal(t, second.ID, pending.ID)

	res, err := b.Confirm(ctx, "y", opsOrigin)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, map[string]any{"env": "prod"}, last.Load())
}

func TestClearPendingProposals(t *testing.T) {
	b := newTestBus(t, nil)
	require.NoError(t, b.Register(Spec{ID: "deploy.run", Confirm: ConfirmAlways, Handler: noopHandler}, RegisterOptions{}))
	for _, room := range []string{"#a", "#b", "#c"} {
		_, err := b.Propose(context.Background(), ProposalRequest{CommandID: "deploy.run"}, Origin{User: User{ID: "u1"}, Room: room})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, b.PendingCount())

	b.ClearPendingProposals()
	assert.Equal(t, 0, b.PendingCount())
}

func TestProposeUnknownCommand(t *testing.T) {
	b := newTestBus(t, nil)
	_, err := b.Propose(context.Background(), ProposalRequest{CommandID: "nope"}, opsOrigin)
	assert.ErrorIs(t, err, ErrCommandNotFound)
}

func TestBuildPreview(t *testing.T) {
	cmd := Command{Spec: Spec{
		ID:   "tickets.create",
		Args: []Arg{{Name: "title"}, {Name: "priority"}},
	}}

	got := buildPreview(cmd, map[string]any{
		"zeta":     1,
		"priority": "high",
		"title":    `VPN "down"`,
		"alpha":    true,
		"tags":     []string{"a", "b"},
	}, "!")
	assert.Equal(t, `!tickets.create --title "VPN \"down\"" --priority high --alpha true --tags "[\"a\",\"b\"]" --zeta 1`, got)

	assert.Equal(t, `"C:\\dir x"`, quotePreview(`C:\dir x`))
	assert.Equal(t, `plain`, quotePreview("plain"))
}

func TestConfirmExecutesWithConfirmingOrigin(t *testing.T) {
	b := newTestBus(t, nil)
	var seen Origin
	require.NoError(t, b.Register(Spec{
		ID:          "deploy.run",
		SideEffects: []string{"deploys"},
		Handler: func(ctx context.Context, req Request) (any, error) {
			seen = req.Origin
			return nil, nil
		},
	}, RegisterOptions{}))

	ctx := context.Background()
	proposer := opsOrigin
	proposer.Extra = map[string]any{"message": "m1"}
	_, err := b.Propose(ctx, ProposalRequest{CommandID: "deploy.run"}, proposer)
	require.NoError(t, err)

	confirmer := opsOrigin
	confirmer.Extra = map[string]any{"message": "m2"}
	res, err := b.Confirm(ctx, "yes", confirmer)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Executed)
	assert.Equal(t, "m2", seen.Extra["message"])
}
