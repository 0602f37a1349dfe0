package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"cmdbus/internal/events"
	"cmdbus/internal/logging"
)

type pendingProposal struct {
	proposal Proposal
	timer    *time.Timer
}

// NeedsConfirmation reports whether a command must be confirmed before it
// runs. With the default policy a command needs confirmation exactly when
// it declares side effects. Unknown ids never need confirmation.
func (b *Bus) NeedsConfirmation(commandID string) bool {
	cmd, ok := b.registry.Get(commandID)
	if !ok {
		return false
	}
	switch cmd.Confirm {
	case ConfirmAlways:
		return true
	case ConfirmNever:
		return false
	default:
		return len(cmd.SideEffects) > 0
	}
}

// Propose stores a pending proposal for the origin's user and room,
// replacing any proposal already pending there. The proposal is dropped
// silently once the proposal TTL elapses.
func (b *Bus) Propose(ctx context.Context, req ProposalRequest, origin Origin) (*Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd, ok := b.registry.Get(req.CommandID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, req.CommandID)
	}

	now := b.now()
	p := Proposal{
		ID:              uuid.NewString(),
		CommandID:       cmd.ID,
		Args:            copyArgs(req.Args),
		Origin:          origin,
		Preview:         buildPreview(cmd, req.Args, b.opts.Prefix),
		ConfirmationKey: origin.ConfirmationKey(),
		CreatedAt:       now,
		ExpiresAt:       now.Add(b.opts.ProposalTTL),
	}

	entry := &pendingProposal{proposal: p}
	key := p.ConfirmationKey

	b.proposalsMu.Lock()
	if old, exists := b.proposals[key]; exists {
		old.timer.Stop()
	}
	b.proposals[key] = entry
	entry.timer = time.AfterFunc(b.opts.ProposalTTL, func() {
		b.expire(key, entry)
	})
	b.proposalsMu.Unlock()

	base := events.Event{
		CommandID:       p.CommandID,
		Args:            p.Args,
		UserID:          origin.User.ID,
		Room:            origin.Room,
		ProposalID:      p.ID,
		ConfirmationKey: key,
		Preview:         p.Preview,
	}
	created := base
	created.Type = events.ProposalCreated
	b.emit(created)

	requested := base
	requested.Type = events.ProposalConfirmRequested
	b.emit(requested)

	logging.BusDebug("Proposal %s pending for %s (command=%s, ttl=%s)", p.ID, key, p.CommandID, b.opts.ProposalTTL)

	out := p
	out.Args = copyArgs(p.Args)
	return &out, nil
}

// expire removes entry if it is still the proposal pending under key.
func (b *Bus) expire(key string, entry *pendingProposal) {
	b.proposalsMu.Lock()
	defer b.proposalsMu.Unlock()
	if current, ok := b.proposals[key]; ok && current == entry {
		delete(b.proposals, key)
	}
}

// take removes and returns the proposal pending for key.
func (b *Bus) take(key string) (*pendingProposal, bool) {
	b.proposalsMu.Lock()
	defer b.proposalsMu.Unlock()
	entry, ok := b.proposals[key]
	if !ok {
		return nil, false
	}
	entry.timer.Stop()
	delete(b.proposals, key)
	return entry, true
}

// Confirm handles a reply to the pending proposal for origin. "yes" or "y"
// executes it, "no", "n" or "cancel" cancels it. It returns nil when
// nothing is pending or the reply is not recognised; an unrecognised reply
// leaves the proposal pending.
func (b *Bus) Confirm(ctx context.Context, reply string, origin Origin) (*ConfirmResult, error) {
	key := origin.ConfirmationKey()
	if _, ok := b.PendingProposal(origin); !ok {
		return nil, nil
	}

	switch strings.ToLower(strings.TrimSpace(reply)) {
	case "yes", "y":
		entry, ok := b.take(key)
		if !ok {
			return nil, nil
		}
		p := entry.proposal
		b.emit(events.Event{
			Type:            events.ProposalConfirmed,
			CommandID:       p.CommandID,
			Args:            p.Args,
			UserID:          origin.User.ID,
			Room:            origin.Room,
			ProposalID:      p.ID,
			ConfirmationKey: key,
		})
		result, err := b.Execute(ctx, p.CommandID, p.Args, origin)
		if err != nil {
			return nil, err
		}
		return &ConfirmResult{Executed: true, Result: result}, nil

	case "no", "n", "cancel":
		entry, ok := b.take(key)
		if !ok {
			return nil, nil
		}
		p := entry.proposal
		b.emit(events.Event{
			Type:            events.ProposalCancelled,
			CommandID:       p.CommandID,
			UserID:          origin.User.ID,
			Room:            origin.Room,
			ProposalID:      p.ID,
			ConfirmationKey: key,
		})
		return &ConfirmResult{Cancelled: true}, nil

	default:
		return nil, nil
	}
}

// PendingProposal returns the proposal pending for origin, if any.
func (b *Bus) PendingProposal(origin Origin) (*Proposal, bool) {
	b.proposalsMu.Lock()
	defer b.proposalsMu.Unlock()
	entry, ok := b.proposals[origin.ConfirmationKey()]
	if !ok {
		return nil, false
	}
	p := entry.proposal
	p.Args = copyArgs(p.Args)
	return &p, true
}

// PendingCount returns the number of pending proposals.
func (b *Bus) PendingCount() int {
	b.proposalsMu.Lock()
	defer b.proposalsMu.Unlock()
	return len(b.proposals)
}

// ClearPendingProposals drops every pending proposal and stops its timer.
func (b *Bus) ClearPendingProposals() {
	b.proposalsMu.Lock()
	defer b.proposalsMu.Unlock()
	for key, entry := range b.proposals {
		entry.timer.Stop()
		delete(b.proposals, key)
	}
}

// buildPreview renders the invocation a proposal would run: schema
// arguments first in declaration order, then any others sorted by name.
func buildPreview(cmd Command, args map[string]any, prefix string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(cmd.ID)

	written := make(map[string]bool, len(args))
	write := func(key string) {
		value, ok := args[key]
		if !ok || written[key] {
			return
		}
		written[key] = true
		fmt.Fprintf(&sb, " --%s %s", key, quotePreview(encodeValue(value)))
	}

	for _, arg := range cmd.Args {
		write(arg.Name)
	}

	rest := make([]string, 0, len(args))
	for key := range args {
		if !written[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		write(key)
	}

	return sb.String()
}

func quotePreview(s string) string {
	if !strings.ContainsAny(s, " \"'") {
		return s
	}
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
	return `"` + escaped + `"`
}

func copyArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
