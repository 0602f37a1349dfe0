// Package listener connects chat messages to the command bus. Replies to a
// pending proposal are routed to Confirm, everything else to Invoke, and
// every outcome is rendered back through a Replier.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cmdbus/internal/commands"
	"cmdbus/internal/logging"
)

// Message is one incoming chat message.
type Message struct {
	Text string
	User commands.User
	Room string
}

// Origin returns the invocation context for the message.
func (m Message) Origin() commands.Origin {
	return commands.Origin{User: m.User, Room: m.Room}
}

// Replier sends text back to the chat surface a message came from.
type Replier interface {
	Reply(ctx context.Context, msg Message, text string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, msg Message, text string) error

func (f ReplierFunc) Reply(ctx context.Context, msg Message, text string) error {
	return f(ctx, msg, text)
}

// Listener handles chat messages for one bus.
type Listener struct {
	bus     *commands.Bus
	replier Replier
}

// New creates a listener.
func New(bus *commands.Bus, replier Replier) *Listener {
	return &Listener{bus: bus, replier: replier}
}

// Handle processes msg. It reports whether the message was meant for the
// bus (a command or a confirmation reply); other chatter is ignored.
func (l *Listener) Handle(ctx context.Context, msg Message) (bool, error) {
	origin := msg.Origin()

	if pending, ok := l.bus.PendingProposal(origin); ok {
		res, err := l.bus.Confirm(ctx, msg.Text, origin)
		if err != nil {
			return true, l.reply(ctx, msg, renderError(err))
		}
		if res != nil {
			logging.ListenerDebug("Proposal %s resolved by %s (executed=%v)", pending.ID, origin.ConfirmationKey(), res.Executed)
			return true, l.reply(ctx, msg, renderConfirm(res))
		}
	}

	out, err := l.bus.Invoke(ctx, msg.Text, origin)
	if err != nil {
		return true, l.reply(ctx, msg, renderError(err))
	}
	if out == nil {
		if pending, ok := l.bus.PendingProposal(origin); ok && looksLikeReply(msg.Text) {
			return true, l.reply(ctx, msg, fmt.Sprintf("Still waiting on `%s`. Reply yes or no.", pending.Preview))
		}
		return false, nil
	}

	return true, l.reply(ctx, msg, l.renderOutcome(out))
}

func (l *Listener) reply(ctx context.Context, msg Message, text string) error {
	if l.replier == nil || text == "" {
		return nil
	}
	if err := l.replier.Reply(ctx, msg, text); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

func (l *Listener) renderOutcome(out *commands.Outcome) string {
	switch out.Kind {
	case commands.OutcomeHelp:
		return out.Help
	case commands.OutcomeInvalid:
		return RenderValidation(out.Validation)
	case commands.OutcomeProposed:
		p := out.Proposal
		ttl := p.ExpiresAt.Sub(p.CreatedAt).Round(time.Second)
		return fmt.Sprintf("About to run: `%s`\nReply yes or no (expires in %s).", p.Preview, ttl)
	case commands.OutcomeExecuted:
		return RenderResult(out.Result)
	default:
		return ""
	}
}

// RenderValidation lists missing arguments and coercion errors.
func RenderValidation(v *commands.Validation) string {
	if v == nil {
		return ""
	}
	var lines []string
	if len(v.Missing) > 0 {
		lines = append(lines, "Missing required arguments: "+strings.Join(v.Missing, ", "))
	}
	lines = append(lines, v.Errors...)
	return strings.Join(lines, "\n")
}

// RenderResult turns a handler result into chat text.
func RenderResult(result any) string {
	switch v := result.(type) {
	case nil:
		return "Done."
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(data)
}

func renderConfirm(res *commands.ConfirmResult) string {
	if res.Cancelled {
		return "Cancelled."
	}
	return RenderResult(res.Result)
}

func renderError(err error) string {
	var permErr *commands.PermissionError
	if errors.As(err, &permErr) {
		return permErr.Reason
	}
	return "Command failed: " + err.Error()
}

// looksLikeReply reports whether text is a short answer rather than chatter.
func looksLikeReply(text string) bool {
	return len(strings.Fields(text)) == 1
}
