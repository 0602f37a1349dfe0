// Package events defines the command bus event surface: the event names,
// the payload carried by every event, and a small in-process fan-out bus.
package events

import (
	"fmt"
	"strings"
)

// Event names form the wire contract for listeners and the audit log.
const (
	Registered               = "commands:registered"
	Updated                  = "commands:updated"
	AliasCollisionDetected   = "commands:alias_collision_detected"
	InvocationParsed         = "commands:invocation_parsed"
	ValidationFailed         = "commands:validation_failed"
	ProposalCreated          = "commands:proposal_created"
	ProposalConfirmRequested = "commands:proposal_confirm_requested"
	ProposalConfirmed        = "commands:proposal_confirmed"
	ProposalCancelled        = "commands:proposal_cancelled"
	PermissionDenied         = "commands:permission_denied"
	Executed                 = "commands:executed"
	Error                    = "commands:error"
)

// All lists every event name in lifecycle order.
var All = []string{
	Registered,
	Updated,
	AliasCollisionDetected,
	InvocationParsed,
	ValidationFailed,
	ProposalCreated,
	ProposalConfirmRequested,
	ProposalConfirmed,
	ProposalCancelled,
	PermissionDenied,
	Executed,
	Error,
}

// Event is one bus notification. Only the fields relevant to Type are set.
type Event struct {
	// ID is a per-bus sequence number assigned on emit.
	ID uint64 `json:"id"`

	// Type is one of the names above.
	Type string `json:"type"`

	// Timestamp is Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	CommandID  string              `json:"commandId,omitempty"`
	Aliases    []string            `json:"aliases,omitempty"`
	Collisions map[string][]string `json:"collisions,omitempty"`
	Args       map[string]any      `json:"args,omitempty"`

	UserID string `json:"userId,omitempty"`
	Room   string `json:"room,omitempty"`

	ProposalID      string `json:"proposalId,omitempty"`
	ConfirmationKey string `json:"confirmationKey,omitempty"`
	Preview         string `json:"preview,omitempty"`

	Missing []string `json:"missing,omitempty"`
	Errors  []string `json:"errors,omitempty"`

	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	Result     any    `json:"result,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// Short returns the event name without the "commands:" namespace.
func (e Event) Short() string {
	return strings.TrimPrefix(e.Type, "commands:")
}

// String returns a one-line description for display.
func (e Event) String() string {
	var sb strings.Builder
	sb.WriteString(e.Short())
	if e.CommandID != "" {
		sb.WriteString(" ")
		sb.WriteString(e.CommandID)
	}
	if e.ConfirmationKey != "" {
		fmt.Fprintf(&sb, " key=%s", e.ConfirmationKey)
	}
	if e.Reason != "" {
		fmt.Fprintf(&sb, " reason=%q", e.Reason)
	}
	if e.Error != "" {
		fmt.Fprintf(&sb, " error=%q", e.Error)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&sb, " missing=%s", strings.Join(e.Missing, ","))
	}
	return sb.String()
}
