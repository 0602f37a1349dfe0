// Package commands implements the command bus: a registry of structured
// commands, a tokenizer and parser for free-text invocations, a pluggable
// type validator, fuzzy search and help, a confirmation state machine with
// TTL expiry, and a permission-gated execution engine.
package commands

import (
	"context"
	"fmt"
	"time"
)

// ArgType names the type of a command argument. Any name not listed below
// is a custom type resolved through RegisterType, or passed through.
type ArgType string

const (
	TypeString  ArgType = "string"
	TypeNumber  ArgType = "number"
	TypeBoolean ArgType = "boolean"
	TypeEnum    ArgType = "enum"
	TypeUser    ArgType = "user"
	TypeRoom    ArgType = "room"
	TypeDate    ArgType = "date"
)

// ConfirmPolicy decides whether a command needs a yes/no confirmation.
type ConfirmPolicy string

const (
	ConfirmAlways      ConfirmPolicy = "always"
	ConfirmNever       ConfirmPolicy = "never"
	ConfirmIfAmbiguous ConfirmPolicy = "if_ambiguous"
)

// Valid reports whether p is a known policy.
func (p ConfirmPolicy) Valid() bool {
	switch p {
	case ConfirmAlways, ConfirmNever, ConfirmIfAmbiguous:
		return true
	}
	return false
}

// Arg describes one named argument in a command schema.
type Arg struct {
	Name        string   `json:"name" yaml:"name"`
	Type        ArgType  `json:"type" yaml:"type"`
	Required    bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any      `json:"default,omitempty" yaml:"default,omitempty"`
	Values      []string `json:"values,omitempty" yaml:"values,omitempty"` // enum members
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// HasDefault reports whether a default value is declared.
func (a Arg) HasDefault() bool {
	return a.Default != nil
}

// Permissions restricts where and by whom a command may run.
type Permissions struct {
	Rooms []string `json:"rooms,omitempty" yaml:"rooms,omitempty"`
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// User identifies the invoking chat user.
type User struct {
	ID    string   `json:"id" yaml:"id"`
	Name  string   `json:"name,omitempty" yaml:"name,omitempty"`
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// Origin is the context an invocation arrives in.
type Origin struct {
	User  User
	Room  string
	Extra map[string]any
}

// ConfirmationKey returns the key used to track pending proposals.
func (o Origin) ConfirmationKey() string {
	return fmt.Sprintf("%s:%s", o.User.ID, o.Room)
}

// Request is what a handler receives.
type Request struct {
	CommandID string
	Args      map[string]any
	Origin    Origin
}

// Handler executes a command. The returned value is opaque to the bus.
type Handler func(ctx context.Context, req Request) (any, error)

// TypeResolver coerces a raw argument value for a custom (or overridden)
// type. An error message becomes "Argument {name}: {message}".
type TypeResolver func(ctx context.Context, value any, arg Arg, origin Origin) (any, error)

// UserDirectory exposes the known chat users keyed by id.
type UserDirectory interface {
	Users() map[string]User
}

// PermissionProvider decides role-gated commands.
type PermissionProvider interface {
	HasRole(ctx context.Context, user User, roles []string, origin Origin) (bool, error)
}

// Spec is the registration input for a command.
type Spec struct {
	ID          string
	Description string
	Aliases     []string
	Examples    []string
	Args        []Arg
	SideEffects []string
	Confirm     ConfirmPolicy
	Permissions Permissions
	Handler     Handler
}

// Command is a registered command.
type Command struct {
	Spec

	// NormalizedAliases holds the deduplicated, normalized aliases.
	NormalizedAliases []string
}

// Arg returns the schema entry for name.
func (c Command) Arg(name string) (Arg, bool) {
	for _, a := range c.Args {
		if a.Name == name {
			return a, true
		}
	}
	return Arg{}, false
}

func (c Command) clone() Command {
	out := c
	out.Aliases = append([]string(nil), c.Aliases...)
	out.Examples = append([]string(nil), c.Examples...)
	out.Args = append([]Arg(nil), c.Args...)
	out.SideEffects = append([]string(nil), c.SideEffects...)
	out.Permissions.Rooms = append([]string(nil), c.Permissions.Rooms...)
	out.Permissions.Roles = append([]string(nil), c.Permissions.Roles...)
	out.NormalizedAliases = append([]string(nil), c.NormalizedAliases...)
	return out
}

// RegisterOptions controls Register.
type RegisterOptions struct {
	// Update replaces an existing command with the same id.
	Update bool
}

// Parsed is the result of parsing an invocation.
type Parsed struct {
	CommandID string
	Args      map[string]any
	RawText   string
}

// Validation is the result of validating parsed arguments.
type Validation struct {
	OK      bool
	Args    map[string]any
	Errors  []string
	Missing []string
}

// SearchOptions controls Search.
type SearchOptions struct {
	Limit int
}

// MatchField names the part of a command a search result matched on.
type MatchField string

const (
	MatchedAlias       MatchField = "alias"
	MatchedDescription MatchField = "description"
	MatchedExample     MatchField = "example"
)

// SearchResult is one ranked search hit.
type SearchResult struct {
	Command   Command
	Score     int
	MatchedOn MatchField
}

// ProposalRequest names the command and validated args to propose.
type ProposalRequest struct {
	CommandID string
	Args      map[string]any
}

// Proposal is a pending confirmation.
type Proposal struct {
	ID              string
	CommandID       string
	Args            map[string]any
	Origin          Origin
	Preview         string
	ConfirmationKey string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// ConfirmResult is the outcome of a recognised yes/no reply.
type ConfirmResult struct {
	Executed  bool
	Cancelled bool
	Result    any
}

// OutcomeKind classifies an Invoke result.
type OutcomeKind string

const (
	OutcomeHelp     OutcomeKind = "help"
	OutcomeInvalid  OutcomeKind = "invalid"
	OutcomeProposed OutcomeKind = "proposed"
	OutcomeExecuted OutcomeKind = "executed"
)

// Outcome is the result of Invoke.
type Outcome struct {
	Kind OutcomeKind

	OK       bool
	HelpOnly bool
	Help     string

	NeedsConfirmation bool
	Validation        *Validation
	Proposal          *Proposal
	Result            any
}
