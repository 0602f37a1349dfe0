package commands

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cmdbus/internal/events"
	"cmdbus/internal/logging"
)

// DefaultProposalTTL is how long a proposal waits for a reply.
const DefaultProposalTTL = 5 * time.Minute

// Options configures a Bus.
type Options struct {
	// Prefix is stripped from invocation text and shown in usage lines.
	Prefix string

	// ProposalTTL bounds how long a proposal stays pending.
	ProposalTTL time.Duration

	// LogPath is the NDJSON audit file. Empty disables the audit log.
	LogPath string

	// DisableLogging turns the audit log off regardless of LogPath.
	DisableLogging bool

	// PermissionProvider checks role-gated commands. Optional.
	PermissionProvider PermissionProvider

	// Users backs the builtin "user" argument type. Optional.
	Users UserDirectory

	// Now is the clock used for timestamps and relative dates.
	Now func() time.Time
}

// DefaultOptions returns the default bus options: no prefix, a five minute
// proposal TTL and the audit log disabled, pointed at
// .data/commands-events.ndjson under the working directory.
func DefaultOptions() Options {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return Options{
		ProposalTTL:    DefaultProposalTTL,
		LogPath:        filepath.Join(dir, ".data", "commands-events.ndjson"),
		DisableLogging: true,
		Now:            time.Now,
	}
}

// Bus owns the command registry, type resolvers, pending proposals and the
// event stream for one chat robot. All methods are safe for concurrent use;
// no lock is held while handlers, resolvers, permission providers or event
// subscribers run.
type Bus struct {
	opts     Options
	registry *Registry

	resolversMu sync.RWMutex
	resolvers   map[string]TypeResolver

	proposalsMu sync.Mutex
	proposals   map[string]*pendingProposal

	events *events.Bus
	audit  *logging.AuditWriter

	closeOnce sync.Once
}

// New creates a bus. Zero ProposalTTL and Now fall back to their defaults.
// Start from DefaultOptions to get the default audit path.
func New(opts Options) *Bus {
	if opts.ProposalTTL <= 0 {
		opts.ProposalTTL = DefaultProposalTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	b := &Bus{
		opts:      opts,
		registry:  NewRegistry(),
		resolvers: make(map[string]TypeResolver),
		proposals: make(map[string]*pendingProposal),
		events:    events.NewBus(),
	}
	b.events.SetClock(opts.Now)

	if !opts.DisableLogging && opts.LogPath != "" {
		b.audit = logging.NewAuditWriter(opts.LogPath, logging.DefaultAuditBuffer)
		logging.Bus("Audit log enabled: %s", opts.LogPath)
	}
	return b
}

// Options returns the options the bus was built with.
func (b *Bus) Options() Options {
	return b.opts
}

func (b *Bus) now() time.Time {
	return b.opts.Now()
}

// Register adds a command. An id that is already registered is rejected
// unless opts.Update is set, in which case the new spec replaces it.
func (b *Bus) Register(spec Spec, opts RegisterOptions) error {
	cmd, updated, err := b.registry.Add(spec, opts)
	if err != nil {
		return err
	}

	eventType := events.Registered
	if updated {
		eventType = events.Updated
	}
	b.emit(events.Event{
		Type:      eventType,
		CommandID: cmd.ID,
		Aliases:   cmd.Aliases,
	})

	if collisions := b.registry.AliasCollisions(); len(collisions) > 0 {
		logging.BusDebug("Alias collisions after registering %s: %v", cmd.ID, collisions)
		b.emit(events.Event{
			Type:       events.AliasCollisionDetected,
			CommandID:  cmd.ID,
			Collisions: collisions,
		})
	}
	return nil
}

// Unregister removes a command and reports whether it existed.
func (b *Bus) Unregister(id string) bool {
	return b.registry.Remove(id)
}

// ListCommands returns commands in registration order, optionally only
// those whose id starts with prefix.
func (b *Bus) ListCommands(prefix string) []Command {
	return b.registry.List(prefix)
}

// Get returns a copy of a registered command.
func (b *Bus) Get(id string) (Command, bool) {
	return b.registry.Get(id)
}

// AliasCollisions maps each alias shared by several commands to their ids.
func (b *Bus) AliasCollisions() map[string][]string {
	return b.registry.AliasCollisions()
}

// Invoke parses text and either renders help, reports validation problems,
// opens a proposal or executes the command. It returns nil, nil when the
// text does not name a registered command.
func (b *Bus) Invoke(ctx context.Context, text string, origin Origin) (*Outcome, error) {
	parsed := b.Parse(text)
	if parsed == nil {
		return nil, nil
	}

	if truthy(parsed.Args["help"]) || truthy(parsed.Args["h"]) {
		help, _ := b.GetHelp(parsed.CommandID)
		return &Outcome{Kind: OutcomeHelp, OK: true, HelpOnly: true, Help: help}, nil
	}

	validation := b.Validate(ctx, parsed.CommandID, parsed.Args, origin)
	if !validation.OK {
		return &Outcome{Kind: OutcomeInvalid, Validation: &validation}, nil
	}

	if b.NeedsConfirmation(parsed.CommandID) {
		proposal, err := b.Propose(ctx, ProposalRequest{CommandID: parsed.CommandID, Args: validation.Args}, origin)
		if err != nil {
			return nil, err
		}
		return &Outcome{Kind: OutcomeProposed, NeedsConfirmation: true, Proposal: proposal}, nil
	}

	result, err := b.Execute(ctx, parsed.CommandID, validation.Args, origin)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: OutcomeExecuted, OK: true, Result: result}, nil
}

// Subscribe registers fn for the given event types (all if none) and
// returns a function that removes it.
func (b *Bus) Subscribe(fn events.Handler, types ...string) func() {
	return b.events.Subscribe(fn, types...)
}

// Events exposes the underlying event bus.
func (b *Bus) Events() *events.Bus {
	return b.events
}

// Close drops pending proposals, flushes the audit log and closes the event
// stream. It is safe to call more than once.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.ClearPendingProposals()
		if b.audit != nil {
			b.audit.Close()
		}
		b.events.Close()
	})
}

func (b *Bus) emit(event events.Event) {
	stamped := b.events.Emit(event)
	if b.audit != nil {
		b.audit.Write(stamped)
	}
}
