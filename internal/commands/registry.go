package commands

import (
	"fmt"
	"strings"
	"sync"

	"cmdbus/internal/logging"
)

// NormalizeAlias trims s, collapses whitespace runs to one space and
// lowercases the result.
func NormalizeAlias(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Validate checks that a spec can be registered.
func (s *Spec) Validate() error {
	if s.ID == "" {
		return ErrMissingID
	}
	if s.Handler == nil {
		return fmt.Errorf("%w: %s", ErrMissingHandler, s.ID)
	}
	if s.Confirm != "" && !s.Confirm.Valid() {
		return fmt.Errorf("%w: %q for %s", ErrInvalidConfirmPolicy, s.Confirm, s.ID)
	}
	for _, alias := range s.Aliases {
		if NormalizeAlias(alias) == "" {
			return fmt.Errorf("%w: empty alias for %s", ErrInvalidAlias, s.ID)
		}
	}
	return nil
}

// Registry holds command definitions keyed by id, remembering the order in
// which ids were first registered. It is thread-safe.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	order    []string
}

// NewRegistry creates a new empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
	}
}

// Add stores spec as a command. It reports whether an existing command was
// replaced, which only happens when opts.Update is set.
func (r *Registry) Add(spec Spec, opts RegisterOptions) (Command, bool, error) {
	if err := spec.Validate(); err != nil {
		return Command{}, false, err
	}
	if spec.Confirm == "" {
		spec.Confirm = ConfirmIfAmbiguous
	}

	cmd := Command{Spec: spec}
	seen := make(map[string]bool, len(spec.Aliases))
	for _, alias := range spec.Aliases {
		norm := NormalizeAlias(alias)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		cmd.NormalizedAliases = append(cmd.NormalizedAliases, norm)
	}
	cmd = cmd.clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.commands[spec.ID]
	if exists && !opts.Update {
		return Command{}, false, fmt.Errorf("%w: %s", ErrAlreadyRegistered, spec.ID)
	}
	if !exists {
		r.order = append(r.order, spec.ID)
	}
	r.commands[spec.ID] = &cmd

	logging.BusDebug("Registered command: %s (aliases=%d, update=%v)", spec.ID, len(cmd.NormalizedAliases), exists)
	return cmd.clone(), exists, nil
}

// Remove deletes a command by id.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.commands[id]; !ok {
		return false
	}
	delete(r.commands, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the command with the given id.
func (r *Registry) Get(id string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[id]
	if !ok {
		return Command{}, false
	}
	return cmd.clone(), true
}

// Has returns true if a command with the given id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[id]
	return ok
}

// List returns commands in registration order. A non-empty prefix keeps
// only ids starting with it.
func (r *Registry) List(prefix string) []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Command, 0, len(r.order))
	for _, id := range r.order {
		if prefix != "" && !strings.HasPrefix(id, prefix) {
			continue
		}
		result = append(result, r.commands[id].clone())
	}
	return result
}

// Count returns the number of registered commands.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// AliasCollisions maps each normalized alias claimed by more than one
// command to the claiming ids, in registration order.
func (r *Registry) AliasCollisions() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owners := make(map[string][]string)
	for _, id := range r.order {
		for _, alias := range r.commands[id].NormalizedAliases {
			owners[alias] = append(owners[alias], id)
		}
	}

	collisions := make(map[string][]string)
	for alias, ids := range owners {
		if len(ids) > 1 {
			collisions[alias] = ids
		}
	}
	return collisions
}
