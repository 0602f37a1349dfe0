// Package catalog registers commands declared in a YAML file. Each entry
// binds a command schema to a named action the host provides, so command
// definitions can change without recompiling the host.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"cmdbus/internal/commands"
	"cmdbus/internal/logging"
)

// File is the on-disk catalog layout.
type File struct {
	Commands []Entry `yaml:"commands"`
}

// Entry declares one command.
type Entry struct {
	ID          string                 `yaml:"id"`
	Description string                 `yaml:"description"`
	Aliases     []string               `yaml:"aliases,omitempty"`
	Examples    []string               `yaml:"examples,omitempty"`
	Args        []commands.Arg         `yaml:"args,omitempty"`
	SideEffects []string               `yaml:"side_effects,omitempty"`
	Confirm     commands.ConfirmPolicy `yaml:"confirm,omitempty"`
	Permissions commands.Permissions   `yaml:"permissions,omitempty"`

	// Action names the host action that runs the command.
	Action string `yaml:"action"`

	// Params are passed to the action unchanged.
	Params map[string]any `yaml:"params,omitempty"`
}

// Action runs a catalog command.
type Action func(ctx context.Context, req commands.Request, params map[string]any) (any, error)

// Parse decodes catalog YAML.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return &file, nil
}

// Load reads and decodes a catalog file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// ApplyResult lists what an Apply changed.
type ApplyResult struct {
	Registered []string
	Updated    []string
	Removed    []string
}

// Catalog keeps a bus in step with a catalog file. Commands it did not
// register are never touched.
type Catalog struct {
	bus *commands.Bus

	mu      sync.Mutex
	actions map[string]Action
	applied map[string]bool
}

// New creates a catalog that registers into bus using actions.
func New(bus *commands.Bus, actions map[string]Action) *Catalog {
	c := &Catalog{
		bus:     bus,
		actions: make(map[string]Action),
		applied: make(map[string]bool),
	}
	for name, action := range BuiltinActions() {
		c.actions[name] = action
	}
	for name, action := range actions {
		c.actions[name] = action
	}
	return c
}

// RegisterAction adds or replaces a named action.
func (c *Catalog) RegisterAction(name string, action Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions[name] = action
}

// Commands returns the ids currently registered from the catalog.
func (c *Catalog) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.applied))
	for id := range c.applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadAndApply loads path and applies it.
func (c *Catalog) LoadAndApply(path string) (ApplyResult, error) {
	file, err := Load(path)
	if err != nil {
		return ApplyResult{}, err
	}
	return c.Apply(file)
}

// Apply registers every entry (updating ones it registered before) and
// unregisters catalog commands no longer present. The file is checked as a
// whole first; an invalid file changes nothing.
func (c *Catalog) Apply(file *File) (ApplyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	specs, err := c.buildSpecs(file)
	if err != nil {
		return ApplyResult{}, err
	}

	var result ApplyResult
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		seen[spec.ID] = true
		update := c.applied[spec.ID]
		if err := c.bus.Register(spec, commands.RegisterOptions{Update: update}); err != nil {
			return result, fmt.Errorf("failed to register %s: %w", spec.ID, err)
		}
		c.applied[spec.ID] = true
		if update {
			result.Updated = append(result.Updated, spec.ID)
		} else {
			result.Registered = append(result.Registered, spec.ID)
		}
	}

	stale := make([]string, 0)
	for id := range c.applied {
		if !seen[id] {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	for _, id := range stale {
		c.bus.Unregister(id)
		delete(c.applied, id)
		result.Removed = append(result.Removed, id)
	}

	logging.Catalog("Applied catalog: %d registered, %d updated, %d removed",
		len(result.Registered), len(result.Updated), len(result.Removed))
	return result, nil
}

func (c *Catalog) buildSpecs(file *File) ([]commands.Spec, error) {
	if file == nil {
		return nil, fmt.Errorf("catalog is empty")
	}

	specs := make([]commands.Spec, 0, len(file.Commands))
	ids := make(map[string]bool, len(file.Commands))
	for i, entry := range file.Commands {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog entry %d: %w", i, commands.ErrMissingID)
		}
		if ids[id] {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %s", i, id)
		}
		ids[id] = true

		if !c.applied[id] {
			if _, exists := c.bus.Get(id); exists {
				return nil, fmt.Errorf("catalog entry %s: %w by the host", id, commands.ErrAlreadyRegistered)
			}
		}

		action, ok := c.actions[entry.Action]
		if !ok {
			return nil, fmt.Errorf("catalog entry %s: unknown action %q", id, entry.Action)
		}

		spec := commands.Spec{
			ID:          id,
			Description: entry.Description,
			Aliases:     entry.Aliases,
			Examples:    entry.Examples,
			Args:        entry.Args,
			SideEffects: entry.SideEffects,
			Confirm:     entry.Confirm,
			Permissions: entry.Permissions,
			Handler:     bind(action, entry.Params),
		}
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("catalog entry %s: %w", id, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func bind(action Action, params map[string]any) commands.Handler {
	return func(ctx context.Context, req commands.Request) (any, error) {
		return action(ctx, req, params)
	}
}
