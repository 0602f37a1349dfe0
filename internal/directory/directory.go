// Package directory provides user directories for the command bus: an
// in-memory directory (optionally loaded from YAML), a SQLite-backed one,
// and a role authority that answers permission checks from either.
package directory

import (
	"context"
	"fmt"
	"sync"

	"cmdbus/internal/commands"
	"cmdbus/internal/logging"
)

// Directory is a user directory that may hold resources.
type Directory interface {
	commands.UserDirectory
	Close() error
}

// Open builds the directory for a configured driver. The "none" driver
// (or an empty one) returns nil.
func Open(ctx context.Context, driver, path string) (Directory, error) {
	switch driver {
	case "", "none":
		return nil, nil
	case "yaml":
		dir, err := LoadYAML(path)
		if err != nil {
			return nil, err
		}
		return dir, nil
	case "sqlite":
		dir, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return dir, nil
	default:
		return nil, fmt.Errorf("unknown directory driver: %s", driver)
	}
}

// Static is an in-memory directory. It is safe for concurrent use.
type Static struct {
	mu    sync.RWMutex
	users map[string]commands.User
}

// NewStatic creates a directory holding users.
func NewStatic(users ...commands.User) *Static {
	s := &Static{users: make(map[string]commands.User, len(users))}
	for _, u := range users {
		s.Add(u)
	}
	return s
}

// Add inserts or replaces a user. Users without an id are ignored.
func (s *Static) Add(u commands.User) {
	if u.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(u)
}

// Remove deletes a user by id.
func (s *Static) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// Users returns a snapshot keyed by id.
func (s *Static) Users() map[string]commands.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUsers(s.users)
}

// Close is a no-op.
func (s *Static) Close() error {
	return nil
}

// Lookup finds a user by id or, failing that, by name.
func Lookup(dir commands.UserDirectory, key string) (commands.User, bool) {
	if dir == nil {
		return commands.User{}, false
	}
	users := dir.Users()
	if u, ok := users[key]; ok {
		return u, true
	}

	for _, id := range sortedIDs(users) {
		if users[id].Name == key {
			return users[id], true
		}
	}
	return commands.User{}, false
}

// RoleAuthority answers role checks from directory roles. A user passes when
// they hold any of the requested roles. Users missing from the directory
// are judged on the roles carried by the invocation.
type RoleAuthority struct {
	Directory commands.UserDirectory
}

// NewRoleAuthority creates a role authority backed by dir.
func NewRoleAuthority(dir commands.UserDirectory) *RoleAuthority {
	return &RoleAuthority{Directory: dir}
}

// HasRole implements commands.PermissionProvider.
func (a *RoleAuthority) HasRole(ctx context.Context, user commands.User, roles []string, origin commands.Origin) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	held := user.Roles
	if known, ok := Lookup(a.Directory, user.ID); ok {
		held = known.Roles
	}

	for _, want := range roles {
		for _, have := range held {
			if want == have {
				return true, nil
			}
		}
	}

	logging.Get(logging.CategoryDirectory).Debug("User %s lacks roles %v (has %v)", user.ID, roles, held)
	return false, nil
}

func cloneUser(u commands.User) commands.User {
	u.Roles = append([]string(nil), u.Roles...)
	return u
}

func cloneUsers(in map[string]commands.User) map[string]commands.User {
	out := make(map[string]commands.User, len(in))
	for id, u := range in {
		out[id] = cloneUser(u)
	}
	return out
}
