package directory

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"cmdbus/internal/commands"
	"cmdbus/internal/logging"
)

const usersSchema = `CREATE TABLE IF NOT EXISTS users (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT '',
	roles TEXT NOT NULL DEFAULT ''
)`

// SQLite is a user directory stored in a SQLite table. Users serves an
// in-memory snapshot taken by Refresh so the bus never blocks on the
// database; Upsert and Delete refresh the snapshot themselves.
type SQLite struct {
	db *sql.DB

	mu       sync.RWMutex
	snapshot map[string]commands.User
}

// OpenSQLite opens (creating if needed) a directory database and loads
// the first snapshot.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("directory path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, usersSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create users table: %w", err)
	}

	s := &SQLite{db: db, snapshot: make(map[string]commands.User)}
	if err := s.Refresh(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying SQLite connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Users returns the current snapshot keyed by id.
func (s *SQLite) Users() map[string]commands.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUsers(s.snapshot)
}

// Refresh reloads the snapshot from the database.
func (s *SQLite) Refresh(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, roles FROM users`)
	if err != nil {
		return fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	next := make(map[string]commands.User)
	for rows.Next() {
		var u commands.User
		var roles string
		if err := rows.Scan(&u.ID, &u.Name, &roles); err != nil {
			return fmt.Errorf("scan user: %w", err)
		}
		u.Roles = splitRoles(roles)
		next[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate users: %w", err)
	}

	s.mu.Lock()
	s.snapshot = next
	s.mu.Unlock()

	logging.Get(logging.CategoryDirectory).Debug("Refreshed sqlite directory: %d users", len(next))
	return nil
}

// Upsert inserts or updates a user.
func (s *SQLite) Upsert(ctx context.Context, u commands.User) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, roles) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, roles = excluded.roles`,
		u.ID, u.Name, joinRoles(u.Roles),
	)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.ID, err)
	}
	return s.Refresh(ctx)
}

// Delete removes a user by id.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return s.Refresh(ctx)
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func joinRoles(roles []string) string {
	clean := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	return strings.Join(clean, ",")
}

func sortedIDs(users map[string]commands.User) []string {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
