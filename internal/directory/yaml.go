package directory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cmdbus/internal/commands"
	"cmdbus/internal/logging"
)

// usersFile is the on-disk layout of a YAML directory.
type usersFile struct {
	Users []commands.User `yaml:"users"`
}

// LoadYAML reads a directory file of the form:
//
//	users:
//	  - id: u1
//	    name: alice
//	    roles: [ops]
func LoadYAML(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user directory: %w", err)
	}

	var file usersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse user directory: %w", err)
	}

	dir := NewStatic()
	for i, u := range file.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("user directory entry %d has no id", i)
		}
		dir.Add(u)
	}

	logging.Directory("Loaded %d users from %s", len(file.Users), path)
	return dir, nil
}

// SaveYAML writes the directory contents to path.
func (s *Static) SaveYAML(path string) error {
	users := s.Users()
	file := usersFile{Users: make([]commands.User, 0, len(users))}
	for _, id := range sortedIDs(users) {
		file.Users = append(file.Users, users[id])
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to marshal user directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write user directory: %w", err)
	}
	return nil
}
