package config

import "fmt"

// Directory drivers.
const (
	DirectoryNone   = "none"
	DirectoryYAML   = "yaml"
	DirectorySQLite = "sqlite"
)

// DirectoryConfig selects the user directory backend.
type DirectoryConfig struct {
	Driver string `yaml:"driver"` // none, yaml, sqlite
	Path   string `yaml:"path"`   // users.yaml or users.db
}

// Enabled reports whether a directory backend is configured.
func (c *DirectoryConfig) Enabled() bool {
	return c.Driver != "" && c.Driver != DirectoryNone
}

func (c *DirectoryConfig) validate() error {
	switch c.Driver {
	case "", DirectoryNone:
		return nil
	case DirectoryYAML, DirectorySQLite:
		if c.Path == "" {
			return fmt.Errorf("directory.path is required for driver %s", c.Driver)
		}
		return nil
	default:
		return fmt.Errorf("invalid directory.driver: %s (valid: none, yaml, sqlite)", c.Driver)
	}
}

// CatalogConfig points at a YAML command catalog.
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"` // reload on change
}
