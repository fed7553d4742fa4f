package store

import (
	"fmt"
	"strings"
)

// SupportedDrivers lists all available store drivers.
var SupportedDrivers = []string{"sqlite", "bbolt"}

// NewStore creates a new Store instance based on the specified driver.
// Supported drivers:
//   - "sqlite": SQLite-backed storage (recommended, queryable with any sqlite tool)
//   - "bbolt": BoltDB-backed storage (pure Go alternative)
//
// The path parameter specifies where the store data will be persisted.
func NewStore(driver, path string) (Store, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))

	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	switch driver {
	case "sqlite":
		return NewSQLiteStore(path)
	case "bbolt":
		return NewBoltStore(path)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s (supported: %v)", driver, SupportedDrivers)
	}
}
