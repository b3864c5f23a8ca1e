package dbmigrate

import (
	"errors"
	"fmt"

	"github.com/fdg312/sugarcheck/internal/config"
)

// ErrNoDatabaseURL is returned when none of the database URLs is set.
var ErrNoDatabaseURL = errors.New("no database URL configured (set DATABASE_URL_DIRECT or DATABASE_URL)")

// SourceMemory marks a selection where the API runs on in-memory storage.
const SourceMemory = "memory"

// Selection is the database URL chosen for DDL and the variable it came from.
type Selection struct {
	URL     string
	Source  string
	Warning string
}

// Skip reports whether there is no database to migrate.
func (s Selection) Skip() bool { return s.Source == SourceMemory }

// SelectDatabaseURL selects DB URL for migrations.
// Priority: DIRECT > DATABASE_URL > POOLED (with warning).
// If requireDirect is true, only DATABASE_URL_DIRECT is accepted.
func SelectDatabaseURL(cfg *config.Config, requireDirect bool) (Selection, error) {
	if requireDirect {
		if cfg.DatabaseURLDirect == "" {
			return Selection{}, fmt.Errorf("DATABASE_URL_DIRECT is required for DDL/migrations")
		}
		return Selection{URL: cfg.DatabaseURLDirect, Source: "DATABASE_URL_DIRECT"}, nil
	}

	switch {
	case cfg.DatabaseURLDirect != "":
		return Selection{URL: cfg.DatabaseURLDirect, Source: "DATABASE_URL_DIRECT"}, nil
	case cfg.DatabaseURLRaw != "":
		return Selection{URL: cfg.DatabaseURLRaw, Source: "DATABASE_URL"}, nil
	case cfg.DatabaseURLPooled != "":
		return Selection{
			URL:     cfg.DatabaseURLPooled,
			Source:  "DATABASE_URL_POOLED",
			Warning: "using pooled connection for DDL is not recommended; set DATABASE_URL_DIRECT",
		}, nil
	}
	return Selection{}, ErrNoDatabaseURL
}

// SelectStartupURL picks the URL for migrations run by the API on boot.
// With no database configured the API serves reports from memory and the
// selection is skipped; otherwise DATABASE_URL_DIRECT is required.
func SelectStartupURL(cfg *config.Config) (Selection, error) {
	if cfg.DatabaseURL == "" && cfg.DatabaseURLDirect == "" {
		return Selection{Source: SourceMemory}, nil
	}
	return SelectDatabaseURL(cfg, true)
}
