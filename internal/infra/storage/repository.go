package storage

import (
	"context"
	"errors"
)

var (
	// ErrOptionNotFound is returned when no override is stored for an option
	ErrOptionNotFound = errors.New("option not found")
)

// OptionRepository persists option overrides set at runtime. Values are
// stored in their command line form and validated again when loaded.
type OptionRepository interface {
	// SaveOption inserts or replaces the override for name
	SaveOption(ctx context.Context, name, value string) error

	// LoadOptions returns every stored override keyed by option name
	LoadOptions(ctx context.Context) (map[string]string, error)

	// DeleteOption removes the override for name, ErrOptionNotFound if
	// none is stored
	DeleteOption(ctx context.Context, name string) error
}
