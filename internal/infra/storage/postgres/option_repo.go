package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/vitality/internal/infra/storage"
)

// OptionRepo implements storage.OptionRepository using PostgreSQL.
type OptionRepo struct {
	db *DB
}

// NewOptionRepo creates a new PostgreSQL option repository.
func NewOptionRepo(db *DB) *OptionRepo {
	return &OptionRepo{db: db}
}

// SaveOption upserts an override.
func (r *OptionRepo) SaveOption(ctx context.Context, name, value string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO option_overrides (name, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		name, value)
	if err != nil {
		return fmt.Errorf("failed to save option: %w", err)
	}
	return nil
}

// LoadOptions retrieves every override.
func (r *OptionRepo) LoadOptions(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT name, value FROM option_overrides`)
	if err != nil {
		return nil, fmt.Errorf("failed to load options: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

// DeleteOption removes one override.
func (r *OptionRepo) DeleteOption(ctx context.Context, name string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM option_overrides WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete option: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrOptionNotFound
	}
	return nil
}

var _ storage.OptionRepository = (*OptionRepo)(nil)
