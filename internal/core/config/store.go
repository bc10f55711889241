package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/vitality/internal/infra/storage"
)

// OverrideStore persists options changed at runtime so they survive a
// restart.
type OverrideStore interface {
	SaveOption(ctx context.Context, name, value string) error
	LoadOptions(ctx context.Context) (map[string]string, error)
	DeleteOption(ctx context.Context, name string) error
}

// Store holds the live Settings. Readers take a Snapshot and never hold the
// lock beyond the copy.
type Store struct {
	// writeMu orders writers so the persisted overrides and the live
	// settings change together. Readers never take it.
	writeMu sync.Mutex

	mu        sync.Mutex
	base      Settings
	settings  Settings
	overrides OverrideStore
	version   uint64
}

// NewStore creates a store seeded with s. overrides may be nil.
func NewStore(s Settings, overrides OverrideStore) *Store {
	return &Store{base: s.Clone(), settings: s.Clone(), overrides: overrides}
}

// Snapshot returns a private copy of the current settings.
func (s *Store) Snapshot() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.Clone()
}

// Version increases on every change.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Set validates raw, applies it and persists it when an override store is
// configured.
func (s *Store) Set(ctx context.Context, name string, raw any) (Settings, error) {
	id, err := ParseOptionName(name)
	if err != nil {
		return Settings{}, err
	}
	v, err := ParseValue(id, raw)
	if err != nil {
		return Settings{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Persist first so a failed write leaves the live settings untouched.
	if s.overrides != nil {
		if err := s.overrides.SaveOption(ctx, id.Name(), v.Raw()); err != nil {
			return Settings{}, fmt.Errorf("persist %s: %w", id, err)
		}
	}

	s.mu.Lock()
	next := s.settings.Clone()
	if err := next.Apply(id, v); err != nil {
		s.mu.Unlock()
		return Settings{}, err
	}
	s.settings = next
	s.version++
	s.mu.Unlock()

	logActivation(next)
	return next.Clone(), nil
}

// Unset drops the persisted override for name and returns to the file
// value. It fails with storage.ErrOptionNotFound when nothing is stored.
func (s *Store) Unset(ctx context.Context, name string) (Settings, error) {
	id, err := ParseOptionName(name)
	if err != nil {
		return Settings{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.overrides == nil {
		return Settings{}, fmt.Errorf("unset %s: %w", id, storage.ErrOptionNotFound)
	}
	if err := s.overrides.DeleteOption(ctx, id.Name()); err != nil {
		return Settings{}, fmt.Errorf("unset %s: %w", id, err)
	}

	next, err := s.rebuild(ctx, s.baseSettings())
	if err != nil {
		return Settings{}, err
	}
	return next.Clone(), nil
}

// Replace swaps in settings from a reloaded file and re-applies persisted
// overrides on top.
func (s *Store) Replace(ctx context.Context, base Settings) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.rebuild(ctx, base)
	return err
}

// LoadOverrides applies every persisted override to the live settings.
func (s *Store) LoadOverrides(ctx context.Context) error {
	return s.Replace(ctx, s.baseSettings())
}

func (s *Store) baseSettings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base.Clone()
}

// rebuild applies the persisted overrides to base and swaps the result in.
// The caller holds writeMu.
func (s *Store) rebuild(ctx context.Context, base Settings) (Settings, error) {
	next := base.Clone()
	if err := s.applyOverrides(ctx, &next); err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	s.base = base.Clone()
	s.settings = next
	s.version++
	s.mu.Unlock()

	logActivation(next)
	return next, nil
}

func (s *Store) applyOverrides(ctx context.Context, dst *Settings) error {
	if s.overrides == nil {
		return nil
	}
	saved, err := s.overrides.LoadOptions(ctx)
	if err != nil {
		return fmt.Errorf("load option overrides: %w", err)
	}
	for _, id := range Options() {
		raw, ok := saved[id.Name()]
		if !ok {
			continue
		}
		v, err := ParseValue(id, raw)
		if err != nil {
			slog.Warn("Ignoring invalid persisted option", "option", id.Name(), "error", err)
			continue
		}
		if err := dst.Apply(id, v); err != nil {
			return err
		}
	}
	return nil
}

func logActivation(s Settings) {
	if s.SendMail() {
		slog.Info("Will try to send notifications via email", "to", s.EmailTo)
	} else {
		slog.Info("Insufficient config for email notifications")
	}
	if s.SendTelegram() {
		slog.Info("Will try to notify via telegram", "usernames", s.TelegramUsernames)
	} else {
		slog.Info("Insufficient config for telegram notifications")
	}
}
