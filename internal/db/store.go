package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/backseat/internal/profile"
)

// Store adapts the SQLite queries to the profile store contract used by ops.
// Every method is a single statement or transaction, so callers may treat each
// call as atomic.
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialized database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// List returns all profiles in insertion order.
func (s *Store) List(ctx context.Context) ([]profile.Profile, error) {
	return ListProfiles(ctx, s.db)
}

// Get returns the profile with the given name or a NOT_FOUND error.
func (s *Store) Get(ctx context.Context, name string) (*profile.Profile, error) {
	return GetProfile(ctx, s.db, name)
}

// Save upserts a profile by name.
func (s *Store) Save(ctx context.Context, p profile.Profile) error {
	return UpsertProfile(ctx, s.db, p)
}

// Delete removes a profile by name.
func (s *Store) Delete(ctx context.Context, name string) error {
	return DeleteProfile(ctx, s.db, name)
}

// ReplaceAll swaps the whole profile set in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, profiles []profile.Profile) error {
	return ReplaceProfiles(ctx, s.db, profiles)
}

// EnsureDefault stores p as the current profile when the store is empty.
func (s *Store) EnsureDefault(ctx context.Context, p profile.Profile) (bool, error) {
	return InsertIfEmpty(ctx, s.db, p)
}

// CurrentName returns the persisted current profile name ("" when unset).
func (s *Store) CurrentName(ctx context.Context) (string, error) {
	return GetCurrentName(ctx, s.db)
}

// SetCurrentName persists the current profile name.
func (s *Store) SetCurrentName(ctx context.Context, name string) error {
	return SetCurrentName(ctx, s.db, name)
}
