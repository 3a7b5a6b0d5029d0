package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/profile"
	"github.com/hpungsan/backseat/internal/session"
)

// ListOutput contains the result of the ListProfiles operation.
type ListOutput struct {
	Profiles []profile.Profile `json:"profiles"`
	Current  string            `json:"current"`
}

// SaveOutput contains the result of the SaveProfile operation.
type SaveOutput struct {
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

// DeleteOutput contains the result of the DeleteProfile operation.
type DeleteOutput struct {
	Name    string `json:"name"`
	Current string `json:"current"` // current profile after the delete
}

// EnsureDefault materializes the Default profile when the store is empty.
// Returns true if it was created.
func EnsureDefault(ctx context.Context, store ProfileStore, cfg *config.Config) (bool, error) {
	return store.EnsureDefault(ctx, defaultProfile(cfg))
}

// InitialProfileName returns the name new sessions start on: the persisted
// pointer, or Default when unset.
func InitialProfileName(ctx context.Context, store ProfileStore) (string, error) {
	name, err := store.CurrentName(ctx)
	if err != nil {
		return "", err
	}
	if name == "" {
		return profile.DefaultName, nil
	}
	return name, nil
}

// ListProfiles returns all profiles in insertion order. current is the
// session's selection when sess is non-nil, otherwise the persisted pointer.
func ListProfiles(ctx context.Context, store ProfileStore, sess *session.Session) (*ListOutput, error) {
	profiles, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	current := ""
	if sess != nil {
		current = sess.CurrentProfileName()
	} else if current, err = InitialProfileName(ctx, store); err != nil {
		return nil, err
	}
	if current == "" {
		current = profile.DefaultName
	}

	return &ListOutput{Profiles: profiles, Current: current}, nil
}

// GetProfile returns a profile by exact name.
func GetProfile(ctx context.Context, store ProfileStore, name string) (*profile.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewInvalidRequest("profileName is required")
	}
	return store.Get(ctx, name)
}

// ResolveProfile returns the profile operations should use for name.
// An empty name means Default. A missing Default resolves to the built-in
// default profile; any other missing name is NOT_FOUND.
func ResolveProfile(ctx context.Context, store ProfileStore, cfg *config.Config, name string) (*profile.Profile, error) {
	if name == "" {
		name = profile.DefaultName
	}

	p, err := store.Get(ctx, name)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, errors.ErrNotFound) && name == profile.DefaultName {
		def := defaultProfile(cfg)
		return &def, nil
	}
	return nil, err
}

// GetCurrentProfile resolves the session's current profile.
func GetCurrentProfile(ctx context.Context, store ProfileStore, cfg *config.Config, sess *session.Session) (*profile.Profile, error) {
	return ResolveProfile(ctx, store, cfg, sess.CurrentProfileName())
}

// SetCurrentProfile selects name for the session and persists it as the
// pointer new sessions start on.
func SetCurrentProfile(ctx context.Context, store ProfileStore, sess *session.Session, name string) (*profile.Profile, error) {
	p, err := GetProfile(ctx, store, name)
	if err != nil {
		return nil, err
	}

	if err := store.SetCurrentName(ctx, p.Name); err != nil {
		return nil, err
	}
	if sess != nil {
		sess.SetCurrentProfileName(p.Name)
	}
	return p, nil
}

// SaveProfile normalizes and validates p, then inserts or overwrites it by name.
// Invalid profiles never reach the store.
func SaveProfile(ctx context.Context, store ProfileStore, p profile.Profile) (*SaveOutput, error) {
	p = profile.Normalize(p)
	if err := profile.Validate(p); err != nil {
		return nil, err
	}

	created := false
	if _, err := store.Get(ctx, p.Name); err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		created = true
	}

	if err := store.Save(ctx, p); err != nil {
		return nil, err
	}
	return &SaveOutput{Name: p.Name, Created: created}, nil
}

// DeleteProfile removes a profile by name. Deleting the current profile
// (persisted or session) moves the pointer back to Default, and deleting the
// last profile re-materializes Default.
func DeleteProfile(ctx context.Context, store ProfileStore, cfg *config.Config, sess *session.Session, name string) (*DeleteOutput, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewInvalidRequest("profileName is required")
	}

	if err := store.Delete(ctx, name); err != nil {
		return nil, err
	}

	if _, err := EnsureDefault(ctx, store, cfg); err != nil {
		return nil, err
	}

	current, err := InitialProfileName(ctx, store)
	if err != nil {
		return nil, err
	}
	if current == name {
		if err := store.SetCurrentName(ctx, profile.DefaultName); err != nil {
			return nil, err
		}
		current = profile.DefaultName
	}

	if sess != nil {
		if sess.CurrentProfileName() == name {
			sess.SetCurrentProfileName(profile.DefaultName)
		}
		current = sess.CurrentProfileName()
	}

	return &DeleteOutput{Name: name, Current: current}, nil
}
