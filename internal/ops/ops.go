package ops

import (
	"context"

	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/profile"
)

// ProfileStore is the persistence contract the operations need.
// Each call must be atomic on its own; db.Store is the production implementation.
type ProfileStore interface {
	List(ctx context.Context) ([]profile.Profile, error)
	Get(ctx context.Context, name string) (*profile.Profile, error)
	Save(ctx context.Context, p profile.Profile) error
	Delete(ctx context.Context, name string) error
	ReplaceAll(ctx context.Context, profiles []profile.Profile) error
	EnsureDefault(ctx context.Context, p profile.Profile) (bool, error)
	CurrentName(ctx context.Context) (string, error)
	SetCurrentName(ctx context.Context, name string) error
}

// Recognizer turns an image data URL into text.
type Recognizer interface {
	Recognize(ctx context.Context, url, imageDataURL string, languages []string) (string, error)
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, baseURL, model, prompt string) (string, error)
}

// defaultProfile builds the Default profile with configured overrides.
func defaultProfile(cfg *config.Config) profile.Profile {
	if cfg == nil {
		return profile.Default(profile.Overrides{})
	}
	return profile.Default(cfg.DefaultOverrides())
}
