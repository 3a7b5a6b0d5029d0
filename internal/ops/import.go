package ops

import (
	"context"
	"io"

	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/profile"
	"github.com/hpungsan/backseat/internal/session"
)

// maxImportBytes caps an import file; profile exports are a few KB.
const maxImportBytes = 10 << 20

// ImportOutput contains the result of the ImportProfiles operation.
type ImportOutput struct {
	Count   int    `json:"count"`
	Current string `json:"current"`
}

// ImportFileInput contains parameters for the ImportProfilesFromFile operation.
type ImportFileInput struct {
	Path string // required
}

// ImportProfiles replaces the whole profile set with the JSON array in data.
// Anything that is not a valid array of valid, uniquely named profiles is
// rejected before the store is touched. An empty array leaves only Default.
// If the current profile is not part of the new set, the first imported
// profile becomes current.
func ImportProfiles(ctx context.Context, store ProfileStore, cfg *config.Config, sess *session.Session, data string) (*ImportOutput, error) {
	profiles, err := profile.ParseList(data)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		profiles = []profile.Profile{defaultProfile(cfg)}
	}

	if err := store.ReplaceAll(ctx, profiles); err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		names[p.Name] = true
	}
	fallback := profiles[0].Name

	current, err := InitialProfileName(ctx, store)
	if err != nil {
		return nil, err
	}
	if !names[current] {
		if err := store.SetCurrentName(ctx, fallback); err != nil {
			return nil, err
		}
		current = fallback
	}

	if sess != nil {
		if name := sess.CurrentProfileName(); !names[name] {
			sess.SetCurrentProfileName(fallback)
		}
		current = sess.CurrentProfileName()
	}

	return &ImportOutput{Count: len(profiles), Current: current}, nil
}

// ImportProfilesFromFile validates path and imports the JSON array it contains.
func ImportProfilesFromFile(ctx context.Context, store ProfileStore, cfg *config.Config, sess *session.Session, input ImportFileInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		return nil, errors.Wrap(err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportBytes+1))
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if len(data) > maxImportBytes {
		return nil, errors.NewFormat("Invalid profile format: file too large")
	}

	return ImportProfiles(ctx, store, cfg, sess, string(data))
}
