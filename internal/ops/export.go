package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/profile"
)

// ExportOutput contains the result of the ExportProfiles operation.
type ExportOutput struct {
	Data  string `json:"data"` // pretty-printed JSON array
	Count int    `json:"count"`
}

// ExportFileInput contains parameters for the ExportProfilesToFile operation.
type ExportFileInput struct {
	Path string // optional, default: ~/.backseat/exports/backseat-profiles-YYYY-MM-DD.json
}

// ExportFileOutput contains the result of the ExportProfilesToFile operation.
type ExportFileOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportProfiles serializes every profile as a 2-space indented JSON array.
func ExportProfiles(ctx context.Context, store ProfileStore) (*ExportOutput, error) {
	profiles, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	data, err := profile.MarshalList(profiles)
	if err != nil {
		return nil, err
	}
	return &ExportOutput{Data: data, Count: len(profiles)}, nil
}

// ExportProfilesToFile writes the export to a validated .json path.
// The file is written to a temp name and renamed into place, so an existing
// export survives a failed write.
func ExportProfilesToFile(ctx context.Context, store ProfileStore, cfg *config.Config, input ExportFileInput) (*ExportFileOutput, error) {
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = DefaultExportPath(now)
		if err != nil {
			return nil, err
		}
	}

	if err := ValidatePath(exportPath, PathCheckWrite, cfg); err != nil {
		return nil, err
	}

	out, err := ExportProfiles(ctx, store)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.WriteString(out.Data + "\n"); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if err := errors.FromContext(ctx, "export"); err != nil {
		return nil, err
	}

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewPath("export path is a symlink")
	}

	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewPath("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportFileOutput{
		Path:       exportPath,
		Count:      out.Count,
		ExportedAt: now.Unix(),
	}, nil
}

// DefaultExportPath returns ~/.backseat/exports/backseat-profiles-YYYY-MM-DD.json.
func DefaultExportPath(now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("backseat-profiles-%s.json", now.Format("2006-01-02"))), nil
}
