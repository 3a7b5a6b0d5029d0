package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/profile"
)

// settingCurrentProfile is the settings key holding the current profile name.
const settingCurrentProfile = "current_profile"

const profileColumns = `
	name, inference_url, inference_model, ocr_url, ocr_languages_json,
	system_prompt, filter_regex, dom_include_json, dom_exclude_json
`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ListProfiles returns all profiles in insertion order.
func ListProfiles(ctx context.Context, db *sql.DB) ([]profile.Profile, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY position ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	profiles := []profile.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return profiles, nil
}

// GetProfile retrieves a profile by exact name.
func GetProfile(ctx context.Context, db *sql.DB, name string) (*profile.Profile, error) {
	row := db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE name = ?`, name)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(name)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// UpsertProfile inserts a profile at the end of the list, or overwrites an existing
// profile with the same name in place (its position is kept).
func UpsertProfile(ctx context.Context, db *sql.DB, p profile.Profile) error {
	return upsertProfile(ctx, db, p, time.Now().Unix())
}

func upsertProfile(ctx context.Context, ex execer, p profile.Profile, now int64) error {
	langs, include, exclude, err := encodeLists(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO profiles (
			name, position, inference_url, inference_model, ocr_url, ocr_languages_json,
			system_prompt, filter_regex, dom_include_json, dom_exclude_json,
			created_at, updated_at
		) VALUES (
			?, (SELECT COALESCE(MAX(position), 0) + 1 FROM profiles), ?, ?, ?, ?,
			?, ?, ?, ?, ?, ?
		)
		ON CONFLICT(name) DO UPDATE SET
			inference_url = excluded.inference_url,
			inference_model = excluded.inference_model,
			ocr_url = excluded.ocr_url,
			ocr_languages_json = excluded.ocr_languages_json,
			system_prompt = excluded.system_prompt,
			filter_regex = excluded.filter_regex,
			dom_include_json = excluded.dom_include_json,
			dom_exclude_json = excluded.dom_exclude_json,
			updated_at = excluded.updated_at
	`

	_, err = ex.ExecContext(ctx, query,
		p.Name, p.InferenceURL, p.InferenceModel, p.OCRURL, langs,
		p.SystemPrompt, p.Filters.Regex, include, exclude,
		now, now,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteProfile removes a profile by name. Returns NOT_FOUND if it does not exist.
func DeleteProfile(ctx context.Context, db *sql.DB, name string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM profiles WHERE name = ?`, name)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(name)
	}
	return nil
}

// CountProfiles returns the number of stored profiles.
func CountProfiles(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// ReplaceProfiles atomically replaces the whole profile set, keeping slice order.
func ReplaceProfiles(ctx context.Context, db *sql.DB, profiles []profile.Profile) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles`); err != nil {
		return errors.NewInternal(err)
	}

	now := time.Now().Unix()
	for _, p := range profiles {
		if err := upsertProfile(ctx, tx, p, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// InsertIfEmpty stores p and makes it current, but only when no profile exists yet.
// Returns true if p was inserted.
func InsertIfEmpty(ctx context.Context, db *sql.DB, p profile.Profile) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return false, errors.NewInternal(err)
	}
	if n > 0 {
		return false, nil
	}

	if err := upsertProfile(ctx, tx, p, time.Now().Unix()); err != nil {
		return false, err
	}
	if err := setSetting(ctx, tx, settingCurrentProfile, p.Name); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// GetCurrentName returns the persisted current profile name, or "" when unset.
func GetCurrentName(ctx context.Context, db *sql.DB) (string, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingCurrentProfile).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return name, nil
}

// SetCurrentName persists the current profile name.
func SetCurrentName(ctx context.Context, db *sql.DB, name string) error {
	return setSetting(ctx, db, settingCurrentProfile, name)
}

func setSetting(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanProfile scans a single row into a Profile.
func scanProfile(row rowScanner) (*profile.Profile, error) {
	var p profile.Profile
	var langs, include, exclude string

	err := row.Scan(
		&p.Name, &p.InferenceURL, &p.InferenceModel, &p.OCRURL, &langs,
		&p.SystemPrompt, &p.Filters.Regex, &include, &exclude,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(langs), &p.OCRLanguages); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(include), &p.Filters.DOMInclude); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(exclude), &p.Filters.DOMExclude); err != nil {
		return nil, err
	}

	normalized := profile.Normalize(p)
	return &normalized, nil
}

// encodeLists converts the list fields of p to JSON text columns.
func encodeLists(p profile.Profile) (langs, include, exclude string, err error) {
	enc := func(items []string) (string, error) {
		if items == nil {
			items = []string{}
		}
		data, err := json.Marshal(items)
		if err != nil {
			return "", errors.NewInternal(err)
		}
		return string(data), nil
	}

	if langs, err = enc(p.OCRLanguages); err != nil {
		return
	}
	if include, err = enc(p.Filters.DOMInclude); err != nil {
		return
	}
	exclude, err = enc(p.Filters.DOMExclude)
	return
}
