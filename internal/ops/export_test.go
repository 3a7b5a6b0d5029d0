package ops

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/profile"
)

func TestExportProfiles_PrettyArray(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	mustSave(t, store, newProfile("Work"))

	out, err := ExportProfiles(ctx, store)
	if err != nil {
		t.Fatalf("ExportProfiles failed: %v", err)
	}
	if out.Count != 2 {
		t.Errorf("Count = %d, want 2", out.Count)
	}
	if !strings.HasPrefix(out.Data, "[\n  {\n    \"name\": \"Default\"") {
		t.Errorf("export is not a 2-space indented array:\n%s", out.Data)
	}

	var records []map[string]any
	if err := json.Unmarshal([]byte(out.Data), &records); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	for _, key := range []string{"name", "ollamaUrl", "model", "ocrUrl", "ocrLanguages", "prompt", "filters"} {
		if _, ok := records[1][key]; !ok {
			t.Errorf("exported record missing %q", key)
		}
	}
}

func TestImportProfiles_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupStore(t)
	work := newProfile("Work")
	work.Filters = profile.FilterSpec{Regex: `\d+`, DOMInclude: []string{"main"}, DOMExclude: []string{".ad"}}
	mustSave(t, src, work)
	mustSave(t, src, newProfile("Home"))

	exported, err := ExportProfiles(ctx, src)
	if err != nil {
		t.Fatalf("ExportProfiles failed: %v", err)
	}

	dst := setupStore(t)
	out, err := ImportProfiles(ctx, dst, nil, nil, exported.Data)
	if err != nil {
		t.Fatalf("ImportProfiles failed: %v", err)
	}
	if out.Count != 3 {
		t.Errorf("Count = %d, want 3", out.Count)
	}

	want, _ := src.List(ctx)
	got, _ := dst.List(ctx)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestImportProfiles_RejectedLeavesStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		data string
		code errors.ErrorCode
	}{
		{"object", `{}`, errors.ErrFormat},
		{"string", `"x"`, errors.ErrFormat},
		{"garbage", `not json`, errors.ErrFormat},
		{"empty", ``, errors.ErrFormat},
		{"duplicate names", `[{"name":"a","ollamaUrl":"u","model":"m","ocrLanguages":["eng"]},{"name":"a","ollamaUrl":"u","model":"m","ocrLanguages":["eng"]}]`, errors.ErrFormat},
		{"empty model", `[{"name":"a","ollamaUrl":"u","model":"","ocrLanguages":["eng"]}]`, errors.ErrConfiguration},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := setupStore(t)
			mustSave(t, store, newProfile("Keep"))
			before, _ := store.List(ctx)

			_, err := ImportProfiles(ctx, store, nil, nil, tc.data)
			if !errors.Is(err, tc.code) {
				t.Fatalf("ImportProfiles = %v, want %s", err, tc.code)
			}

			after, _ := store.List(ctx)
			if !reflect.DeepEqual(after, before) {
				t.Errorf("store changed after rejected import: %+v", after)
			}
		})
	}
}

func TestImportProfiles_FormatMessage(t *testing.T) {
	store := setupStore(t)

	_, err := ImportProfiles(context.Background(), store, nil, nil, `{}`)
	var bErr *errors.BackseatError
	if !errors.As(err, &bErr) {
		t.Fatalf("ImportProfiles = %v, want BackseatError", err)
	}
	if !strings.HasPrefix(bErr.Message, "Invalid profile format") {
		t.Errorf("message = %q", bErr.Message)
	}
}

func TestImportProfiles_EmptyArrayKeepsDefault(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	mustSave(t, store, newProfile("Work"))

	out, err := ImportProfiles(ctx, store, nil, nil, `[]`)
	if err != nil {
		t.Fatalf("ImportProfiles failed: %v", err)
	}
	if out.Count != 1 || out.Current != profile.DefaultName {
		t.Errorf("ImportProfiles = %+v, want 1 profile, current Default", out)
	}
}

func TestImportProfiles_CurrentMovesWhenMissing(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	sess := newSession(profile.DefaultName)

	data := `[{"name":"B","ollamaUrl":"http://h","model":"m","ocrLanguages":["eng"]},
	          {"name":"A","ollamaUrl":"http://h","model":"m","ocrLanguages":["eng"]}]`
	out, err := ImportProfiles(ctx, store, nil, sess, data)
	if err != nil {
		t.Fatalf("ImportProfiles failed: %v", err)
	}
	if out.Current != "B" || sess.CurrentProfileName() != "B" {
		t.Errorf("current = %q / %q, want B", out.Current, sess.CurrentProfileName())
	}

	persisted, _ := InitialProfileName(ctx, store)
	if persisted != "B" {
		t.Errorf("persisted current = %q, want B", persisted)
	}
}

func TestImportProfiles_CurrentKeptWhenPresent(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	mustSave(t, store, newProfile("A"))
	sess := newSession("A")

	data := `[{"name":"B","ollamaUrl":"http://h","model":"m","ocrLanguages":["eng"]},
	          {"name":"A","ollamaUrl":"http://h","model":"m2","ocrLanguages":["eng"]}]`
	out, err := ImportProfiles(ctx, store, nil, sess, data)
	if err != nil {
		t.Fatalf("ImportProfiles failed: %v", err)
	}
	if out.Current != "A" {
		t.Errorf("current = %q, want A", out.Current)
	}
}

func TestExportImportFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}

	src := setupStore(t)
	mustSave(t, src, newProfile("Work"))

	path := filepath.Join(dir, "profiles.json")
	out, err := ExportProfilesToFile(ctx, src, cfg, ExportFileInput{Path: path})
	if err != nil {
		t.Fatalf("ExportProfilesToFile failed: %v", err)
	}
	if out.Path != path || out.Count != 2 || out.ExportedAt == 0 {
		t.Errorf("ExportProfilesToFile = %+v", out)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("export file mode = %v, want 0600", info.Mode().Perm())
	}

	dst := setupStore(t)
	imported, err := ImportProfilesFromFile(ctx, dst, cfg, nil, ImportFileInput{Path: path})
	if err != nil {
		t.Fatalf("ImportProfilesFromFile failed: %v", err)
	}
	if imported.Count != 2 {
		t.Errorf("Count = %d, want 2", imported.Count)
	}

	want, _ := src.List(ctx)
	got, _ := dst.List(ctx)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("file round trip mismatch")
	}
}

func TestExportProfilesToFile_Overwrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	store := setupStore(t)

	path := filepath.Join(dir, "profiles.json")
	if err := os.WriteFile(path, []byte("old"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ExportProfilesToFile(ctx, store, cfg, ExportFileInput{Path: path}); err != nil {
		t.Fatalf("ExportProfilesToFile failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "[") {
		t.Errorf("file not overwritten: %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestExportProfilesToFile_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	store := setupStore(t)

	out, err := ExportProfilesToFile(context.Background(), store, config.DefaultConfig(), ExportFileInput{})
	if err != nil {
		t.Fatalf("ExportProfilesToFile failed: %v", err)
	}
	if filepath.Dir(out.Path) != filepath.Join(home, ".backseat", "exports") {
		t.Errorf("Path = %q, want under ~/.backseat/exports", out.Path)
	}
	if !strings.HasPrefix(filepath.Base(out.Path), "backseat-profiles-") {
		t.Errorf("Path = %q", out.Path)
	}
}

func TestImportProfilesFromFile_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	store := setupStore(t)

	if _, err := ImportProfilesFromFile(ctx, store, cfg, nil, ImportFileInput{}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty path = %v, want INVALID_REQUEST", err)
	}
	if _, err := ImportProfilesFromFile(ctx, store, cfg, nil, ImportFileInput{Path: filepath.Join(dir, "none.json")}); !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("missing file = %v, want FILE_NOT_FOUND", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"name":"x"}`), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := ImportProfilesFromFile(ctx, store, cfg, nil, ImportFileInput{Path: bad}); !errors.Is(err, errors.ErrFormat) {
		t.Errorf("object file = %v, want FORMAT", err)
	}
}
