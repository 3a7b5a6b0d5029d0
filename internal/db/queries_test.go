package db

import (
	"context"
	"database/sql"
	"reflect"
	"sync"
	"testing"

	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/profile"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func testProfile(name, model string) profile.Profile {
	return profile.Normalize(profile.Profile{
		Name:           name,
		InferenceURL:   "http://localhost:11434",
		InferenceModel: model,
		OCRURL:         "http://localhost:8080/ocr",
		OCRLanguages:   []string{"deu", "eng"},
		SystemPrompt:   "Be brief.",
		Filters: profile.FilterSpec{
			Regex:      `\w+`,
			DOMInclude: []string{".article"},
			DOMExclude: []string{".ad"},
		},
	})
}

func names(ps []profile.Profile) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func TestUpsertProfile_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	database := setupDB(t)

	p := testProfile("Work", "mistral")
	if err := UpsertProfile(ctx, database, p); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}

	got, err := GetProfile(ctx, database, "Work")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if !reflect.DeepEqual(*got, p) {
		t.Errorf("GetProfile = %+v, want %+v", *got, p)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	database := setupDB(t)

	_, err := GetProfile(context.Background(), database, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetProfile = %v, want NOT_FOUND", err)
	}
}

func TestGetProfile_NameIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	database := setupDB(t)

	if err := UpsertProfile(ctx, database, testProfile("Work", "m")); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	if _, err := GetProfile(ctx, database, "work"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetProfile(work) = %v, want NOT_FOUND", err)
	}
}

func TestUpsertProfile_OverwriteKeepsPosition(t *testing.T) {
	ctx := context.Background()
	database := setupDB(t)

	for _, n := range []string{"a", "b", "c"} {
		if err := UpsertProfile(ctx, database, testProfile(n, "m1")); err != nil {
			t.Fatalf("UpsertProfile(%s) failed: %v", n, err)
		}
	}

	if err := UpsertProfile(ctx, database, testProfile("a", "m2")); err != nil {
		t.Fatalf("UpsertProfile overwrite failed: %v", err)
	}

	list, err := ListProfiles(ctx, database)
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if !reflect.DeepEqual(names(list), []string{"a", "b", "c"}) {
		t.Errorf("order = %v, want [a b c]", names(list))
	}
	if list[0].InferenceModel != "m2" {
		t.Errorf("overwritten model = %q, want m2", list[0].InferenceModel)
	}
}

func TestListProfiles_Empty(t *testing.T) {
	database := setupDB(t)

	list, err := ListProfiles(context.Background(), database)
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("ListProfiles = %v, want empty non-nil slice", list)
	}
}

func TestDeleteProfile(t *testing.T) {
	ctx := context.Background()
	database := setupDB(t)

	if err := UpsertProfile(ctx, database, testProfile("a", "m")); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}
	if err := DeleteProfile(ctx, database, "a"); err != nil {
		t.Fatalf("DeleteProfile failed: %v", err)
	}
	if err := DeleteProfile(ctx, database, "a"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second DeleteProfile = %v, want NOT_FOUND", err)
	}

	n, err := CountProfiles(ctx, database)
	if err != nil {
		t.Fatalf("CountProfiles failed: %v", err)
	}
	if n != 0 {
		t.Errorf("CountProfiles = %d, want 0", n)
	}
}

func TestReplaceProfiles(t *testing.T) {
	ctx := context.Background()
	database := setupDB(t)

	for _, n := range []string{"old1", "old2"} {
		if err := UpsertProfile(ctx, database, testProfile(n, "m")); err != nil {
			t.Fatalf("UpsertProfile failed: %v", err)
		}
	}

	replacement := []profile.Profile{testProfile("z", "m"), testProfile("a", "m")}
	if err := ReplaceProfiles(ctx, database, replacement); err != nil {
		t.Fatalf("ReplaceProfiles failed: %v", err)
	}

	list, err := ListProfiles(ctx, database)
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if !reflect.DeepEqual(list, replacement) {
		t.Errorf("ListProfiles = %v, want %v", names(list), names(replacement))
	}
}

func TestReplaceProfiles_CancelledContextLeavesStore(t *testing.T) {
	database := setupDB(t)
	if err := UpsertProfile(context.Background(), database, testProfile("keep", "m")); err != nil {
		t.Fatalf("UpsertProfile failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ReplaceProfiles(ctx, database, []profile.Profile{testProfile("new", "m")}); err == nil {
		t.Fatal("ReplaceProfiles with cancelled context should fail")
	}

	list, err := ListProfiles(context.Background(), database)
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if !reflect.DeepEqual(names(list), []string{"keep"}) {
		t.Errorf("store changed: %v", names(list))
	}
}

func TestInsertIfEmpty(t *testing.T) {
	ctx := context.Background()
	database := setupDB(t)

	def := profile.Default(profile.Overrides{})
	inserted, err := InsertIfEmpty(ctx, database, def)
	if err != nil {
		t.Fatalf("InsertIfEmpty failed: %v", err)
	}
	if !inserted {
		t.Error("InsertIfEmpty on empty store should insert")
	}

	current, err := GetCurrentName(ctx, database)
	if err != nil {
		t.Fatalf("GetCurrentName failed: %v", err)
	}
	if current != profile.DefaultName {
		t.Errorf("current = %q, want %q", current, profile.DefaultName)
	}

	inserted, err = InsertIfEmpty(ctx, database, testProfile("other", "m"))
	if err != nil {
		t.Fatalf("second InsertIfEmpty failed: %v", err)
	}
	if inserted {
		t.Error("InsertIfEmpty on non-empty store should be a no-op")
	}
}

func TestCurrentName_UnsetAndSet(t *testing.T) {
	ctx := context.Background()
	database := setupDB(t)

	name, err := GetCurrentName(ctx, database)
	if err != nil {
		t.Fatalf("GetCurrentName failed: %v", err)
	}
	if name != "" {
		t.Errorf("unset current = %q, want empty", name)
	}

	for _, want := range []string{"a", "b"} {
		if err := SetCurrentName(ctx, database, want); err != nil {
			t.Fatalf("SetCurrentName failed: %v", err)
		}
		got, err := GetCurrentName(ctx, database)
		if err != nil {
			t.Fatalf("GetCurrentName failed: %v", err)
		}
		if got != want {
			t.Errorf("current = %q, want %q", got, want)
		}
	}
}

func TestStore_ConcurrentSaveAndList(t *testing.T) {
	ctx := context.Background()
	database := setupDB(t)
	ConfigurePool(database, &config.Config{DBMaxOpenConns: 1, DBMaxIdleConns: 1})
	store := NewStore(database)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			errs <- store.Save(ctx, testProfile("p", "m"))
		}(i)
		go func() {
			defer wg.Done()
			list, err := store.List(ctx)
			if err != nil {
				errs <- err
				return
			}
			for _, p := range list {
				if p.Name == "p" && p.InferenceModel != "m" {
					t.Errorf("torn read: %+v", p)
				}
			}
			errs <- nil
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent call failed: %v", err)
		}
	}
}
