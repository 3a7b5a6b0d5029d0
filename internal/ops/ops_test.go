package ops

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/db"
	"github.com/hpungsan/backseat/internal/profile"
	"github.com/hpungsan/backseat/internal/session"
)

// setupStore returns a fresh SQLite-backed store with Default materialized.
func setupStore(t *testing.T) *db.Store {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := db.NewStore(database)
	if _, err := EnsureDefault(context.Background(), store, config.DefaultConfig()); err != nil {
		t.Fatalf("EnsureDefault failed: %v", err)
	}
	return store
}

func newProfile(name string) profile.Profile {
	return profile.Profile{
		Name:           name,
		InferenceURL:   "http://localhost:11434",
		InferenceModel: "mistral",
		OCRURL:         "http://localhost:8080/ocr",
		OCRLanguages:   []string{"eng"},
		SystemPrompt:   "Be brief.",
	}
}

func mustSave(t *testing.T, store ProfileStore, p profile.Profile) {
	t.Helper()
	if _, err := SaveProfile(context.Background(), store, p); err != nil {
		t.Fatalf("SaveProfile(%s) failed: %v", p.Name, err)
	}
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("time.Parse(%q): %v", s, err)
	}
	return d
}

func newSession(name string) *session.Session {
	return session.New(session.NewID(), name)
}

// fakeOCR records calls and returns a fixed result.
type fakeOCR struct {
	text string
	err  error

	mu        sync.Mutex
	calls     int
	url       string
	languages []string
}

func (f *fakeOCR) Recognize(_ context.Context, url, _ string, languages []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.url = url
	f.languages = languages
	return f.text, f.err
}

// fakeLLM records the last prompt and returns a fixed result.
type fakeLLM struct {
	response string
	err      error

	mu      sync.Mutex
	calls   int
	baseURL string
	model   string
	prompt  string
}

func (f *fakeLLM) Generate(_ context.Context, baseURL, model, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.baseURL = baseURL
	f.model = model
	f.prompt = prompt
	return f.response, f.err
}
