package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/backseat/internal/capture"
	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/db"
	"github.com/hpungsan/backseat/internal/message"
	"github.com/hpungsan/backseat/internal/metrics"
	"github.com/hpungsan/backseat/internal/ops"
	"github.com/hpungsan/backseat/internal/session"
)

type stubOCR struct{}

func (stubOCR) Recognize(context.Context, string, string, []string) (string, error) {
	return "from the screen", nil
}

type stubLLM struct{}

func (stubLLM) Generate(_ context.Context, _, _, prompt string) (string, error) {
	return "echo: " + prompt[strings.LastIndex(prompt, ": ")+2:], nil
}

func setupServer(t *testing.T) (*httptest.Server, *Handlers) {
	t.Helper()
	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := db.NewStore(database)
	cfg := config.DefaultConfig()
	if _, err := ops.EnsureDefault(context.Background(), store, cfg); err != nil {
		t.Fatalf("EnsureDefault: %v", err)
	}

	m := metrics.New()
	orch := &ops.Orchestrator{
		Store:     store,
		Config:    cfg,
		Capturer:  &capture.Static{Image: capture.Image{Data: []byte("png"), MIME: "image/png"}},
		OCR:       stubOCR{},
		Inference: stubLLM{},
	}
	sessions := session.NewManager(func(ctx context.Context) (string, error) {
		return ops.InitialProfileName(ctx, store)
	}, m)
	h := NewHandlers(orch, message.NewDispatcher(orch, time.Second, nil, m), sessions, m, nil, "test")

	srv := httptest.NewServer(NewServer(h, "127.0.0.1", 0).Handler)
	t.Cleanup(srv.Close)
	return srv, h
}

func postMessage(t *testing.T, srv *httptest.Server, sessionID, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/message", strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func TestCreateSession(t *testing.T) {
	srv, h := setupServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/sessions", nil)
	resp, out := do(t, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	id, _ := out["sessionId"].(string)
	if id == "" || out["profile"] != "Default" {
		t.Errorf("response = %v", out)
	}
	if _, ok := h.sessions.Get(id); !ok {
		t.Errorf("session %q not registered", id)
	}
}

func TestDeleteSession(t *testing.T) {
	srv, h := setupServer(t)
	sess, err := h.sessions.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+sess.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if h.sessions.Len() != 0 {
		t.Errorf("sessions = %d, want 0", h.sessions.Len())
	}
}

func TestMessage_SessionCreatedOnDemand(t *testing.T) {
	srv, h := setupServer(t)

	resp, out := postMessage(t, srv, "", `{"action":"getProfile"}`)
	if resp.StatusCode != http.StatusOK || out["success"] != true {
		t.Fatalf("getProfile = %d %v", resp.StatusCode, out)
	}
	id := resp.Header.Get(SessionHeader)
	if id == "" {
		t.Fatal("session header not echoed")
	}
	if _, ok := h.sessions.Get(id); !ok {
		t.Errorf("session %q not registered", id)
	}
}

func TestMessage_SessionStateCarriesOver(t *testing.T) {
	srv, _ := setupServer(t)
	const id = "client-1"

	_, out := postMessage(t, srv, id, `{"action":"analyzeScreen"}`)
	if out["ocrText"] != "from the screen" {
		t.Fatalf("analyzeScreen = %v", out)
	}

	_, out = postMessage(t, srv, id, `{"action":"askQuestion","question":"hi"}`)
	if out["response"] != "echo: hi" {
		t.Errorf("askQuestion = %v", out)
	}

	_, out = postMessage(t, srv, id, `{"action":"history"}`)
	if turns, _ := out["turns"].([]any); len(turns) != 3 {
		t.Errorf("history = %v", out["turns"])
	}

	// Another session does not see the first one's transcript.
	_, out = postMessage(t, srv, "client-2", `{"action":"history"}`)
	if turns, _ := out["turns"].([]any); len(turns) != 0 {
		t.Errorf("client-2 history = %v", out["turns"])
	}
}

func TestMessage_FailureEnvelope(t *testing.T) {
	srv, _ := setupServer(t)

	resp, out := postMessage(t, srv, "s", `{"action":"selfDestruct"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if out["success"] != false || out["error"] != "Unknown action" || out["code"] != "INVALID_REQUEST" {
		t.Errorf("response = %v", out)
	}
}

func TestMessage_SessionIDTooLong(t *testing.T) {
	srv, _ := setupServer(t)

	resp, out := postMessage(t, srv, strings.Repeat("x", 200), `{"action":"getProfile"}`)
	if resp.StatusCode != http.StatusBadRequest || out["success"] != false {
		t.Errorf("response = %d %v", resp.StatusCode, out)
	}
}

func TestProfiles(t *testing.T) {
	srv, _ := setupServer(t)

	postMessage(t, srv, "s", `{"action":"saveProfile","profile":{"name":"Work","ollamaUrl":"http://h","model":"m","ocrLanguages":["eng"]}}`)
	postMessage(t, srv, "s", `{"action":"setProfile","profileName":"Work"}`)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/profiles", nil)
	req.Header.Set(SessionHeader, "s")
	_, out := do(t, req)
	profiles, _ := out["profiles"].([]any)
	if len(profiles) != 2 || out["current"] != "Work" {
		t.Errorf("profiles = %v", out)
	}
}

func TestExport(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/api/profiles/export")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	defer resp.Body.Close()

	if !strings.HasPrefix(resp.Header.Get("Content-Disposition"), `attachment; filename="backseat-profiles-`) {
		t.Errorf("Content-Disposition = %q", resp.Header.Get("Content-Disposition"))
	}
	var records []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("export body is not a JSON array: %v", err)
	}
	if len(records) != 1 || records[0]["name"] != "Default" {
		t.Errorf("records = %v", records)
	}
}

func TestHealthAndSecurityHeaders(t *testing.T) {
	srv, _ := setupServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	resp, out := do(t, req)
	if resp.StatusCode != http.StatusOK || out["status"] != "ok" || out["version"] != "test" {
		t.Errorf("healthz = %d %v", resp.StatusCode, out)
	}
	for _, h := range []string{"Content-Security-Policy", "X-Content-Type-Options", "X-Frame-Options"} {
		if resp.Header.Get(h) == "" {
			t.Errorf("missing %s header", h)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := setupServer(t)
	postMessage(t, srv, "s", `{"action":"getProfile"}`)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	var b strings.Builder
	if _, err := io.Copy(&b, resp.Body); err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(b.String(), `backseat_messages_total{action="getProfile",outcome="ok"} 1`) {
		t.Errorf("metrics output missing message counter:\n%s", b.String())
	}
	if !strings.Contains(b.String(), "backseat_sessions_active 1") {
		t.Errorf("metrics output missing session gauge")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/api/message")
	if err != nil {
		t.Fatalf("GET /api/message: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
