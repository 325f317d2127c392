package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jxucoder/autopr/internal/config"
	"github.com/jxucoder/autopr/internal/eventbus"
	"github.com/jxucoder/autopr/internal/store"
	"github.com/jxucoder/autopr/model"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return New(&config.Config{ServerAddr: ":0"}, st, eventbus.New()), st
}

func seedRun(t *testing.T, st *store.Store, id string) *model.Run {
	t.Helper()
	now := time.Now().UTC()
	run := &model.Run{
		ID:        id,
		Feature:   "add contact page",
		Branch:    "agent/20250101_0900",
		Status:    model.RunComplete,
		PRUrl:     "https://github.com/octo/app/pull/7",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateRun(run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	return run
}

func TestListRunsEmpty(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var runs []*model.Run
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected empty list, got %+v", runs)
	}
}

func TestGetRun(t *testing.T) {
	s, st := newTestServer(t)
	seedRun(t, st, "run12345")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run12345", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var run model.Run
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.ID != "run12345" || run.PRUrl != "https://github.com/octo/app/pull/7" {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRunEventsNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/missing/events", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected health response: %d %q", rec.Code, rec.Body.String())
	}
}
