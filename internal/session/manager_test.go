package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sweetalert/internal/clock"
	"sweetalert/internal/config"
	"sweetalert/internal/logging"
)

const testSessionID = "5f1b8a43-3c0e-4a84-8d43-8c2a0c0d9a11"

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{CookieName: "sid", CookiePath: "/", IdleTTLSec: 60}
}

type failingStore struct {
	*MemoryStore
	loadErr error
	deleted []string
}

func (s *failingStore) Load(ctx context.Context, id string) (Record, error) {
	if s.loadErr != nil {
		return Record{}, s.loadErr
	}
	return s.MemoryStore.Load(ctx, id)
}

func (s *failingStore) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return s.MemoryStore.Delete(ctx, id)
}

func TestMiddlewareFlashRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Now, time.Minute)
	manager := NewManager(store, testSessionConfig(), logging.Discard())

	var seen []string
	handler := manager.Middleware(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		s, ok := FromContext(request.Context())
		if !ok {
			t.Errorf("expected session in context")
			return
		}
		var text string
		if err := s.Decode("sweet_alert.text", &text); err == nil {
			seen = append(seen, text)
		} else {
			seen = append(seen, "")
		}
		if request.URL.Path == "/save" {
			_ = s.Flash(request.Context(), "sweet_alert.text", "Saved!")
		}
		writer.WriteHeader(http.StatusNoContent)
	}))

	first := serve(handler, "/save", nil)
	cookies := first.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "sid" || !cookies[0].HttpOnly || cookies[0].MaxAge != 60 {
		t.Fatalf("unexpected cookies %+v", cookies)
	}

	serve(handler, "/", cookies[0])
	serve(handler, "/", cookies[0])

	want := []string{"", "Saved!", ""}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("request %d: expected %q, got %q (all: %v)", i, want[i], seen[i], seen)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("expected emptied session to be deleted, store has %d", store.Len())
	}
}

func TestMiddlewareSkipsPersistingEmptyFreshSession(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Now, 0)
	manager := NewManager(store, testSessionConfig(), logging.Discard())
	handler := manager.Middleware(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	}))

	serve(handler, "/", nil)
	if store.Len() != 0 {
		t.Fatalf("expected no stored session, got %d", store.Len())
	}
}

func TestReadOnlyRequestsRestartIdleExpiry(t *testing.T) {
	t.Parallel()

	clk := clock.NewManualClock(time.Unix(1_739_000_000, 0).UTC())
	store := NewMemoryStore(clk.Now, 10*time.Second)
	cfg := testSessionConfig()
	cfg.IdleTTLSec = 10
	manager := NewManager(store, cfg, logging.Discard())

	var user string
	handler := manager.Middleware(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		s, _ := FromContext(request.Context())
		if request.URL.Path == "/login" {
			_ = s.Put("user", "ada")
		}
		user = ""
		_ = s.Decode("user", &user)
		writer.WriteHeader(http.StatusNoContent)
	}))

	cookie := serve(handler, "/login", nil).Result().Cookies()[0]
	for i := 0; i < 3; i++ {
		clk.Advance(6 * time.Second)
		serve(handler, "/", cookie)
		if user != "ada" {
			t.Fatalf("read %d: session expired during continuous activity", i)
		}
	}

	if _, err := store.Load(context.Background(), cookie.Value); err != nil {
		t.Fatalf("expected session to survive 18s of activity with a 10s idle ttl: %v", err)
	}

	clk.Advance(11 * time.Second)
	if _, err := store.Load(context.Background(), cookie.Value); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry after idle period, got %v", err)
	}
}

func TestStartReplacesInvalidAndUnknownIDs(t *testing.T) {
	t.Parallel()

	manager := NewManager(NewMemoryStore(time.Now, 0), testSessionConfig(), logging.Discard())
	manager.newID = func() string { return testSessionID }

	for _, value := range []string{"not-a-uuid", "0b0fd7a8-5d0f-4f5c-9a4e-3d6a8c2b1e77"} {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.AddCookie(&http.Cookie{Name: "sid", Value: value})
		s, err := manager.Start(context.Background(), request)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if s.ID() != testSessionID || !s.Fresh() {
			t.Fatalf("expected fresh session for %q, got %q", value, s.ID())
		}
	}
}

func TestStartDiscardsCorruptRecord(t *testing.T) {
	t.Parallel()

	store := &failingStore{MemoryStore: NewMemoryStore(time.Now, 0)}
	store.loadErr = func() error {
		_, err := decodeRecord([]byte("{"))
		return err
	}()
	manager := NewManager(store, testSessionConfig(), logging.Discard())

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(&http.Cookie{Name: "sid", Value: testSessionID})
	s, err := manager.Start(context.Background(), request)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.ID() == testSessionID {
		t.Fatalf("expected a new session id")
	}
	if len(store.deleted) != 1 || store.deleted[0] != testSessionID {
		t.Fatalf("expected corrupt session deletion, got %v", store.deleted)
	}
}

func TestMiddlewareFailsOnStoreOutage(t *testing.T) {
	t.Parallel()

	store := &failingStore{MemoryStore: NewMemoryStore(time.Now, 0), loadErr: errors.New("connection refused")}
	manager := NewManager(store, testSessionConfig(), logging.Discard())
	called := false
	handler := manager.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.AddCookie(&http.Cookie{Name: "sid", Value: testSessionID})
	response := httptest.NewRecorder()
	handler.ServeHTTP(response, request)

	if response.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, response.Code)
	}
	if called {
		t.Fatalf("handler must not run without a session")
	}
}

func serve(handler http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	request := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		request.AddCookie(cookie)
	}
	response := httptest.NewRecorder()
	handler.ServeHTTP(response, request)
	return response
}
