package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"sweetalert/internal/alert"
	"sweetalert/internal/config"
	"sweetalert/internal/logging"
	"sweetalert/internal/session"
	"sweetalert/internal/view"
)

type testServer struct {
	handler http.Handler
	store   *session.MemoryStore
	cookie  *http.Cookie
}

func newTestServer(t *testing.T, autoclose *int) *testServer {
	t.Helper()

	renderer, err := view.NewRenderer("")
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	store := session.NewMemoryStore(time.Now, time.Minute)
	manager := session.NewManager(store, config.SessionConfig{CookieName: "sid", CookiePath: "/", IdleTTLSec: 60}, logging.Discard())

	mux := http.NewServeMux()
	NewHandlers(renderer, logging.Discard(), "demo").Register(mux)
	mux.HandleFunc("GET /ping", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusNoContent)
	})

	defaults := func() alert.Defaults { return alert.Defaults{AutocloseMS: autoclose} }
	return &testServer{
		handler: manager.Middleware(AlertMiddleware(defaults, logging.Discard())(mux)),
		store:   store,
	}
}

func (s *testServer) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var request *http.Request
	if form != nil {
		request = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		request = httptest.NewRequest(method, path, nil)
	}
	if s.cookie != nil {
		request.AddCookie(s.cookie)
	}
	response := httptest.NewRecorder()
	s.handler.ServeHTTP(response, request)
	for _, cookie := range response.Result().Cookies() {
		if cookie.Name == "sid" {
			s.cookie = cookie
		}
	}
	return response
}

func TestComposeThenRenderOnce(t *testing.T) {
	t.Parallel()

	autoclose := 3000
	server := newTestServer(t, &autoclose)

	response := server.do(http.MethodPost, "/alerts/success", url.Values{"text": {"Saved!"}, "title": {"Done"}})
	if response.Code != http.StatusSeeOther || response.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect, got %d %q", response.Code, response.Header().Get("Location"))
	}

	page := server.do(http.MethodGet, "/", nil)
	if page.Code != http.StatusOK {
		t.Fatalf("expected page, got %d", page.Code)
	}
	body := page.Body.String()
	for _, want := range []string{"Swal.fire(", `"type":"success"`, `"text":"Saved!"`, `"timer":3000`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in page:\n%s", want, body)
		}
	}

	again := server.do(http.MethodGet, "/", nil)
	if strings.Contains(again.Body.String(), "Swal.fire(") {
		t.Fatalf("alert must be shown only once:\n%s", again.Body.String())
	}
	if server.store.Len() != 0 {
		t.Fatalf("expected drained session to be deleted, store has %d", server.store.Len())
	}
}

func TestRequestsWithoutAlertFlashNothing(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, nil)
	server.do(http.MethodPost, "/alerts/info", url.Values{"text": {"Heads up"}})

	page := server.do(http.MethodGet, "/", nil)
	if !strings.Contains(page.Body.String(), `"text":"Heads up"`) {
		t.Fatalf("expected pending alert:\n%s", page.Body.String())
	}

	server.do(http.MethodGet, "/ping", nil)
	again := server.do(http.MethodGet, "/", nil)
	if strings.Contains(again.Body.String(), "Swal.fire(") {
		t.Fatalf("requests without alerts must not flash one:\n%s", again.Body.String())
	}
	if server.store.Len() != 0 {
		t.Fatalf("expected no stored session, store has %d", server.store.Len())
	}
}

func TestContinueKeepsPendingAlertForOneMoreRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		compose url.Values
		next    string
	}{
		{name: "alert only", compose: url.Values{"text": {"Later"}, "via": {"continue"}}, next: "/continue"},
		{name: "all flash data", compose: url.Values{"text": {"Later"}}, next: "/continue?all=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(t, nil)
			response := server.do(http.MethodPost, "/alerts/info", tt.compose)
			if response.Code != http.StatusSeeOther {
				t.Fatalf("expected redirect, got %d", response.Code)
			}

			hop := server.do(http.MethodGet, tt.next, nil)
			if hop.Code != http.StatusSeeOther || hop.Header().Get("Location") != "/" {
				t.Fatalf("expected redirect to index, got %d %q", hop.Code, hop.Header().Get("Location"))
			}

			page := server.do(http.MethodGet, "/", nil)
			if !strings.Contains(page.Body.String(), `"text":"Later"`) {
				t.Fatalf("expected kept alert on the page after continue:\n%s", page.Body.String())
			}
			again := server.do(http.MethodGet, "/", nil)
			if strings.Contains(again.Body.String(), "Swal.fire(") {
				t.Fatalf("kept alert must still be shown only once:\n%s", again.Body.String())
			}
		})
	}
}

func TestComposeAutocloseIsOptional(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, nil)
	server.do(http.MethodPost, "/alerts/success", url.Values{"text": {"Saved!"}})
	if body := server.do(http.MethodGet, "/", nil).Body.String(); strings.Contains(body, `"timer"`) {
		t.Fatalf("alert without autoclose_ms must not autoclose:\n%s", body)
	}

	server.do(http.MethodPost, "/alerts/success", url.Values{"text": {"Saved!"}, "autoclose_ms": {"0"}})
	if body := server.do(http.MethodGet, "/", nil).Body.String(); !strings.Contains(body, `"timer":0`) {
		t.Fatalf("expected explicit zero timer:\n%s", body)
	}
}

func TestPersistentAlertDropsTimer(t *testing.T) {
	t.Parallel()

	autoclose := 3000
	server := newTestServer(t, &autoclose)
	server.do(http.MethodPost, "/alerts/persistent", url.Values{"text": {"Read me"}, "autoclose_ms": {"500"}})

	body := server.do(http.MethodGet, "/", nil).Body.String()
	if strings.Contains(body, `"timer"`) {
		t.Fatalf("persistent alert must not autoclose:\n%s", body)
	}
	for _, want := range []string{`"confirmButtonText":"OK"`, `"allowOutsideClick":false`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in page:\n%s", want, body)
		}
	}
}

func TestComposeRejectsBadRequests(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, nil)
	if code := server.do(http.MethodPost, "/alerts/unknown", url.Values{"text": {"x"}}).Code; code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown kind, got %d", code)
	}
	if code := server.do(http.MethodPost, "/alerts/error", url.Values{"autoclose_ms": {"-5"}}).Code; code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative autoclose, got %d", code)
	}
	if code := server.do(http.MethodPost, "/alerts/error", url.Values{"autoclose_ms": {"soon"}}).Code; code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid autoclose, got %d", code)
	}

	body := server.do(http.MethodGet, "/", nil).Body.String()
	if strings.Contains(body, "Swal.fire(") {
		t.Fatalf("rejected requests must not flash an alert:\n%s", body)
	}
}

func TestAlertMiddlewareWithoutSession(t *testing.T) {
	t.Parallel()

	called := false
	handler := AlertMiddleware(func() alert.Defaults { return alert.Defaults{} }, logging.Discard())(
		http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			called = true
			alert.Alert(request.Context()).Success("lost", "")
			writer.WriteHeader(http.StatusNoContent)
		}),
	)

	response := httptest.NewRecorder()
	handler.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/", nil))
	if !called || response.Code != http.StatusNoContent {
		t.Fatalf("expected handler to run, called=%v code=%d", called, response.Code)
	}
}
