package web

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"sweetalert/internal/alert"
	"sweetalert/internal/logging"
	"sweetalert/internal/session"
	"sweetalert/internal/view"
)

// AlertMiddleware gives each request a lazy alert builder and flashes it when the handler returns.
// Params: defaults provider read once per request and logger.
// Returns: middleware to mount inside session.Manager.Middleware.
func AlertMiddleware(defaults func() alert.Defaults, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()
			s, ok := session.FromContext(ctx)
			if !ok {
				logging.ForRequest(logger, request).Warn("alert middleware mounted without session; alerts are dropped")
				next.ServeHTTP(writer, request)
				return
			}

			holder := alert.NewRequest(s, defaults())
			defer func() {
				if err := holder.Flash(ctx); err != nil {
					logging.ForRequest(logger, request).Error("alert flash failed", "session", s.ID(), "error", err.Error())
				}
			}()
			next.ServeHTTP(writer, request.WithContext(alert.NewContext(ctx, holder)))
		})
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<script src="https://cdn.jsdelivr.net/npm/sweetalert2@11"></script>
</head>
<body>
<h1>{{ .Title }}</h1>
<form method="post" action="/alerts/success"><input name="text" value="Saved!"><input name="title" value="Done"><button>success</button></form>
<form method="post" action="/alerts/error"><input name="text" value="Something failed"><button>error</button></form>
<form method="post" action="/alerts/info"><input name="text" value="Shown after one more redirect"><input type="hidden" name="via" value="continue"><button>info</button></form>
<form method="post" action="/alerts/persistent"><input name="text" value="Read me"><button>persistent</button></form>
{{ .Script }}
</body>
</html>
`))

type pageData struct {
	Title  string
	Script template.HTML
}

// Handlers serves the demo pages.
type Handlers struct {
	renderer atomic.Pointer[view.Renderer]
	logger   *slog.Logger
	title    string
}

// NewHandlers creates demo handlers.
// Params: alert renderer, logger, and page title.
// Returns: handler set.
func NewHandlers(renderer *view.Renderer, logger *slog.Logger, title string) *Handlers {
	handlers := &Handlers{logger: logger, title: title}
	handlers.renderer.Store(renderer)
	return handlers
}

// SetRenderer swaps the alert renderer used by later requests.
func (h *Handlers) SetRenderer(renderer *view.Renderer) {
	h.renderer.Store(renderer)
}

// Register mounts demo routes on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /alerts/{kind}", h.Compose)
	mux.HandleFunc("GET /continue", h.Continue)
}

// Index renders a page including the alert flashed by the previous request.
func (h *Handlers) Index(writer http.ResponseWriter, request *http.Request) {
	data := pageData{Title: h.title}
	if s, ok := session.FromContext(request.Context()); ok {
		script, err := h.renderer.Load().SessionScript(s)
		if err != nil {
			logging.ForRequest(h.logger, request).Warn("pending alert not rendered", "error", err.Error())
		}
		data.Script = script
	}

	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(writer, data); err != nil {
		logging.ForRequest(h.logger, request).Error("render page failed", "error", err.Error())
	}
}

// Continue redirects to the index page without showing the pending alert yet.
// Query all=1 keeps every flashed value, otherwise only the alert is kept.
func (h *Handlers) Continue(writer http.ResponseWriter, request *http.Request) {
	if s, ok := session.FromContext(request.Context()); ok {
		if request.URL.Query().Get("all") == "1" {
			s.Reflash()
		} else {
			kept := view.KeepPending(s)
			logging.ForRequest(h.logger, request).Debug("pending alert kept", "keys", kept)
		}
	}
	http.Redirect(writer, request, "/", http.StatusSeeOther)
}

// composers maps the kind path value to the alert composition it triggers.
var composers = map[string]func(ctx context.Context, text, title string, form url.Values){
	"basic": func(ctx context.Context, text, title string, _ url.Values) {
		alert.AlertMessage(ctx, text, title)
	},
	"info": func(ctx context.Context, text, title string, _ url.Values) {
		alert.Alert(ctx).Info(text, title)
	},
	"success": func(ctx context.Context, text, title string, _ url.Values) {
		alert.Alert(ctx).Success(text, title)
	},
	"error": func(ctx context.Context, text, title string, _ url.Values) {
		alert.Alert(ctx).Error(text, title)
	},
	"warning": func(ctx context.Context, text, title string, _ url.Values) {
		alert.Alert(ctx).Warning(text, title)
	},
	"question": func(ctx context.Context, text, title string, form url.Values) {
		alert.Alert(ctx).Question(text, title).
			ConfirmButton(valueOr(form, "confirm", "Yes"), alert.WithColor("#3085d6")).
			CancelButton(valueOr(form, "cancel", "No"), alert.WithAriaLabel("Cancel"))
	},
	"persistent": func(ctx context.Context, text, title string, form url.Values) {
		alert.Alert(ctx).Warning(text, title).Persistent(form.Get("button"))
	},
}

// Compose builds an alert from form fields and redirects to the index page.
// Params: path value kind selects the alert style; form fields text, title, autoclose_ms, button labels, via.
// Returns: 303 redirect, 400 on bad form, 404 on unknown kind.
func (h *Handlers) Compose(writer http.ResponseWriter, request *http.Request) {
	compose, ok := composers[request.PathValue("kind")]
	if !ok {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	if err := request.ParseForm(); err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	var autoclose *int
	if raw := strings.TrimSpace(request.PostForm.Get("autoclose_ms")); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			writer.WriteHeader(http.StatusBadRequest)
			return
		}
		autoclose = &ms
	}

	ctx := request.Context()
	if autoclose != nil {
		alert.Alert(ctx).Autoclose(*autoclose)
	}
	compose(ctx, strings.TrimSpace(request.PostForm.Get("text")), strings.TrimSpace(request.PostForm.Get("title")), request.PostForm)
	logging.ForRequest(h.logger, request).Debug("alert composed", "kind", request.PathValue("kind"))

	target := "/"
	if request.PostForm.Get("via") == "continue" {
		target = "/continue"
	}
	http.Redirect(writer, request, target, http.StatusSeeOther)
}

func valueOr(form url.Values, key, fallback string) string {
	if value := strings.TrimSpace(form.Get(key)); value != "" {
		return value
	}
	return fallback
}
