package alert

import (
	"context"
	"errors"
)

type contextKey struct{}

// Scope runs fn with a fresh builder and flashes it on every exit path.
// Params: context, sink, defaults, and the alert-building callback.
// Returns: callback error joined with the flash error.
func Scope(ctx context.Context, sink Sink, defaults Defaults, fn func(*Builder) error) (err error) {
	builder := New(sink, defaults)
	defer func() {
		if flashErr := builder.Flash(ctx); flashErr != nil {
			err = errors.Join(err, flashErr)
		}
	}()
	return fn(builder)
}

// Request holds the builder of one inbound request.
// The builder is created on first use, so requests that never compose an alert
// leave the session untouched.
type Request struct {
	sink     Sink
	defaults Defaults
	builder  *Builder
}

// NewRequest prepares a lazy request builder.
// Params: request session sink and defaults snapshot.
// Returns: request holder.
func NewRequest(sink Sink, defaults Defaults) *Request {
	return &Request{sink: sink, defaults: defaults}
}

// Builder returns the request builder, creating it on first call.
func (r *Request) Builder() *Builder {
	if r.builder == nil {
		r.builder = New(r.sink, r.defaults)
	}
	return r.builder
}

// Used reports whether the builder was created.
func (r *Request) Used() bool {
	return r.builder != nil
}

// Flash finalizes the request builder when it was used.
// Params: context for sink calls.
// Returns: flash error.
func (r *Request) Flash(ctx context.Context) error {
	if r.builder == nil {
		return nil
	}
	return r.builder.Flash(ctx)
}

// NewContext stores a request holder in ctx.
func NewContext(ctx context.Context, request *Request) context.Context {
	return context.WithValue(ctx, contextKey{}, request)
}

// FromContext returns the request holder stored by NewContext.
func FromContext(ctx context.Context) (*Request, bool) {
	request, ok := ctx.Value(contextKey{}).(*Request)
	return request, ok && request != nil
}

// Alert returns the request builder unmodified.
// Params: request context.
// Returns: request builder, or a detached builder that never flashes when ctx carries none.
func Alert(ctx context.Context) *Builder {
	if request, ok := FromContext(ctx); ok {
		return request.Builder()
	}
	return New(nil, Defaults{})
}

// AlertMessage sets message and title on the request builder.
// Params: request context, message text, and title.
// Returns: the same builder as Alert(ctx).
func AlertMessage(ctx context.Context, message, title string) *Builder {
	return Alert(ctx).Message(message, WithTitle(title))
}
