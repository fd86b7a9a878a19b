package alert

import (
	"context"
	"errors"
	"testing"
)

func TestScopeFlashesOnNormalReturn(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	err := Scope(context.Background(), sink, Defaults{}, func(b *Builder) error {
		b.Success("Saved!", "Done")
		return nil
	})
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if len(sink.calls) == 0 || sink.calls[0].Op != "remove" {
		t.Fatalf("expected flash to run, got %+v", sink.calls)
	}
}

func TestScopeFlashesOnErrorReturn(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	handlerErr := errors.New("validation failed")
	err := Scope(context.Background(), sink, Defaults{}, func(b *Builder) error {
		b.Error("Invalid input", "")
		return handlerErr
	})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if len(sink.calls) == 0 {
		t.Fatalf("expected flash on error path")
	}
}

func TestScopeJoinsFlashError(t *testing.T) {
	t.Parallel()

	flashErr := errors.New("store down")
	handlerErr := errors.New("handler")
	err := Scope(context.Background(), &recordingSink{flashErr: flashErr}, Defaults{}, func(b *Builder) error {
		b.Info("x", "")
		return handlerErr
	})
	if !errors.Is(err, flashErr) || !errors.Is(err, handlerErr) {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestScopeFlashesOnPanic(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("expected panic to propagate")
			}
		}()
		_ = Scope(context.Background(), sink, Defaults{}, func(b *Builder) error {
			b.Warning("x", "")
			panic("boom")
		})
	}()
	if len(sink.calls) == 0 {
		t.Fatalf("expected flash during panic unwinding")
	}
}

func TestScopeFlashesOnceWhenCallbackFlashes(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	err := Scope(context.Background(), sink, Defaults{}, func(b *Builder) error {
		b.Info("x", "")
		return b.Flash(context.Background())
	})
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	removes := 0
	for _, call := range sink.calls {
		if call.Op == "remove" {
			removes++
		}
	}
	if removes != 1 {
		t.Fatalf("expected exactly one flash, got %d", removes)
	}
}

func TestRequestBuilderIsLazy(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	request := NewRequest(sink, Defaults{AutocloseMS: intPtr(1000)})
	if err := request.Flash(context.Background()); err != nil {
		t.Fatalf("flash: %v", err)
	}
	if request.Used() || len(sink.calls) != 0 {
		t.Fatalf("unused request builder must not touch the sink")
	}

	builder := request.Builder()
	if request.Builder() != builder {
		t.Fatalf("expected one builder per request")
	}
	if timer, _ := builder.Get(KeyTimer); timer != 1000 {
		t.Fatalf("expected defaults applied, got %v", timer)
	}
	if err := request.Flash(context.Background()); err != nil {
		t.Fatalf("flash: %v", err)
	}
	if !request.Used() || len(sink.calls) == 0 {
		t.Fatalf("expected flash after use")
	}
}

func TestAlertHelpers(t *testing.T) {
	t.Parallel()

	request := NewRequest(&recordingSink{}, Defaults{})
	ctx := NewContext(context.Background(), request)

	builder := Alert(ctx)
	if builder != request.Builder() {
		t.Fatalf("expected request builder")
	}
	if len(builder.Config()) != 0 {
		t.Fatalf("Alert must not modify the builder")
	}

	if got := AlertMessage(ctx, "Hello", "Hi"); got != builder {
		t.Fatalf("expected request builder")
	}
	if text, _ := builder.Get(KeyText); text != "Hello" {
		t.Fatalf("unexpected text %v", text)
	}
	if title, _ := builder.Get(KeyTitle); title != "Hi" {
		t.Fatalf("unexpected title %v", title)
	}
}

func TestAlertWithoutRequestBuilder(t *testing.T) {
	t.Parallel()

	detached := AlertMessage(context.Background(), "Hello", "")
	if detached == nil {
		t.Fatalf("expected detached builder")
	}
	if err := detached.Flash(context.Background()); err != nil {
		t.Fatalf("detached flash: %v", err)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("expected no request holder in empty context")
	}
}
