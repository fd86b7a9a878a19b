package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Icon selects the visual style of the dialog.
type Icon string

const (
	IconWarning  Icon = "warning"
	IconError    Icon = "error"
	IconSuccess  Icon = "success"
	IconInfo     Icon = "info"
	IconQuestion Icon = "question"
)

// Option keys understood by the dialog renderer.
const (
	KeyText                   = "text"
	KeyTitle                  = "title"
	KeyType                   = "type"
	KeyTimer                  = "timer"
	KeyTimerProgressBar       = "timerProgressBar"
	KeyShowCancelButton       = "showCancelButton"
	KeyShowConfirmButton      = "showConfirmButton"
	KeyCancelButtonText       = "confirmCancelText"
	KeyConfirmButtonText      = "confirmButtonText"
	KeyCancelButtonColor      = "cancelButtonColor"
	KeyConfirmButtonColor     = "confirmButtonColor"
	KeyCancelButtonAriaLabel  = "cancelButtonAriaLabel"
	KeyConfirmButtonAriaLabel = "confirmButtonAriaLabel"
	KeyAllowOutsideClick      = "allowOutsideClick"
)

const (
	// Namespace is the session key prefix every flashed option lives under.
	Namespace = "sweet_alert"
	// PayloadKey holds the full JSON configuration inside Namespace.
	PayloadKey = Namespace + ".alert"

	defaultPersistentText = "OK"
)

// Config is the flat option mapping of one alert.
type Config map[string]any

// Defaults carries process-wide settings read when a builder is created.
// Params: AutocloseMS is the default timer in ms; nil disables autoclose.
// Returns: defaults snapshot for New.
type Defaults struct {
	AutocloseMS *int
}

// Sink is the one-request-lifetime session store alerts are flashed into.
// Params: Remove drops a key namespace; Flash stores a value for the next request only.
// Returns: store errors, propagated unchanged by Builder.Flash.
type Sink interface {
	Remove(ctx context.Context, key string) error
	Flash(ctx context.Context, key string, value any) error
}

// Builder accumulates one alert's configuration and flashes it at most once.
// Params: sink for flash output and mutable config map.
// Returns: fluent alert builder.
type Builder struct {
	sink    Sink
	config  Config
	flashed bool
}

// New creates a builder seeded with process defaults.
// Params: sink receiving the flash output (nil gives a detached builder) and defaults.
// Returns: fresh builder.
func New(sink Sink, defaults Defaults) *Builder {
	b := &Builder{sink: sink, config: make(Config)}
	if defaults.AutocloseMS != nil {
		b.config[KeyTimer] = *defaults.AutocloseMS
	}
	return b
}

// MessageOption customizes Message.
type MessageOption func(*messageOptions)

type messageOptions struct {
	title *string
	icon  *Icon
}

// WithTitle sets the alert heading.
func WithTitle(title string) MessageOption {
	return func(o *messageOptions) { o.title = &title }
}

// WithIcon sets the alert style.
func WithIcon(icon Icon) MessageOption {
	return func(o *messageOptions) { o.icon = &icon }
}

// Message sets alert text and, when given, title and icon.
// Params: body text and optional title/icon options; absent options keep previous values.
// Returns: builder for chaining.
func (b *Builder) Message(text string, opts ...MessageOption) *Builder {
	var o messageOptions
	for _, opt := range opts {
		opt(&o)
	}

	b.config[KeyText] = text
	if o.title != nil {
		b.config[KeyTitle] = *o.title
	}
	if o.icon != nil {
		b.config[KeyType] = string(*o.icon)
	}
	return b
}

// Basic sets an untyped alert with text and title.
func (b *Builder) Basic(text, title string) *Builder {
	return b.Message(text, WithTitle(title))
}

// Info sets an info alert.
func (b *Builder) Info(text, title string) *Builder {
	return b.Message(text, WithTitle(title), WithIcon(IconInfo))
}

// Success sets a success alert.
func (b *Builder) Success(text, title string) *Builder {
	return b.Message(text, WithTitle(title), WithIcon(IconSuccess))
}

// Error sets an error alert.
func (b *Builder) Error(text, title string) *Builder {
	return b.Message(text, WithTitle(title), WithIcon(IconError))
}

// Warning sets a warning alert.
func (b *Builder) Warning(text, title string) *Builder {
	return b.Message(text, WithTitle(title), WithIcon(IconWarning))
}

// Question sets a question alert.
func (b *Builder) Question(text, title string) *Builder {
	return b.Message(text, WithTitle(title), WithIcon(IconQuestion))
}

// AutocloseOption customizes Autoclose.
type AutocloseOption func(*bool)

// WithoutProgressBar hides the countdown bar of an autoclosing alert.
func WithoutProgressBar() AutocloseOption {
	return func(progressBar *bool) { *progressBar = false }
}

// Autoclose sets the delay after which the alert dismisses itself.
// Params: milliseconds, stored as given, and options.
// Returns: builder for chaining.
func (b *Builder) Autoclose(milliseconds int, opts ...AutocloseOption) *Builder {
	progressBar := true
	for _, opt := range opts {
		opt(&progressBar)
	}
	b.config[KeyTimer] = milliseconds
	b.config[KeyTimerProgressBar] = progressBar
	return b
}

// ButtonOption customizes a cancel or confirm button.
type ButtonOption func(*buttonOptions)

type buttonOptions struct {
	color     *string
	ariaLabel *string
}

// WithColor overrides the button color.
func WithColor(color string) ButtonOption {
	return func(o *buttonOptions) { o.color = &color }
}

// WithAriaLabel sets the button accessibility label.
func WithAriaLabel(label string) ButtonOption {
	return func(o *buttonOptions) { o.ariaLabel = &label }
}

type buttonKeys struct {
	show      string
	text      string
	color     string
	ariaLabel string
}

var (
	cancelButtonKeys = buttonKeys{
		show:      KeyShowCancelButton,
		text:      KeyCancelButtonText,
		color:     KeyCancelButtonColor,
		ariaLabel: KeyCancelButtonAriaLabel,
	}
	confirmButtonKeys = buttonKeys{
		show:      KeyShowConfirmButton,
		text:      KeyConfirmButtonText,
		color:     KeyConfirmButtonColor,
		ariaLabel: KeyConfirmButtonAriaLabel,
	}
)

// CancelButton adds a cancel button; the alert then requires explicit dismissal.
// Params: label and optional color/aria-label overrides.
// Returns: builder for chaining.
func (b *Builder) CancelButton(text string, opts ...ButtonOption) *Builder {
	return b.button(cancelButtonKeys, text, opts)
}

// ConfirmButton adds a confirm button; the alert then requires explicit dismissal.
// Params: label and optional color/aria-label overrides.
// Returns: builder for chaining.
func (b *Builder) ConfirmButton(text string, opts ...ButtonOption) *Builder {
	return b.button(confirmButtonKeys, text, opts)
}

func (b *Builder) button(keys buttonKeys, text string, opts []ButtonOption) *Builder {
	var o buttonOptions
	for _, opt := range opts {
		opt(&o)
	}

	b.config[keys.show] = true
	b.config[keys.text] = text
	if o.color != nil {
		b.config[keys.color] = *o.color
	}
	if o.ariaLabel != nil {
		b.config[keys.ariaLabel] = *o.ariaLabel
	}

	b.CloseOnClickOutside(false)
	b.removeTimer()
	return b
}

// CloseOnClickOutside toggles dismissal by clicking outside the dialog.
func (b *Builder) CloseOnClickOutside(value bool) *Builder {
	b.config[KeyAllowOutsideClick] = value
	return b
}

// Persistent keeps the alert open until its confirm button is pressed.
// Params: button label (empty means "OK") and optional button overrides.
// Returns: builder for chaining.
func (b *Builder) Persistent(text string, opts ...ButtonOption) *Builder {
	if text == "" {
		text = defaultPersistentText
	}
	b.ConfirmButton(text, opts...)
	b.CloseOnClickOutside(false)
	b.removeTimer()
	return b
}

func (b *Builder) removeTimer() {
	delete(b.config, KeyTimer)
}

// SetConfig merges raw options over the current configuration.
// Params: partial option map; existing keys are overwritten.
// Returns: builder for chaining.
func (b *Builder) SetConfig(partial Config) *Builder {
	for key, value := range partial {
		b.config[key] = value
	}
	return b
}

// Config returns a copy of the full configuration.
func (b *Builder) Config() Config {
	out := make(Config, len(b.config))
	for key, value := range b.config {
		out[key] = value
	}
	return out
}

// Get returns one option value.
// Params: option key.
// Returns: value and true when the key is set.
func (b *Builder) Get(key string) (any, bool) {
	value, ok := b.config[key]
	return value, ok
}

// JSON encodes the configuration with sorted keys.
// Params: none.
// Returns: JSON object or an error for values set through SetConfig that cannot be encoded.
func (b *Builder) JSON() (string, error) {
	encoded, err := json.Marshal(b.config)
	if err != nil {
		return "", fmt.Errorf("encode alert config: %w", err)
	}
	return string(encoded), nil
}

// Flashed reports whether Flash already ran.
func (b *Builder) Flashed() bool {
	return b.flashed
}

// Flash writes the configuration into the session sink under Namespace.
// Params: context for sink calls.
// Returns: first sink or encode error; later calls are no-ops returning nil.
func (b *Builder) Flash(ctx context.Context) error {
	if b.flashed {
		return nil
	}
	b.flashed = true
	if b.sink == nil {
		return nil
	}

	payload, err := b.JSON()
	if err != nil {
		return err
	}

	if err := b.sink.Remove(ctx, Namespace); err != nil {
		return fmt.Errorf("clear %s: %w", Namespace, err)
	}

	keys := make([]string, 0, len(b.config))
	for key := range b.config {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := b.sink.Flash(ctx, Namespace+"."+key, b.config[key]); err != nil {
			return fmt.Errorf("flash %s.%s: %w", Namespace, key, err)
		}
	}

	if err := b.sink.Flash(ctx, PayloadKey, payload); err != nil {
		return fmt.Errorf("flash %s: %w", PayloadKey, err)
	}
	return nil
}
