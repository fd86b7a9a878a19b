package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"sweetalert/internal/config"
)

// levels maps config level names to slog levels.
var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// output is one opened log destination.
type output struct {
	name     string
	sink     config.LogSinkConfig
	writer   io.Writer
	closer   io.Closer
	terminal bool
}

// New builds a logger writing to the configured sinks.
// Params: cfg contains console/file sink settings.
// Returns: slog logger, cleanup callback closing file sinks, and setup error.
func New(cfg config.LogConfig) (*slog.Logger, func(), error) {
	return build(cfg, os.Stdout)
}

func build(cfg config.LogConfig, terminal io.Writer) (*slog.Logger, func(), error) {
	outputs, err := openOutputs(cfg, terminal)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { closeOutputs(outputs) }

	handlers := make(fanout, 0, len(outputs))
	for _, out := range outputs {
		handler, err := newHandler(out)
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("build %s handler: %w", out.name, err)
		}
		handlers = append(handlers, handler)
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closeFn, nil
	}
	return slog.New(handlers), closeFn, nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ForRequest scopes logger to one inbound request.
func ForRequest(logger *slog.Logger, request *http.Request) *slog.Logger {
	return logger.With("method", request.Method, "path", request.URL.Path)
}

func openOutputs(cfg config.LogConfig, terminal io.Writer) ([]output, error) {
	var outputs []output
	if cfg.Console.Enabled {
		outputs = append(outputs, output{name: "console", sink: cfg.Console, writer: terminal, terminal: true})
	}
	if cfg.File.Enabled {
		file, err := os.OpenFile(cfg.File.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %q: %w", cfg.File.Path, err)
		}
		outputs = append(outputs, output{name: "file", sink: cfg.File, writer: file, closer: file})
	}
	if len(outputs) == 0 {
		return nil, errors.New("no log sinks enabled")
	}
	return outputs, nil
}

func closeOutputs(outputs []output) {
	for _, out := range outputs {
		if out.closer != nil {
			_ = out.closer.Close()
		}
	}
}

// newHandler creates the slog handler of one output.
// Terminal lines drop the timestamp and are tinted by level.
func newHandler(out output) (slog.Handler, error) {
	level, err := levelOf(out.sink.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if out.terminal {
		opts.ReplaceAttr = dropTime
	}

	switch strings.ToLower(strings.TrimSpace(out.sink.Format)) {
	case "line":
		writer := out.writer
		if out.terminal {
			writer = &tintWriter{dst: writer}
		}
		return slog.NewTextHandler(writer, opts), nil
	case "json":
		return slog.NewJSONHandler(out.writer, opts), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", out.sink.Format)
	}
}

func levelOf(name string) (slog.Level, error) {
	level, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unsupported level %q", name)
	}
	return level, nil
}

func dropTime(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return attr
}

// fanout sends each record to every handler enabled for its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range f {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range f {
		if handler.Enabled(ctx, record.Level) {
			errs = append(errs, handler.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(handler slog.Handler) slog.Handler { return handler.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(handler slog.Handler) slog.Handler { return handler.WithGroup(name) })
}

func (f fanout) each(derive func(slog.Handler) slog.Handler) fanout {
	next := make(fanout, len(f))
	for i, handler := range f {
		next[i] = derive(handler)
	}
	return next
}

const tintReset = "\x1b[0m"

// tints lists level markers of text lines and their terminal colors.
var tints = []struct {
	marker string
	color  string
}{
	{marker: "level=ERROR", color: "\x1b[31m"},
	{marker: "level=WARN", color: "\x1b[33m"},
	{marker: "level=INFO", color: "\x1b[34m"},
	{marker: "level=DEBUG", color: "\x1b[90m"},
}

// tintWriter colors whole text lines by their level.
type tintWriter struct {
	dst io.Writer
}

func (w *tintWriter) Write(line []byte) (int, error) {
	color := tintFor(line)
	if color == "" {
		return w.dst.Write(line)
	}

	var b strings.Builder
	b.Grow(len(line) + len(color) + len(tintReset))
	b.WriteString(color)
	b.Write(line[:len(line)-trailingNewline(line)])
	b.WriteString(tintReset)
	b.WriteString("\n")
	if _, err := io.WriteString(w.dst, b.String()); err != nil {
		return 0, err
	}
	return len(line), nil
}

func tintFor(line []byte) string {
	text := string(line)
	for _, tint := range tints {
		if strings.Contains(text, tint.marker) {
			return tint.color
		}
	}
	return ""
}

func trailingNewline(line []byte) int {
	if len(line) > 0 && line[len(line)-1] == '\n' {
		return 1
	}
	return 0
}
