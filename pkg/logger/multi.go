package logger

import (
	"context"
	"errors"
	"log/slog"
)

// fanout sends each record to several handlers. serve uses it to keep the
// console stream and a --log-file copy of the same records.
type fanout struct {
	handlers []slog.Handler
}

// Multi returns a logger writing every record to each of loggers. Nop
// loggers are skipped, and a single remaining logger is returned unwrapped.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	var handlers []slog.Handler
	for _, l := range loggers {
		if l == nil {
			continue
		}
		if _, nop := l.Handler().(nopHandler); nop {
			continue
		}
		handlers = append(handlers, l.Handler())
	}

	switch len(handlers) {
	case 0:
		return Nop()
	case 1:
		return slog.New(handlers[0])
	}
	return slog.New(&fanout{handlers: handlers})
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers r to every enabled handler. A failing sink, such as a full
// log file, does not stop delivery to the others; all failures are joined.
func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanout) each(fn func(slog.Handler) slog.Handler) slog.Handler {
	children := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		children[i] = fn(h)
	}
	return &fanout{handlers: children}
}
