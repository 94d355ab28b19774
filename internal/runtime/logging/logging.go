package logging

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/ThreeDotsLabs/watermill"
)

// LogFields represents structured logging key/value pairs.
type LogFields map[string]any

// Logger is the logging contract the bus writes to. It mirrors Watermill's
// LoggerAdapter so applications can hand over whatever they already use.
type Logger interface {
	With(fields LogFields) Logger
	Debug(msg string, fields LogFields)
	Info(msg string, fields LogFields)
	Error(msg string, err error, fields LogFields)
	Trace(msg string, fields LogFields)
}

// EntryLoggerAdapter captures entry-style loggers such as *logrus.Entry whose
// builder methods return their own concrete type.
type EntryLoggerAdapter[T any] interface {
	Error(args ...any)
	Info(args ...any)
	Debug(args ...any)
	Trace(args ...any)
	WithError(err error) T
	WithField(key string, value any) T
}

// LevelTrace is the slog level per-delivery logging is written at. It sits
// below debug, matching Watermill's trace level.
const LevelTrace = slog.LevelDebug - 4

// NewSlogLogger writes to log. Fields become attributes in key order and
// trace messages use LevelTrace.
func NewSlogLogger(log *slog.Logger) Logger {
	if log == nil {
		panic("magicbus: slog logger cannot be nil")
	}
	return &slogLogger{log: log}
}

// NewWatermillLogger wraps an existing Watermill LoggerAdapter.
func NewWatermillLogger(logger watermill.LoggerAdapter) Logger {
	if logger == nil {
		panic("magicbus: watermill logger cannot be nil")
	}
	return &watermillLogger{inner: logger}
}

// NewNopLogger discards everything. It is the bus default.
func NewNopLogger() Logger {
	return &watermillLogger{inner: watermill.NopLogger{}}
}

// NewEntryLogger wraps an entry-style logger (for example a *logrus.Entry).
func NewEntryLogger[T EntryLoggerAdapter[T]](entry T) Logger {
	if any(entry) == nil {
		panic("magicbus: entry logger cannot be nil")
	}
	return &entryLogger[T]{entry: entry}
}

type watermillLogger struct {
	inner watermill.LoggerAdapter
}

func (w *watermillLogger) With(fields LogFields) Logger {
	return &watermillLogger{inner: w.inner.With(toWatermillFields(fields))}
}

func (w *watermillLogger) Debug(msg string, fields LogFields) {
	w.inner.Debug(msg, toWatermillFields(fields))
}

func (w *watermillLogger) Info(msg string, fields LogFields) {
	w.inner.Info(msg, toWatermillFields(fields))
}

func (w *watermillLogger) Error(msg string, err error, fields LogFields) {
	w.inner.Error(msg, err, toWatermillFields(fields))
}

func (w *watermillLogger) Trace(msg string, fields LogFields) {
	w.inner.Trace(msg, toWatermillFields(fields))
}

type slogLogger struct {
	log *slog.Logger
}

func (s *slogLogger) With(fields LogFields) Logger {
	if len(fields) == 0 {
		return s
	}
	return &slogLogger{log: s.log.With(slogArgs(fields)...)}
}

func (s *slogLogger) Debug(msg string, fields LogFields) {
	s.log.Debug(msg, slogArgs(fields)...)
}

func (s *slogLogger) Info(msg string, fields LogFields) {
	s.log.Info(msg, slogArgs(fields)...)
}

func (s *slogLogger) Error(msg string, err error, fields LogFields) {
	args := slogArgs(fields)
	if err != nil {
		args = append(args, slog.Any("error", err))
	}
	s.log.Error(msg, args...)
}

func (s *slogLogger) Trace(msg string, fields LogFields) {
	s.log.Log(context.Background(), LevelTrace, msg, slogArgs(fields)...)
}

func slogArgs(fields LogFields) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields))
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, slog.Any(key, fields[key]))
	}
	return args
}

type entryLogger[T EntryLoggerAdapter[T]] struct {
	entry T
}

func (e *entryLogger[T]) With(fields LogFields) Logger {
	if len(fields) == 0 {
		return e
	}
	return &entryLogger[T]{entry: applyEntryFields(e.entry, fields)}
}

func (e *entryLogger[T]) Debug(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Debug(msg)
}

func (e *entryLogger[T]) Info(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Info(msg)
}

func (e *entryLogger[T]) Error(msg string, err error, fields LogFields) {
	logger := applyEntryFields(e.entry, fields)
	if err != nil {
		logger = logger.WithError(err)
	}
	logger.Error(msg)
}

func (e *entryLogger[T]) Trace(msg string, fields LogFields) {
	applyEntryFields(e.entry, fields).Trace(msg)
}

// NewWatermillAdapter goes the other way: it lets Watermill components, such
// as the gochannel publisher behind a forwarding sink, log through a Logger.
func NewWatermillAdapter(log Logger) watermill.LoggerAdapter {
	if log == nil {
		panic("magicbus: logger cannot be nil")
	}
	return &watermillAdapter{base: log}
}

type watermillAdapter struct {
	base Logger
}

func (a *watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.base.Error(msg, err, fromWatermillFields(fields))
}

func (a *watermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.base.Info(msg, fromWatermillFields(fields))
}

func (a *watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.base.Debug(msg, fromWatermillFields(fields))
}

func (a *watermillAdapter) Trace(msg string, fields watermill.LogFields) {
	a.base.Trace(msg, fromWatermillFields(fields))
}

func (a *watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillAdapter{base: a.base.With(fromWatermillFields(fields))}
}

func toWatermillFields(fields LogFields) watermill.LogFields {
	if len(fields) == 0 {
		return nil
	}
	return watermill.LogFields(fields)
}

func fromWatermillFields(fields watermill.LogFields) LogFields {
	if len(fields) == 0 {
		return nil
	}
	return LogFields(fields)
}

func applyEntryFields[T EntryLoggerAdapter[T]](entry T, fields LogFields) T {
	if len(fields) == 0 || any(entry) == nil {
		return entry
	}
	enriched := entry
	for key, value := range fields {
		enriched = enriched.WithField(key, value)
	}
	return enriched
}
