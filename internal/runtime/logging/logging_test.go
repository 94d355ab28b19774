package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogrusEntry(buf *bytes.Buffer) *logrus.Entry {
	base := logrus.New()
	base.SetOutput(buf)
	base.SetLevel(logrus.TraceLevel)
	base.SetFormatter(&logrus.JSONFormatter{})
	return logrus.NewEntry(base)
}

func TestEntryLoggerDelegatesToLogrus(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewEntryLogger(newLogrusEntry(buf))

	logger.Info("subscribed", LogFields{"interest_type": "main.Order"})

	child := logger.With(LogFields{"bus": "orders"})
	child.Debug("posting", LogFields{"message_type": "main.OrderPlaced"})
	child.Error("handler failed", errors.New("boom"), nil)
	child.Trace("trace", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"interest_type":"main.Order"`)
	assert.Contains(t, lines[0], `"level":"info"`)
	assert.Contains(t, lines[1], `"bus":"orders"`)
	assert.Contains(t, lines[1], `"message_type":"main.OrderPlaced"`)
	assert.Contains(t, lines[2], `"error":"boom"`)
	assert.Contains(t, lines[3], `"level":"trace"`)
}

func TestEntryLoggerWithNilFieldsReturnsSameLogger(t *testing.T) {
	logger := NewEntryLogger(newLogrusEntry(&bytes.Buffer{}))
	assert.Same(t, logger, logger.With(nil))
}

func TestWatermillLoggerDelegates(t *testing.T) {
	base := &recordingWatermillLogger{}
	logger := NewWatermillLogger(base)

	logger.Debug("dbg", LogFields{"component": "registry"})
	logger.Info("info", nil)
	logger.Trace("trace", LogFields{"trace": true})
	logger.Error("oops", errors.New("boom"), LogFields{"failed": true})
	logger.With(LogFields{"child": "yes"}).Info("child_info", nil)

	require.Len(t, base.entries, 6)
	assert.Equal(t, "debug", base.entries[0].level)
	assert.Equal(t, "registry", base.entries[0].fields["component"])
	assert.Equal(t, "with", base.entries[4].level)
	assert.Equal(t, "yes", base.entries[4].fields["child"])
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNopLogger()
	logger.With(LogFields{"a": 1}).Error("ignored", errors.New("boom"), nil)
}

func TestConstructorsPanicOnNil(t *testing.T) {
	assert.Panics(t, func() { NewWatermillLogger(nil) })
	assert.Panics(t, func() { NewSlogLogger(nil) })
	assert.Panics(t, func() { NewWatermillAdapter(nil) })
}

func TestWatermillAdapterDelegates(t *testing.T) {
	buf := &bytes.Buffer{}
	adapter := NewWatermillAdapter(NewEntryLogger(newLogrusEntry(buf)))

	adapter.Info("publisher ready", watermill.LogFields{"topic": "dead_letters"})
	adapter.With(watermill.LogFields{"child": "yes"}).Debug("child", nil)

	out := buf.String()
	assert.Contains(t, out, `"topic":"dead_letters"`)
	assert.Contains(t, out, `"child":"yes"`)
}

func TestWatermillFieldConversions(t *testing.T) {
	assert.Nil(t, toWatermillFields(nil))
	assert.Nil(t, fromWatermillFields(nil))

	wm := toWatermillFields(LogFields{"a": 1})
	assert.Equal(t, 1, wm["a"])
	assert.Equal(t, 1, fromWatermillFields(wm)["a"])
}

func TestSlogLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: LevelTrace})))

	logger.Info("hello", LogFields{"b": 2, "a": 1})
	assert.Contains(t, buf.String(), "msg=hello a=1 b=2")

	buf.Reset()
	logger.With(LogFields{"bus": "orders"}).Error("boom", errors.New("bad"), nil)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "bus=orders error=bad")

	buf.Reset()
	logger.Trace("delivered", nil)
	assert.Contains(t, buf.String(), "level=DEBUG-4")
	assert.Contains(t, buf.String(), "msg=delivered")
}

func TestSlogLoggerRespectsHandlerLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(buf, nil)))

	logger.Debug("hidden", nil)
	logger.Trace("hidden", nil)
	assert.Empty(t, buf.String())

	assert.Same(t, logger, logger.With(nil))
}

type recordingWatermillLogger struct {
	entries []watermillEntry
	parent  *recordingWatermillLogger
}

type watermillEntry struct {
	level  string
	fields watermill.LogFields
	err    error
}

func (r *recordingWatermillLogger) record(entry watermillEntry) {
	root := r
	for root.parent != nil {
		root = root.parent
	}
	root.entries = append(root.entries, entry)
}

func (r *recordingWatermillLogger) Error(_ string, err error, fields watermill.LogFields) {
	r.record(watermillEntry{level: "error", fields: fields, err: err})
}

func (r *recordingWatermillLogger) Info(_ string, fields watermill.LogFields) {
	r.record(watermillEntry{level: "info", fields: fields})
}

func (r *recordingWatermillLogger) Debug(_ string, fields watermill.LogFields) {
	r.record(watermillEntry{level: "debug", fields: fields})
}

func (r *recordingWatermillLogger) Trace(_ string, fields watermill.LogFields) {
	r.record(watermillEntry{level: "trace", fields: fields})
}

func (r *recordingWatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	r.record(watermillEntry{level: "with", fields: fields})
	return &recordingWatermillLogger{parent: r}
}
