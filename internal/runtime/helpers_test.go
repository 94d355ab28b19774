package runtime

import (
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"

	loggingpkg "github.com/drblury/magicbus/internal/runtime/logging"
)

// Message types shared by the tests. animal is the root interface, mammal
// embeds it, and dog and cat implement both. rock implements nothing.
type animal interface {
	Sound() string
}

type mammal interface {
	animal
	Fur() bool
}

type dog struct{ Name string }

func (dog) Sound() string { return "woof" }
func (dog) Fur() bool     { return true }

type cat struct{ Name string }

func (cat) Sound() string { return "meow" }
func (cat) Fur() bool     { return true }

type rock struct{ Weight int }

// Struct hierarchy used with DeclaredHierarchy.
type event struct{ ID string }
type orderEvent struct{ ID string }
type orderPlaced struct{ ID string }

// scores shares its underlying type with []int.
type scores []int

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	clone := make([]string, len(l.calls))
	copy(clone, l.calls)
	return clone
}

// testHandler appends its name to log on every delivery and returns err.
type testHandler struct {
	name string
	log  *callLog
	err  error
}

func (h *testHandler) Receive(any) error {
	if h.log != nil {
		h.log.add(h.name)
	}
	return h.err
}

func (h *testHandler) String() string { return h.name }

func newTestHandler(name string, log *callLog) *testHandler {
	return &testHandler{name: name, log: log}
}

func failingHandler(name string, log *callLog, err error) *testHandler {
	return &testHandler{name: name, log: log, err: err}
}

// valueHandler has a non-comparable dynamic type.
type valueHandler struct {
	tags []string
}

func (valueHandler) Receive(any) error { return nil }

// labelHandler has a comparable type, but only while label holds a
// comparable value.
type labelHandler struct {
	label any
}

func (labelHandler) Receive(any) error { return nil }

// sinkCollector records everything the bus hands to its collaborators.
type sinkCollector struct {
	mu       sync.Mutex
	returned []ReturnedMessage
	failed   []FailedMessage
	receipts []ReturnReceipt
	observed []string
}

func (c *sinkCollector) Returned(r ReturnedMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.returned = append(c.returned, r)
}

func (c *sinkCollector) Failed(f FailedMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = append(c.failed, f)
}

func (c *sinkCollector) Receipt(r ReturnReceipt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receipts = append(c.receipts, r)
}

func (c *sinkCollector) Observe(h Handler, _ any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed = append(c.observed, HandlerName(h))
}

func (c *sinkCollector) Returns() []ReturnedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ReturnedMessage(nil), c.returned...)
}

func (c *sinkCollector) Failures() []FailedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]FailedMessage(nil), c.failed...)
}

func (c *sinkCollector) Receipts() []ReturnReceipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ReturnReceipt(nil), c.receipts...)
}

func (c *sinkCollector) Observed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.observed...)
}

func newTestBus(t *testing.T, opts ...Option) (*Bus, *sinkCollector) {
	t.Helper()
	c := &sinkCollector{}
	b, err := NewBus(c.Returned, c.Failed, c.Observe, opts...)
	require.NoError(t, err)
	return b, c
}

type testPublisher struct {
	mu        sync.Mutex
	published map[string][]*message.Message
	err       error
}

func (p *testPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.published == nil {
		p.published = make(map[string][]*message.Message)
	}
	p.published[topic] = append(p.published[topic], messages...)
	return nil
}

func (p *testPublisher) Close() error { return nil }

func (p *testPublisher) Messages(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*message.Message(nil), p.published[topic]...)
}

type logEntry struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

// recordingLogger keeps every entry, including those written through loggers
// derived with With.
type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.Logger {
	merged := make(loggingpkg.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &recordingLogger{mu: l.mu, entries: l.entries, fields: merged}
}

func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.add("debug", msg, nil, fields)
}

func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.add("info", msg, nil, fields)
}

func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.add("error", msg, err, fields)
}

func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.add("trace", msg, nil, fields)
}

func (l *recordingLogger) add(level, msg string, err error, fields loggingpkg.LogFields) {
	merged := make(loggingpkg.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, err: err, fields: merged})
}

// Find returns the first entry with the given level and message.
func (l *recordingLogger) Find(level, msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range *l.entries {
		if e.level == level && e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}
