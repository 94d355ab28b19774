package runtime

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/magicbus/internal/runtime/config"
)

// BusMetrics tracks delivery statistics per message type, both as Prometheus
// collectors and as an in-memory snapshot for diagnostics. A nil *BusMetrics
// is valid and records nothing.
type BusMetrics struct {
	mu sync.RWMutex

	typeCounts map[string]*MessageTypeMetrics

	postedTotal     *prometheus.CounterVec
	deliveredTotal  *prometheus.CounterVec
	returnedTotal   *prometheus.CounterVec
	failedTotal     *prometheus.CounterVec
	abortedTotal    *prometheus.CounterVec
	subscriptions   *prometheus.GaugeVec
	deliverySeconds *prometheus.HistogramVec
	handlersPerPost *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// MessageTypeMetrics holds the counters for one concrete message type.
type MessageTypeMetrics struct {
	Posted       uint64    `json:"posted"`
	Delivered    uint64    `json:"delivered"`
	Returned     uint64    `json:"returned"`
	Failed       uint64    `json:"failed"`
	Aborted      uint64    `json:"aborted"`
	LastPostedAt time.Time `json:"last_posted_at"`
}

// BusMetricsSnapshot is a point-in-time copy of BusMetrics.
type BusMetricsSnapshot struct {
	TotalPosted    uint64                         `json:"total_posted"`
	TotalDelivered uint64                         `json:"total_delivered"`
	TotalReturned  uint64                         `json:"total_returned"`
	TotalFailed    uint64                         `json:"total_failed"`
	TotalAborted   uint64                         `json:"total_aborted"`
	MessageTypes   map[string]*MessageTypeMetrics `json:"message_types"`
	CollectedAt    time.Time                      `json:"collected_at"`
}

// NewBusMetrics creates collectors under namespace/subsystem. A nil
// registerer means prometheus.DefaultRegisterer. Empty names fall back to the
// config defaults.
func NewBusMetrics(registerer prometheus.Registerer, namespace, subsystem string) *BusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = configpkg.DefaultMetricsNamespace
	}
	if subsystem == "" {
		subsystem = configpkg.DefaultMetricsSubsystem
	}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
		}, labels)
	}

	return &BusMetrics{
		typeCounts:     make(map[string]*MessageTypeMetrics),
		registerer:     registerer,
		postedTotal:    counter("posted_total", "Messages posted to the bus", "message_type"),
		deliveredTotal: counter("delivered_total", "Handler invocations that completed without error", "message_type", "handler"),
		returnedTotal:  counter("returned_total", "Posted messages that matched no handler", "message_type"),
		failedTotal:    counter("failed_total", "Handler invocations that returned a recoverable error", "message_type", "handler"),
		abortedTotal:   counter("aborted_total", "Posts aborted by a non-recoverable handler error", "message_type"),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "subscriptions",
			Help: "Handlers currently subscribed per interest type",
		}, []string{"interest_type"}),
		deliverySeconds: histogram("delivery_duration_seconds", "Time spent inside a handler",
			prometheus.ExponentialBuckets(0.00001, 4, 10), "message_type"),
		handlersPerPost: histogram("handlers_per_post", "Number of handlers matched by a single post",
			[]float64{0, 1, 2, 4, 8, 16, 32}, "message_type"),
	}
}

// Register registers the collectors. Safe to call multiple times. When a
// collector with the same description is already registered, for example by
// another bus sharing the registerer, m records into that one instead.
func (m *BusMetrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	var err error
	if m.postedTotal, err = adoptCollector(m.registerer, m.postedTotal); err != nil {
		return err
	}
	if m.deliveredTotal, err = adoptCollector(m.registerer, m.deliveredTotal); err != nil {
		return err
	}
	if m.returnedTotal, err = adoptCollector(m.registerer, m.returnedTotal); err != nil {
		return err
	}
	if m.failedTotal, err = adoptCollector(m.registerer, m.failedTotal); err != nil {
		return err
	}
	if m.abortedTotal, err = adoptCollector(m.registerer, m.abortedTotal); err != nil {
		return err
	}
	if m.subscriptions, err = adoptCollector(m.registerer, m.subscriptions); err != nil {
		return err
	}
	if m.deliverySeconds, err = adoptCollector(m.registerer, m.deliverySeconds); err != nil {
		return err
	}
	if m.handlersPerPost, err = adoptCollector(m.registerer, m.handlersPerPost); err != nil {
		return err
	}

	m.registered = true
	return nil
}

// adoptCollector registers c, or returns the collector already registered in
// its place.
func adoptCollector[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	err := registerer.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return c, err
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		return c, err
	}
	return existing, nil
}

func (m *BusMetrics) recordPosted(messageType string, matched int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	counts := m.countsFor(messageType)
	counts.Posted++
	counts.LastPostedAt = time.Now()
	m.mu.Unlock()

	m.postedTotal.WithLabelValues(messageType).Inc()
	m.handlersPerPost.WithLabelValues(messageType).Observe(float64(matched))
}

func (m *BusMetrics) recordDelivered(messageType, handler string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.countsFor(messageType).Delivered++
	m.mu.Unlock()

	m.deliveredTotal.WithLabelValues(messageType, handler).Inc()
	m.deliverySeconds.WithLabelValues(messageType).Observe(elapsed.Seconds())
}

func (m *BusMetrics) recordFailed(messageType, handler string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.countsFor(messageType).Failed++
	m.mu.Unlock()

	m.failedTotal.WithLabelValues(messageType, handler).Inc()
	m.deliverySeconds.WithLabelValues(messageType).Observe(elapsed.Seconds())
}

func (m *BusMetrics) recordReturned(messageType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.countsFor(messageType).Returned++
	m.mu.Unlock()

	m.returnedTotal.WithLabelValues(messageType).Inc()
}

func (m *BusMetrics) recordAborted(messageType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.countsFor(messageType).Aborted++
	m.mu.Unlock()

	m.abortedTotal.WithLabelValues(messageType).Inc()
}

func (m *BusMetrics) setSubscriptions(interestType string, count int) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(interestType).Set(float64(count))
}

// countsFor expects m.mu to be held for writing.
func (m *BusMetrics) countsFor(messageType string) *MessageTypeMetrics {
	if counts, ok := m.typeCounts[messageType]; ok {
		return counts
	}
	counts := &MessageTypeMetrics{}
	m.typeCounts[messageType] = counts
	return counts
}

// Snapshot returns a copy of the in-memory counters.
func (m *BusMetrics) Snapshot() BusMetricsSnapshot {
	snapshot := BusMetricsSnapshot{
		MessageTypes: make(map[string]*MessageTypeMetrics),
		CollectedAt:  time.Now(),
	}
	if m == nil {
		return snapshot
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for messageType, counts := range m.typeCounts {
		c := *counts
		snapshot.MessageTypes[messageType] = &c
		snapshot.TotalPosted += c.Posted
		snapshot.TotalDelivered += c.Delivered
		snapshot.TotalReturned += c.Returned
		snapshot.TotalFailed += c.Failed
		snapshot.TotalAborted += c.Aborted
	}
	return snapshot
}

// MessageType returns a copy of the counters for one message type, or nil.
func (m *BusMetrics) MessageType(messageType string) *MessageTypeMetrics {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if counts, ok := m.typeCounts[messageType]; ok {
		c := *counts
		return &c
	}
	return nil
}

// Reset clears all counters (useful for testing).
func (m *BusMetrics) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.typeCounts = make(map[string]*MessageTypeMetrics)
	m.postedTotal.Reset()
	m.deliveredTotal.Reset()
	m.returnedTotal.Reset()
	m.failedTotal.Reset()
	m.abortedTotal.Reset()
	m.subscriptions.Reset()
	m.deliverySeconds.Reset()
	m.handlersPerPost.Reset()
}
