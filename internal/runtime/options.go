package runtime

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/drblury/magicbus/internal/runtime/config"
	errspkg "github.com/drblury/magicbus/internal/runtime/errors"
	loggingpkg "github.com/drblury/magicbus/internal/runtime/logging"
)

// ErrorCategory says how the bus treats an error a handler returned.
type ErrorCategory string

const (
	// ErrorCategoryRecoverable errors become FailedMessage records and
	// delivery continues.
	ErrorCategoryRecoverable ErrorCategory = "recoverable"
	// ErrorCategoryDefect errors abort the post and are returned to the
	// caller.
	ErrorCategoryDefect ErrorCategory = "defect"
)

// ErrorClassifier maps a handler error onto an ErrorCategory.
type ErrorClassifier func(error) ErrorCategory

// DefaultErrorClassifier treats errors wrapping ErrDefect as defects and
// everything else as recoverable.
func DefaultErrorClassifier(err error) ErrorCategory {
	if errors.Is(err, errspkg.ErrDefect) {
		return ErrorCategoryDefect
	}
	return ErrorCategoryRecoverable
}

type busOptions struct {
	name       string
	hierarchy  Hierarchy
	classifier ErrorClassifier
	logger     loggingpkg.Logger
	metrics    *BusMetrics
	tracer     trace.Tracer
	receipts   ReceiptSink
	cacheSize  int
	logEach    bool
	configErr  error
}

func defaultBusOptions() busOptions {
	return busOptions{
		hierarchy:  AssignableHierarchy{},
		classifier: DefaultErrorClassifier,
		logger:     loggingpkg.NewNopLogger(),
		cacheSize:  configpkg.DefaultResolveCacheSize,
	}
}

// Option customises a Bus at construction.
type Option func(*busOptions)

// WithName labels the bus in logs, metrics and serialized records.
func WithName(name string) Option {
	return func(o *busOptions) {
		o.name = name
	}
}

// WithHierarchy replaces the default AssignableHierarchy.
func WithHierarchy(h Hierarchy) Option {
	return func(o *busOptions) {
		if h != nil {
			o.hierarchy = h
		}
	}
}

// WithErrorClassifier replaces DefaultErrorClassifier.
func WithErrorClassifier(c ErrorClassifier) Option {
	return func(o *busOptions) {
		if c != nil {
			o.classifier = c
		}
	}
}

// WithLogger sets the logger the bus reports its own activity to.
func WithLogger(l loggingpkg.Logger) Option {
	return func(o *busOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records deliveries into m. The caller registers m.
func WithMetrics(m *BusMetrics) Option {
	return func(o *busOptions) {
		o.metrics = m
	}
}

// WithTracer wraps each PostContext call in a span from t.
func WithTracer(t trace.Tracer) Option {
	return func(o *busOptions) {
		o.tracer = t
	}
}

// WithReceiptSink enables ReturnReceipt records.
func WithReceiptSink(s ReceiptSink) Option {
	return func(o *busOptions) {
		o.receipts = s
	}
}

// WithResolveCacheSize bounds the per-type resolution cache; zero disables it.
func WithResolveCacheSize(size int) Option {
	return func(o *busOptions) {
		o.cacheSize = size
	}
}

// WithConfig applies a Config: name, cache size, delivery logging, and, when
// enabled, metrics registered on the default Prometheus registerer and a
// tracer from the global OTel provider. An invalid config makes NewBus fail.
func WithConfig(cfg *configpkg.Config) Option {
	return func(o *busOptions) {
		if err := configpkg.ValidateConfig(cfg); err != nil {
			o.configErr = err
			return
		}
		if cfg.Name != "" {
			o.name = cfg.Name
		}
		o.cacheSize = cfg.ResolveCacheSize
		o.logEach = cfg.LogDeliveries
		if cfg.MetricsEnabled {
			m := NewBusMetrics(nil, cfg.MetricsNamespace, cfg.MetricsSubsystem)
			if err := m.Register(); err != nil {
				o.configErr = err
				return
			}
			o.metrics = m
		}
		if cfg.TracingEnabled {
			o.tracer = otel.Tracer(cfg.TracerName)
		}
	}
}
