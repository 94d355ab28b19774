package runtime

import (
	"context"
	"reflect"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/magicbus/internal/runtime/errors"
	idspkg "github.com/drblury/magicbus/internal/runtime/ids"
	loggingpkg "github.com/drblury/magicbus/internal/runtime/logging"
)

// Bus delivers posted messages to the handlers subscribed under the message's
// type or any of its ancestors, most general interest first. It is safe for
// concurrent use; Post runs every handler synchronously on the caller's
// goroutine.
type Bus struct {
	name       string
	registry   *Registry
	returned   ReturnedSink
	failed     FailedSink
	observe    Observer
	receipts   ReceiptSink
	classifier ErrorClassifier
	logger     loggingpkg.Logger
	metrics    *BusMetrics
	tracer     trace.Tracer
	logEach    bool
}

// NewBus builds a bus. The three collaborators are mandatory: returned gets
// posts nobody matched, failed gets recoverable handler errors, and observe
// sees every delivery before it happens.
func NewBus(returned ReturnedSink, failed FailedSink, observe Observer, opts ...Option) (*Bus, error) {
	if returned == nil {
		return nil, errspkg.ErrReturnedSinkRequired
	}
	if failed == nil {
		return nil, errspkg.ErrFailedSinkRequired
	}
	if observe == nil {
		return nil, errspkg.ErrObserverRequired
	}

	o := defaultBusOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.configErr != nil {
		return nil, o.configErr
	}

	b := &Bus{
		name:       o.name,
		registry:   NewRegistry(o.hierarchy, o.cacheSize),
		returned:   returned,
		failed:     failed,
		observe:    observe,
		receipts:   o.receipts,
		classifier: o.classifier,
		metrics:    o.metrics,
		tracer:     o.tracer,
		logEach:    o.logEach,
	}
	b.logger = o.logger
	if b.name != "" {
		b.logger = b.logger.With(loggingpkg.LogFields{"bus": b.name})
	}
	if b.logEach {
		b.observe = ChainObservers(LoggingObserver(b.logger), observe)
	}

	b.logger.Debug("Creating message bus", loggingpkg.LogFields{
		"hierarchy":          reflect.TypeOf(o.hierarchy).String(),
		"resolve_cache_size": o.cacheSize,
		"metrics":            o.metrics != nil,
		"tracing":            o.tracer != nil,
	})
	return b, nil
}

// NewSimpleBus builds a bus that ignores delivery observations.
func NewSimpleBus(returned ReturnedSink, failed FailedSink, opts ...Option) (*Bus, error) {
	return NewBus(returned, failed, IgnoreObservation, opts...)
}

// MustNewBus is NewBus that panics on error.
func MustNewBus(returned ReturnedSink, failed FailedSink, observe Observer, opts ...Option) *Bus {
	b, err := NewBus(returned, failed, observe, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Name returns the name given with WithName or WithConfig. Safe on a nil bus.
func (b *Bus) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// Subscribe delivers messages of interest, and of every type interest is an
// ancestor of, to handler. Subscribing the same handler twice under the same
// interest is a no-op.
func (b *Bus) Subscribe(interest reflect.Type, handler Handler) error {
	added, err := b.registry.Subscribe(interest, handler)
	if err != nil {
		return err
	}
	if added {
		b.logger.Debug("Subscribed handler", loggingpkg.LogFields{
			"interest_type": interest.String(),
			"handler":       HandlerName(handler),
		})
		b.updateSubscriptionGauge(interest)
	}
	return nil
}

// Unsubscribe stops delivering interest to handler. It returns an error
// wrapping ErrNotFound when interest was never subscribed to or handler is not
// currently subscribed under it.
func (b *Bus) Unsubscribe(interest reflect.Type, handler Handler) error {
	if err := b.registry.Unsubscribe(interest, handler); err != nil {
		return err
	}
	b.logger.Debug("Unsubscribed handler", loggingpkg.LogFields{
		"interest_type": interest.String(),
		"handler":       HandlerName(handler),
	})
	b.updateSubscriptionGauge(interest)
	return nil
}

func (b *Bus) updateSubscriptionGauge(interest reflect.Type) {
	if b.metrics == nil {
		return
	}
	count := 0
	if bk, ok := b.registry.state.Load().index[interest]; ok {
		count = len(bk.load())
	}
	b.metrics.setSubscriptions(interest.String(), count)
}

// Subscribers lists, in delivery order, the handlers a message of concrete
// type would currently reach.
func (b *Bus) Subscribers(concrete reflect.Type) []Handler {
	return b.registry.Subscribers(concrete)
}

// InterestTypes lists every interest type ever subscribed to, in traversal
// order.
func (b *Bus) InterestTypes() []reflect.Type {
	return b.registry.InterestTypes()
}

// Post delivers message. See PostContext.
func (b *Bus) Post(message any) error {
	return b.PostContext(context.Background(), message)
}

// PostContext delivers message to every matching handler in order, calling
// the observer before each one. Recoverable handler errors go to the failed
// sink and delivery continues. A defect aborts the remaining deliveries and
// is returned as is; a handler panic is not recovered. When nothing matched,
// the returned sink gets the message.
//
// ctx only parents the tracing span; delivery cannot be cancelled.
func (b *Bus) PostContext(ctx context.Context, message any) error {
	if isNil(message) {
		return errspkg.ErrMessageRequired
	}

	messageType := reflect.TypeOf(message)
	typeLabel := messageType.String()
	correlationID := idspkg.NewCorrelationID()

	span := b.startSpan(ctx, typeLabel, correlationID)
	defer span.End()

	matched, succeeded := 0, 0
	for handler := range b.registry.Matching(messageType) {
		matched++
		b.observe(handler, message)

		start := time.Now()
		err := handler.Receive(message)
		elapsed := time.Since(start)
		if err == nil {
			succeeded++
			b.metrics.recordDelivered(typeLabel, HandlerName(handler), elapsed)
			continue
		}

		if b.classifier(err) == ErrorCategoryDefect {
			b.metrics.recordPosted(typeLabel, matched)
			b.metrics.recordAborted(typeLabel)
			span.RecordError(err)
			span.SetStatus(codes.Error, "delivery aborted")
			b.logger.Error("Post aborted by handler defect", err, loggingpkg.LogFields{
				"handler":        HandlerName(handler),
				"message_type":   typeLabel,
				"correlation_id": correlationID,
			})
			return err
		}

		b.metrics.recordFailed(typeLabel, HandlerName(handler), elapsed)
		span.RecordError(err, trace.WithAttributes(attribute.String("magicbus.handler", HandlerName(handler))))
		b.logger.Debug("Handler failed", loggingpkg.LogFields{
			"handler":        HandlerName(handler),
			"message_type":   typeLabel,
			"correlation_id": correlationID,
			"error":          err.Error(),
		})
		b.failed(FailedMessage{
			Bus:           b,
			Handler:       handler,
			Message:       message,
			Failure:       err,
			CorrelationID: correlationID,
		})
	}

	b.metrics.recordPosted(typeLabel, matched)
	span.SetAttributes(
		attribute.Int("magicbus.matched", matched),
		attribute.Int("magicbus.succeeded", succeeded),
	)

	if matched == 0 {
		b.metrics.recordReturned(typeLabel)
		span.SetAttributes(attribute.Bool("magicbus.returned", true))
		b.logger.Debug("Message returned", loggingpkg.LogFields{
			"message_type":   typeLabel,
			"correlation_id": correlationID,
		})
		b.returned(ReturnedMessage{
			Bus:           b,
			Message:       message,
			CorrelationID: correlationID,
		})
		return nil
	}

	if succeeded > 0 && b.receipts != nil {
		b.receipts(ReturnReceipt{
			Bus:           b,
			Message:       message,
			Delivered:     succeeded,
			CorrelationID: correlationID,
		})
	}
	return nil
}

func (b *Bus) startSpan(ctx context.Context, messageType, correlationID string) trace.Span {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.tracer == nil {
		// Non-recording span; never end the caller's span.
		return trace.SpanFromContext(context.Background())
	}
	_, span := b.tracer.Start(ctx, "magicbus.Post",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("magicbus.message_type", messageType),
			attribute.String("magicbus.correlation_id", correlationID),
		),
	)
	if b.name != "" {
		span.SetAttributes(attribute.String("magicbus.bus", b.name))
	}
	return span
}
