package runtime

import (
	loggingpkg "github.com/drblury/magicbus/internal/runtime/logging"
)

// Observer is called with each handler just before the bus delivers message
// to it. Observers are for telemetry only: they cannot veto or alter delivery.
type Observer func(handler Handler, message any)

// IgnoreObservation is the no-op Observer used by NewSimpleBus.
func IgnoreObservation(Handler, any) {}

// DiscardReturned drops dead letters.
func DiscardReturned(ReturnedMessage) {}

// DiscardFailed drops failure reports.
func DiscardFailed(FailedMessage) {}

// ChainObservers calls each non-nil observer in order.
func ChainObservers(observers ...Observer) Observer {
	live := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			live = append(live, o)
		}
	}
	switch len(live) {
	case 0:
		return IgnoreObservation
	case 1:
		return live[0]
	}
	return func(handler Handler, message any) {
		for _, o := range live {
			o(handler, message)
		}
	}
}

// ChainReturned fans a dead letter out to each non-nil sink in order.
func ChainReturned(sinks ...ReturnedSink) ReturnedSink {
	return chainSinks(sinks)
}

// ChainFailed fans a failure report out to each non-nil sink in order.
func ChainFailed(sinks ...FailedSink) FailedSink {
	return chainSinks(sinks)
}

// ChainReceipts fans a receipt out to each non-nil sink in order.
func ChainReceipts(sinks ...ReceiptSink) ReceiptSink {
	return chainSinks(sinks)
}

func chainSinks[S ~func(R), R any](sinks []S) S {
	live := make([]S, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	if len(live) == 1 {
		return live[0]
	}
	return func(record R) {
		for _, s := range live {
			s(record)
		}
	}
}

// LoggingObserver logs every delivery at trace level.
func LoggingObserver(logger loggingpkg.Logger) Observer {
	return func(handler Handler, message any) {
		logger.Trace("Delivering message", loggingpkg.LogFields{
			"handler":      HandlerName(handler),
			"message_type": typeName(message),
		})
	}
}

// LoggingReturnedSink logs dead letters at info level.
func LoggingReturnedSink(logger loggingpkg.Logger) ReturnedSink {
	return func(r ReturnedMessage) {
		logger.Info("Message returned: no subscribers", loggingpkg.LogFields{
			"bus":            r.Bus.Name(),
			"message_type":   typeName(r.Message),
			"correlation_id": r.CorrelationID,
		})
	}
}

// LoggingFailedSink logs failure reports at error level.
func LoggingFailedSink(logger loggingpkg.Logger) FailedSink {
	return func(f FailedMessage) {
		logger.Error("Handler failed", f.Failure, loggingpkg.LogFields{
			"bus":            f.Bus.Name(),
			"handler":        HandlerName(f.Handler),
			"message_type":   typeName(f.Message),
			"correlation_id": f.CorrelationID,
		})
	}
}
