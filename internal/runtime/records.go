package runtime

import (
	"reflect"
	"time"

	idspkg "github.com/drblury/magicbus/internal/runtime/ids"
	jsoncodec "github.com/drblury/magicbus/internal/runtime/jsoncodec"
)

// ReturnedMessage reports a post that matched no handler.
type ReturnedMessage struct {
	Bus           *Bus
	Message       any
	CorrelationID string
}

// FailedMessage reports a handler that returned a recoverable error. The bus
// raises one per failing handler, in delivery order.
type FailedMessage struct {
	Bus           *Bus
	Handler       Handler
	Message       any
	Failure       error
	CorrelationID string
}

// ReturnReceipt reports a post that at least one handler received without
// failing.
type ReturnReceipt struct {
	Bus           *Bus
	Message       any
	Delivered     int
	CorrelationID string
}

type (
	ReturnedSink func(ReturnedMessage)
	FailedSink   func(FailedMessage)
	ReceiptSink  func(ReturnReceipt)
)

// recordJSON is the wire shape sinks emit. The message goes out as-is and is
// expected to be JSON friendly; the bus itself is referenced by name.
type recordJSON struct {
	Kind          string `json:"kind"`
	Bus           string `json:"bus,omitempty"`
	CorrelationID string `json:"correlation_id"`
	PostedAt      string `json:"posted_at,omitempty"`
	MessageType   string `json:"message_type"`
	Message       any    `json:"message"`
	Handler       string `json:"handler,omitempty"`
	Error         string `json:"error,omitempty"`
	Delivered     int    `json:"delivered,omitempty"`
}

func newRecordJSON(kind string, bus *Bus, message any, correlationID string) recordJSON {
	rec := recordJSON{
		Kind:          kind,
		Bus:           bus.Name(),
		CorrelationID: correlationID,
		MessageType:   typeName(message),
		Message:       message,
	}
	if ts, err := idspkg.CorrelationTime(correlationID); err == nil {
		rec.PostedAt = ts.UTC().Format(time.RFC3339Nano)
	}
	return rec
}

func (r ReturnedMessage) MarshalJSON() ([]byte, error) {
	return jsoncodec.Marshal(newRecordJSON("returned", r.Bus, r.Message, r.CorrelationID))
}

func (f FailedMessage) MarshalJSON() ([]byte, error) {
	rec := newRecordJSON("failed", f.Bus, f.Message, f.CorrelationID)
	rec.Handler = HandlerName(f.Handler)
	if f.Failure != nil {
		rec.Error = f.Failure.Error()
	}
	return jsoncodec.Marshal(rec)
}

func (r ReturnReceipt) MarshalJSON() ([]byte, error) {
	rec := newRecordJSON("receipt", r.Bus, r.Message, r.CorrelationID)
	rec.Delivered = r.Delivered
	return jsoncodec.Marshal(rec)
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
