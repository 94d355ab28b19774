package runtime

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/magicbus/internal/runtime/errors"
	jsoncodec "github.com/drblury/magicbus/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/magicbus/internal/runtime/logging"
)

const (
	DefaultReturnedTopic = "magicbus.returned"
	DefaultFailedTopic   = "magicbus.failed"

	MetadataKeyCorrelationID = "correlation_id"
	MetadataKeyMessageType   = "message_type"
	MetadataKeyRecordKind    = "record_kind"
	MetadataKeyBus           = "bus"
)

// RecordWriter serializes records as JSON lines onto an io.Writer. Write
// errors are logged and otherwise swallowed: a sink cannot fail a post.
type RecordWriter struct {
	enc    *jsoncodec.LineEncoder
	logger loggingpkg.Logger
}

// NewRecordWriter writes to w. A nil logger discards write errors.
func NewRecordWriter(w io.Writer, logger loggingpkg.Logger) (*RecordWriter, error) {
	if w == nil {
		return nil, errspkg.ErrWriterRequired
	}
	if logger == nil {
		logger = loggingpkg.NewNopLogger()
	}
	return &RecordWriter{enc: jsoncodec.NewLineEncoder(w), logger: logger}, nil
}

func (w *RecordWriter) Returned(r ReturnedMessage) { w.write("returned", r.CorrelationID, r) }

func (w *RecordWriter) Failed(f FailedMessage) { w.write("failed", f.CorrelationID, f) }

func (w *RecordWriter) Receipt(r ReturnReceipt) { w.write("receipt", r.CorrelationID, r) }

func (w *RecordWriter) write(kind, correlationID string, record json.Marshaler) {
	if err := w.enc.Encode(record); err != nil {
		w.logger.Error("Failed to write record", err, loggingpkg.LogFields{
			"record_kind":    kind,
			"correlation_id": correlationID,
		})
	}
}

// Forwarder republishes returned and failed records onto a Watermill
// publisher so another process can consume them. The payload is the record's
// JSON form; metadata carries the correlation id, message type and kind.
type Forwarder struct {
	publisher     message.Publisher
	returnedTopic string
	failedTopic   string
	logger        loggingpkg.Logger
}

// NewForwarder publishes on publisher. Empty topics fall back to
// DefaultReturnedTopic and DefaultFailedTopic.
func NewForwarder(publisher message.Publisher, returnedTopic, failedTopic string, logger loggingpkg.Logger) (*Forwarder, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if returnedTopic == "" {
		returnedTopic = DefaultReturnedTopic
	}
	if failedTopic == "" {
		failedTopic = DefaultFailedTopic
	}
	if logger == nil {
		logger = loggingpkg.NewNopLogger()
	}
	return &Forwarder{
		publisher:     publisher,
		returnedTopic: returnedTopic,
		failedTopic:   failedTopic,
		logger:        logger,
	}, nil
}

func (f *Forwarder) Returned(r ReturnedMessage) {
	f.publish(f.returnedTopic, "returned", r.Bus, r.Message, r.CorrelationID, r)
}

func (f *Forwarder) Failed(m FailedMessage) {
	f.publish(f.failedTopic, "failed", m.Bus, m.Message, m.CorrelationID, m)
}

func (f *Forwarder) publish(topic, kind string, bus *Bus, payload any, correlationID string, record json.Marshaler) {
	fields := loggingpkg.LogFields{
		"topic":          topic,
		"record_kind":    kind,
		"correlation_id": correlationID,
	}

	msg, err := NewRecordMessage(kind, bus, payload, correlationID, record)
	if err != nil {
		f.logger.Error("Failed to encode record", err, fields)
		return
	}
	if err := f.publisher.Publish(topic, msg); err != nil {
		f.logger.Error("Failed to forward record", err, fields)
		return
	}
	f.logger.Debug("Forwarded record", fields)
}

// NewRecordMessage converts a record into a Watermill message. One post can
// produce several failed records, so each message gets a fresh ULID as its
// Watermill message id and the correlation id travels in metadata.
func NewRecordMessage(kind string, bus *Bus, payload any, correlationID string, record json.Marshaler) (*message.Message, error) {
	body, err := record.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s record: %w", kind, err)
	}

	msg := message.NewMessage(watermill.NewULID(), body)
	msg.Metadata.Set(MetadataKeyCorrelationID, correlationID)
	msg.Metadata.Set(MetadataKeyMessageType, typeName(payload))
	msg.Metadata.Set(MetadataKeyRecordKind, kind)
	if name := bus.Name(); name != "" {
		msg.Metadata.Set(MetadataKeyBus, name)
	}
	return msg, nil
}
