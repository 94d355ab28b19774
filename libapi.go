package magicbus

import (
	"reflect"

	runtimepkg "github.com/drblury/magicbus/internal/runtime"
	configpkg "github.com/drblury/magicbus/internal/runtime/config"
	errspkg "github.com/drblury/magicbus/internal/runtime/errors"
	idspkg "github.com/drblury/magicbus/internal/runtime/ids"
	jsoncodec "github.com/drblury/magicbus/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/magicbus/internal/runtime/logging"
)

type (
	Bus     = runtimepkg.Bus
	Handler = runtimepkg.Handler
	Option  = runtimepkg.Option

	Mailbox[T any] = runtimepkg.Mailbox[T]

	Hierarchy           = runtimepkg.Hierarchy
	AssignableHierarchy = runtimepkg.AssignableHierarchy
	DeclaredHierarchy   = runtimepkg.DeclaredHierarchy
	Relation            = runtimepkg.Relation

	ReturnedMessage = runtimepkg.ReturnedMessage
	FailedMessage   = runtimepkg.FailedMessage
	ReturnReceipt   = runtimepkg.ReturnReceipt
	ReturnedSink    = runtimepkg.ReturnedSink
	FailedSink      = runtimepkg.FailedSink
	ReceiptSink     = runtimepkg.ReceiptSink
	Observer        = runtimepkg.Observer

	RecordWriter = runtimepkg.RecordWriter
	Forwarder    = runtimepkg.Forwarder

	Config                = configpkg.Config
	ConfigValidationError = errspkg.ConfigValidationError

	// Metrics
	BusMetrics         = runtimepkg.BusMetrics
	BusMetricsSnapshot = runtimepkg.BusMetricsSnapshot
	MessageTypeMetrics = runtimepkg.MessageTypeMetrics

	// Error classification
	ErrorClassifier = runtimepkg.ErrorClassifier
	ErrorCategory   = runtimepkg.ErrorCategory

	LogFields                 = loggingpkg.LogFields
	Logger                    = loggingpkg.Logger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]
)

var (
	NewBus       = runtimepkg.NewBus
	NewSimpleBus = runtimepkg.NewSimpleBus
	MustNewBus   = runtimepkg.MustNewBus

	WithName             = runtimepkg.WithName
	WithHierarchy        = runtimepkg.WithHierarchy
	WithErrorClassifier  = runtimepkg.WithErrorClassifier
	WithLogger           = runtimepkg.WithLogger
	WithMetrics          = runtimepkg.WithMetrics
	WithTracer           = runtimepkg.WithTracer
	WithReceiptSink      = runtimepkg.WithReceiptSink
	WithResolveCacheSize = runtimepkg.WithResolveCacheSize
	WithConfig           = runtimepkg.WithConfig

	DefaultErrorClassifier = runtimepkg.DefaultErrorClassifier

	NewDeclaredHierarchy = runtimepkg.NewDeclaredHierarchy
	IsStrictAncestor     = runtimepkg.IsStrictAncestor
	CompareTypes         = runtimepkg.CompareTypes

	// Collaborators
	IgnoreObservation   = runtimepkg.IgnoreObservation
	DiscardReturned     = runtimepkg.DiscardReturned
	DiscardFailed       = runtimepkg.DiscardFailed
	ChainObservers      = runtimepkg.ChainObservers
	ChainReturned       = runtimepkg.ChainReturned
	ChainFailed         = runtimepkg.ChainFailed
	ChainReceipts       = runtimepkg.ChainReceipts
	LoggingObserver     = runtimepkg.LoggingObserver
	LoggingReturnedSink = runtimepkg.LoggingReturnedSink
	LoggingFailedSink   = runtimepkg.LoggingFailedSink
	NewRecordWriter     = runtimepkg.NewRecordWriter
	NewForwarder        = runtimepkg.NewForwarder
	NewRecordMessage    = runtimepkg.NewRecordMessage

	HandlerName = runtimepkg.HandlerName

	NewBusMetrics = runtimepkg.NewBusMetrics

	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	NewSlogLogger       = loggingpkg.NewSlogLogger
	NewWatermillLogger  = loggingpkg.NewWatermillLogger
	NewWatermillAdapter = loggingpkg.NewWatermillAdapter
	NewNopLogger        = loggingpkg.NewNopLogger

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	NewCorrelationID = idspkg.NewCorrelationID
	CorrelationTime  = idspkg.CorrelationTime

	Defect = errspkg.Defect

	ErrInvalidArgument      = errspkg.ErrInvalidArgument
	ErrNotFound             = errspkg.ErrNotFound
	ErrDefect               = errspkg.ErrDefect
	ErrInterestRequired     = errspkg.ErrInterestRequired
	ErrHandlerRequired      = errspkg.ErrHandlerRequired
	ErrHandlerNotComparable = errspkg.ErrHandlerNotComparable
	ErrMessageRequired      = errspkg.ErrMessageRequired
	ErrReturnedSinkRequired = errspkg.ErrReturnedSinkRequired
	ErrFailedSinkRequired   = errspkg.ErrFailedSinkRequired
	ErrObserverRequired     = errspkg.ErrObserverRequired
	ErrPublisherRequired    = errspkg.ErrPublisherRequired
	ErrWriterRequired       = errspkg.ErrWriterRequired
	ErrUnknownInterest      = errspkg.ErrUnknownInterest
	ErrNotSubscribed        = errspkg.ErrNotSubscribed
)

// Error category constants for ErrorClassifier.
const (
	ErrorCategoryRecoverable = runtimepkg.ErrorCategoryRecoverable
	ErrorCategoryDefect      = runtimepkg.ErrorCategoryDefect
)

// LevelTrace is the slog level NewSlogLogger writes trace messages at.
const LevelTrace = loggingpkg.LevelTrace

// Record routing defaults used by Forwarder.
const (
	DefaultReturnedTopic = runtimepkg.DefaultReturnedTopic
	DefaultFailedTopic   = runtimepkg.DefaultFailedTopic

	MetadataKeyCorrelationID = runtimepkg.MetadataKeyCorrelationID
	MetadataKeyMessageType   = runtimepkg.MetadataKeyMessageType
	MetadataKeyRecordKind    = runtimepkg.MetadataKeyRecordKind
	MetadataKeyBus           = runtimepkg.MetadataKeyBus
)

// TypeOf returns the interest type for T. Use it for interface types, which
// cannot be obtained from a value.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Subscribe subscribes handler under T.
func Subscribe[T any](bus *Bus, handler Handler) error {
	return bus.Subscribe(reflect.TypeFor[T](), handler)
}

// Unsubscribe removes handler from T.
func Unsubscribe[T any](bus *Bus, handler Handler) error {
	return bus.Unsubscribe(reflect.TypeFor[T](), handler)
}

// SubscribeFunc wraps fn in a named mailbox and subscribes it under T. Keep the
// returned mailbox to unsubscribe later.
func SubscribeFunc[T any](bus *Bus, name string, fn func(T) error) (*Mailbox[T], error) {
	mb := runtimepkg.NewMailbox(name, fn)
	if err := bus.Subscribe(reflect.TypeFor[T](), mb); err != nil {
		return nil, err
	}
	return mb, nil
}

// SubscribersOf lists the handlers a message of type T would currently reach.
func SubscribersOf[T any](bus *Bus) []Handler {
	return bus.Subscribers(reflect.TypeFor[T]())
}

func NewMailbox[T any](name string, receive func(T) error) *Mailbox[T] {
	return runtimepkg.NewMailbox(name, receive)
}

func Discard[T any]() *Mailbox[T] {
	return runtimepkg.Discard[T]()
}

// Extends declares that C is-a P for NewDeclaredHierarchy.
func Extends[C, P any]() Relation {
	return runtimepkg.Extends[C, P]()
}

func NewEntryLogger[T EntryLoggerAdapter[T]](entry T) Logger {
	return loggingpkg.NewEntryLogger(entry)
}
