// Package magicbus is an in-process publish/subscribe bus that routes messages
// by type. Handlers subscribe to an interest type; posting a message delivers it
// synchronously to every handler subscribed under the message's own type or any
// of its ancestors, the most general interest first and, within one interest,
// in subscribe order.
//
// Ancestry comes from a Hierarchy. In the default AssignableHierarchy,
// interfaces are the ancestors of the types that implement them and any is the
// root of everything. Struct types can be placed
// in an explicit is-a table with NewDeclaredHierarchy and Extends.
//
// Three collaborators are mandatory when building a bus: a ReturnedSink that
// receives posts nobody matched, a FailedSink that receives recoverable handler
// errors, and an Observer called before every delivery. A handler error wrapped
// with Defect (or a panic) is treated as a programming defect: it aborts the
// post and reaches the caller of Post unchanged.
//
// A minimal setup:
//
//	bus, err := magicbus.NewSimpleBus(magicbus.DiscardReturned, magicbus.DiscardFailed)
//	if err != nil {
//		return err
//	}
//	_, err = magicbus.SubscribeFunc(bus, "audit", func(e OrderPlaced) error {
//		return audit.Record(e)
//	})
//	...
//	err = bus.Post(OrderPlaced{ID: "42"})
//
// # Observability
//
// WithLogger accepts slog, logrus-style entries or any Watermill LoggerAdapter.
// WithMetrics records Prometheus counters and histograms per message type,
// WithTracer wraps every PostContext call in an OpenTelemetry span, and
// WithConfig turns all of these on from a Config loaded with LoadConfig.
//
// RecordWriter and Forwarder are ready-made sinks: the first writes returned
// and failed records as JSON lines, the second republishes them onto a
// Watermill publisher.
package magicbus
