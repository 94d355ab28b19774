/*
Package runtime implements the message bus behind package magicbus.

# Package Structure

## Ordering (ordering.go)

A Hierarchy answers "is A an ancestor of B" for interest types. The default
AssignableHierarchy relates interfaces to their implementations;
DeclaredHierarchy adds an explicit is-a table for struct types. CompareTypes turns a hierarchy into a
partial order used only to position new buckets.

## Registry (registry.go)

Registry keeps one bucket per interest type, ordered most general first. The
key space is an immutable snapshot swapped atomically on bucket creation, and
each bucket's handler slice is copy-on-write, so Matching never blocks and
always iterates a point-in-time view.

## Bus (bus.go, options.go)

Bus validates input, walks Matching, calls the observer and the handler, and
routes results: recoverable errors to the failed sink, zero matches to the
returned sink, defects back to the caller.

## Records and sinks (records.go, hooks.go, sinks.go)

ReturnedMessage, FailedMessage and ReturnReceipt carry a per-post correlation
id and serialize to JSON. Helpers chain, log, write or forward them.

## Stats (metrics.go)

BusMetrics exports Prometheus collectors and keeps an in-memory snapshot per
message type.

# Sub-packages

  - config/: Bus configuration with validation and viper loading
  - errors/: Sentinel errors and error types
  - ids/: ULID correlation ids
  - jsoncodec/: JSON marshaling utilities
  - logging/: Logger interface and adapters
*/
package runtime
