package runtime

import (
	"fmt"
	"reflect"

	errspkg "github.com/drblury/magicbus/internal/runtime/errors"
)

// Handler receives messages posted to a bus. The bus compares handlers with
// ==, so the dynamic type must be comparable; pointer receivers give the
// reference identity subscribe and unsubscribe rely on.
//
// Returning an error reports a recoverable failure. Wrap the error with
// Defect, or panic, to signal a programming defect that aborts the post.
type Handler interface {
	Receive(message any) error
}

// Mailbox adapts a typed function into a Handler with reference identity.
type Mailbox[T any] struct {
	name    string
	receive func(T) error
}

// NewMailbox wraps receive. The name shows up in logs, metrics and records.
func NewMailbox[T any](name string, receive func(T) error) *Mailbox[T] {
	if name == "" {
		name = "mailbox<" + reflect.TypeFor[T]().String() + ">"
	}
	return &Mailbox[T]{name: name, receive: receive}
}

func (m *Mailbox[T]) Receive(message any) error {
	typed, ok := message.(T)
	if !ok {
		return errspkg.Defect(fmt.Errorf("%s cannot receive %T", m.name, message))
	}
	if m.receive == nil {
		return nil
	}
	return m.receive(typed)
}

func (m *Mailbox[T]) String() string {
	return m.name
}

// Discard returns a mailbox that accepts and drops messages of type T.
func Discard[T any]() *Mailbox[T] {
	return NewMailbox[T]("DISCARD-MAILBOX<"+reflect.TypeFor[T]().String()+">", nil)
}

// HandlerName returns a stable label for h: its String method when it has
// one, its dynamic type otherwise.
func HandlerName(h Handler) string {
	if h == nil {
		return "<nil>"
	}
	if s, ok := h.(fmt.Stringer); ok {
		return s.String()
	}
	return reflect.TypeOf(h).String()
}

func validateHandler(h Handler) error {
	if isNil(h) {
		return errspkg.ErrHandlerRequired
	}
	// The type check alone misses interface fields holding slices or maps,
	// which only fail once == runs.
	if !reflect.TypeOf(h).Comparable() || !reflect.ValueOf(h).Comparable() {
		return fmt.Errorf("%w: %T", errspkg.ErrHandlerNotComparable, h)
	}
	return nil
}

// isNil reports the nil interface and typed nil pointers. Nil slices, maps and
// channels are usable values and count as present.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
