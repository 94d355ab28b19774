package runtime

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	errspkg "github.com/drblury/magicbus/internal/runtime/errors"
)

// bucket holds the handlers subscribed under one interest type. The handler
// slice is copy-on-write: readers load it without locking, writers (already
// serialized by the registry mutex) publish a fresh slice.
type bucket struct {
	interest reflect.Type
	handlers atomic.Pointer[[]Handler]
}

func newBucket(interest reflect.Type) *bucket {
	b := &bucket{interest: interest}
	b.handlers.Store(&[]Handler{})
	return b
}

func (b *bucket) load() []Handler {
	return *b.handlers.Load()
}

// registryState is an immutable view of the key space. order lists buckets
// from most general to most specific; index finds a bucket by exact type.
// The resolution cache belongs to the state it was computed from, so a new
// bucket invalidates it simply by publishing a new state.
type registryState struct {
	order    []*bucket
	index    map[reflect.Type]*bucket
	resolved *lru.Cache[reflect.Type, []*bucket]
}

// Registry maps interest types to ordered handler sets. Reads never block;
// Subscribe and Unsubscribe are serialized.
type Registry struct {
	hierarchy Hierarchy
	cacheSize int

	mu    sync.Mutex
	state atomic.Pointer[registryState]
}

// NewRegistry creates an empty registry. A cacheSize of zero or less disables
// the resolution cache.
func NewRegistry(hierarchy Hierarchy, cacheSize int) *Registry {
	if hierarchy == nil {
		hierarchy = AssignableHierarchy{}
	}
	r := &Registry{hierarchy: hierarchy, cacheSize: cacheSize}
	r.state.Store(r.newState(nil, map[reflect.Type]*bucket{}))
	return r
}

func (r *Registry) newState(order []*bucket, index map[reflect.Type]*bucket) *registryState {
	st := &registryState{order: order, index: index}
	if r.cacheSize > 0 {
		// lru.New only fails for non-positive sizes.
		st.resolved, _ = lru.New[reflect.Type, []*bucket](r.cacheSize)
	}
	return st
}

// Subscribe adds handler under interest. It reports false when the pair was
// already present, in which case nothing changes.
func (r *Registry) Subscribe(interest reflect.Type, handler Handler) (bool, error) {
	if interest == nil {
		return false, errspkg.ErrInterestRequired
	}
	if err := validateHandler(handler); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bucketFor(interest)
	current := b.load()
	if slices.Contains(current, handler) {
		return false, nil
	}

	next := make([]Handler, len(current), len(current)+1)
	copy(next, current)
	next = append(next, handler)
	b.handlers.Store(&next)
	return true, nil
}

// bucketFor returns the bucket for interest, creating and positioning it when
// absent. Callers hold r.mu.
func (r *Registry) bucketFor(interest reflect.Type) *bucket {
	st := r.state.Load()
	if b, ok := st.index[interest]; ok {
		return b
	}

	b := newBucket(interest)

	// Ancestors of interest all precede its first strict descendant, because
	// the order is already topological and the hierarchy is transitive.
	pos := len(st.order)
	for i, existing := range st.order {
		if IsStrictAncestor(r.hierarchy, interest, existing.interest) {
			pos = i
			break
		}
	}

	order := make([]*bucket, 0, len(st.order)+1)
	order = append(order, st.order[:pos]...)
	order = append(order, b)
	order = append(order, st.order[pos:]...)

	index := make(map[reflect.Type]*bucket, len(st.index)+1)
	for k, v := range st.index {
		index[k] = v
	}
	index[interest] = b

	r.state.Store(r.newState(order, index))
	return b
}

// Unsubscribe removes handler from interest. The bucket stays behind even when
// it becomes empty.
func (r *Registry) Unsubscribe(interest reflect.Type, handler Handler) error {
	if interest == nil {
		return errspkg.ErrInterestRequired
	}
	if err := validateHandler(handler); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.state.Load().index[interest]
	if !ok {
		return fmt.Errorf("%w: %s", errspkg.ErrUnknownInterest, interest)
	}

	current := b.load()
	i := slices.Index(current, handler)
	if i < 0 {
		return fmt.Errorf("%w: %s under %s", errspkg.ErrNotSubscribed, HandlerName(handler), interest)
	}

	next := make([]Handler, 0, len(current)-1)
	next = append(next, current[:i]...)
	next = append(next, current[i+1:]...)
	b.handlers.Store(&next)
	return nil
}

// Matching returns the handlers a message of concrete type receives: every
// bucket whose interest is concrete or one of its ancestors, most general
// first, each bucket in subscribe order. Handler sets are captured when
// Matching is called; the sequence itself is produced lazily.
func (r *Registry) Matching(concrete reflect.Type) iter.Seq[Handler] {
	if concrete == nil {
		return func(func(Handler) bool) {}
	}

	buckets := r.resolve(concrete)
	snapshot := make([][]Handler, 0, len(buckets))
	for _, b := range buckets {
		if hs := b.load(); len(hs) > 0 {
			snapshot = append(snapshot, hs)
		}
	}

	return func(yield func(Handler) bool) {
		for _, hs := range snapshot {
			for _, h := range hs {
				if !yield(h) {
					return
				}
			}
		}
	}
}

func (r *Registry) resolve(concrete reflect.Type) []*bucket {
	st := r.state.Load()
	if st.resolved != nil {
		if cached, ok := st.resolved.Get(concrete); ok {
			return cached
		}
	}

	var matched []*bucket
	for _, b := range st.order {
		if r.hierarchy.IsAncestor(b.interest, concrete) {
			matched = append(matched, b)
		}
	}

	if st.resolved != nil {
		st.resolved.Add(concrete, matched)
	}
	return matched
}

// Subscribers collects Matching into a slice.
func (r *Registry) Subscribers(concrete reflect.Type) []Handler {
	return slices.Collect(r.Matching(concrete))
}

// InterestTypes lists every bucket key in traversal order, empty buckets
// included.
func (r *Registry) InterestTypes() []reflect.Type {
	st := r.state.Load()
	types := make([]reflect.Type, len(st.order))
	for i, b := range st.order {
		types[i] = b.interest
	}
	return types
}

// Len counts subscriptions across all buckets.
func (r *Registry) Len() int {
	n := 0
	for _, b := range r.state.Load().order {
		n += len(b.load())
	}
	return n
}
