package runtime

import (
	"reflect"
)

// Hierarchy decides which interest types a message type falls under.
// IsAncestor is reflexive: every type is its own ancestor. Implementations
// must be transitive and must not change while a bus uses them.
type Hierarchy interface {
	IsAncestor(ancestor, descendant reflect.Type) bool
}

// AssignableHierarchy is the default hierarchy. A type is its own ancestor,
// and an interface is an ancestor of every type that implements it. That makes
// embedded interfaces the ancestors of the interfaces that embed them and any
// the root of everything. Concrete types never stand above other concrete
// types, even when one is assignable to the other: []int is not an ancestor of
// a named slice type, so two named types sharing an underlying type stay
// unrelated.
type AssignableHierarchy struct{}

func (AssignableHierarchy) IsAncestor(ancestor, descendant reflect.Type) bool {
	return assignable(ancestor, descendant)
}

func assignable(ancestor, descendant reflect.Type) bool {
	if descendant == ancestor {
		return true
	}
	return ancestor.Kind() == reflect.Interface && descendant.Implements(ancestor)
}

// Relation declares that Child is-a Parent.
type Relation struct {
	Child  reflect.Type
	Parent reflect.Type
}

// Extends declares that C is-a P. Go has no struct inheritance, so this is
// how struct message types join a hierarchy.
func Extends[C, P any]() Relation {
	return Relation{Child: reflect.TypeFor[C](), Parent: reflect.TypeFor[P]()}
}

// DeclaredHierarchy layers explicit relations over AssignableHierarchy. The
// relation table is closed over at construction and never changes.
type DeclaredHierarchy struct {
	parents map[reflect.Type][]reflect.Type
}

// NewDeclaredHierarchy builds a hierarchy from relations. Relations with a nil
// side are ignored; cycles are tolerated and make their members equivalent.
func NewDeclaredHierarchy(relations ...Relation) *DeclaredHierarchy {
	parents := make(map[reflect.Type][]reflect.Type, len(relations))
	for _, rel := range relations {
		if rel.Child == nil || rel.Parent == nil || rel.Child == rel.Parent {
			continue
		}
		parents[rel.Child] = append(parents[rel.Child], rel.Parent)
	}
	return &DeclaredHierarchy{parents: parents}
}

func (d *DeclaredHierarchy) IsAncestor(ancestor, descendant reflect.Type) bool {
	seen := make(map[reflect.Type]bool)
	queue := []reflect.Type{descendant}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		if assignable(ancestor, next) {
			return true
		}
		// A declared child also stands for every type it covers, so an
		// implementation of a declared interface inherits its parents.
		for child, parents := range d.parents {
			if assignable(child, next) {
				queue = append(queue, parents...)
			}
		}
	}
	return false
}

// IsStrictAncestor reports whether a is an ancestor of b and not the other way
// round. Equivalent types (identical, or interfaces with equal method sets) are
// never strict ancestors of each other.
func IsStrictAncestor(h Hierarchy, a, b reflect.Type) bool {
	return h.IsAncestor(a, b) && !h.IsAncestor(b, a)
}

// CompareTypes orders interest types from most general to most specific. It
// returns 0 for unrelated types, so it only ever decides traversal order:
// registry buckets are keyed by type identity, never by this comparison.
func CompareTypes(h Hierarchy, a, b reflect.Type) int {
	switch {
	case IsStrictAncestor(h, a, b):
		return -1
	case IsStrictAncestor(h, b, a):
		return 1
	default:
		return 0
	}
}
