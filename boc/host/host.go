// Package host describes the external value system that the boc runtime
// captures, isolates, and schedules access to. The runtime never interprets
// a value's shape directly; every host type is described through the small
// System contract in this package, the same way the teacher's engine
// package only ever touches a resource through the engine.Res contract
// rather than assuming its internal shape.
package host

import (
	"context"
	"reflect"
)

// Value is an opaque handle to a host-owned value. It is typically a
// pointer or an interface implemented by the embedder's object system.
type Value = interface{}

// TypeInfo describes the type of a Value well enough for the isolation
// wrapper to install and remove itself.
type TypeInfo interface {
	// Name returns a human-readable type name, used only for error
	// messages and logging.
	Name() string
}

// System is the contract the runtime requires from the host object/value
// system. An embedder supplies one implementation; boc/host/native.go gives
// a reference implementation over plain Go values for tests and for
// embedders without a richer object model of their own.
type System interface {
	// TypeOf returns the type of a value, or nil if the host has no
	// notion of type for it.
	TypeOf(v Value) TypeInfo

	// SetType installs (or removes, with a nil TypeInfo) the isolation
	// wrapper's type on a value. Called exactly once per newly captured
	// value.
	SetType(v Value, t TypeInfo)

	// IsImmutable reports whether v is a value the runtime may treat as
	// freely shareable without capture: none, boolean, integer, float,
	// complex, string, byte-string, range, and frozen aggregates whose
	// elements are themselves immutable.
	IsImmutable(v Value) bool

	// IterSequence yields the elements of v if it behaves like a
	// sequence (list, tuple, array). ok is false if v does not support
	// sequence iteration.
	IterSequence(v Value) (seq []Value, ok bool)

	// IterMappingValues yields the values (not keys) of v if it behaves
	// like a mapping. ok is false if v does not support mapping
	// iteration.
	IterMappingValues(v Value) (vals []Value, ok bool)

	// IterAttributes yields the user-attribute map of v, if any. ok is
	// false if v exposes no attribute dictionary.
	IterAttributes(v Value) (attrs map[string]Value, ok bool)

	// Call invokes a user thunk with the given arguments, propagating
	// any error the thunk raises. ctx carries the nested-when guard (see
	// boc.nestedWhenKey) through to the thunk's own When calls, if any.
	Call(ctx context.Context, thunk func(ctx context.Context, args ...Value) (Value, error), args ...Value) (Value, error)
}

// identityKey is the comparable key IdentityKey produces for a reference-typed
// Value. kind disambiguates two different reference kinds that happen to
// share a numeric pointer (which can't itself happen for live values, but
// costs nothing to rule out).
type identityKey struct {
	kind reflect.Kind
	ptr  uintptr
}

// IdentityKey returns a comparable key identifying v by reference rather than
// by content, for use as a map key. This matters because a host.System's
// sequence/mapping/attribute representations are typically Go maps or
// slices — values that are not themselves comparable and so cannot be used
// directly as keys in a map[Value]... or a sync.Map. Scalars and other
// already-comparable Values are returned unchanged.
func IdentityKey(v Value) interface{} {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Ptr, reflect.UnsafePointer:
		return identityKey{kind: rv.Kind(), ptr: rv.Pointer()}
	default:
		return v
	}
}
