package host

import (
	"context"
	"reflect"
)

// nativeType is the TypeInfo the NativeSystem installs on captured values.
// It is a thin wrapper so SetType/TypeOf have somewhere to stash the gate
// without reaching into reflect on every call.
type nativeType struct {
	name string
}

func (obj *nativeType) Name() string { return obj.name }

// NativeSystem is a reference host.System over plain Go values. It treats
// map[string]Value as the "attributes" protocol, []Value as the "sequence"
// protocol, and map[Value]Value as the "mapping" protocol. It exists so the
// region/capture/isolation machinery can be exercised and tested without a
// real embedding interpreter.
type NativeSystem struct {
	tags map[interface{}]*nativeType // keyed by IdentityKey(v), not v itself
}

// NewNativeSystem builds an empty NativeSystem.
func NewNativeSystem() *NativeSystem {
	return &NativeSystem{tags: make(map[interface{}]*nativeType)}
}

// TypeOf returns the installed nativeType for v, or nil if v has never been
// tagged.
func (obj *NativeSystem) TypeOf(v Value) TypeInfo {
	t, ok := obj.tags[IdentityKey(v)]
	if !ok {
		return nil
	}
	return t
}

// SetType installs or clears the isolation wrapper's type for v. Keyed by
// IdentityKey rather than v itself, since v is often a map or slice (the
// mapping/sequence protocols below) and neither is a valid map key.
func (obj *NativeSystem) SetType(v Value, t TypeInfo) {
	key := IdentityKey(v)
	if t == nil {
		delete(obj.tags, key)
		return
	}
	nt, ok := t.(*nativeType)
	if !ok {
		nt = &nativeType{name: t.Name()}
	}
	obj.tags[key] = nt
}

// IsImmutable implements the classification from spec.md §6: nil, bool,
// every numeric kind, string, and an array that is entirely made of
// immutable elements. Slices and maps are always mutable, whatever they hold.
func (obj *NativeSystem) IsImmutable(v Value) bool {
	if v == nil {
		return true
	}
	switch v.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr,
		float32, float64, complex64, complex128:
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if !obj.IsImmutable(rv.Index(i).Interface()) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IterSequence treats a []Value as a sequence.
func (obj *NativeSystem) IterSequence(v Value) ([]Value, bool) {
	seq, ok := v.([]Value)
	if !ok {
		return nil, false
	}
	out := make([]Value, len(seq))
	copy(out, seq)
	return out, true
}

// IterMappingValues treats a map[Value]Value as a mapping.
func (obj *NativeSystem) IterMappingValues(v Value) ([]Value, bool) {
	m, ok := v.(map[Value]Value)
	if !ok {
		return nil, false
	}
	out := make([]Value, 0, len(m))
	for _, val := range m {
		out = append(out, val)
	}
	return out, true
}

// IterAttributes treats a map[string]Value as the attribute dictionary.
func (obj *NativeSystem) IterAttributes(v Value) (map[string]Value, bool) {
	attrs, ok := v.(map[string]Value)
	if !ok {
		return nil, false
	}
	out := make(map[string]Value, len(attrs))
	for k, val := range attrs {
		out[k] = val
	}
	return out, true
}

// Call invokes thunk directly; the NativeSystem has no sandboxing concerns
// of its own.
func (obj *NativeSystem) Call(ctx context.Context, thunk func(ctx context.Context, args ...Value) (Value, error), args ...Value) (Value, error) {
	return thunk(ctx, args...)
}
