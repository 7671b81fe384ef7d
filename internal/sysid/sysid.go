// Package sysid produces the stable 64-bit identities used to order locks and
// to key systems and named component types across the engine.
package sysid

import (
	"reflect"

	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/fasthash/fnv1a"
)

// OfType returns a stable key for a component or resource type. The key is
// derived from the fully qualified type name so that it does not change
// between processes, which keeps the canonical lock order reproducible.
func OfType(t reflect.Type) uint64 {
	return xxhash.Sum64String(typeName(t))
}

// OfName returns a stable key for a registered component name or a system
// name.
func OfName(name string) uint64 {
	return fnv1a.HashString64(name)
}

// TypeName returns the fully qualified name used to derive type keys. It is
// also the name under which systems appear in logs and errors.
func TypeName(t reflect.Type) string {
	return typeName(t)
}

func typeName(t reflect.Type) string {
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	// Unnamed and predeclared types fall back to the syntactic
	// representation, which qualifies named element types by package name.
	return t.String()
}
