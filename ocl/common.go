package ocl

// This file holds the definition of functions and types commonly used in different parts.

import (
	"github.com/gomlx/govcl/clapi"
)

// Ownership tells whether a wrapper allocated its native handle, and hence is responsible for releasing it.
type Ownership bool

const (
	// Adopted handles were allocated by someone else: they are never released by this package.
	Adopted Ownership = false

	// Owned handles were allocated by this package and are released exactly once, by Destroy.
	Owned Ownership = true
)

// String implements fmt.Stringer.
func (o Ownership) String() string {
	if o {
		return "owned"
	}
	return "adopted"
}

// nativeRef is a native handle plus its ownership flag. Release logic is gated on the flag.
type nativeRef struct {
	handle    clapi.Handle
	ownership Ownership
	released  bool
}

// release calls releaseFn if the handle is owned and not released yet. It is idempotent.
// Adopted handles are only forgotten.
func (r *nativeRef) release(releaseFn func(clapi.Handle) error) error {
	if r.released || !r.handle.IsValid() {
		return nil
	}
	r.released = true
	if r.ownership == Adopted {
		return nil
	}
	return releaseFn(r.handle)
}

// indexOf returns the index of the first element of s for which match returns true, or -1.
func indexOf[T any](s []T, match func(T) bool) int {
	for ii, v := range s {
		if match(v) {
			return ii
		}
	}
	return -1
}
