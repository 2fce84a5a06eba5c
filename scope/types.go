package scope

import (
	"math"

	mapset "github.com/deckarep/golang-set/v2"
)

type nodeKind uint8

const (
	kindSource nodeKind = iota
	kindComputed
	kindEffect
)

// CleanupFunc is returned by a watcher body to release whatever the run
// acquired. It is invoked exactly once, either before the next run or at
// scope disposal.
type CleanupFunc func()

// OnErrorFunc receives errors returned by watcher bodies.
type OnErrorFunc func(err error)

// EqualsFunc reports whether a write can be treated as a no-op.
type EqualsFunc[T any] func(prev, next T) bool

// node is the untyped graph vertex backing every signal, derivation and
// watcher. Typed state lives in the generic wrappers; the digest scheduler
// only ever sees nodes.
type node struct {
	kind  nodeKind
	order int

	// bumped each time a value change is accepted
	version uint32

	dirty      bool
	overridden bool
	evaluating bool

	deps mapset.Set[*node]
	subs mapset.Set[*node]

	// dependency versions observed at their first read in the last evaluation
	depVersions map[*node]uint32

	// recompute re-runs the getter under tracking, reports whether the
	// cached value changed. computed only.
	recompute func() bool

	// run re-executes the watcher body. effect only.
	run func()

	cleanup CleanupFunc
}

func defaultEquals[T comparable](prev, next T) bool {
	if prev == next {
		return true
	}
	// == is false for NaN against itself; two NaNs count as equal here
	return isNaN(prev) && isNaN(next)
}

func isNaN(v any) bool {
	switch x := v.(type) {
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}
