package scope

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// A digest that keeps producing new roots past this many passes is not
// converging.
const maxDigestPasses = 100

// Scope owns a graph of reactive nodes, the tracking context and the digest
// state. All operations on one scope must happen on one goroutine.
type Scope struct {
	nodes      []*node // creation order, which is a valid topological order
	active     *node   // node currently evaluating, if any
	pauseStack []*node
	roots      []*node // sources changed but not yet propagated
	digesting  bool
	disposed   bool
	onError    OnErrorFunc
}

// NewScope creates an empty scope. onError receives errors returned by
// watcher bodies; it may be nil.
func NewScope(onError OnErrorFunc) *Scope {
	return &Scope{onError: onError}
}

func (sc *Scope) newNode(kind nodeKind) *node {
	n := &node{
		kind:        kind,
		order:       len(sc.nodes),
		deps:        mapset.NewThreadUnsafeSet[*node](),
		subs:        mapset.NewThreadUnsafeSet[*node](),
		depVersions: map[*node]uint32{},
	}
	sc.nodes = append(sc.nodes, n)
	return n
}

// track registers n as a dependency of the node currently evaluating, if
// any, and captures n's version at its first read for the change bailout.
// Reads outside an evaluation establish nothing.
func (sc *Scope) track(n *node) {
	if sc.active == nil {
		return
	}
	if !sc.active.deps.Contains(n) {
		sc.active.depVersions[n] = n.version
	}
	sc.active.deps.Add(n)
	n.subs.Add(sc.active)
}

// evaluate runs fn with n on top of the tracking stack, rebuilding n's
// dependency set from the reads fn performs. Dropped dependencies forget n
// and lose their captured version. The rebuilt set is committed even when fn
// panics, so the next run still diffs against what was actually read.
func (sc *Scope) evaluate(n *node, fn func()) {
	prevDeps := n.deps
	n.deps = mapset.NewThreadUnsafeSet[*node]()

	prev := sc.active
	sc.active = n
	n.evaluating = true

	defer func() {
		n.evaluating = false
		sc.active = prev
		for dropped := range prevDeps.Difference(n.deps).Iter() {
			dropped.subs.Remove(n)
			delete(n.depVersions, dropped)
		}
	}()

	fn()
}

// scheduleRoot records a source whose value just changed and drains the
// digest it implies. A write landing while a digest is in flight extends
// that digest with another pass instead of nesting.
func (sc *Scope) scheduleRoot(n *node) {
	if n.subs.Cardinality() == 0 {
		return
	}
	sc.roots = append(sc.roots, n)
	if sc.digesting {
		return
	}
	sc.digesting = true
	defer func() {
		sc.digesting = false
		sc.clearTransient()
	}()
	sc.digest()
}

// digest runs mark-and-propagate passes until no pass introduces new roots.
func (sc *Scope) digest() {
	for pass := 0; len(sc.roots) > 0; pass++ {
		if pass >= maxDigestPasses {
			panic(fmt.Sprintf("digest still unsettled after %d passes", maxDigestPasses))
		}
		roots := sc.roots
		sc.roots = nil
		for _, root := range roots {
			markDependents(root)
		}
		sc.propagate()
	}
}

// markDependents flags everything downstream of a changed root. The root
// itself already holds its new value and is not revisited.
func markDependents(n *node) {
	for sub := range n.subs.Iter() {
		if !sub.dirty {
			sub.dirty = true
			markDependents(sub)
		}
	}
}

// propagate visits dirty nodes in ascending creation order, so every
// dependency of a node is reconciled before the node itself runs. Dirty only
// says an upstream might have changed; the version check says whether one
// did, which is what keeps equality-suppressed branches from re-running
// anything downstream.
func (sc *Scope) propagate() {
	for _, n := range sc.nodes {
		if sc.disposed {
			return
		}
		if !n.dirty {
			continue
		}
		n.dirty = false
		switch n.kind {
		case kindComputed:
			if n.overridden {
				// the override is stale now, rejoin the computed graph
				n.overridden = false
			} else if !sc.anyDepChanged(n) {
				continue
			}
			if n.recompute() {
				n.version++
			}
		case kindEffect:
			if !sc.anyDepChanged(n) {
				continue
			}
			n.run()
		}
	}
}

func (sc *Scope) anyDepChanged(n *node) bool {
	for dep, seen := range n.depVersions {
		if dep.version != seen {
			return true
		}
	}
	return false
}

// clearTransient resets per-digest state so a future write re-enters clean,
// including after a panic escaped user code mid-digest.
func (sc *Scope) clearTransient() {
	for _, n := range sc.nodes {
		n.dirty = false
	}
	sc.roots = sc.roots[:0]
}

// Dispose invalidates the scope. Every watcher's stored cleanup runs exactly
// once, in creation order, then the graph is torn down. Reads on existing
// handles keep returning the last value; writes become no-ops. Disposing
// from inside a watcher stops the digest after that watcher returns.
func (sc *Scope) Dispose() {
	if sc.disposed {
		return
	}
	sc.disposed = true
	nodes := sc.nodes
	sc.nodes = nil
	sc.roots = nil
	sc.active = nil
	sc.pauseStack = nil
	for _, n := range nodes {
		if n.kind == kindEffect && n.cleanup != nil {
			cleanup := n.cleanup
			n.cleanup = nil
			cleanup()
		}
	}
	for _, n := range nodes {
		n.deps.Clear()
		n.subs.Clear()
		n.depVersions = nil
		n.recompute = nil
		n.run = nil
		n.dirty = false
	}
}

// Disposed reports whether Dispose has run.
func (sc *Scope) Disposed() bool {
	return sc.disposed
}

// PauseTracking suspends dependency capture until ResumeTracking.
func (sc *Scope) PauseTracking() {
	sc.pauseStack = append(sc.pauseStack, sc.active)
	sc.active = nil
}

// ResumeTracking restores dependency capture suspended by the last
// PauseTracking call.
func (sc *Scope) ResumeTracking() {
	lastIdx := len(sc.pauseStack) - 1
	sc.active = sc.pauseStack[lastIdx]
	sc.pauseStack = sc.pauseStack[:lastIdx]
}

// Untrack runs fn with dependency capture suspended and returns its result.
func Untrack[T any](sc *Scope, fn func() T) T {
	sc.PauseTracking()
	defer sc.ResumeTracking()
	return fn()
}
