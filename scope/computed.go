package scope

// DerivedSignal is a memoized cell computed from other cells. It is
// evaluated once at creation and eagerly reconciled by the digest, so reads
// are always O(1). Writing it overrides the cached value until the next
// upstream change.
type DerivedSignal[T comparable] struct {
	sc     *Scope
	n      *node
	value  T
	getter func(oldValue T) T
	equals EqualsFunc[T]
}

// Derive creates a derivation with identity equality. getter receives the
// previously cached value (the zero value on the first run).
func Derive[T comparable](sc *Scope, getter func(oldValue T) T) *DerivedSignal[T] {
	return DeriveWithEquals(sc, getter, defaultEquals[T])
}

// DeriveWithEquals creates a derivation with a custom no-op predicate. The
// predicate is not consulted for the initial evaluation.
func DeriveWithEquals[T comparable](sc *Scope, getter func(oldValue T) T, equals EqualsFunc[T]) *DerivedSignal[T] {
	d := &DerivedSignal[T]{
		sc:     sc,
		getter: getter,
		equals: equals,
	}
	if sc.disposed {
		return d
	}
	d.n = sc.newNode(kindComputed)
	d.n.recompute = d.recompute
	sc.evaluate(d.n, func() {
		d.value = getter(d.value)
	})
	return d
}

// Value returns the cached value and registers a dependency if tracking.
func (d *DerivedSignal[T]) Value() T {
	if d.n != nil {
		if d.n.evaluating {
			panic("circular dependency")
		}
		d.sc.track(d.n)
	}
	return d.value
}

// recompute re-runs the getter under tracking and reports whether the
// cached value changed per the equality predicate.
func (d *DerivedSignal[T]) recompute() bool {
	old := d.value
	var next T
	d.sc.evaluate(d.n, func() {
		next = d.getter(old)
	})
	if d.equals(old, next) {
		return false
	}
	d.value = next
	return true
}

// SetValue overrides the cached value. The override holds until an upstream
// change next marks the derivation dirty, at which point the getter runs
// again. A changed override propagates like a source write.
func (d *DerivedSignal[T]) SetValue(v T) {
	if d.sc.disposed {
		return
	}
	d.n.overridden = true
	if d.equals(d.value, v) {
		return
	}
	d.value = v
	d.n.version++
	d.sc.scheduleRoot(d.n)
}

// Update overrides with the result of fn applied to the cached value.
func (d *DerivedSignal[T]) Update(fn func(prev T) T) {
	d.SetValue(fn(d.value))
}
