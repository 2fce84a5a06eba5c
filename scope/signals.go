package scope

// WriteableSignal is a source cell holding an externally-written value.
type WriteableSignal[T comparable] struct {
	sc     *Scope
	n      *node
	value  T
	equals EqualsFunc[T]
}

// Signal creates a source cell with identity equality (two NaNs compare
// equal).
func Signal[T comparable](sc *Scope, initial T) *WriteableSignal[T] {
	return SignalWithEquals(sc, initial, defaultEquals[T])
}

// SignalWithEquals creates a source cell with a custom no-op predicate.
func SignalWithEquals[T comparable](sc *Scope, initial T, equals EqualsFunc[T]) *WriteableSignal[T] {
	s := &WriteableSignal[T]{
		sc:     sc,
		value:  initial,
		equals: equals,
	}
	if !sc.disposed {
		s.n = sc.newNode(kindSource)
	}
	return s
}

// Value returns the current value and, inside an evaluation, registers the
// signal as a dependency of the evaluating node.
func (s *WriteableSignal[T]) Value() T {
	if s.n != nil {
		s.sc.track(s.n)
	}
	return s.value
}

// SetValue stores v unless equals says the write is a no-op. The predicate
// runs exactly once per write. An accepted write returns only after the
// digest it triggered has drained.
func (s *WriteableSignal[T]) SetValue(v T) {
	if s.sc.disposed {
		return
	}
	if s.equals(s.value, v) {
		return
	}
	s.value = v
	s.n.version++
	s.sc.scheduleRoot(s.n)
}

// Update writes the result of fn applied to the current value.
func (s *WriteableSignal[T]) Update(fn func(prev T) T) {
	s.SetValue(fn(s.value))
}
