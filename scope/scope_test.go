package scope_test

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/UnknownPrinciple/dataflow/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failOnError(t *testing.T) scope.OnErrorFunc {
	return func(err error) {
		t.Helper()
		t.Fatalf("unexpected effect error: %v", err)
	}
}

func TestBasicSignal(t *testing.T) {
	sc := scope.NewScope(failOnError(t))
	v := scope.Signal(sc, 0)
	assert.Equal(t, 0, v.Value())

	v.SetValue(13)
	assert.Equal(t, 13, v.Value())

	v.Update(func(x int) int { return x + 1 })
	assert.Equal(t, 14, v.Value())
}

// should treat writes as no-ops when the equality predicate says so, and
// consult the predicate exactly once per write
func TestEqualitySuppression(t *testing.T) {
	sc := scope.NewScope(failOnError(t))

	equalsCalls := 0
	v := scope.SignalWithEquals(sc, 13, func(prev, next int) bool {
		equalsCalls++
		return true
	})

	v.SetValue(14)
	assert.Equal(t, 13, v.Value())
	assert.Equal(t, 1, equalsCalls)
}

// should consider two NaNs equal under the default equality
func TestDefaultEqualityNaN(t *testing.T) {
	sc := scope.NewScope(failOnError(t))
	v := scope.Signal(sc, math.NaN())

	runs := 0
	scope.Watch(sc, func() (scope.CleanupFunc, error) {
		v.Value()
		runs++
		return nil, nil
	})
	require.Equal(t, 1, runs)

	v.SetValue(math.NaN())
	assert.Equal(t, 1, runs)

	v.SetValue(1.5)
	assert.Equal(t, 2, runs)
}

// should only re-run the watcher whose dependency changed
func TestIndependentWatchers(t *testing.T) {
	sc := scope.NewScope(failOnError(t))
	a := scope.Signal(sc, 13)
	b := scope.Signal(sc, 42)

	var wa, wb []int
	scope.Watch(sc, func() (scope.CleanupFunc, error) {
		wa = append(wa, a.Value())
		return nil, nil
	})
	scope.Watch(sc, func() (scope.CleanupFunc, error) {
		wb = append(wb, b.Value())
		return nil, nil
	})

	require.Equal(t, []int{13}, wa)
	require.Equal(t, []int{42}, wb)

	a.SetValue(14)
	assert.Equal(t, []int{13, 14}, wa)
	assert.Equal(t, []int{42}, wb)

	b.SetValue(43)
	assert.Equal(t, []int{13, 14}, wa)
	assert.Equal(t, []int{42, 43}, wb)
}

// should extend the digest with another pass when a watcher writes a signal
func TestReentrantWrite(t *testing.T) {
	sc := scope.NewScope(failOnError(t))
	a := scope.Signal(sc, false)
	b := scope.Signal(sc, 100)

	var wa []bool
	var wb []int
	scope.Watch(sc, func() (scope.CleanupFunc, error) {
		wb = append(wb, b.Value())
		return nil, nil
	})
	scope.Watch(sc, func() (scope.CleanupFunc, error) {
		wa = append(wa, a.Value())
		if a.Value() {
			b.SetValue(200)
		}
		return nil, nil
	})

	require.Equal(t, []bool{false}, wa)
	require.Equal(t, []int{100}, wb)

	a.SetValue(true)
	assert.Equal(t, []bool{false, true}, wa)
	assert.Equal(t, []int{100, 200}, wb)
}

// should recompute each branch of a diamond at most once per change
func TestDiamond(t *testing.T) {
	sc := scope.NewScope(failOnError(t))
	name := scope.Signal(sc, "John Doe")

	first := scope.Derive(sc, func(string) string {
		return strings.Split(name.Value(), " ")[0]
	})
	last := scope.Derive(sc, func(string) string {
		return strings.Split(name.Value(), " ")[1]
	})

	fullRuns := 0
	full := scope.Derive(sc, func(string) string {
		fullRuns++
		return first.Value() + "/" + last.Value()
	})

	assert.Equal(t, "John/Doe", full.Value())
	assert.Equal(t, 1, fullRuns)

	name.SetValue("Bob Fisher")
	assert.Equal(t, "Bob/Fisher", full.Value())
	assert.Equal(t, 2, fullRuns)
}

// should let a derivation be overridden until its upstream next changes
func TestWritableDerivation(t *testing.T) {
	sc := scope.NewScope(failOnError(t))
	a := scope.Signal(sc, 13)
	b := scope.Derive(sc, func(int) int { return a.Value() * 2 })

	var w []int
	scope.Watch(sc, func() (scope.CleanupFunc, error) {
		w = append(w, b.Value())
		return nil, nil
	})

	require.Equal(t, 26, b.Value())
	require.Equal(t, []int{26}, w)

	b.SetValue(100)
	assert.Equal(t, 100, b.Value())
	assert.Equal(t, []int{26, 100}, w)

	a.SetValue(26)
	assert.Equal(t, 52, b.Value())
	assert.Equal(t, []int{26, 100, 52}, w)
}

// should not touch sibling derivations when one is overridden
func TestBailoutThroughDerivation(t *testing.T) {
	sc := scope.NewScope(failOnError(t))
	a := scope.Signal(sc, 0)

	bEvals, cmEvals, dmEvals := 0, 0, 0
	b := scope.Derive(sc, func(int) int {
		bEvals++
		return a.Value()
	})
	scope.Derive(sc, func(int) int {
		cmEvals++
		return a.Value()
	})
	scope.Derive(sc, func(int) int {
		dmEvals++
		return b.Value()
	})

	require.Equal(t, 1, bEvals)
	require.Equal(t, 1, cmEvals)
	require.Equal(t, 1, dmEvals)

	b.SetValue(123)
	assert.Equal(t, 1, bEvals)
	assert.Equal(t, 1, cmEvals)
	assert.Equal(t, 2, dmEvals)

	a.SetValue(124)
	assert.Equal(t, 2, bEvals)
	assert.Equal(t, 2, cmEvals)
	assert.Equal(t, 3, dmEvals)
}

// should prune downstream work when a derivation's equality reports
// unchanged, even though its input changed
func TestEqualityPrunesDownstream(t *testing.T) {
	sc := scope.NewScope(failOnError(t))
	s := scope.Signal(sc, 1)
	positive := scope.Derive(sc, func(bool) bool { return s.Value() > 0 })

	runs := 0
	scope.Watch(sc, func() (scope.CleanupFunc, error) {
		positive.Value()
		runs++
		return nil, nil
	})
	require.Equal(t, 1, runs)

	s.SetValue(2) // still positive, watcher must not re-run
	assert.Equal(t, 1, runs)

	s.SetValue(-1)
	assert.Equal(t, 2, runs)
}

// should override a derivation with an updater, literal-result semantics
func TestDerivationUpdate(t *testing.T) {
	sc := scope.NewScope(failOnError(t))
	a := scope.Signal(sc, 13)
	b := scope.Derive(sc, func(int) int { return a.Value() * 2 })

	b.Update(func(prev int) int { return prev + 1 })
	assert.Equal(t, 27, b.Value())

	a.SetValue(20)
	assert.Equal(t, 40, b.Value())
}

// should pass the previously cached value to the getter
func TestGetterSeesOldValue(t *testing.T) {
	sc := scope.NewScope(failOnError(t))
	s := scope.Signal(sc, 1)

	var olds []int
	d := scope.Derive(sc, func(oldValue int) int {
		olds = append(olds, oldValue)
		return s.Value() * 10
	})

	s.SetValue(2)
	assert.Equal(t, 20, d.Value())
	assert.Equal(t, []int{0, 10}, olds)
}

// reads outside any evaluation must not establish dependencies
func TestUntrackedOuterRead(t *testing.T) {
	sc := scope.NewScope(failOnError(t))
	s := scope.Signal(sc, 7)
	d := scope.Derive(sc, func(int) int { return s.Value() + 1 })

	// plain reads from user code
	assert.Equal(t, 7, s.Value())
	assert.Equal(t, 8, d.Value())

	s.SetValue(9)
	assert.Equal(t, 10, d.Value())
}

func ExampleWatch() {
	sc := scope.NewScope(nil)
	count := scope.Signal(sc, 1)
	double := scope.Derive(sc, func(int) int { return count.Value() * 2 })

	scope.Watch(sc, func() (scope.CleanupFunc, error) {
		fmt.Println("double is", double.Value())
		return nil, nil
	})

	count.SetValue(2)
	// Output:
	// double is 2
	// double is 4
}
