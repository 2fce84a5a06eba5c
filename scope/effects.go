package scope

// EffectFn is a watcher body. It may return a cleanup to run before the
// next re-run or at disposal, and an error to route to the scope's
// OnErrorFunc.
type EffectFn func() (CleanupFunc, error)

// Watch registers a watcher. The body runs once immediately under tracking;
// thereafter it re-runs whenever a digest delivers an actual change on one
// of its tracked dependencies, at most once per pass. Watchers are not
// individually removable; they live until the scope is disposed.
func Watch(sc *Scope, fn EffectFn) {
	if sc.disposed {
		return
	}
	n := sc.newNode(kindEffect)
	n.run = func() {
		if n.cleanup != nil {
			// release the previous run's resources first, untracked
			cleanup := n.cleanup
			n.cleanup = nil
			sc.PauseTracking()
			cleanup()
			sc.ResumeTracking()
		}
		sc.evaluate(n, func() {
			cleanup, err := fn()
			if err != nil {
				if sc.onError != nil {
					sc.onError(err)
				}
				return
			}
			n.cleanup = cleanup
		})
	}
	n.run()
}
