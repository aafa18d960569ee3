package apmagent

import "time"

// now returns the current wall-clock time. It exists so that tests can
// substitute a deterministic clock without threading a dependency through
// every call site.
var now = time.Now

// elapsed returns the monotonic duration since start. time.Time retains a
// monotonic reading alongside the wall clock as long as it was obtained via
// time.Now, so subtracting two such values is immune to wall-clock
// adjustments.
func elapsed(start time.Time) time.Duration {
	return now().Sub(start)
}
