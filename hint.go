package gep

// HintStrategy governs how aggressively an AutoUpdater probes a
// collection's change hint between scheduled register polls. This is an
// extension over plain periodic polling: a collection that supports
// GetChangeHint can be probed cheaply, letting the updater skip a full
// poll cycle when nothing changed.
type HintStrategy int

const (
	// StrategySemiGreedy re-probes immediately while each hint names a
	// register the updater manages; a probe that returns no hint, or
	// names an unmanaged register, waits IntervalMs before the next
	// probe. This is the default: the zero value of HintStrategy, and of
	// HintSettings, selects it.
	StrategySemiGreedy HintStrategy = iota

	// StrategySimple probes the hint once per collection each time the
	// updater wakes for that collection, never more often than
	// IntervalMs.
	StrategySimple

	// StrategyGreedy re-probes immediately whenever a probe returns any
	// register id, managed or not, and waits IntervalMs only after a
	// probe that returns no hint, trading request volume for latency.
	StrategyGreedy
)

// HintSettings configures how an AutoUpdater uses a collection's change
// hint. A zero value disables hint probing.
type HintSettings struct {
	// Enabled turns on hint probing for the collection.
	Enabled bool

	// IntervalMs is the minimum time between two hint probes.
	IntervalMs int

	// TimeoutMs bounds how long a single hint request may take.
	TimeoutMs int

	// Strategy selects the probing cadence.
	Strategy HintStrategy
}

// WithTimeout returns a copy of s with TimeoutMs set from millis.
//
// millis is not validated here; a non-positive value silently produces
// a hint request that never times out. Validate millis before calling
// WithTimeout if that matters to the caller.
func (s HintSettings) WithTimeout(millis int) HintSettings {
	s.TimeoutMs = millis
	return s
}
