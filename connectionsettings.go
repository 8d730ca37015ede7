package gep

// ConnectionSettings governs how a Register talks to its remote registry:
// the per-request deadline and the retry/invalidation policy after failed
// reads. It is an immutable value; With* methods return a modified copy.
// The polling interval itself is not part of this value object — it lives
// on the Register, since it changes independently of how failures are
// handled.
type ConnectionSettings struct {
	// TimeoutMs bounds how long a single read or write may take. A
	// non-positive value means no timeout.
	TimeoutMs int

	// RetryReadAfterMs is the delay before the first retry following a
	// failed read. Zero or negative disables retry backoff entirely.
	RetryReadAfterMs int

	// AttemptsToPromoteReadFail is the number of consecutive read
	// failures after which a register's value is invalidated.
	AttemptsToPromoteReadFail int

	// RetryReadAfterFactor is the multiplier applied to the retry delay
	// after each additional consecutive failure, capped at the
	// register's update interval.
	RetryReadAfterFactor float64
}

// DefaultConnectionSettings is a moderate profile: a 2s per-request
// timeout, a 250ms initial retry backing off by a factor of 2 per attempt,
// invalidating the value after 2 consecutive failures.
var DefaultConnectionSettings = ConnectionSettings{
	TimeoutMs:                 2000,
	RetryReadAfterMs:          250,
	AttemptsToPromoteReadFail: 2,
	RetryReadAfterFactor:      2.0,
}

// WithTimeout returns a copy of s with TimeoutMs set from millis.
func (s ConnectionSettings) WithTimeout(millis int) ConnectionSettings {
	s.TimeoutMs = millis
	return s
}

// backoffMs computes the retry delay after failsInRow consecutive read
// failures (failsInRow >= 1), capped at updateIntervalMs. A non-positive
// RetryReadAfterMs disables retry backoff entirely, falling back to the
// normal update interval.
func (s ConnectionSettings) backoffMs(failsInRow, updateIntervalMs int) int {
	if s.RetryReadAfterMs <= 0 {
		return updateIntervalMs
	}
	delay := float64(s.RetryReadAfterMs)
	if s.RetryReadAfterFactor >= 1 {
		for i := 1; i < failsInRow; i++ {
			delay *= s.RetryReadAfterFactor
			if delay > float64(updateIntervalMs) {
				break
			}
		}
	}
	if int(delay) > updateIntervalMs {
		return updateIntervalMs
	}
	return int(delay)
}
