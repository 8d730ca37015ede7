package gep

import (
	"context"
	"math"
	"sync"
	"time"
)

// defaultUpdateIntervalMs is the polling period a Register starts with.
const defaultUpdateIntervalMs = 1000

// ChangeListener is invoked after a register's cached value changes,
// outside of any lock the register holds internally.
type ChangeListener func(r *Register, value any)

// Register is one polled or written value backed by a remote registry.
// Reads populate a local cache on a schedule driven by its update interval
// and ConnectionSettings; writes go straight to the wire and are followed
// by a read that refreshes the cache with what the device reports.
type Register struct {
	collection *RegisterCollection
	id         int
	codec      Codec
	readOnly   bool
	clock      Clock

	mu                sync.Mutex
	value             any
	valid             bool
	lastValidValue    any
	hasLastValidValue bool
	updateIntervalMs  int
	settings          ConnectionSettings
	failsInRow        int
	updateTimeMillis  int64
	listener          ChangeListener
}

func newRegister(collection *RegisterCollection, id int, codec Codec, settings ConnectionSettings, readOnly bool) *Register {
	return &Register{
		collection:       collection,
		id:               id,
		codec:            codec,
		readOnly:         readOnly,
		clock:            SystemClock,
		updateIntervalMs: defaultUpdateIntervalMs,
		settings:         settings,
		// A register that has never been polled is always due: the
		// sentinel makes now-updateTimeMillis overflow negative, which
		// MillisToNextUpdate treats the same as a backward clock jump.
		updateTimeMillis: math.MinInt64,
	}
}

// ID returns the register's id within its collection.
func (r *Register) ID() int { return r.id }

// ReadOnly reports whether SetValue always fails for this register.
func (r *Register) ReadOnly() bool { return r.readOnly }

// UpdateIntervalMs returns the register's current polling period.
func (r *Register) UpdateIntervalMs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateIntervalMs
}

// SetUpdateIntervalMs changes the register's polling period. ms must be
// positive.
func (r *Register) SetUpdateIntervalMs(ms int) error {
	if ms <= 0 {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	r.updateIntervalMs = ms
	r.mu.Unlock()
	return nil
}

// ConnectionSettings returns the register's current connection settings.
func (r *Register) ConnectionSettings() ConnectionSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// SetConnectionSettings replaces the register's connection settings.
func (r *Register) SetConnectionSettings(settings ConnectionSettings) {
	r.mu.Lock()
	r.settings = settings
	r.mu.Unlock()
}

// SetChangeListener installs the callback invoked whenever UpdateValue
// observes a new value, and with a nil value when repeated read failures
// invalidate a previously valid value, replacing any listener previously
// set. Passing nil
// removes it. The listener runs synchronously, outside the register's
// lock, in the goroutine that called UpdateValue.
func (r *Register) SetChangeListener(l ChangeListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = l
}

// Value returns the last cached value and whether it is currently valid.
// A value is invalid before the first successful read, or after
// AttemptsToPromoteReadFail consecutive read failures.
func (r *Register) Value() (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.valid
}

// LastValidValue returns the most recently decoded value that was ever
// successfully read, regardless of the register's current validity. It
// only advances on a successful decode and is preserved across
// invalidation, unlike Value.
func (r *Register) LastValidValue() (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastValidValue, r.hasLastValidValue
}

// MillisToNextUpdate returns how many milliseconds remain until this
// register should next be polled, given the current time. A non-positive
// result means it is due now. In a failing state the effective interval is
// bounded by a backoff from ConnectionSettings, capped at the register's
// normal update interval. If the clock appears to have jumped backward
// since the last poll attempt, this returns 0 rather than an inflated
// wait.
func (r *Register) MillisToNextUpdate(nowMs int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	interval := r.updateIntervalMs
	if r.failsInRow > 0 && r.settings.RetryReadAfterMs > 0 {
		interval = r.settings.backoffMs(r.failsInRow, r.updateIntervalMs)
	}

	elapsed := nowMs - r.updateTimeMillis
	if elapsed < 0 || elapsed >= int64(interval) {
		return 0
	}
	return int64(interval) - elapsed
}

// deadline bounds ctx by the register's configured request timeout. A
// non-positive TimeoutMs means no timeout is applied.
func (r *Register) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	r.mu.Lock()
	timeoutMs := r.settings.TimeoutMs
	r.mu.Unlock()
	if timeoutMs <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
}

// UpdateValue performs one poll of the remote register, updating the
// local cache and rescheduling the next poll. It is normally called by an
// AutoUpdater's background goroutine, never concurrently for the same
// register.
func (r *Register) UpdateValue(ctx context.Context) error {
	ctx, cancel := r.deadline(ctx)
	defer cancel()

	var (
		wireInt   int32
		wireBytes []byte
		err       error
	)

	switch r.codec.(type) {
	case IntCodec:
		wireInt, err = r.collection.ReadInt(ctx, r.id)
	case BinaryCodec:
		wireBytes, err = r.collection.ReadBinary(ctx, r.id)
	default:
		err = ErrInvalidArgument
	}

	now := r.clock.NowMillis()

	if err != nil {
		return r.recordFailure(now, err)
	}

	var decoded any
	var ok bool
	switch c := r.codec.(type) {
	case IntCodec:
		decoded, ok = c.DecodeInt(wireInt)
	case BinaryCodec:
		decoded, ok = c.DecodeBinary(wireBytes)
	}
	if !ok {
		return r.recordFailure(now, ErrDecodeRejected)
	}

	r.recordSuccess(now, decoded)
	return nil
}

func (r *Register) recordFailure(nowMs int64, err error) error {
	r.mu.Lock()
	r.failsInRow++
	wasValid := r.valid
	if r.failsInRow >= r.settings.AttemptsToPromoteReadFail {
		r.valid = false
	}
	invalidated := wasValid && !r.valid
	if invalidated {
		r.value = nil
	}
	r.updateTimeMillis = nowMs
	listener := r.listener
	r.mu.Unlock()

	if invalidated && listener != nil {
		listener(r, nil)
	}
	return err
}

func (r *Register) recordSuccess(nowMs int64, decoded any) {
	r.mu.Lock()
	r.failsInRow = 0
	r.valid = true
	r.updateTimeMillis = nowMs
	changed := r.value != decoded
	r.value = decoded
	r.lastValidValue = decoded
	r.hasLastValidValue = true
	listener := r.listener
	r.mu.Unlock()

	if changed && listener != nil {
		listener(r, decoded)
	}
}

// SetValue writes value to the remote register, then immediately refreshes
// the cache with a read so it reflects what the device actually stored
// (which need not equal the value just written). It fails with ErrReadOnly
// if the register was constructed read-only; the recovery read still runs
// after any write error, so the cache never lags a failed write.
func (r *Register) SetValue(ctx context.Context, value any) error {
	if r.readOnly {
		return ErrReadOnly
	}

	writeCtx, cancel := r.deadline(ctx)

	var err error
	switch c := r.codec.(type) {
	case IntCodec:
		wire, ok := c.EncodeInt(value)
		if !ok {
			cancel()
			return ErrInvalidArgument
		}
		err = r.collection.WriteInt(writeCtx, r.id, wire)
	case BinaryCodec:
		wire, ok := c.EncodeBinary(value)
		if !ok {
			cancel()
			return ErrInvalidArgument
		}
		err = r.collection.WriteBinary(writeCtx, r.id, wire)
	default:
		err = ErrInvalidArgument
	}
	cancel()

	if updateErr := r.UpdateValue(ctx); updateErr != nil && err == nil {
		err = updateErr
	}
	return err
}
