package gep

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"weak"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// maxThreadSleepMs bounds how long the updater's background goroutine ever
// sleeps between scheduling passes, so that a collection registered after
// the goroutine last computed its sleep interval is not starved.
const maxThreadSleepMs = 100

// collectionState is the AutoUpdater's bookkeeping for one collection with
// at least one managed register or an active hint subscription. It refers
// to the collection only through a weak.Pointer; the managed registers in
// registers do hold the collection strongly, so only a state with no
// managed registers lets the collection be reclaimed. Every field is read and written only while the
// AutoUpdater's mu is held.
type collectionState struct {
	weakPtr               weak.Pointer[RegisterCollection]
	registers             map[*Register]struct{}
	hint                  HintSettings
	lastHintProbeMs       int64
	unconfirmedRegisterID int32
}

func (st *collectionState) managedRegister(id int) *Register {
	for r := range st.registers {
		if r.id == id {
			return r
		}
	}
	return nil
}

// AutoUpdater runs a single background goroutine that polls every managed
// Register when due and, where configured per collection, probes for
// change hints between full polls. Collections are held by weak
// reference: once a RegisterCollection becomes unreachable to the rest of
// the program, the updater notices and drops its state on its next
// scheduling pass. A collection with managed registers stays reachable
// through them.
type AutoUpdater struct {
	logger  *slog.Logger
	printer *message.Printer
	clock   Clock

	mu        sync.Mutex
	cond      *sync.Cond
	registers map[*Register]struct{}
	states    map[weak.Pointer[RegisterCollection]]*collectionState
	running   bool
	stopped   chan struct{}
	wg        sync.WaitGroup
}

// NewAutoUpdater constructs an idle AutoUpdater. Call Start to begin
// polling managed registers.
func NewAutoUpdater(logger *slog.Logger) *AutoUpdater {
	if logger == nil {
		logger = slog.Default()
	}
	u := &AutoUpdater{
		logger:    logger,
		printer:   localizedPrinter(language.AmericanEnglish),
		clock:     SystemClock,
		registers: make(map[*Register]struct{}),
		states:    make(map[weak.Pointer[RegisterCollection]]*collectionState),
	}
	u.cond = sync.NewCond(&u.mu)
	return u
}

// stateForCollectionLocked returns the collectionState for collection,
// creating one if create is true and none exists. Callers must hold u.mu.
func (u *AutoUpdater) stateForCollectionLocked(collection *RegisterCollection, create bool) *collectionState {
	for _, st := range u.states {
		if st.weakPtr.Value() == collection {
			return st
		}
	}
	if !create {
		return nil
	}
	st := &collectionState{
		weakPtr:               weak.Make(collection),
		registers:             make(map[*Register]struct{}),
		unconfirmedRegisterID: -1,
	}
	u.states[st.weakPtr] = st
	return st
}

// deleteStateLocked removes collection's state entirely. Callers must hold
// u.mu.
func (u *AutoUpdater) deleteStateLocked(collection *RegisterCollection) {
	for wp := range u.states {
		if wp.Value() == collection {
			delete(u.states, wp)
			return
		}
	}
}

// pruneStateLocked removes collection's state if it now manages no
// registers and has no active hint subscription. Callers must hold u.mu.
func (u *AutoUpdater) pruneStateLocked(collection *RegisterCollection) {
	st := u.stateForCollectionLocked(collection, false)
	if st != nil && len(st.registers) == 0 && !st.hint.Enabled {
		u.deleteStateLocked(collection)
	}
}

// AddRegister adds register to the managed set. It is a no-op if register
// is nil or already managed.
func (u *AutoUpdater) AddRegister(register *Register) {
	if register != nil {
		u.AddRegisters([]*Register{register})
	}
}

// AddRegisters adds registers to the managed set, creating collection
// state as needed.
func (u *AutoUpdater) AddRegisters(registers []*Register) {
	if len(registers) == 0 {
		return
	}

	u.mu.Lock()
	changed := false
	for _, r := range registers {
		if r == nil {
			continue
		}
		if _, exists := u.registers[r]; exists {
			continue
		}
		st := u.stateForCollectionLocked(r.collection, true)
		st.registers[r] = struct{}{}
		u.registers[r] = struct{}{}
		changed = true
	}
	u.mu.Unlock()

	if changed {
		u.cond.Broadcast()
	}
}

// RemoveRegister removes register from the managed set immediately.
func (u *AutoUpdater) RemoveRegister(register *Register) {
	if register != nil {
		u.RemoveRegisters([]*Register{register})
	}
}

// RemoveRegisters removes registers from the managed set immediately.
func (u *AutoUpdater) RemoveRegisters(registers []*Register) {
	if len(registers) == 0 {
		return
	}

	u.mu.Lock()
	changed := false
	for _, r := range registers {
		if r == nil {
			continue
		}
		if _, exists := u.registers[r]; !exists {
			continue
		}
		delete(u.registers, r)
		if st := u.stateForCollectionLocked(r.collection, false); st != nil {
			delete(st.registers, r)
			u.pruneStateLocked(r.collection)
		}
		changed = true
	}
	u.mu.Unlock()

	if changed {
		u.cond.Broadcast()
	}
}

// RemoveAllRegisters removes every managed register. Collections with an
// active hint subscription keep their state; the rest are dropped.
func (u *AutoUpdater) RemoveAllRegisters() {
	u.mu.Lock()
	if len(u.registers) == 0 {
		u.mu.Unlock()
		return
	}
	u.registers = make(map[*Register]struct{})
	for wp, st := range u.states {
		st.registers = make(map[*Register]struct{})
		if !st.hint.Enabled {
			delete(u.states, wp)
		}
	}
	u.mu.Unlock()
	u.cond.Broadcast()
}

// Registers returns a snapshot of every register currently managed.
func (u *AutoUpdater) Registers() []*Register {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*Register, 0, len(u.registers))
	for r := range u.registers {
		out = append(out, r)
	}
	return out
}

// UseRegistryHints enables change-hint probing for collection according to
// hint, replacing any settings already in effect for it. It does not
// affect which registers of collection are managed; pair it with
// AddRegister(s) to actually poll the registers a hint names.
func (u *AutoUpdater) UseRegistryHints(collection *RegisterCollection, hint HintSettings) {
	if collection == nil {
		return
	}
	hint.Enabled = true

	u.mu.Lock()
	st := u.stateForCollectionLocked(collection, true)
	st.hint = hint
	st.unconfirmedRegisterID = -1
	u.mu.Unlock()

	u.cond.Broadcast()
}

// DisableRegistryHints stops change-hint probing for collection. If
// collection has no managed registers, its state is dropped entirely.
func (u *AutoUpdater) DisableRegistryHints(collection *RegisterCollection) {
	if collection == nil {
		return
	}

	u.mu.Lock()
	if st := u.stateForCollectionLocked(collection, false); st != nil {
		st.hint.Enabled = false
		u.pruneStateLocked(collection)
	}
	u.mu.Unlock()

	u.cond.Broadcast()
}

// Start launches the background scheduling goroutine. Start is a no-op if
// the updater is already running.
func (u *AutoUpdater) Start() {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return
	}
	u.running = true
	u.stopped = make(chan struct{})
	u.mu.Unlock()

	u.wg.Add(1)
	go u.mainLoop()
}

// Stop halts the background goroutine. If block is true, Stop waits for it
// to exit before returning.
func (u *AutoUpdater) Stop(block bool) {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		return
	}
	u.running = false
	close(u.stopped)
	u.mu.Unlock()
	u.cond.Broadcast()

	if block {
		u.wg.Wait()
	}
}

func (u *AutoUpdater) mainLoop() {
	defer u.wg.Done()
	for {
		select {
		case <-u.stopped:
			return
		default:
		}

		sleepMs := u.runPass()
		if sleepMs > maxThreadSleepMs {
			sleepMs = maxThreadSleepMs
		}
		if sleepMs < 0 {
			sleepMs = 0
		}

		timer := time.NewTimer(time.Duration(sleepMs) * time.Millisecond)
		select {
		case <-u.stopped:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// dueHintProbe is a snapshot of one collection's hint state taken under
// u.mu, carried across the network call in runPass so the lock is never
// held during I/O.
type dueHintProbe struct {
	collection  *RegisterCollection
	st          *collectionState
	confirmedID int32
	timeoutMs   int
}

// runPass polls every due managed register and probes due hints across all
// live collections, pruning any whose weak pointer has gone dead. Every
// read and write of collectionState/registers bookkeeping happens with
// u.mu held; the lock is released only around the hint's network round
// trip and around the register polls themselves. It returns the number of
// milliseconds until the next register or hint is due.
func (u *AutoUpdater) runPass() int64 {
	u.mu.Lock()

	now := u.clock.NowMillis()
	nextDueMs := int64(maxThreadSleepMs)
	var expired []*Register
	var dueHints []dueHintProbe

	for wp, st := range u.states {
		collection := wp.Value()
		if collection == nil {
			delete(u.states, wp)
			continue
		}

		for r := range st.registers {
			remaining := r.MillisToNextUpdate(now)
			if remaining <= 0 {
				expired = append(expired, r)
			} else if remaining < nextDueMs {
				nextDueMs = remaining
			}
		}

		if st.hint.Enabled && len(st.registers) > 0 {
			dueInMs := st.lastHintProbeMs + int64(st.hint.IntervalMs) - now
			if dueInMs <= 0 {
				confirmedID := st.unconfirmedRegisterID
				st.unconfirmedRegisterID = -1
				dueHints = append(dueHints, dueHintProbe{collection, st, confirmedID, st.hint.TimeoutMs})
			} else if dueInMs < nextDueMs {
				nextDueMs = dueInMs
			}
		}
	}

	u.mu.Unlock()

	for _, dh := range dueHints {
		if r := u.probeHint(dh, now); r != nil {
			expired = append(expired, r)
		}
	}

	for _, r := range expired {
		u.pollRegister(r)
	}

	return nextDueMs
}

// probeHint issues one change-hint request for dh's collection with no
// lock held, then re-acquires u.mu just long enough to record the result.
// It returns the managed register the hint named, if any, so the caller
// can poll it immediately with the lock released.
func (u *AutoUpdater) probeHint(dh dueHintProbe, now int64) *Register {
	ctx := context.Background()
	cancel := func() {}
	if dh.timeoutMs > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(dh.timeoutMs)*time.Millisecond)
	}
	changedID, err := dh.collection.GetChangeHintID(ctx, int(dh.confirmedID))
	cancel()

	if err != nil {
		u.logger.Debug(u.printer.Sprintf("log.hint_probe_failed", dh.collection.registryID, err))
		changedID = -1
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	var hit *Register
	hintForManagedRegister := false
	if changedID >= 0 {
		if r := dh.st.managedRegister(int(changedID)); r != nil {
			hintForManagedRegister = true
			hit = r
		} else {
			dh.st.unconfirmedRegisterID = changedID
		}
	}

	advance := true
	switch dh.st.hint.Strategy {
	case StrategySemiGreedy:
		advance = !hintForManagedRegister
	case StrategyGreedy:
		advance = changedID < 0
	}
	if advance {
		dh.st.lastHintProbeMs = now
	}

	return hit
}

func (u *AutoUpdater) pollRegister(r *Register) {
	if err := r.UpdateValue(context.Background()); err != nil {
		u.logger.Debug(u.printer.Sprintf("log.register_poll_failed", r.ID(), err))
	}
}
