// Package clock produces MergeTimestamp and TtlTimestamp values: the two
// fixed-width timestamp encodings every row and tombstone carries.
//
// MergeTimestamp packs four fields into one uint64, high bits first:
// epoch_millis(41) | counter(10) | unique_context(10) | time_travel(3). The
// packing is additive rather than bitwise-or: a per-millisecond counter that
// grows past its 10-bit budget naturally carries into the epoch field when
// shifted, which is how overflow within one millisecond spills forward into
// the next without any special-cased branch.
package clock

import (
	"fmt"
	"sync"
	"time"

	"github.com/hugetable/hugetable/internal/options"
)

// Bit widths and shifts for the MergeTimestamp packing, high bits first:
// epoch_millis(41) | counter(10) | unique_context(10) | time_travel(3).
const (
	timeTravelBits = 3
	contextBits    = 10
	counterBits    = 10

	timeTravelShift = 0
	contextShift    = timeTravelShift + timeTravelBits
	counterShift    = contextShift + contextBits
	epochShift      = counterShift + counterBits

	contextMask = uint64(1)<<contextBits - 1
	counterMask = uint64(1)<<counterBits - 1
	timeTravelMask = uint64(1)<<timeTravelBits - 1

	// MaxUniqueContext is the largest value NewWallClock's unique context
	// option accepts.
	MaxUniqueContext = contextMask
)

// epochUnixMillis is 2020-01-01T00:00:00Z expressed as Unix milliseconds,
// the origin every MergeTimestamp and TtlTimestamp is measured from.
var epochUnixMillis = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// MergeTimestamp is an opaque, totally ordered 64-bit tick. Go's comparison
// operators already give the correct ordering since it is a defined type
// over uint64 and the packing preserves numeric order; Compare is provided
// for callers that prefer a method over operators.
type MergeTimestamp uint64

// newMergeTimestamp packs the four fields. Intentionally additive: a
// counter at or above 1<<counterBits spills into epochMillis when shifted,
// which is exactly the carry-forward the wall clock's overflow handling
// relies on.
func newMergeTimestamp(epochMillis uint64, counter uint32, uniqueContext uint16, timeTravel uint8) MergeTimestamp {
	return MergeTimestamp(
		epochMillis<<epochShift +
			uint64(counter)<<counterShift +
			uint64(uniqueContext)<<contextShift +
			uint64(timeTravel),
	)
}

// EpochMillis returns the millisecond field, milliseconds since 2020-01-01 UTC.
func (ts MergeTimestamp) EpochMillis() uint64 {
	return uint64(ts) >> epochShift
}

// Counter returns the per-millisecond disambiguation counter.
func (ts MergeTimestamp) Counter() uint16 {
	return uint16(uint64(ts) >> counterShift & counterMask)
}

// UniqueContext returns the per-process constant this timestamp was stamped with.
func (ts MergeTimestamp) UniqueContext() uint16 {
	return uint16(uint64(ts) >> contextShift & contextMask)
}

// TimeTravel returns the wall-clock-went-backward generation counter.
func (ts MergeTimestamp) TimeTravel() uint8 {
	return uint8(uint64(ts) & timeTravelMask)
}

// Compare returns -1, 0, or 1 as ts is less than, equal to, or greater than other.
func (ts MergeTimestamp) Compare(other MergeTimestamp) int {
	switch {
	case ts < other:
		return -1
	case ts > other:
		return 1
	default:
		return 0
	}
}

// TtlTimestamp is an absolute expiry point: seconds since 2020-01-01 UTC.
type TtlTimestamp uint32

// Before reports whether ts is strictly earlier than other.
func (ts TtlTimestamp) Before(other TtlTimestamp) bool {
	return ts < other
}

// Clock hands out MergeTimestamp and TtlTimestamp values.
type Clock interface {
	// Now returns a timestamp strictly greater than every prior value this
	// Clock has produced.
	Now() MergeTimestamp

	// TTLTimestamp returns the expiry point ttlSeconds in the future of the
	// Clock's current time.
	TTLTimestamp(ttlSeconds uint32) TtlTimestamp
}

// WallClock is the production Clock: it reads the system clock, disambiguates
// same-millisecond calls with a counter, and tolerates the wall clock moving
// backward by bumping a generation counter rather than regressing.
type WallClock struct {
	mu sync.Mutex

	uniqueContext uint16
	onTimeTravel  func(curEpochMillis, prevEpochMillis uint64, timeTravel uint8)

	lastEpochMillis uint64
	counter         uint32
	timeTravel      uint8
}

// WithUniqueContext fixes the per-process constant folded into every
// timestamp this clock produces. NewWallClock returns an error if ctx
// exceeds MaxUniqueContext, since a context that doesn't fit in 10 bits
// would silently corrupt neighboring fields.
func WithUniqueContext(ctx uint16) options.Option[*WallClock] {
	return options.New(func(wc *WallClock) error {
		if uint64(ctx) > MaxUniqueContext {
			return fmt.Errorf("clock: unique context %d exceeds max %d", ctx, MaxUniqueContext)
		}
		wc.uniqueContext = ctx

		return nil
	})
}

// WithInitialTimeTravel seeds the time-travel generation counter, e.g. when
// restoring it from a value persisted across a restart.
func WithInitialTimeTravel(tt uint8) options.Option[*WallClock] {
	return options.NoError(func(wc *WallClock) {
		wc.timeTravel = tt & uint8(timeTravelMask)
	})
}

// WithOnTimeTravel installs a hook invoked whenever the wall clock is
// observed to move backward, receiving the new and previous epoch
// milliseconds and the time-travel counter's new value.
func WithOnTimeTravel(hook func(curEpochMillis, prevEpochMillis uint64, timeTravel uint8)) options.Option[*WallClock] {
	return options.NoError(func(wc *WallClock) {
		wc.onTimeTravel = hook
	})
}

// NewWallClock constructs a WallClock, applying opts in order.
func NewWallClock(opts ...options.Option[*WallClock]) (*WallClock, error) {
	wc := &WallClock{}
	if err := options.Apply(wc, opts...); err != nil {
		return nil, err
	}

	return wc, nil
}

// currentEpochMillis returns milliseconds since the HT epoch, panicking if
// the system clock reports a time before 1970-01-01 or before the HT epoch:
// both indicate a broken host rather than a recoverable condition.
func currentEpochMillis() uint64 {
	unixMillis := time.Now().UnixMilli()
	if unixMillis < epochUnixMillis {
		panic("clock: system time is before the hugetable epoch (2020-01-01 UTC)")
	}

	return uint64(unixMillis - epochUnixMillis)
}

// Now implements Clock.
func (wc *WallClock) Now() MergeTimestamp {
	now := currentEpochMillis()

	wc.mu.Lock()
	defer wc.mu.Unlock()

	switch {
	case now < wc.lastEpochMillis:
		prev := wc.lastEpochMillis
		wc.timeTravel = (wc.timeTravel + 1) % (1 << timeTravelBits)
		wc.counter = 0
		wc.lastEpochMillis = now
		if wc.onTimeTravel != nil {
			wc.onTimeTravel(now, prev, wc.timeTravel)
		}
	default:
		advanceMs := now - wc.lastEpochMillis
		wc.lastEpochMillis = now

		overdraft := uint64(1)<<counterBits * advanceMs
		if overdraft >= uint64(wc.counter) {
			wc.counter = 0
		} else {
			wc.counter -= uint32(overdraft)
		}
	}

	wc.counter++

	return newMergeTimestamp(wc.lastEpochMillis, wc.counter, wc.uniqueContext, wc.timeTravel)
}

// TTLTimestamp implements Clock.
func (wc *WallClock) TTLTimestamp(ttlSeconds uint32) TtlTimestamp {
	return TtlTimestamp(currentEpochMillis()/1000 + uint64(ttlSeconds))
}

// ManualClock is a settable Clock for tests: Now always returns the last
// value passed to Set (or the initial value).
type ManualClock struct {
	mu  sync.Mutex
	now MergeTimestamp
}

// NewManualClock constructs a ManualClock returning initial until Set is called.
func NewManualClock(initial MergeTimestamp) *ManualClock {
	return &ManualClock{now: initial}
}

// Set replaces the timestamp ManualClock.Now will return.
func (mc *ManualClock) Set(ts MergeTimestamp) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.now = ts
}

// Now implements Clock.
func (mc *ManualClock) Now() MergeTimestamp {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	return mc.now
}

// TTLTimestamp implements Clock.
func (mc *ManualClock) TTLTimestamp(ttlSeconds uint32) TtlTimestamp {
	mc.mu.Lock()
	epochMillis := mc.now.EpochMillis()
	mc.mu.Unlock()

	return TtlTimestamp(epochMillis/1000 + uint64(ttlSeconds))
}
