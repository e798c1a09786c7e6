package energy

import (
	"math"
	"sync"
	"time"
)

// Inputs holds the readings an accumulator derives its power from.
type Inputs struct {
	Grid          float64 // W, positive = export
	Production    float64 // W
	HasProduction bool
}

// Saved is a previously persisted accumulator total.
// At is the start of the window the total belongs to.
type Saved struct {
	Value float64
	At    time.Time
}

// Restore returns the starting total for an accumulator.
// A nil saved value, a non-finite value or one from an earlier window restores to 0.
func Restore(w Window, saved *Saved, now time.Time) float64 {
	if saved == nil {
		return 0
	}
	if math.IsNaN(saved.Value) || math.IsInf(saved.Value, 0) {
		return 0
	}
	if !w.Start(saved.At.In(now.Location())).Equal(w.Start(now)) {
		return 0
	}
	return saved.Value
}

// Trapezoid returns the energy in Wh between two power samples dt apart.
func Trapezoid(p0, p1 float64, dt time.Duration) float64 {
	return (p0 + p1) / 2 * dt.Hours()
}

// Accumulator maintains a running Wh total for one Variant.
// It is written by a single worker; the mutex lets other workers read it.
type Accumulator struct {
	variant Variant

	mu            sync.RWMutex
	value         float64
	lastPower     float64
	lastTimestamp time.Time
	hasSample     bool
	windowStart   time.Time
}

// NewAccumulator creates an accumulator starting at initial Wh in the window containing now.
func NewAccumulator(v Variant, initial float64, now time.Time) *Accumulator {
	return &Accumulator{
		variant:     v,
		value:       initial,
		windowStart: v.Window.Start(now),
	}
}

// Name returns the variant name.
func (a *Accumulator) Name() string {
	return a.variant.Name
}

// Variant returns the variant this accumulator integrates.
func (a *Accumulator) Variant() Variant {
	return a.variant
}

// Value returns the current total in Wh.
func (a *Accumulator) Value() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

// Saved returns the current total tagged with its window start, for checkpointing.
func (a *Accumulator) Saved() Saved {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Saved{Value: a.value, At: a.windowStart}
}

// Sample integrates a new reading taken at the given time and returns the new total.
// ok is false when the inputs lack the companion reading this variant needs; nothing changes then.
func (a *Accumulator) Sample(in Inputs, at time.Time) (total float64, ok bool) {
	if a.variant.NeedsProduction && !in.HasProduction {
		return a.Value(), false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// A late boundary tick must not let energy leak across the boundary
	a.checkBoundaryLocked(at)

	power := a.variant.Derive(in.Grid, in.Production)

	switch {
	case !a.hasSample:
		a.lastTimestamp = at
		a.hasSample = true
	case at.After(a.lastTimestamp):
		increment := Trapezoid(a.lastPower, power, at.Sub(a.lastTimestamp))
		if !a.variant.NonNegative || increment > 0 {
			a.value += increment
		}
		a.lastTimestamp = at
	}
	// Equal or earlier timestamps add nothing and keep lastTimestamp monotonic

	a.lastPower = power
	return a.value, true
}

// CheckBoundary resets the total to 0 if now lies in a later window than the last one seen.
// It reports whether a reset happened.
func (a *Accumulator) CheckBoundary(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checkBoundaryLocked(now)
}

func (a *Accumulator) checkBoundaryLocked(now time.Time) bool {
	start := a.variant.Window.Start(now)
	if !start.After(a.windowStart) {
		return false
	}

	a.value = 0
	a.windowStart = start
	if a.hasSample && a.lastTimestamp.Before(start) {
		// Next increment covers only the new window
		a.lastTimestamp = start
	}
	return true
}
