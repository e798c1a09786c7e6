// Package energy converts instantaneous power readings into accumulated energy
// and derives tariff periods and end-of-window projections from them.
package energy

import "time"

// Window is a calendar period an accumulator resets at the end of.
type Window int

const (
	Hourly Window = iota
	Daily
)

func (w Window) String() string {
	switch w {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	default:
		return "unknown"
	}
}

// Start returns the beginning of the window containing t, in t's location.
func (w Window) Start(t time.Time) time.Time {
	switch w {
	case Daily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	default:
		// Truncate works on absolute time, so the repeated hour when clocks go back
		// yields two distinct windows. Zones with sub-hour offsets are not supported.
		return t.Truncate(time.Hour).In(t.Location())
	}
}

// End returns the beginning of the window following the one containing t.
func (w Window) End(t time.Time) time.Time {
	start := w.Start(t)
	switch w {
	case Daily:
		// AddDate keeps 23h and 25h DST days correct
		return start.AddDate(0, 0, 1)
	default:
		return start.Add(time.Hour)
	}
}

// SecondsLeft returns the seconds remaining until the window containing t ends.
func (w Window) SecondsLeft(t time.Time) float64 {
	return w.End(t).Sub(t).Seconds()
}

// Contains reports whether t falls in the window that begins at start.
func (w Window) Contains(start, t time.Time) bool {
	return w.Start(t).Equal(start)
}

// TickInterval is how often the boundary check should run for this window.
func (w Window) TickInterval() time.Duration {
	if w == Daily {
		return time.Minute
	}
	return time.Second
}
