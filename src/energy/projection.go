package energy

import "math"

// DefaultLineVoltage is the nominal single-phase voltage used to convert W to A.
const DefaultLineVoltage = 240.0

// surplusGuardSeconds is the remaining-window threshold below which SurplusCurrent returns 0.
const surplusGuardSeconds = 60.0

// EstimateWindowEnd extrapolates the accumulated energy to the end of the window,
// assuming currentPowerW holds constant for the remaining seconds.
func EstimateWindowEnd(accumulatedWh, currentPowerW, secondsLeft float64) float64 {
	return accumulatedWh + currentPowerW*(secondsLeft/3600)
}

// SurplusCurrent returns the extra current that could be drawn so the window ends at a
// net balance of exactly 0 Wh, assuming grid power holds constant.
//
// Solving 0 = accumulated + (grid - load) * hoursLeft gives load = grid + accumulated/hoursLeft.
//
// With less than a minute left the result is forced to 0. This is a guard against the
// division blowing up near the boundary, not the exact answer.
func SurplusCurrent(gridPowerW, accumulatedWh, secondsLeft, lineVoltage float64) float64 {
	if secondsLeft < surplusGuardSeconds || lineVoltage <= 0 {
		return 0
	}
	hoursLeft := secondsLeft / 3600
	loadW := gridPowerW + accumulatedWh/hoursLeft
	return loadW / lineVoltage
}

// SurplusGuarded reports whether SurplusCurrent short-circuits for this many seconds left.
func SurplusGuarded(secondsLeft float64) bool {
	return secondsLeft < surplusGuardSeconds
}

// Round2 rounds to two decimals, the precision readouts are published with.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
