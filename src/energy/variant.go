package energy

// Variant selects the power quantity an accumulator integrates.
// Grid power is signed: positive is export, negative is import.
type Variant struct {
	Name   string
	Window Window
	// Derive maps the current grid and production readings to the power to integrate.
	Derive func(grid, production float64) float64
	// NeedsProduction is set when Derive reads the production value.
	NeedsProduction bool
	// NonNegative accumulators only ever add positive increments.
	NonNegative bool
}

// NetBalance integrates raw grid power over the hour. It may go negative.
var NetBalance = Variant{
	Name:   "net_balance_real",
	Window: Hourly,
	Derive: func(grid, _ float64) float64 {
		return grid
	},
}

// HomeConsumption integrates production minus grid, floored at zero.
var HomeConsumption = Variant{
	Name:   "daily_home_consumption",
	Window: Daily,
	Derive: func(grid, production float64) float64 {
		return max(0, production-grid)
	},
	NeedsProduction: true,
	NonNegative:     true,
}

// Imported integrates the import magnitude of grid power.
var Imported = Variant{
	Name:   "daily_imported",
	Window: Daily,
	Derive: func(grid, _ float64) float64 {
		return max(0, -grid)
	},
	NonNegative: true,
}

// Exported integrates the export magnitude of grid power.
var Exported = Variant{
	Name:   "daily_surplus",
	Window: Daily,
	Derive: func(grid, _ float64) float64 {
		return max(0, grid)
	},
	NonNegative: true,
}

// Variants lists every accumulator the service maintains.
func Variants() []Variant {
	return []Variant{NetBalance, HomeConsumption, Imported, Exported}
}
