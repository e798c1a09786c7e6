package energy

import "time"

// Period is a 2.0TD time-of-use tariff period.
type Period int

const (
	Valle Period = iota
	Llano
	Punta
)

func (p Period) String() string {
	switch p {
	case Punta:
		return "Punta"
	case Llano:
		return "Llano"
	default:
		return "Valle"
	}
}

// Code returns the P1/P2/P3 period code used on bills.
func (p Period) Code() string {
	switch p {
	case Punta:
		return "P1"
	case Llano:
		return "P2"
	default:
		return "P3"
	}
}

// Periods lists all periods in display order.
func Periods() []Period {
	return []Period{Punta, Llano, Valle}
}

// ContractedPower holds the contracted power in kW for each price band.
type ContractedPower struct {
	OffPeak float64 // Valle
	Peak    float64 // Punta and Llano
}

// Classify returns the tariff period and contracted power in effect at now.
// now must already be in the tariff's local time.
func Classify(now time.Time, isHoliday bool, power ContractedPower) (Period, float64) {
	if weekday := now.Weekday(); weekday == time.Saturday || weekday == time.Sunday || isHoliday {
		return Valle, power.OffPeak
	}

	switch hour := now.Hour(); {
	case hour < 8:
		return Valle, power.OffPeak
	case hour < 10, hour >= 14 && hour < 18, hour >= 22:
		return Llano, power.Peak
	default:
		return Punta, power.Peak
	}
}
