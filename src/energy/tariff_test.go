package energy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var contracted = ContractedPower{OffPeak: 3.0, Peak: 4.0}

func weekdayAt(hour, minute int) time.Time {
	// Wednesday
	return time.Date(2024, 1, 3, hour, minute, 0, 0, time.UTC)
}

func TestClassify_WeekdaySchedule(t *testing.T) {
	tests := []struct {
		hour, minute int
		want         Period
	}{
		{0, 0, Valle},
		{7, 59, Valle},
		{8, 0, Llano},
		{9, 59, Llano},
		{10, 0, Punta},
		{13, 59, Punta},
		{14, 0, Llano},
		{17, 59, Llano},
		{18, 0, Punta},
		{21, 59, Punta},
		{22, 0, Llano},
		{23, 59, Llano},
	}

	for _, tt := range tests {
		period, _ := Classify(weekdayAt(tt.hour, tt.minute), false, contracted)
		assert.Equal(t, tt.want, period, "%02d:%02d", tt.hour, tt.minute)
	}
}

func TestClassify_ContractedPowerFollowsPeriod(t *testing.T) {
	_, power := Classify(weekdayAt(3, 0), false, contracted)
	assert.Equal(t, 3.0, power)

	_, power = Classify(weekdayAt(8, 0), false, contracted)
	assert.Equal(t, 4.0, power)

	_, power = Classify(weekdayAt(11, 0), false, contracted)
	assert.Equal(t, 4.0, power)
}

func TestClassify_WeekendIsAlwaysValle(t *testing.T) {
	saturday := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	sunday := saturday.AddDate(0, 0, 1)

	for hour := 0; hour < 24; hour++ {
		for _, day := range []time.Time{saturday, sunday} {
			period, power := Classify(day.Add(time.Duration(hour)*time.Hour), false, contracted)
			assert.Equal(t, Valle, period)
			assert.Equal(t, 3.0, power)
		}
	}
}

func TestClassify_HolidayIsValle(t *testing.T) {
	period, power := Classify(weekdayAt(11, 0), true, contracted)

	assert.Equal(t, Valle, period)
	assert.Equal(t, 3.0, power)
}

func TestPeriod_Codes(t *testing.T) {
	assert.Equal(t, "P1", Punta.Code())
	assert.Equal(t, "P2", Llano.Code())
	assert.Equal(t, "P3", Valle.Code())
	assert.Equal(t, "Punta", Punta.String())
	assert.Equal(t, "Llano", Llano.String())
	assert.Equal(t, "Valle", Valle.String())
}
