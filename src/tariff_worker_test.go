package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTariffWorker(t *testing.T, now time.Time) (*tariffWorker, *testPublisher) {
	t.Helper()
	pub := newTestPublisher(t, now)
	config := &Config{
		Sensors: testSensors,
		Tariff:  TariffConfig{PowerValle: 3.0, PowerPunta: 4.0},
	}
	// Loc() falls back to time.Local; tests run in UTC
	config.loc = time.UTC
	return newTariffWorker(config, pub.ReadoutPublisher, pub.metrics), pub
}

func TestTariffWorker_PublishesPeriodAndAttributes(t *testing.T) {
	// Monday 11:00
	now := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	w, pub := newTestTariffWorker(t, now)

	w.update(now)

	assert.Equal(t, "Punta", pub.state(t, ReadoutTariff))

	var attrs map[string]any
	for _, msg := range pub.drain() {
		if msg.Topic == ReadoutTariff.AttributesTopic() {
			require.NoError(t, json.Unmarshal(msg.Payload, &attrs))
		}
	}
	require.NotNil(t, attrs)
	assert.Equal(t, 4.0, attrs["contracted_power"])
	assert.Equal(t, "P1", attrs["period_code"])
	assert.Equal(t, "ES", attrs["region"])
	assert.Equal(t, false, attrs["holiday"])

	assert.Equal(t, 1.0, testutil.ToFloat64(pub.metrics.tariffPeriod.WithLabelValues("Punta")))
	assert.Equal(t, 0.0, testutil.ToFloat64(pub.metrics.tariffPeriod.WithLabelValues("Valle")))
}

func TestTariffWorker_Boundaries(t *testing.T) {
	w, pub := newTestTariffWorker(t, time.Time{})

	w.update(time.Date(2024, 1, 1, 7, 59, 0, 0, time.UTC))
	assert.Equal(t, "Valle", pub.state(t, ReadoutTariff))

	w.update(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, "Llano", pub.state(t, ReadoutTariff))

	// Saturday 12:00
	w.update(time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "Valle", pub.state(t, ReadoutTariff))
}

func TestTariffWorker_WorkdayOffMeansHoliday(t *testing.T) {
	now := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	w, pub := newTestTariffWorker(t, now)

	workday := func(value bool, valid bool) DisplayData {
		return DisplayData{
			Trigger: testWorkdayTopic,
			TopicData: map[string]any{
				testWorkdayTopic: &BooleanTopicData{Current: value, Valid: valid},
			},
		}
	}

	assert.True(t, w.handleData(workday(false, true)))
	w.update(now)
	assert.Equal(t, "Valle", pub.state(t, ReadoutTariff))

	// Unavailable sensor is treated as a normal working day
	assert.True(t, w.handleData(workday(false, false)))
	w.update(now)
	assert.Equal(t, "Punta", pub.state(t, ReadoutTariff))

	assert.False(t, w.handleData(workday(true, true)))
}

func TestTariffWorker_IgnoresOtherTopics(t *testing.T) {
	w, _ := newTestTariffWorker(t, time.Time{})
	assert.False(t, w.handleData(gridSnapshot(time.Time{}, 100, nil)))
}

func TestTariffWorker_ConvertsToConfiguredZone(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skip("tzdata not available")
	}

	w, pub := newTestTariffWorker(t, time.Time{})
	w.loc = madrid

	// 07:30 UTC in January is 08:30 in Madrid
	w.update(time.Date(2024, 1, 1, 7, 30, 0, 0, time.UTC))
	assert.Equal(t, "Llano", pub.state(t, ReadoutTariff))
}

func TestTariffWorker_PeakImportAttributes(t *testing.T) {
	now := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	w, pub := newTestTariffWorker(t, now)

	w.handleData(gridSnapshot(now.Add(-30*time.Minute), -2000, nil))
	w.handleData(gridSnapshot(now.Add(-10*time.Minute), 500, nil))
	w.update(now)

	var attrs map[string]any
	for _, msg := range pub.drain() {
		if msg.Topic == ReadoutTariff.AttributesTopic() {
			require.NoError(t, json.Unmarshal(msg.Payload, &attrs))
		}
	}
	require.NotNil(t, attrs)
	assert.Equal(t, 2000.0, attrs["peak_import_1h"])
	// 2 kW of the 4 kW contracted for Punta
	assert.Equal(t, 0.5, attrs["contracted_power_used"])
}

func TestTariffWorker_PeakImportExpiresWithoutGridSamples(t *testing.T) {
	now := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)
	w, pub := newTestTariffWorker(t, now)

	w.handleData(gridSnapshot(now, -2000, nil))
	w.update(now.Add(61 * time.Minute))

	var attrs map[string]any
	for _, msg := range pub.drain() {
		if msg.Topic == ReadoutTariff.AttributesTopic() {
			require.NoError(t, json.Unmarshal(msg.Payload, &attrs))
		}
	}
	require.NotNil(t, attrs)
	assert.NotContains(t, attrs, "peak_import_1h")
	assert.NotContains(t, attrs, "contracted_power_used")
}
