package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDebugState(t *testing.T) (*DebugState, *testPublisher, *[]string) {
	t.Helper()
	pub := newTestPublisher(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	state := NewDebugState(pub.registry)

	var lines []string
	state.out = func(line string) { lines = append(lines, line) }
	return state, pub, &lines
}

func TestDebugState_WatchReadoutAndTopic(t *testing.T) {
	state, pub, lines := newTestDebugState(t)
	state.UpdateData(gridSnapshot(time.Time{}, -250, nil))

	handleDebugCommand("watch daily_imported", state)
	handleDebugCommand("watch grid_power", state)
	require.Equal(t, []string{ReadoutImported.Key, testGridTopic}, state.watches)

	pub.PublishFloat(ReadoutImported, 12.5)
	state.PrintRow()

	require.Len(t, *lines, 2)
	assert.Equal(t, "daily_imported | grid_power", (*lines)[0])
	assert.Contains(t, (*lines)[1], "12.50")
	assert.Contains(t, (*lines)[1], "-250")

	// Unchanged values print nothing
	state.PrintRow()
	assert.Len(t, *lines, 2)
}

func TestDebugState_UnknownWatch(t *testing.T) {
	state, _, _ := newTestDebugState(t)
	handleDebugCommand("watch nonsense", state)
	assert.Empty(t, state.watches)
}

func TestDebugState_Unwatch(t *testing.T) {
	state, _, _ := newTestDebugState(t)
	state.UpdateData(gridSnapshot(time.Time{}, 100, ptr(200)))

	handleDebugCommand("watch grid_power", state)
	handleDebugCommand("watch pv_power", state)
	handleDebugCommand("watch surplus_current", state)
	require.Len(t, state.watches, 3)

	handleDebugCommand("unwatch grid_power", state)
	assert.NotContains(t, state.watches, testGridTopic)

	handleDebugCommand("unwatch --all", state)
	assert.Empty(t, state.watches)
}

func TestDebugState_ValueShowsUnavailable(t *testing.T) {
	state, _, _ := newTestDebugState(t)
	data := gridSnapshot(time.Time{}, 100, nil)
	data.TopicData[testGridTopic].(*FloatTopicData).Valid = false
	state.UpdateData(data)

	assert.Equal(t, "unavailable", state.Value(testGridTopic))
	assert.Equal(t, "-", state.Value(ReadoutSurplusCurrent.Key))
}

func TestDebugState_List(t *testing.T) {
	state, _, lines := newTestDebugState(t)
	state.UpdateData(gridSnapshot(time.Time{}, 1500, nil))

	handleDebugCommand("list", state)

	assert.Contains(t, *lines, "Readouts:")
	assert.Contains(t, *lines, "  [float] "+testGridTopic+" = 1500")
}

func TestFormatDebugValue(t *testing.T) {
	assert.Equal(t, "1235", formatDebugValue(1234.56))
	assert.Equal(t, "-12.50", formatDebugValue(-12.5))
}
