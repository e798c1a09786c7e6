package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGridTopic    = "homeassistant/sensor/grid_power/state"
	testPVTopic      = "homeassistant/sensor/pv_power/state"
	testWorkdayTopic = "homeassistant/binary_sensor/workday_sensor/state"
)

var testBooleanTopics = map[string]bool{testWorkdayTopic: true}

func TestApplyMessage_Float(t *testing.T) {
	topicData := make(map[string]any)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	emit, reason := applyMessage(topicData, SensorMessage{Topic: testGridTopic, Value: " -512.5 ", Timestamp: at}, testBooleanTopics)
	assert.True(t, emit)
	assert.Empty(t, reason)

	data := DisplayData{TopicData: topicData}
	grid, ok := data.GetFloat(testGridTopic)
	require.True(t, ok)
	assert.Equal(t, -512.5, grid.Current)
	assert.Equal(t, at, grid.Timestamp)
}

func TestApplyMessage_SentinelMarksUnavailable(t *testing.T) {
	topicData := make(map[string]any)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	applyMessage(topicData, SensorMessage{Topic: testGridTopic, Value: "300", Timestamp: at}, testBooleanTopics)

	for _, sentinel := range []string{"unavailable", "unknown", "", "Undefined"} {
		emit, reason := applyMessage(topicData, SensorMessage{Topic: testGridTopic, Value: sentinel, Timestamp: at}, testBooleanTopics)
		assert.True(t, emit, sentinel)
		assert.Equal(t, reasonUnavailable, reason, sentinel)

		data := DisplayData{TopicData: topicData}
		_, ok := data.GetFloat(testGridTopic)
		assert.False(t, ok, sentinel)
	}

	// A fresh reading makes the topic usable again
	applyMessage(topicData, SensorMessage{Topic: testGridTopic, Value: "150", Timestamp: at}, testBooleanTopics)
	data := DisplayData{TopicData: topicData}
	grid, ok := data.GetFloat(testGridTopic)
	require.True(t, ok)
	assert.Equal(t, 150.0, grid.Current)
}

func TestApplyMessage_ParseFailureKeepsLastValue(t *testing.T) {
	topicData := make(map[string]any)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	applyMessage(topicData, SensorMessage{Topic: testPVTopic, Value: "1200", Timestamp: at}, testBooleanTopics)

	for _, bad := range []string{"abc", "NaN", "+Inf", "12W"} {
		emit, reason := applyMessage(topicData, SensorMessage{Topic: testPVTopic, Value: bad, Timestamp: at.Add(time.Second)}, testBooleanTopics)
		assert.False(t, emit, bad)
		assert.Equal(t, reasonParse, reason, bad)
	}

	data := DisplayData{TopicData: topicData}
	pv, ok := data.GetFloat(testPVTopic)
	require.True(t, ok)
	assert.Equal(t, 1200.0, pv.Current)
	assert.Equal(t, at, pv.Timestamp)
}

func TestApplyMessage_Boolean(t *testing.T) {
	topicData := make(map[string]any)

	emit, reason := applyMessage(topicData, SensorMessage{Topic: testWorkdayTopic, Value: "OFF"}, testBooleanTopics)
	assert.True(t, emit)
	assert.Empty(t, reason)

	data := DisplayData{TopicData: topicData}
	workday, ok := data.GetBoolean(testWorkdayTopic)
	require.True(t, ok)
	assert.False(t, workday)

	emit, reason = applyMessage(topicData, SensorMessage{Topic: testWorkdayTopic, Value: "maybe"}, testBooleanTopics)
	assert.False(t, emit)
	assert.Equal(t, reasonParse, reason)

	applyMessage(topicData, SensorMessage{Topic: testWorkdayTopic, Value: "unavailable"}, testBooleanTopics)
	_, ok = data.GetBoolean(testWorkdayTopic)
	assert.False(t, ok)
}

func TestApplyMessage_SentinelBeforeFirstReading(t *testing.T) {
	topicData := make(map[string]any)

	emit, reason := applyMessage(topicData, SensorMessage{Topic: testWorkdayTopic, Value: "unknown"}, testBooleanTopics)
	assert.True(t, emit)
	assert.Equal(t, reasonUnavailable, reason)
	assert.IsType(t, &BooleanTopicData{}, topicData[testWorkdayTopic])

	applyMessage(topicData, SensorMessage{Topic: testGridTopic, Value: "unknown"}, testBooleanTopics)
	assert.IsType(t, &FloatTopicData{}, topicData[testGridTopic])
}

func TestCloneTopicData_IsIndependent(t *testing.T) {
	topicData := map[string]any{
		testGridTopic:    &FloatTopicData{Current: 100, Valid: true},
		testWorkdayTopic: &BooleanTopicData{Current: true, Valid: true},
	}

	clone := cloneTopicData(topicData)
	topicData[testGridTopic].(*FloatTopicData).Current = 999
	topicData[testWorkdayTopic].(*BooleanTopicData).Current = false

	assert.Equal(t, 100.0, clone[testGridTopic].(*FloatTopicData).Current)
	assert.True(t, clone[testWorkdayTopic].(*BooleanTopicData).Current)
}

func TestGetFloat_WrongType(t *testing.T) {
	data := DisplayData{TopicData: map[string]any{
		testWorkdayTopic: &BooleanTopicData{Current: true, Valid: true},
	}}

	_, ok := data.GetFloat(testWorkdayTopic)
	assert.False(t, ok)
	_, ok = data.GetFloat("missing")
	assert.False(t, ok)
}
