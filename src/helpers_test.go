package main

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

var testSensors = SensorsConfig{
	GridTopic:       testGridTopic,
	ProductionTopic: testPVTopic,
	WorkdayTopic:    testWorkdayTopic,
}

// testPublisher bundles a publisher with the channel and registry it writes to
type testPublisher struct {
	*ReadoutPublisher
	outgoing chan MQTTMessage
	registry *ReadoutRegistry
	metrics  *Metrics
	clock    *clock.Mock
}

func newTestPublisher(t *testing.T, now time.Time) *testPublisher {
	t.Helper()
	outgoing := make(chan MQTTMessage, 1000)
	registry := NewReadoutRegistry()
	metrics := NewMetrics()
	mock := clock.NewMock()
	mock.Set(now)

	return &testPublisher{
		ReadoutPublisher: NewReadoutPublisher(NewMQTTSender(outgoing), registry, metrics, mock),
		outgoing:         outgoing,
		registry:         registry,
		metrics:          metrics,
		clock:            mock,
	}
}

// state returns the last published state of a readout
func (p *testPublisher) state(t *testing.T, spec ReadoutSpec) string {
	t.Helper()
	v, ok := p.registry.Get(spec.Key)
	require.True(t, ok, "readout %s not published", spec.Key)
	return v.State
}

// drain returns every message sent so far
func (p *testPublisher) drain() []MQTTMessage {
	var msgs []MQTTMessage
	for {
		select {
		case msg := <-p.outgoing:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// gridSnapshot builds the snapshot the readings worker emits for a grid update
func gridSnapshot(at time.Time, grid float64, production *float64) DisplayData {
	topicData := map[string]any{
		testGridTopic: &FloatTopicData{Current: grid, Timestamp: at, Valid: true},
	}
	if production != nil {
		topicData[testPVTopic] = &FloatTopicData{Current: *production, Timestamp: at, Valid: true}
	}
	return DisplayData{Trigger: testGridTopic, Timestamp: at, TopicData: topicData}
}

func ptr(v float64) *float64 {
	return &v
}
