package main

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// SensorMessage represents an MQTT message with topic, payload and arrival time
type SensorMessage struct {
	Topic     string
	Value     string
	Timestamp time.Time
}

// FloatTopicData holds the latest numeric reading of a topic
type FloatTopicData struct {
	Current   float64
	Timestamp time.Time
	Valid     bool // false while the source reports unavailable
}

// BooleanTopicData holds the latest on/off reading of a topic
type BooleanTopicData struct {
	Current   bool
	Timestamp time.Time
	Valid     bool
}

// DisplayData is a snapshot of every reading, sent downstream on each message
type DisplayData struct {
	Trigger   string // topic whose message produced this snapshot
	Timestamp time.Time
	TopicData map[string]any
}

// GetFloat returns the reading for a topic if it is known and currently valid
func (d *DisplayData) GetFloat(topic string) (FloatTopicData, bool) {
	if td, ok := d.TopicData[topic].(*FloatTopicData); ok && td.Valid {
		return *td, true
	}
	return FloatTopicData{}, false
}

// GetBoolean returns the reading for an on/off topic if it is known and currently valid
func (d *DisplayData) GetBoolean(topic string) (bool, bool) {
	if td, ok := d.TopicData[topic].(*BooleanTopicData); ok && td.Valid {
		return td.Current, true
	}
	return false, false
}

// isSentinel reports payloads Home Assistant uses when a sensor has dropped out
func isSentinel(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "unavailable", "unknown", "undefined", "none":
		return true
	}
	return false
}

// applyMessage folds one message into topicData.
// It returns whether a snapshot should be emitted and, for ignored payloads, the reason.
func applyMessage(topicData map[string]any, msg SensorMessage, booleanTopics map[string]bool) (bool, string) {
	if isSentinel(msg.Value) {
		switch d := topicData[msg.Topic].(type) {
		case *FloatTopicData:
			d.Valid = false
			d.Timestamp = msg.Timestamp
		case *BooleanTopicData:
			d.Valid = false
			d.Timestamp = msg.Timestamp
		default:
			if booleanTopics[msg.Topic] {
				topicData[msg.Topic] = &BooleanTopicData{Timestamp: msg.Timestamp}
			} else {
				topicData[msg.Topic] = &FloatTopicData{Timestamp: msg.Timestamp}
			}
		}
		return true, reasonUnavailable
	}

	value := strings.TrimSpace(msg.Value)

	if booleanTopics[msg.Topic] {
		lower := strings.ToLower(value)
		if lower != "on" && lower != "off" {
			return false, reasonParse
		}
		topicData[msg.Topic] = &BooleanTopicData{
			Current:   lower == "on",
			Timestamp: msg.Timestamp,
			Valid:     true,
		}
		return true, ""
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return false, reasonParse
	}
	topicData[msg.Topic] = &FloatTopicData{
		Current:   f,
		Timestamp: msg.Timestamp,
		Valid:     true,
	}
	return true, ""
}

// cloneTopicData creates a deep copy of topicData for safe concurrent access
func cloneTopicData(topicData map[string]any) map[string]any {
	clone := make(map[string]any, len(topicData))
	for topic, data := range topicData {
		switch d := data.(type) {
		case *FloatTopicData:
			c := *d
			clone[topic] = &c
		case *BooleanTopicData:
			c := *d
			clone[topic] = &c
		}
	}
	return clone
}

// readingsWorker parses sensor messages and emits a snapshot for every usable one
func readingsWorker(
	ctx context.Context,
	msgChan <-chan SensorMessage,
	outputChan chan<- DisplayData,
	booleanTopics map[string]bool,
	metrics *Metrics,
) {
	log.Info("Readings worker started")

	topicData := make(map[string]any)

	for {
		select {
		case msg := <-msgChan:
			emit, reason := applyMessage(topicData, msg, booleanTopics)
			if reason != "" {
				metrics.SkipReading(msg.Topic, reason)
				log.WithFields(log.Fields{"topic": msg.Topic, "reason": reason}).
					Debugf("Ignoring reading %q", msg.Value)
			}
			if !emit {
				continue
			}

			data := DisplayData{
				Trigger:   msg.Topic,
				Timestamp: msg.Timestamp,
				TopicData: cloneTopicData(topicData),
			}
			select {
			case outputChan <- data:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			log.Info("Readings worker stopped")
			return
		}
	}
}
