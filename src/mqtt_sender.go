package main

import (
	"context"
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// TopicAvailability carries the service's online/offline state for every readout entity
const TopicAvailability = deviceID + "/availability"

// MQTTMessage represents an outgoing MQTT message
type MQTTMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MQTTSender wraps a channel for sending MQTT messages with helper methods
type MQTTSender struct {
	ch chan<- MQTTMessage
}

// NewMQTTSender creates a new MQTTSender wrapping the given channel
func NewMQTTSender(ch chan<- MQTTMessage) *MQTTSender {
	return &MQTTSender{ch: ch}
}

// Send sends a raw MQTTMessage
func (s *MQTTSender) Send(msg MQTTMessage) {
	s.ch <- msg
}

type haDeviceConfig struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

type haEntityConfig struct {
	Name                string         `json:"name"`
	ObjectId            string         `json:"object_id"`
	UniqueId            string         `json:"unique_id"`
	DeviceClass         string         `json:"device_class,omitempty"`
	StateTopic          string         `json:"state_topic"`
	JsonAttributesTopic string         `json:"json_attributes_topic,omitempty"`
	AvailabilityTopic   string         `json:"availability_topic"`
	UnitOfMeasure       string         `json:"unit_of_measurement,omitempty"`
	StateClass          string         `json:"state_class,omitempty"`
	DisplayPrecision    *int           `json:"suggested_display_precision,omitempty"`
	Icon                string         `json:"icon,omitempty"`
	Options             []string       `json:"options,omitempty"`
	Device              haDeviceConfig `json:"device"`
}

// readoutEntityConfig builds the discovery payload for a readout
func readoutEntityConfig(spec ReadoutSpec) haEntityConfig {
	config := haEntityConfig{
		Name:                spec.Name,
		ObjectId:            deviceID + "_" + spec.Key,
		UniqueId:            deviceID + "_" + spec.Key,
		DeviceClass:         spec.DeviceClass,
		StateTopic:          spec.StateTopic(),
		JsonAttributesTopic: spec.AttributesTopic(),
		AvailabilityTopic:   TopicAvailability,
		UnitOfMeasure:       spec.Unit,
		StateClass:          spec.StateClass,
		Icon:                spec.Icon,
		Options:             spec.Options,
		Device: haDeviceConfig{
			Identifiers:  []string{deviceID},
			Name:         "Energy Manager",
			Manufacturer: "Custom",
			Model:        "2.0TD",
		},
	}
	if spec.DeviceClass != "enum" {
		precision := spec.DisplayPrecision
		config.DisplayPrecision = &precision
	}
	return config
}

// CreateReadoutEntity creates a Home Assistant sensor for a readout via MQTT discovery
func (s *MQTTSender) CreateReadoutEntity(spec ReadoutSpec) error {
	payload, err := json.Marshal(readoutEntityConfig(spec))
	if err != nil {
		return err
	}

	s.Send(MQTTMessage{
		Topic:   spec.ConfigTopic(),
		Payload: payload,
		QoS:     2,
		Retain:  true,
	})

	return nil
}

// publish sends a message on a connected client and logs failures
func publish(client mqtt.Client, msg MQTTMessage) {
	token := client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
	token.Wait()
	if token.Error() != nil {
		log.Errorf("Failed to publish to %s: %v", msg.Topic, token.Error())
	}
}

// mqttSenderWorker handles outgoing MQTT messages, queuing them until a client is connected
func mqttSenderWorker(
	ctx context.Context,
	outgoingChan <-chan MQTTMessage,
	clientChan <-chan mqtt.Client,
) {
	log.Info("MQTT sender worker started")

	var client mqtt.Client
	var messageQueue []MQTTMessage

	for {
		select {
		case newClient := <-clientChan:
			log.Debug("MQTT sender worker received new client")
			client = newClient

			if client != nil && client.IsConnected() {
				queuedCount := len(messageQueue)
				for _, msg := range messageQueue {
					publish(client, msg)
				}
				messageQueue = nil
				if queuedCount > 0 {
					log.Infof("MQTT sender worker processed %d queued messages", queuedCount)
				}
			}

		case msg := <-outgoingChan:
			if client != nil && client.IsConnected() {
				publish(client, msg)
			} else {
				messageQueue = append(messageQueue, msg)
				log.Debugf("MQTT sender worker queued message (total queued: %d)", len(messageQueue))
			}

		case <-ctx.Done():
			log.Info("MQTT sender worker stopped")
			return
		}
	}
}
