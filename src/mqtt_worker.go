package main

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// mqttWorker manages the MQTT connection and forwards sensor payloads to a channel
func mqttWorker(
	ctx context.Context,
	clk clock.Clock,
	config MQTTConfig,
	topics []string,
	msgChan chan<- SensorMessage,
	clientChan chan<- mqtt.Client,
) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetWill(TopicAvailability, "offline", 1, true)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warnf("MQTT connection lost: %v", err)
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Infof("Connected to MQTT broker at %s", config.Broker)

		publish(client, MQTTMessage{Topic: TopicAvailability, Payload: []byte("online"), QoS: 1, Retain: true})

		// Hand the new client to the sender worker so queued readouts go out
		select {
		case clientChan <- client:
		case <-ctx.Done():
			return
		}

		for _, topic := range topics {
			token := client.Subscribe(topic, 0, func(client mqtt.Client, msg mqtt.Message) {
				// Sentinels are forwarded too; the readings worker decides what is usable
				sensorMsg := SensorMessage{
					Topic:     msg.Topic(),
					Value:     string(msg.Payload()),
					Timestamp: clk.Now(),
				}
				select {
				case msgChan <- sensorMsg:
				case <-ctx.Done():
					return
				}
			})

			if token.Wait() && token.Error() != nil {
				log.Errorf("Failed to subscribe to topic %s: %v", topic, token.Error())
			} else {
				log.Infof("Subscribed to topic: %s", topic)
			}
		}
	})

	client := mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s...", config.Broker)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		// Panicking hands the retry to SafeGo's back-off
		log.Panicf("Failed to connect to MQTT broker: %v", token.Error())
	}

	<-ctx.Done()

	if client.IsConnected() {
		publish(client, MQTTMessage{Topic: TopicAvailability, Payload: []byte("offline"), QoS: 1, Retain: true})
		client.Disconnect(250)
		log.Info("Disconnected from MQTT broker")
	}
}
