package main

import (
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"

	"github.com/ryansname/energyctl/src/energy"
)

// ReadoutSpec describes one value published to Home Assistant
type ReadoutSpec struct {
	Key              string
	Name             string
	DeviceClass      string
	Unit             string
	StateClass       string
	Icon             string
	DisplayPrecision int
	Options          []string // enum device class only
}

const deviceID = "energyctl"

// StateTopic is where the readout's value is published
func (r ReadoutSpec) StateTopic() string {
	return "homeassistant/sensor/" + deviceID + "_" + r.Key + "/state"
}

// AttributesTopic is where the readout's JSON attributes are published
func (r ReadoutSpec) AttributesTopic() string {
	return "homeassistant/sensor/" + deviceID + "_" + r.Key + "/attributes"
}

// ConfigTopic is the MQTT discovery topic
func (r ReadoutSpec) ConfigTopic() string {
	return "homeassistant/sensor/" + deviceID + "_" + r.Key + "/config"
}

// EntityID is the entity id Home Assistant assigns from the discovery object_id
func (r ReadoutSpec) EntityID() string {
	return "sensor." + deviceID + "_" + r.Key
}

var (
	ReadoutTariff = ReadoutSpec{
		Key:         "tariff_period",
		Name:        "Tariff Period",
		DeviceClass: "enum",
		Icon:        "mdi:clock-time-four-outline",
		Options:     []string{energy.Punta.String(), energy.Llano.String(), energy.Valle.String()},
	}
	ReadoutNetBalance = ReadoutSpec{
		Key:              energy.NetBalance.Name,
		Name:             "Hourly Net Balance (Real)",
		DeviceClass:      "energy",
		Unit:             "Wh",
		StateClass:       "total",
		Icon:             "mdi:scale-balance",
		DisplayPrecision: 2,
	}
	ReadoutNetBalanceEstimate = ReadoutSpec{
		Key:              "net_balance_estimated",
		Name:             "Hourly Net Balance (Estimate)",
		DeviceClass:      "energy",
		Unit:             "Wh",
		Icon:             "mdi:chart-line",
		DisplayPrecision: 2,
	}
	ReadoutSurplusCurrent = ReadoutSpec{
		Key:              "surplus_current",
		Name:             "Surplus Current",
		DeviceClass:      "current",
		Unit:             "A",
		StateClass:       "measurement",
		Icon:             "mdi:flash-outline",
		DisplayPrecision: 2,
	}
	ReadoutHomeConsumption = ReadoutSpec{
		Key:              energy.HomeConsumption.Name,
		Name:             "Daily Home Consumption",
		DeviceClass:      "energy",
		Unit:             "Wh",
		StateClass:       "total_increasing",
		Icon:             "mdi:home-lightning-bolt",
		DisplayPrecision: 0,
	}
	ReadoutImported = ReadoutSpec{
		Key:              energy.Imported.Name,
		Name:             "Daily Imported Energy",
		DeviceClass:      "energy",
		Unit:             "Wh",
		StateClass:       "total_increasing",
		Icon:             "mdi:transmission-tower-import",
		DisplayPrecision: 0,
	}
	ReadoutExported = ReadoutSpec{
		Key:              energy.Exported.Name,
		Name:             "Daily Exported Energy",
		DeviceClass:      "energy",
		Unit:             "Wh",
		StateClass:       "total_increasing",
		Icon:             "mdi:transmission-tower-export",
		DisplayPrecision: 0,
	}
)

// Readouts lists every readout in publishing order
func Readouts() []ReadoutSpec {
	return []ReadoutSpec{
		ReadoutTariff,
		ReadoutNetBalance,
		ReadoutNetBalanceEstimate,
		ReadoutSurplusCurrent,
		ReadoutHomeConsumption,
		ReadoutImported,
		ReadoutExported,
	}
}

// readoutForVariant maps an accumulator to the readout it feeds
func readoutForVariant(v energy.Variant) (ReadoutSpec, bool) {
	for _, r := range Readouts() {
		if r.Key == v.Name {
			return r, true
		}
	}
	return ReadoutSpec{}, false
}

// formatState renders a numeric readout state with two decimals
func formatState(v float64) string {
	return strconv.FormatFloat(energy.Round2(v), 'f', 2, 64)
}

// ReadoutValue is the last published state of a readout
type ReadoutValue struct {
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	State      string         `json:"state"`
	Unit       string         `json:"unit,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ReadoutRegistry keeps the latest published readouts for the status API and debug console
type ReadoutRegistry struct {
	mu     sync.RWMutex
	values map[string]ReadoutValue
}

func NewReadoutRegistry() *ReadoutRegistry {
	return &ReadoutRegistry{values: make(map[string]ReadoutValue)}
}

func (r *ReadoutRegistry) Set(v ReadoutValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[v.Key] = v
}

func (r *ReadoutRegistry) Get(key string) (ReadoutValue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok
}

// All returns every readout sorted by key
func (r *ReadoutRegistry) All() []ReadoutValue {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]ReadoutValue, 0, len(r.values))
	for _, v := range r.values {
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Key < all[j].Key
	})
	return all
}

// ReadoutPublisher sends readout states to MQTT and records them locally
type ReadoutPublisher struct {
	sender   *MQTTSender
	registry *ReadoutRegistry
	metrics  *Metrics
	clock    clock.Clock
}

func NewReadoutPublisher(sender *MQTTSender, registry *ReadoutRegistry, metrics *Metrics, clk clock.Clock) *ReadoutPublisher {
	return &ReadoutPublisher{
		sender:   sender,
		registry: registry,
		metrics:  metrics,
		clock:    clk,
	}
}

// Publish sends the state and, when given, the attributes of a readout
func (p *ReadoutPublisher) Publish(spec ReadoutSpec, state string, attributes map[string]any) {
	p.sender.Send(MQTTMessage{
		Topic:   spec.StateTopic(),
		Payload: []byte(state),
		QoS:     0,
		Retain:  true,
	})

	if attributes != nil {
		payload, err := json.Marshal(attributes)
		if err != nil {
			log.Errorf("%s: failed to marshal attributes: %v", spec.Key, err)
		} else {
			p.sender.Send(MQTTMessage{
				Topic:   spec.AttributesTopic(),
				Payload: payload,
				QoS:     0,
				Retain:  true,
			})
		}
	}

	p.registry.Set(ReadoutValue{
		Key:        spec.Key,
		Name:       spec.Name,
		State:      state,
		Unit:       spec.Unit,
		Attributes: attributes,
		UpdatedAt:  p.clock.Now(),
	})
	p.metrics.Published(spec.Key)
}

// PublishFloat publishes a numeric readout
func (p *ReadoutPublisher) PublishFloat(spec ReadoutSpec, v float64) {
	p.Publish(spec, formatState(v), nil)
}
