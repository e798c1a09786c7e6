package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/ryansname/energyctl/src/energy"
)

var (
	ErrMissingGridTopic       = errors.New("sensors.grid_topic must be set")
	ErrMissingProductionTopic = errors.New("sensors.production_topic must be set")
)

// Config holds everything the service reads at startup
type Config struct {
	MQTT        MQTTConfig    `mapstructure:"mqtt"`
	Sensors     SensorsConfig `mapstructure:"sensors"`
	Tariff      TariffConfig  `mapstructure:"tariff"`
	HTTP        HTTPConfig    `mapstructure:"http"`
	Location    string        `mapstructure:"location"`
	LineVoltage float64       `mapstructure:"line_voltage"`
	StateFile   string        `mapstructure:"state_file"`
	LogLevel    string        `mapstructure:"log_level"`

	loc *time.Location
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
}

// SensorsConfig names the MQTT state topics of the observed sensors
type SensorsConfig struct {
	GridTopic       string `mapstructure:"grid_topic"`
	ProductionTopic string `mapstructure:"production_topic"`
	WorkdayTopic    string `mapstructure:"workday_topic"` // optional, "off" means holiday
}

// Topics returns the topics to subscribe to
func (s SensorsConfig) Topics() []string {
	topics := []string{s.GridTopic, s.ProductionTopic}
	if s.WorkdayTopic != "" {
		topics = append(topics, s.WorkdayTopic)
	}
	return topics
}

// TariffConfig holds contracted power in kW
type TariffConfig struct {
	PowerValle float64 `mapstructure:"power_valle"`
	PowerPunta float64 `mapstructure:"power_punta"`
}

// ContractedPower converts the tariff config for the classifier
func (t TariffConfig) ContractedPower() energy.ContractedPower {
	return energy.ContractedPower{OffPeak: t.PowerValle, Peak: t.PowerPunta}
}

type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

// Loc returns the time zone tariff periods and reset boundaries are evaluated in
func (c *Config) Loc() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mqtt.broker", "tcp://homeassistant.lan:1883")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("sensors.grid_topic", "")
	v.SetDefault("sensors.production_topic", "")
	v.SetDefault("sensors.workday_topic", "")
	v.SetDefault("tariff.power_valle", 3.0)
	v.SetDefault("tariff.power_punta", 4.0)
	v.SetDefault("http.listen", ":8089")
	v.SetDefault("location", "Europe/Madrid")
	v.SetDefault("line_voltage", energy.DefaultLineVoltage)
	v.SetDefault("state_file", "energyctl_state.yaml")
	v.SetDefault("log_level", "info")
}

// loadConfig reads config.yaml (or the given file) plus ENERGYCTL_* environment overrides
func loadConfig(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("energyctl")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Info("Config file not found, using defaults and environment")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Credentials usually come from .env
	if config.MQTT.Username == "" {
		config.MQTT.Username = os.Getenv("MQTT_USERNAME")
	}
	if config.MQTT.Password == "" {
		config.MQTT.Password = os.Getenv("MQTT_PASSWORD")
	}
	if config.MQTT.ClientID == "" {
		config.MQTT.ClientID = "energyctl-" + uuid.NewString()[:8]
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.Sensors.GridTopic == "" {
		return ErrMissingGridTopic
	}
	if c.Sensors.ProductionTopic == "" {
		return ErrMissingProductionTopic
	}
	if c.Tariff.PowerValle <= 0 || c.Tariff.PowerPunta <= 0 {
		return fmt.Errorf("contracted power must be positive (valle=%.2f, punta=%.2f)",
			c.Tariff.PowerValle, c.Tariff.PowerPunta)
	}
	if c.LineVoltage <= 0 {
		return fmt.Errorf("line_voltage must be positive, got %.1f", c.LineVoltage)
	}

	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return fmt.Errorf("invalid location %q: %w", c.Location, err)
	}
	c.loc = loc

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}
