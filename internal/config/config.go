package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel             string        `json:"log_level" yaml:"log_level"`
	LogFormat            string        `json:"log_format" yaml:"log_format"`
	WindowSeconds        int           `json:"window_seconds" yaml:"window_seconds"`
	SweepIntervalSeconds int           `json:"sweep_interval_seconds" yaml:"sweep_interval_seconds"`
	Ingest               IngestConfig  `json:"ingest" yaml:"ingest"`
	Hub                  HubConfig     `json:"hub" yaml:"hub"`
	API                  APIConfig     `json:"api" yaml:"api"`
	Storage              StorageConfig `json:"storage" yaml:"storage"`
}

type IngestConfig struct {
	ChannelBuffer int         `json:"channel_buffer" yaml:"channel_buffer"`
	MQTT          MQTTConfig  `json:"mqtt" yaml:"mqtt"`
	Kafka         KafkaConfig `json:"kafka" yaml:"kafka"`
	REST          RESTConfig  `json:"rest" yaml:"rest"`
}

type MQTTConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	BrokerURL string `json:"broker_url" yaml:"broker_url"`
	Topic     string `json:"topic" yaml:"topic"`
	ClientID  string `json:"client_id" yaml:"client_id"`
	KeepAlive uint16 `json:"keep_alive" yaml:"keep_alive"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type HubConfig struct {
	ObserverBuffer int `json:"observer_buffer" yaml:"observer_buffer"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "json",
		WindowSeconds:        60,
		SweepIntervalSeconds: 30,
		Ingest: IngestConfig{
			ChannelBuffer: 10000,
			MQTT: MQTTConfig{
				Enabled:   true,
				BrokerURL: "tcp://localhost:1883",
				Topic:     "machines/+/scrap",
				ClientID:  "scrapwatch",
				KeepAlive: 30,
			},
			Kafka: KafkaConfig{Enabled: false},
			REST:  RESTConfig{Enabled: false, Addr: ":8085"},
		},
		Hub:     HubConfig{ObserverBuffer: 16},
		API:     APIConfig{Enabled: true, Addr: ":8080"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:scrapwatch.db?_pragma=busy_timeout(5000)"},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	if looksLikeJSON(trimmed) {
		if err := json.Unmarshal([]byte(trimmed), cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 10000
	}
	if cfg.Hub.ObserverBuffer <= 0 {
		cfg.Hub.ObserverBuffer = 16
	}
	if cfg.Ingest.MQTT.ClientID == "" {
		cfg.Ingest.MQTT.ClientID = "scrapwatch"
	}
	if cfg.Ingest.MQTT.KeepAlive == 0 {
		cfg.Ingest.MQTT.KeepAlive = 30
	}
}

func Validate(cfg *Config) error {
	if cfg.WindowSeconds <= 0 {
		return errors.New("window_seconds must be > 0")
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.MQTT.Enabled {
		if cfg.Ingest.MQTT.BrokerURL == "" || cfg.Ingest.MQTT.Topic == "" {
			return errors.New("ingest.mqtt requires broker_url and topic")
		}
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Storage.Enabled {
		switch strings.ToLower(cfg.Storage.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			return fmt.Errorf("storage.driver unsupported: %q", cfg.Storage.Driver)
		}
	}
	return nil
}
