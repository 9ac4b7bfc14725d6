package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.WindowSeconds != 60 {
		t.Fatalf("window_seconds default = %d, want 60", cfg.WindowSeconds)
	}
	if !cfg.Ingest.MQTT.Enabled {
		t.Fatal("mqtt ingest should default to enabled")
	}
	if cfg.Storage.Enabled {
		t.Fatal("storage should default to disabled")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log_level: debug
window_seconds: 30
ingest:
  mqtt:
    enabled: true
    broker_url: tcp://broker:1883
    topic: machines/+/scrap
hub:
  observer_buffer: 8
api:
  enabled: true
  addr: ":9090"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level = %q", cfg.LogLevel)
	}
	if cfg.WindowSeconds != 30 {
		t.Fatalf("window_seconds = %d, want 30", cfg.WindowSeconds)
	}
	if cfg.Ingest.MQTT.BrokerURL != "tcp://broker:1883" {
		t.Fatalf("broker_url = %q", cfg.Ingest.MQTT.BrokerURL)
	}
	if cfg.Hub.ObserverBuffer != 8 {
		t.Fatalf("observer_buffer = %d, want 8", cfg.Hub.ObserverBuffer)
	}
	if cfg.API.Addr != ":9090" {
		t.Fatalf("api.addr = %q", cfg.API.Addr)
	}
	// untouched sections keep their defaults
	if cfg.Ingest.ChannelBuffer != 10000 {
		t.Fatalf("channel_buffer = %d, want 10000", cfg.Ingest.ChannelBuffer)
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"window_seconds": 120, "api": {"enabled": true, "addr": ":8088"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WindowSeconds != 120 {
		t.Fatalf("window_seconds = %d, want 120", cfg.WindowSeconds)
	}
}

func TestValidateErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Addr = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled api without addr")
	}

	cfg = DefaultConfig()
	cfg.Ingest.MQTT.BrokerURL = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled mqtt without broker_url")
	}

	cfg = DefaultConfig()
	cfg.Ingest.Kafka.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for enabled kafka without brokers")
	}

	cfg = DefaultConfig()
	cfg.Storage.Enabled = true
	cfg.Storage.Driver = "mongodb"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
}
