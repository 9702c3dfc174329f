package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"smart_bartender/internal/hardware"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	cfg, err := Load(writeConfig(t, "port: \"8081\"\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8081" {
		t.Fatalf("port = %q, want 8081", cfg.Port)
	}
	if len(cfg.Bar.Channels) != 4 {
		t.Fatalf("want 4 default channels, got %d", len(cfg.Bar.Channels))
	}
	if cfg.Bar.Channels[2].Ingredient != "Orange Juice" || cfg.Bar.Channels[2].ValvePin != 5 {
		t.Fatalf("unexpected channel 3: %+v", cfg.Bar.Channels[2])
	}
	if cfg.Bar.MaxPour != 30*time.Second || cfg.Bar.MaxPump != 180*time.Second {
		t.Fatalf("unexpected limits: pour=%v pump=%v", cfg.Bar.MaxPour, cfg.Bar.MaxPump)
	}
	if cfg.Bar.RefillTimeout != 120*time.Second || cfg.Bar.PollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected refill timing: %v %v", cfg.Bar.RefillTimeout, cfg.Bar.PollInterval)
	}
	if cfg.Bar.RefillThresholdML != 100 || cfg.Bar.PumpFlowMLPerMin != 220 {
		t.Fatalf("unexpected calibration: %+v", cfg.Bar)
	}
	if !cfg.Bar.PourWithPump || !cfg.Monitor.AutoRefill {
		t.Fatalf("boolean defaults not applied")
	}
	if cfg.Hardware.Backend != hardware.BackendSimulation || cfg.Hardware.Chip != "gpiochip4" {
		t.Fatalf("unexpected hardware: %+v", cfg.Hardware)
	}
	if cfg.Addr() != "0.0.0.0:8081" {
		t.Fatalf("Addr() = %q", cfg.Addr())
	}
}

func TestLoad_ChannelsFromFile(t *testing.T) {
	body := `
bar:
  max_pour: "5s"
  channels:
    - { id: 7, ingredient: "Gin", pump_pin: 2, valve_pin: 3, float_pin: 4, capacity_ml: 750, ml_per_second: 12.5 }
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Bar.Channels) != 1 {
		t.Fatalf("want 1 channel, got %d", len(cfg.Bar.Channels))
	}
	ch := cfg.Bar.Channels[0]
	if ch.ID != 7 || ch.CapacityML != 750 || ch.MLPerSecond != 12.5 {
		t.Fatalf("unexpected channel: %+v", ch)
	}
	if cfg.Bar.MaxPour != 5*time.Second {
		t.Fatalf("max_pour = %v", cfg.Bar.MaxPour)
	}
	if got := cfg.Bar.Wiring()[7]; got != (hardware.Pins{Pump: 2, Valve: 3, Float: 4}) {
		t.Fatalf("wiring = %+v", got)
	}
	if ids := cfg.Bar.ChannelIDs(); len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("ChannelIDs = %v", ids)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BARTENDER_PORT", "9090")
	t.Setenv("BARTENDER_BAR_MAX_POUR", "10s")

	cfg, err := Load(writeConfig(t, "port: \"5000\"\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("port = %q, want env override", cfg.Port)
	}
	if cfg.Bar.MaxPour != 10*time.Second {
		t.Fatalf("max_pour = %v, want env override", cfg.Bar.MaxPour)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"no channels", func(c *Config) { c.Bar.Channels = nil }, "at least one channel"},
		{"dup id", func(c *Config) { c.Bar.Channels[1].ID = 1 }, "duplicated"},
		{"zero rate", func(c *Config) { c.Bar.Channels[0].MLPerSecond = 0 }, "ml_per_second"},
		{"zero capacity", func(c *Config) { c.Bar.Channels[0].CapacityML = 0 }, "capacity_ml"},
		{"threshold above capacity", func(c *Config) { c.Bar.RefillThresholdML = 500 }, "threshold above capacity"},
		{"zero max pour", func(c *Config) { c.Bar.MaxPour = 0 }, "bar.max_pour"},
		{"bad backend", func(c *Config) { c.Hardware.Backend = "serial" }, "hardware.backend"},
		{"gpio pin clash", func(c *Config) {
			c.Hardware.Backend = hardware.BackendGPIO
			c.Bar.Channels[1].PumpPin = 17
		}, "pin 17"},
		{"mqtt without topic", func(c *Config) { c.MQTT.Broker = "tcp://x:1883"; c.MQTT.Topic = "" }, "mqtt.topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("want error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
