package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"smart_bartender/internal/hardware"

	"github.com/spf13/viper"
)

const envPrefix = "BARTENDER"

type Config struct {
	Host        string         `mapstructure:"host"`
	Port        string         `mapstructure:"port"`
	RecipesPath string         `mapstructure:"recipes_path"`
	Log         LogConfig      `mapstructure:"log"`
	DB          DBConfig       `mapstructure:"db"`
	Auth        AuthConfig     `mapstructure:"auth"`
	Hardware    HardwareConfig `mapstructure:"hardware"`
	Bar         BarConfig      `mapstructure:"bar"`
	Monitor     MonitorConfig  `mapstructure:"monitor"`
	MQTT        MQTTConfig     `mapstructure:"mqtt"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"` // empty disables the file sink
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type HardwareConfig struct {
	Backend string `mapstructure:"backend"` // simulation | gpio
	Chip    string `mapstructure:"chip"`
	// SimFillTime is how long the simulated pump must run to lift a
	// reservoir back over its float switch. Zero disables the model.
	SimFillTime time.Duration `mapstructure:"sim_fill_time"`
}

// Channel is one reservoir with its pump, valve and float switch.
type Channel struct {
	ID          int     `mapstructure:"id"`
	Ingredient  string  `mapstructure:"ingredient"`
	PumpPin     int     `mapstructure:"pump_pin"`
	ValvePin    int     `mapstructure:"valve_pin"`
	FloatPin    int     `mapstructure:"float_pin"`
	CapacityML  float64 `mapstructure:"capacity_ml"`
	MLPerSecond float64 `mapstructure:"ml_per_second"`
}

type BarConfig struct {
	Channels          []Channel     `mapstructure:"channels"`
	RefillThresholdML float64       `mapstructure:"refill_threshold_ml"`
	PumpFlowMLPerMin  float64       `mapstructure:"pump_flow_ml_per_min"`
	MaxPour           time.Duration `mapstructure:"max_pour"`
	MaxPump           time.Duration `mapstructure:"max_pump"`
	RefillTimeout     time.Duration `mapstructure:"refill_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	PourWithPump      bool          `mapstructure:"pour_with_pump"`
}

type MonitorConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	AutoRefill bool          `mapstructure:"auto_refill"`
}

// MQTTConfig enables event publishing when Broker is set.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

// Load reads the config file at path, applies defaults and BARTENDER_*
// environment overrides, and validates the result. An empty path loads
// configs/config.yml relative to the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	} else {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "5000")
	v.SetDefault("recipes_path", "recipes.json")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/bartender.log")

	v.SetDefault("db.path", "bartender.db")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", "12h")

	v.SetDefault("hardware.backend", hardware.BackendSimulation)
	v.SetDefault("hardware.chip", "gpiochip4")
	v.SetDefault("hardware.sim_fill_time", "3s")

	v.SetDefault("bar.channels", []map[string]any{
		{"id": 1, "ingredient": "Vodka", "pump_pin": 17, "valve_pin": 24, "float_pin": 16, "capacity_ml": 400, "ml_per_second": 8},
		{"id": 2, "ingredient": "Rum", "pump_pin": 27, "valve_pin": 25, "float_pin": 20, "capacity_ml": 400, "ml_per_second": 8},
		{"id": 3, "ingredient": "Orange Juice", "pump_pin": 22, "valve_pin": 5, "float_pin": 21, "capacity_ml": 400, "ml_per_second": 8},
		{"id": 4, "ingredient": "Cranberry Juice", "pump_pin": 23, "valve_pin": 6, "float_pin": 26, "capacity_ml": 400, "ml_per_second": 8},
	})
	v.SetDefault("bar.refill_threshold_ml", 100)
	v.SetDefault("bar.pump_flow_ml_per_min", 220)
	v.SetDefault("bar.max_pour", "30s")
	v.SetDefault("bar.max_pump", "180s")
	v.SetDefault("bar.refill_timeout", "120s")
	v.SetDefault("bar.poll_interval", "500ms")
	v.SetDefault("bar.pour_with_pump", true)

	v.SetDefault("monitor.interval", "2s")
	v.SetDefault("monitor.auto_refill", true)

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "bartender/events")
	v.SetDefault("mqtt.client_id", "smart-bartender")
}

// Validate checks the invariants the coordinator relies on.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Bar.Channels) == 0 {
		errs = append(errs, errors.New("bar.channels: at least one channel is required"))
	}
	ids := make(map[int]bool, len(c.Bar.Channels))
	pins := make(map[int]string)
	claim := func(pin int, what string) {
		if prev, ok := pins[pin]; ok {
			errs = append(errs, fmt.Errorf("pin %d used by both %s and %s", pin, prev, what))
			return
		}
		pins[pin] = what
	}
	for _, ch := range c.Bar.Channels {
		if ch.ID <= 0 {
			errs = append(errs, fmt.Errorf("channel id %d: must be positive", ch.ID))
		}
		if ids[ch.ID] {
			errs = append(errs, fmt.Errorf("channel id %d: duplicated", ch.ID))
		}
		ids[ch.ID] = true
		if ch.CapacityML <= 0 {
			errs = append(errs, fmt.Errorf("channel %d: capacity_ml must be > 0", ch.ID))
		}
		if ch.MLPerSecond <= 0 {
			errs = append(errs, fmt.Errorf("channel %d: ml_per_second must be > 0", ch.ID))
		}
		if c.Bar.RefillThresholdML > ch.CapacityML {
			errs = append(errs, fmt.Errorf("channel %d: refill threshold above capacity", ch.ID))
		}
		if c.Hardware.Backend == hardware.BackendGPIO {
			claim(ch.PumpPin, fmt.Sprintf("pump %d", ch.ID))
			claim(ch.ValvePin, fmt.Sprintf("valve %d", ch.ID))
			claim(ch.FloatPin, fmt.Sprintf("float %d", ch.ID))
		}
	}

	if c.Bar.RefillThresholdML < 0 {
		errs = append(errs, errors.New("bar.refill_threshold_ml must be >= 0"))
	}
	if c.Bar.PumpFlowMLPerMin < 0 {
		errs = append(errs, errors.New("bar.pump_flow_ml_per_min must be >= 0"))
	}
	for name, d := range map[string]time.Duration{
		"bar.max_pour":       c.Bar.MaxPour,
		"bar.max_pump":       c.Bar.MaxPump,
		"bar.refill_timeout": c.Bar.RefillTimeout,
		"bar.poll_interval":  c.Bar.PollInterval,
		"monitor.interval":   c.Monitor.Interval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", name))
		}
	}

	switch c.Hardware.Backend {
	case hardware.BackendSimulation, hardware.BackendGPIO:
	default:
		errs = append(errs, fmt.Errorf("hardware.backend %q: want simulation or gpio", c.Hardware.Backend))
	}
	if c.Hardware.Backend == hardware.BackendGPIO && c.Hardware.Chip == "" {
		errs = append(errs, errors.New("hardware.chip is required for the gpio backend"))
	}

	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		errs = append(errs, errors.New("mqtt.topic is required when mqtt.broker is set"))
	}

	return errors.Join(errs...)
}

// Wiring returns the pin map used by the hardware backends.
func (b BarConfig) Wiring() map[int]hardware.Pins {
	w := make(map[int]hardware.Pins, len(b.Channels))
	for _, ch := range b.Channels {
		w[ch.ID] = hardware.Pins{Pump: ch.PumpPin, Valve: ch.ValvePin, Float: ch.FloatPin}
	}
	return w
}

// ChannelIDs returns the configured reservoir ids in file order.
func (b BarConfig) ChannelIDs() []int {
	ids := make([]int, 0, len(b.Channels))
	for _, ch := range b.Channels {
		ids = append(ids, ch.ID)
	}
	return ids
}

// Addr is host:port for the HTTP server.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}
