// Package config loads the daemon configuration from YAML over compiled-in
// defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/garage-opener/internal/door"
	"github.com/sweeney/garage-opener/internal/gpio"
	"github.com/sweeney/garage-opener/internal/mqtt"
	"github.com/sweeney/garage-opener/internal/notify"
	"github.com/sweeney/garage-opener/internal/status"
	"github.com/sweeney/garage-opener/internal/tick"
)

// Config represents the overall daemon configuration.
type Config struct {
	TickPeriod  time.Duration `yaml:"tick_period"`
	TickMode    string        `yaml:"tick_mode"`
	Heartbeat   time.Duration `yaml:"heartbeat"` // 0 disables
	EventBuffer int           `yaml:"event_buffer"`

	GPIO   GPIOConfig   `yaml:"gpio"`
	Door   DoorConfig   `yaml:"door"`
	Timers TimersConfig `yaml:"timers"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
}

// GPIOConfig selects the chip and line offsets.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	LimitA    int    `yaml:"limit_a"`
	LimitB    int    `yaml:"limit_b"`
	Button    int    `yaml:"button"`
	RelayA    int    `yaml:"relay_a"`
	RelayB    int    `yaml:"relay_b"`
	Light     int    `yaml:"light"`
	ActiveLow bool   `yaml:"active_low"`
}

// DoorConfig holds wiring polarity options.
type DoorConfig struct {
	InvertMotor         bool `yaml:"invert_motor"`
	InvertLimitSwitches bool `yaml:"invert_limit_switches"`
}

// TimersConfig holds the controller timer durations.
type TimersConfig struct {
	LimitDebounce  time.Duration `yaml:"limit_debounce"`
	ButtonDebounce time.Duration `yaml:"button_debounce"`
	LightOn        time.Duration `yaml:"light_on"`
	MotorRunLimit  time.Duration `yaml:"motor_run_limit"`
	DoorOpenAlert  time.Duration `yaml:"door_open_alert"`
	ButtonCooldown time.Duration `yaml:"button_cooldown"`
}

// MQTTConfig holds the broker connection settings.
type MQTTConfig struct {
	Broker     string `yaml:"broker"` // empty disables MQTT
	ClientID   string `yaml:"client_id"`
	Prefix     string `yaml:"prefix"`
	BufferSize int    `yaml:"buffer_size"`
}

// HTTPConfig holds the status server settings.
type HTTPConfig struct {
	Addr           string        `yaml:"addr"` // empty disables HTTP
	TriggerRate    float64       `yaml:"trigger_rate"`
	TriggerBurst   int           `yaml:"trigger_burst"`
	AlertRetention time.Duration `yaml:"alert_retention"`
}

// Default returns the built-in configuration.
func Default() Config {
	g := gpio.DefaultConfig()
	return Config{
		TickPeriod:  tick.DefaultPeriod,
		TickMode:    tick.ModeLoop,
		Heartbeat:   15 * time.Minute,
		EventBuffer: notify.DefaultBuffer,
		GPIO: GPIOConfig{
			Chip:      g.Chip,
			LimitA:    g.LimitA,
			LimitB:    g.LimitB,
			Button:    g.Button,
			RelayA:    g.RelayA,
			RelayB:    g.RelayB,
			Light:     g.Light,
			ActiveLow: g.ActiveLow,
		},
		Timers: TimersConfig{
			LimitDebounce:  20 * time.Millisecond,
			ButtonDebounce: 20 * time.Millisecond,
			LightOn:        2 * time.Minute,
			MotorRunLimit:  30 * time.Second,
			DoorOpenAlert:  15 * time.Minute,
			ButtonCooldown: 500 * time.Millisecond,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://localhost:1883",
			ClientID:   mqtt.DefaultClientID,
			Prefix:     mqtt.DefaultPrefix,
			BufferSize: mqtt.DefaultBufferSize,
		},
		HTTP: HTTPConfig{
			Addr:           ":80",
			TriggerRate:    1,
			TriggerBurst:   3,
			AlertRetention: status.DefaultAlertRetention,
		},
	}
}

// Load reads the configuration from path over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the controller cannot run with.
func (c *Config) Validate() error {
	if c.TickPeriod <= 0 {
		return fmt.Errorf("tick_period must be positive, got %v", c.TickPeriod)
	}
	if c.TickMode != tick.ModeLoop && c.TickMode != tick.ModeTimer {
		return fmt.Errorf("tick_mode must be %q or %q, got %q", tick.ModeLoop, tick.ModeTimer, c.TickMode)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat)
	}
	if c.EventBuffer <= 0 {
		return fmt.Errorf("event_buffer must be positive, got %d", c.EventBuffer)
	}

	timers := []struct {
		name string
		d    time.Duration
	}{
		{"limit_debounce", c.Timers.LimitDebounce},
		{"button_debounce", c.Timers.ButtonDebounce},
		{"light_on", c.Timers.LightOn},
		{"motor_run_limit", c.Timers.MotorRunLimit},
		{"door_open_alert", c.Timers.DoorOpenAlert},
		{"button_cooldown", c.Timers.ButtonCooldown},
	}
	for _, tm := range timers {
		if tm.d < c.TickPeriod {
			return fmt.Errorf("timers.%s (%v) is shorter than tick_period (%v)", tm.name, tm.d, c.TickPeriod)
		}
	}

	if c.GPIO.Chip == "" {
		return errors.New("gpio.chip must be set")
	}
	lines := []struct {
		name   string
		offset int
	}{
		{"limit_a", c.GPIO.LimitA},
		{"limit_b", c.GPIO.LimitB},
		{"button", c.GPIO.Button},
		{"relay_a", c.GPIO.RelayA},
		{"relay_b", c.GPIO.RelayB},
		{"light", c.GPIO.Light},
	}
	seen := make(map[int]string, len(lines))
	for _, l := range lines {
		if l.offset < 0 {
			return fmt.Errorf("gpio.%s must not be negative, got %d", l.name, l.offset)
		}
		if other, ok := seen[l.offset]; ok {
			return fmt.Errorf("gpio.%s and gpio.%s share line %d", other, l.name, l.offset)
		}
		seen[l.offset] = l.name
	}

	if c.MQTT.Broker != "" && c.MQTT.Prefix == "" {
		return errors.New("mqtt.prefix must be set when a broker is configured")
	}
	if c.HTTP.Addr != "" {
		if c.HTTP.TriggerRate <= 0 {
			return fmt.Errorf("http.trigger_rate must be positive, got %v", c.HTTP.TriggerRate)
		}
		if c.HTTP.TriggerBurst < 1 {
			return fmt.Errorf("http.trigger_burst must be at least 1, got %d", c.HTTP.TriggerBurst)
		}
	}
	return nil
}

// DoorConfig converts the timer durations into tick counts.
func (c *Config) DoorConfig() door.Config {
	p := c.TickPeriod
	return door.Config{
		LimitDebounce:       door.Ticks(c.Timers.LimitDebounce, p),
		ButtonDebounce:      door.Ticks(c.Timers.ButtonDebounce, p),
		LightOn:             door.Ticks(c.Timers.LightOn, p),
		MotorRunLimit:       door.Ticks(c.Timers.MotorRunLimit, p),
		DoorOpenAlert:       door.Ticks(c.Timers.DoorOpenAlert, p),
		ButtonCooldown:      door.Ticks(c.Timers.ButtonCooldown, p),
		AlertInterval:       c.Timers.DoorOpenAlert,
		InvertMotor:         c.Door.InvertMotor,
		InvertLimitSwitches: c.Door.InvertLimitSwitches,
	}
}

// GPIOConfig returns the line configuration.
func (c *Config) GPIOConfig() gpio.Config {
	return gpio.Config{
		Chip:      c.GPIO.Chip,
		LimitA:    c.GPIO.LimitA,
		LimitB:    c.GPIO.LimitB,
		Button:    c.GPIO.Button,
		RelayA:    c.GPIO.RelayA,
		RelayB:    c.GPIO.RelayB,
		Light:     c.GPIO.Light,
		ActiveLow: c.GPIO.ActiveLow,
	}
}

// StatusConfig returns the configuration shown on the status page.
func (c *Config) StatusConfig() status.Config {
	return status.Config{
		TickPeriodMs:     c.TickPeriod.Milliseconds(),
		TickMode:         c.TickMode,
		HeartbeatMs:      c.Heartbeat.Milliseconds(),
		Broker:           c.MQTT.Broker,
		Prefix:           c.MQTT.Prefix,
		HTTPAddr:         c.HTTP.Addr,
		LimitDebounceMs:  c.Timers.LimitDebounce.Milliseconds(),
		ButtonDebounceMs: c.Timers.ButtonDebounce.Milliseconds(),
		LightOnMs:        c.Timers.LightOn.Milliseconds(),
		MotorRunLimitMs:  c.Timers.MotorRunLimit.Milliseconds(),
		DoorOpenAlertMs:  c.Timers.DoorOpenAlert.Milliseconds(),
		ButtonCooldownMs: c.Timers.ButtonCooldown.Milliseconds(),
	}
}
