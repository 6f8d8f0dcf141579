// Package config loads the panel layout and link settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// SerialConfig is the panel link.
type SerialConfig struct {
	Device  string `yaml:"device"`
	Baud    int    `yaml:"baud"`
	Retries int    `yaml:"retries"`
}

// MIDIConfig controls the outbound messages.
type MIDIConfig struct {
	// Channel is the wire channel nibble, 0..15.
	Channel int `yaml:"channel"`
	// MirrorPort, when set, mirrors every message to the first host MIDI
	// output whose name contains it.
	MirrorPort string `yaml:"mirror_port,omitempty"`
}

// EncoderConfig binds one relative axis of an input device to an encoder.
// Encoders take controller numbers in list order.
type EncoderConfig struct {
	Name    string `yaml:"name,omitempty"`
	Device  string `yaml:"device"`
	Code    string `yaml:"code"`
	Divisor int    `yaml:"divisor,omitempty"`
	Invert  bool   `yaml:"invert,omitempty"`
}

// KeyConfig binds one key code of an input device to a key index.
// Keys take controller numbers after the encoders, in list order.
type KeyConfig struct {
	Name   string `yaml:"name,omitempty"`
	Device string `yaml:"device"`
	Code   string `yaml:"code"`
}

// PollConfig tunes the loop.
type PollConfig struct {
	// Idle is slept after a cycle that sent nothing. Zero busy-polls.
	Idle          time.Duration `yaml:"idle"`
	QueueSize     int           `yaml:"queue_size"`
	StatsInterval time.Duration `yaml:"stats_interval"`
	// Grab takes input devices exclusively.
	Grab bool `yaml:"grab"`
}

// Config is the main configuration structure.
type Config struct {
	Serial   SerialConfig    `yaml:"serial"`
	MIDI     MIDIConfig      `yaml:"midi"`
	Encoders []EncoderConfig `yaml:"encoders"`
	Keys     []KeyConfig     `yaml:"keys"`
	Poll     PollConfig      `yaml:"poll"`
}

const (
	defaultDevice   = "/dev/ttyAMA0"
	defaultBaud     = 1_000_000
	defaultRetries  = 2
	defaultChannel  = 15
	defaultQueue    = 64
	defaultInput    = "/dev/input/by-path/platform-panel-event"
	maxControllers  = 128
	defaultInterval = time.Minute
)

// Default returns the stock panel: three encoders (the first one reporting
// two edges per click) and seven keys, all on one input device.
func Default() *Config {
	cfg := &Config{
		Serial: SerialConfig{Device: defaultDevice, Baud: defaultBaud, Retries: defaultRetries},
		MIDI:   MIDIConfig{Channel: defaultChannel},
		Encoders: []EncoderConfig{
			{Name: "enc0", Device: defaultInput, Code: "REL_X", Divisor: 2},
			{Name: "enc1", Device: defaultInput, Code: "REL_Y", Divisor: 1},
			{Name: "enc2", Device: defaultInput, Code: "REL_DIAL", Divisor: 1},
		},
		Poll: PollConfig{QueueSize: defaultQueue, StatsInterval: defaultInterval},
	}
	for i := 0; i < 7; i++ {
		cfg.Keys = append(cfg.Keys, KeyConfig{
			Name:   fmt.Sprintf("key%d", i),
			Device: defaultInput,
			Code:   fmt.Sprintf("KEY_%d", i+1),
		})
	}
	return cfg
}

// Load reads the config from path, or returns defaults if it does not exist.
// Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Serial.Baud == 0 {
		c.Serial.Baud = defaultBaud
	}
	if c.Poll.QueueSize == 0 {
		c.Poll.QueueSize = defaultQueue
	}
	for i := range c.Encoders {
		if c.Encoders[i].Divisor == 0 {
			c.Encoders[i].Divisor = 1
		}
	}
}

// Validate checks ranges and bindings.
func (c *Config) Validate() error {
	if c.Serial.Device == "" {
		return fmt.Errorf("%w: serial device is empty", ErrInvalid)
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("%w: baud %d", ErrInvalid, c.Serial.Baud)
	}
	if c.Serial.Retries < 0 {
		return fmt.Errorf("%w: retries %d", ErrInvalid, c.Serial.Retries)
	}
	if c.MIDI.Channel < 0 || c.MIDI.Channel > 15 {
		return fmt.Errorf("%w: channel %d outside 0..15", ErrInvalid, c.MIDI.Channel)
	}
	if n := len(c.Encoders) + len(c.Keys); n > maxControllers {
		return fmt.Errorf("%w: %d controllers, at most %d", ErrInvalid, n, maxControllers)
	}
	for i, e := range c.Encoders {
		if e.Device == "" || e.Code == "" {
			return fmt.Errorf("%w: encoder %d needs device and code", ErrInvalid, i)
		}
		if e.Divisor < 1 {
			return fmt.Errorf("%w: encoder %d divisor %d", ErrInvalid, i, e.Divisor)
		}
	}
	for i, k := range c.Keys {
		if k.Device == "" || k.Code == "" {
			return fmt.Errorf("%w: key %d needs device and code", ErrInvalid, i)
		}
	}
	if c.Poll.Idle < 0 || c.Poll.QueueSize < 0 || c.Poll.StatsInterval < 0 {
		return fmt.Errorf("%w: negative poll setting", ErrInvalid)
	}
	return nil
}

// Devices returns the distinct input device paths in first-use order.
func (c *Config) Devices() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, e := range c.Encoders {
		add(e.Device)
	}
	for _, k := range c.Keys {
		add(k.Device)
	}
	return out
}
