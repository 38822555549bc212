package types

import "github.com/dooshek/vumeter/internal/meter"

// Config is the contents of vumeter.yaml.
type Config struct {
	Meter   meter.Config  `yaml:"meter"`
	Audio   AudioConfig   `yaml:"audio"`
	Display DisplayConfig `yaml:"display"`
	DBus    DBusConfig    `yaml:"dbus"`
	Log     LogConfig     `yaml:"log"`
}

// AudioConfig selects how blocks reach the meter.
type AudioConfig struct {
	BlockFrames int `yaml:"block_frames" validate:"gte=0"` // samples per block, 0 = 1/10 s
}

// DisplayConfig controls the display cadence and its sinks.
type DisplayConfig struct {
	FPS           int    `yaml:"fps" validate:"min=1,max=240"`
	Console       bool   `yaml:"console"`
	ConsoleWidth  int    `yaml:"console_width" validate:"min=2,max=400"`
	WebSocketAddr string `yaml:"websocket_addr" validate:"omitempty,hostname_port"` // empty disables
	// Browser origins, besides same-host and loopback, allowed to open the
	// frame stream. "*" allows any.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" validate:"dive,eq=*|http_url"`
}

type DBusConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	Level    string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Filename string `yaml:"filename"`
}
