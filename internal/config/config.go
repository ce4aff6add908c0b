// Package config loads simulator and unit settings for usartsim from a YAML
// file, USARTSIM_* environment variables and bound command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jangala-dev/tinygo-usart/usartx"
)

// DefaultCPUHz is the ATmega4808 main clock after reset (20 MHz / 6).
const DefaultCPUHz = 3333333

var (
	ErrNoUnits        = errors.New("config: no units configured")
	ErrDuplicateUnit  = errors.New("config: unit configured twice")
	ErrUnknownPolicy  = errors.New("config: unknown overflow policy")
	ErrUnknownErrMode = errors.New("config: unknown error mode")
)

// Unit describes one simulated USART.
type Unit struct {
	Unit     int           `mapstructure:"unit"`
	Baud     uint32        `mapstructure:"baud"`
	Capacity int           `mapstructure:"capacity"`
	Settle   time.Duration `mapstructure:"settle"`
	Overflow string        `mapstructure:"overflow"` // drop | overwrite
	Errors   string        `mapstructure:"errors"`   // last | per-byte
}

// Config is the whole usartsim configuration.
type Config struct {
	CPUHz uint32 `mapstructure:"cpu_hz"`
	// Tick overrides the simulated character time; zero derives it from baud.
	Tick      time.Duration `mapstructure:"tick"`
	LogLevel  string        `mapstructure:"log_level"`
	LogFormat string        `mapstructure:"log_format"`
	Units     []Unit        `mapstructure:"units"`
}

// SetDefaults registers every key so environment overrides are honoured.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cpu_hz", DefaultCPUHz)
	v.SetDefault("tick", time.Duration(0))
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")
	v.SetDefault("units", []map[string]any{
		{"unit": 3, "baud": 9600},
	})
}

// Load reads path (if not empty) into v and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("usartsim")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks unit indices, capacities and policy names.
func (c *Config) Validate() error {
	if len(c.Units) == 0 {
		return ErrNoUnits
	}
	if c.CPUHz == 0 {
		c.CPUHz = DefaultCPUHz
	}
	seen := map[int]bool{}
	for i := range c.Units {
		u := &c.Units[i]
		if u.Unit < 0 || !usartx.Unit(u.Unit).Valid() {
			return fmt.Errorf("config: unit %d: %w", u.Unit, usartx.ErrInvalidUnit)
		}
		if seen[u.Unit] {
			return fmt.Errorf("config: unit %d: %w", u.Unit, ErrDuplicateUnit)
		}
		seen[u.Unit] = true
		if u.Baud == 0 {
			u.Baud = 9600
		}
		if _, err := u.DriverConfig(); err != nil {
			return fmt.Errorf("config: unit %d: %w", u.Unit, err)
		}
	}
	return nil
}

// DriverConfig converts u to the driver's Config. Pins are left unset.
func (u Unit) DriverConfig() (usartx.Config, error) {
	cfg := usartx.Config{Capacity: u.Capacity, SettleDelay: u.Settle}
	if cfg.Capacity == 0 {
		cfg.Capacity = usartx.DefaultCapacity
	}
	if _, err := usartx.NewRingBuffer(cfg.Capacity); err != nil {
		return cfg, err
	}

	switch strings.ToLower(u.Overflow) {
	case "", "drop":
		cfg.RxOverflow = usartx.OverflowDrop
	case "overwrite":
		cfg.RxOverflow = usartx.OverflowOverwrite
	default:
		return cfg, fmt.Errorf("%w %q", ErrUnknownPolicy, u.Overflow)
	}

	switch strings.ToLower(u.Errors) {
	case "", "last":
		cfg.Errors = usartx.ErrorsLastWins
	case "per-byte", "perbyte":
		cfg.Errors = usartx.ErrorsPerByte
	default:
		return cfg, fmt.Errorf("%w %q", ErrUnknownErrMode, u.Errors)
	}
	return cfg, nil
}

// Divisor returns the BAUD register value for u.
func (c *Config) Divisor(u Unit) uint16 {
	return usartx.BaudDivisor(c.CPUHz, u.Baud)
}

// CharTime returns the simulated character time for u.
func (c *Config) CharTime(u Unit) time.Duration {
	if c.Tick > 0 {
		return c.Tick
	}
	return usartx.CharTime(u.Baud)
}

// Find returns the configured unit with index n.
func (c *Config) Find(n int) (Unit, bool) {
	for _, u := range c.Units {
		if u.Unit == n {
			return u, true
		}
	}
	return Unit{}, false
}
