// Package config loads the saori server configuration from a TOML file and
// SAORI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pior/saori"
	"go.uber.org/zap/zapcore"
)

// Config is the complete server configuration.
type Config struct {
	Server  Server
	Log     Log
	Breaker Breaker
	Metrics Metrics
	Module  Module
}

// Server configures the stream listener.
type Server struct {
	Network         string // tcp or unix
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxRequestBytes int
}

// Log configures the zap logger.
type Log struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// Breaker configures the circuit breaker around the handler.
type Breaker struct {
	Enabled     bool
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// Metrics configures the Prometheus endpoint. Empty Address disables it.
type Metrics struct {
	Address string
}

// Module configures the request pipeline.
type Module struct {
	Dir      string // reported to Load
	Encoding string // host byte encoding
	Strict   bool
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Network:         "tcp",
			Address:         "127.0.0.1:9801",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			IdleTimeout:     5 * time.Minute,
			MaxRequestBytes: 1 << 20,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		Breaker: Breaker{
			Enabled:     false,
			MaxRequests: 1,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
		},
		Module: Module{
			Dir:      ".",
			Encoding: "Shift_JIS",
		},
	}
}

type fileConfig struct {
	Server struct {
		Network         string `toml:"network"`
		Address         string `toml:"address"`
		ReadTimeout     string `toml:"read_timeout"`
		WriteTimeout    string `toml:"write_timeout"`
		IdleTimeout     string `toml:"idle_timeout"`
		MaxRequestBytes int    `toml:"max_request_bytes"`
	} `toml:"server"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	Breaker struct {
		Enabled     bool   `toml:"enabled"`
		MaxRequests uint32 `toml:"max_requests"`
		Interval    string `toml:"interval"`
		Timeout     string `toml:"timeout"`
	} `toml:"breaker"`
	Metrics struct {
		Address string `toml:"address"`
	} `toml:"metrics"`
	Module struct {
		Dir      string `toml:"dir"`
		Encoding string `toml:"encoding"`
		Strict   bool   `toml:"strict"`
	} `toml:"module"`
}

// Load reads the TOML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode applies the keys defined in data to cfg, leaving the others alone.
func decode(data string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("server", "network") {
		cfg.Server.Network = strings.TrimSpace(raw.Server.Network)
	}
	if meta.IsDefined("server", "address") {
		cfg.Server.Address = strings.TrimSpace(raw.Server.Address)
	}
	if err := decodeDuration(meta, raw.Server.ReadTimeout, &cfg.Server.ReadTimeout, "server", "read_timeout"); err != nil {
		return err
	}
	if err := decodeDuration(meta, raw.Server.WriteTimeout, &cfg.Server.WriteTimeout, "server", "write_timeout"); err != nil {
		return err
	}
	if err := decodeDuration(meta, raw.Server.IdleTimeout, &cfg.Server.IdleTimeout, "server", "idle_timeout"); err != nil {
		return err
	}
	if meta.IsDefined("server", "max_request_bytes") {
		cfg.Server.MaxRequestBytes = raw.Server.MaxRequestBytes
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.TrimSpace(raw.Log.Format)
	}

	if meta.IsDefined("breaker", "enabled") {
		cfg.Breaker.Enabled = raw.Breaker.Enabled
	}
	if meta.IsDefined("breaker", "max_requests") {
		cfg.Breaker.MaxRequests = raw.Breaker.MaxRequests
	}
	if err := decodeDuration(meta, raw.Breaker.Interval, &cfg.Breaker.Interval, "breaker", "interval"); err != nil {
		return err
	}
	if err := decodeDuration(meta, raw.Breaker.Timeout, &cfg.Breaker.Timeout, "breaker", "timeout"); err != nil {
		return err
	}

	if meta.IsDefined("metrics", "address") {
		cfg.Metrics.Address = strings.TrimSpace(raw.Metrics.Address)
	}

	if meta.IsDefined("module", "dir") {
		cfg.Module.Dir = strings.TrimSpace(raw.Module.Dir)
	}
	if meta.IsDefined("module", "encoding") {
		cfg.Module.Encoding = strings.TrimSpace(raw.Module.Encoding)
	}
	if meta.IsDefined("module", "strict") {
		cfg.Module.Strict = raw.Module.Strict
	}

	return nil
}

func decodeDuration(meta toml.MetaData, value string, dst *time.Duration, key ...string) error {
	if !meta.IsDefined(key...) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("parse %s: %w", strings.Join(key, "."), err)
	}
	*dst = d
	return nil
}

// applyEnv overrides cfg with the SAORI_* variables found by lookup.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	str("SAORI_SERVER_NETWORK", &cfg.Server.Network)
	str("SAORI_SERVER_ADDRESS", &cfg.Server.Address)
	str("SAORI_LOG_LEVEL", &cfg.Log.Level)
	str("SAORI_LOG_FORMAT", &cfg.Log.Format)
	str("SAORI_METRICS_ADDRESS", &cfg.Metrics.Address)
	str("SAORI_MODULE_DIR", &cfg.Module.Dir)
	str("SAORI_MODULE_ENCODING", &cfg.Module.Encoding)

	if v, ok := lookup("SAORI_MODULE_STRICT"); ok {
		strict, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse SAORI_MODULE_STRICT: %w", err)
		}
		cfg.Module.Strict = strict
	}
	if v, ok := lookup("SAORI_BREAKER_ENABLED"); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse SAORI_BREAKER_ENABLED: %w", err)
		}
		cfg.Breaker.Enabled = enabled
	}

	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	switch c.Server.Network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		errs = append(errs, fmt.Errorf("server.network: unsupported network %q", c.Server.Network))
	}
	if c.Server.Address == "" {
		errs = append(errs, errors.New("server.address: required"))
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout < 0 {
		errs = append(errs, errors.New("server: timeouts must not be negative"))
	}
	if c.Server.MaxRequestBytes <= 0 {
		errs = append(errs, errors.New("server.max_request_bytes: must be positive"))
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported format %q", c.Log.Format))
	}

	if c.Breaker.Enabled && c.Breaker.Timeout <= 0 {
		errs = append(errs, errors.New("breaker.timeout: must be positive"))
	}

	if _, err := saori.CodecByName(c.Module.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("module.encoding: %w", err))
	}

	return errors.Join(errs...)
}
