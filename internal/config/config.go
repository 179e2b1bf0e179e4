// Package config loads the service configuration from a YAML or HCL file
// and applies EXPSERIES_* environment overrides on top.
package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/star/expseries/internal/coefs"
	"github.com/star/expseries/internal/interp"
	"github.com/star/expseries/internal/orient"
)

// Config is the complete service configuration.
type Config struct {
	LogLevel     string             `yaml:"log_level"`
	Workers      int                `yaml:"workers"`
	Orientation  OrientationConfig  `yaml:"orientation"`
	Coefficients CoefficientsConfig `yaml:"coefficients"`
	HTTP         HTTPConfig         `yaml:"http"`
	Auth         AuthConfig         `yaml:"auth"`
	Stream       StreamConfig       `yaml:"stream"`
}

// OrientationConfig describes the frame-center series. An empty Path
// selects the inertial (always zero) center.
type OrientationConfig struct {
	// Path is a local file path or an http(s) URL.
	Path          string `yaml:"path" hcl:"path,optional"`
	Mode          string `yaml:"mode" hcl:"mode,optional"`
	Extrapolation string `yaml:"extrapolation" hcl:"extrapolation,optional"`
	HasVelocity   bool   `yaml:"has_velocity" hcl:"has_velocity,optional"`
	FitPoints     int    `yaml:"fit_points" hcl:"fit_points,optional"`
}

// CoefficientsConfig describes the coefficient tensor series. An empty Path
// disables the series.
type CoefficientsConfig struct {
	// Path is a local file path or an http(s) URL.
	Path      string `yaml:"path" hcl:"path,optional"`
	Mode      string `yaml:"mode" hcl:"mode,optional"`
	ByteOrder string `yaml:"byte_order" hcl:"byte_order,optional"`
}

// HTTPConfig configures the query server and remote data fetches.
type HTTPConfig struct {
	Addr                string `yaml:"addr" hcl:"addr,optional"`
	ShutdownSeconds     int    `yaml:"shutdown_seconds" hcl:"shutdown_seconds,optional"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds" hcl:"fetch_timeout_seconds,optional"`
	// LoadTimeoutSeconds bounds a whole session load: fetch, parse and fit.
	LoadTimeoutSeconds int `yaml:"load_timeout_seconds" hcl:"load_timeout_seconds,optional"`
	// MaxFetchMiB caps the size of a single remote download.
	MaxFetchMiB int `yaml:"max_fetch_mib" hcl:"max_fetch_mib,optional"`
	// TrustProxy takes client addresses from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `yaml:"trust_proxy" hcl:"trust_proxy,optional"`
	// MirrorDir keeps copies of remote series downloads. Empty disables it.
	MirrorDir   string `yaml:"mirror_dir" hcl:"mirror_dir,optional"`
	MirrorFiles int    `yaml:"mirror_files" hcl:"mirror_files,optional"`
}

// AuthConfig holds bearer token authentication settings.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled" hcl:"enabled,optional"`
	Token   string `yaml:"token" hcl:"token,optional"`
}

// StreamConfig configures SSE sweeps.
type StreamConfig struct {
	MaxConcurrentPerClient int `yaml:"max_concurrent_per_client" hcl:"max_concurrent_per_client,optional"`
	KeepaliveSeconds       int `yaml:"keepalive_seconds" hcl:"keepalive_seconds,optional"`
	MaxEvents              int `yaml:"max_events" hcl:"max_events,optional"`
}

// Default values applied to unset fields.
const (
	DefaultAddr                   = ":8080"
	DefaultShutdownSeconds        = 5
	DefaultFetchTimeoutSeconds    = 30
	DefaultLoadTimeoutSeconds     = 600
	DefaultMaxFetchMiB            = 1024
	DefaultMirrorFiles            = 5
	DefaultMaxConcurrentPerClient = 10
	DefaultKeepaliveSeconds       = 30
	DefaultMaxEvents              = 100000
)

// Default returns a configuration with every default applied: inertial
// center, no coefficients, linear interpolation.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultAddr
	}
	if c.HTTP.ShutdownSeconds <= 0 {
		c.HTTP.ShutdownSeconds = DefaultShutdownSeconds
	}
	if c.HTTP.FetchTimeoutSeconds <= 0 {
		c.HTTP.FetchTimeoutSeconds = DefaultFetchTimeoutSeconds
	}
	if c.HTTP.LoadTimeoutSeconds <= 0 {
		c.HTTP.LoadTimeoutSeconds = DefaultLoadTimeoutSeconds
	}
	if c.HTTP.MaxFetchMiB <= 0 {
		c.HTTP.MaxFetchMiB = DefaultMaxFetchMiB
	}
	if c.HTTP.MirrorFiles <= 0 {
		c.HTTP.MirrorFiles = DefaultMirrorFiles
	}
	if c.Stream.MaxConcurrentPerClient <= 0 {
		c.Stream.MaxConcurrentPerClient = DefaultMaxConcurrentPerClient
	}
	if c.Stream.KeepaliveSeconds <= 0 {
		c.Stream.KeepaliveSeconds = DefaultKeepaliveSeconds
	}
	if c.Stream.MaxEvents <= 0 {
		c.Stream.MaxEvents = DefaultMaxEvents
	}
}

// Validate checks every enumerated setting and cross-field constraint.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Orientation.Series(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Coefficients.Series(); err != nil {
		errs = append(errs, err)
	}
	if c.Auth.Enabled && c.Auth.Token == "" {
		errs = append(errs, errors.New("config: auth token is required when auth is enabled"))
	}
	return errors.Join(errs...)
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid log level %q", c.LogLevel)
	}
	return lvl, nil
}

// Series converts the file settings into an orient.Config.
func (o OrientationConfig) Series() (orient.Config, error) {
	mode, err := interp.ParseMode(o.Mode)
	if err != nil {
		return orient.Config{}, fmt.Errorf("config: orientation: %w", err)
	}
	extrap, err := orient.ParseExtrapolation(o.Extrapolation)
	if err != nil {
		return orient.Config{}, fmt.Errorf("config: orientation: %w", err)
	}
	if extrap == orient.ExtrapolateAccelerated && !o.HasVelocity {
		return orient.Config{}, fmt.Errorf("config: orientation: %w", orient.ErrNeedsVelocity)
	}
	return orient.Config{
		Mode:          mode,
		Extrapolation: extrap,
		HasVelocity:   o.HasVelocity,
		FitPoints:     o.FitPoints,
	}, nil
}

// Series converts the file settings into a coefs.Config.
func (c CoefficientsConfig) Series() (coefs.Config, error) {
	mode, err := interp.ParseMode(c.Mode)
	if err != nil {
		return coefs.Config{}, fmt.Errorf("config: coefficients: %w", err)
	}
	var order binary.ByteOrder
	switch strings.ToLower(strings.TrimSpace(c.ByteOrder)) {
	case "", "little", "little-endian", "le":
		order = binary.LittleEndian
	case "big", "big-endian", "be":
		order = binary.BigEndian
	default:
		return coefs.Config{}, fmt.Errorf("config: coefficients: unknown byte order %q (want little or big)", c.ByteOrder)
	}
	return coefs.Config{Mode: mode, ByteOrder: order}, nil
}

// ShutdownTimeout returns the graceful shutdown budget.
func (h HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(h.ShutdownSeconds) * time.Second
}

// FetchTimeout returns the timeout for fetching remote data files.
func (h HTTPConfig) FetchTimeout() time.Duration {
	return time.Duration(h.FetchTimeoutSeconds) * time.Second
}

// LoadTimeout returns the budget for loading a session, including the
// spline and regression fits.
func (h HTTPConfig) LoadTimeout() time.Duration {
	return time.Duration(h.LoadTimeoutSeconds) * time.Second
}

// MaxFetchBytes returns the largest accepted remote download.
func (h HTTPConfig) MaxFetchBytes() int64 {
	return int64(h.MaxFetchMiB) << 20
}

// KeepaliveInterval returns the SSE keepalive interval.
func (s StreamConfig) KeepaliveInterval() time.Duration {
	return time.Duration(s.KeepaliveSeconds) * time.Second
}
