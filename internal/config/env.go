package config

import (
	"log/slog"
	"os"
	"strconv"
)

// ApplyEnv overrides cfg from EXPSERIES_* environment variables. Invalid
// numeric or boolean values are logged and ignored.
func ApplyEnv(cfg *Config, logger *slog.Logger) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	positive := func(name string, dst *int) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid "+name+" value, keeping current", "value", v, "current", *dst)
			return
		}
		*dst = n
	}
	boolean := func(name string, dst *bool) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid "+name+" value, keeping current", "value", v, "current", *dst)
			return
		}
		*dst = b
	}

	str("EXPSERIES_LOG_LEVEL", &cfg.LogLevel)
	positive("EXPSERIES_WORKERS", &cfg.Workers)

	str("EXPSERIES_ORIENT_PATH", &cfg.Orientation.Path)
	str("EXPSERIES_ORIENT_MODE", &cfg.Orientation.Mode)
	str("EXPSERIES_ORIENT_EXTRAPOLATION", &cfg.Orientation.Extrapolation)
	boolean("EXPSERIES_ORIENT_HAS_VELOCITY", &cfg.Orientation.HasVelocity)
	positive("EXPSERIES_ORIENT_FIT_POINTS", &cfg.Orientation.FitPoints)

	str("EXPSERIES_COEF_PATH", &cfg.Coefficients.Path)
	str("EXPSERIES_COEF_MODE", &cfg.Coefficients.Mode)
	str("EXPSERIES_COEF_BYTE_ORDER", &cfg.Coefficients.ByteOrder)

	str("EXPSERIES_HTTP_ADDR", &cfg.HTTP.Addr)
	positive("EXPSERIES_HTTP_SHUTDOWN_SECONDS", &cfg.HTTP.ShutdownSeconds)
	positive("EXPSERIES_FETCH_TIMEOUT_SECONDS", &cfg.HTTP.FetchTimeoutSeconds)
	positive("EXPSERIES_LOAD_TIMEOUT_SECONDS", &cfg.HTTP.LoadTimeoutSeconds)
	positive("EXPSERIES_MAX_FETCH_MIB", &cfg.HTTP.MaxFetchMiB)
	boolean("EXPSERIES_TRUST_PROXY", &cfg.HTTP.TrustProxy)
	str("EXPSERIES_MIRROR_DIR", &cfg.HTTP.MirrorDir)
	positive("EXPSERIES_MIRROR_FILES", &cfg.HTTP.MirrorFiles)

	boolean("EXPSERIES_AUTH_ENABLED", &cfg.Auth.Enabled)
	str("EXPSERIES_AUTH_TOKEN", &cfg.Auth.Token)

	positive("EXPSERIES_STREAM_MAX_CONCURRENT", &cfg.Stream.MaxConcurrentPerClient)
	positive("EXPSERIES_STREAM_KEEPALIVE_INTERVAL", &cfg.Stream.KeepaliveSeconds)
	positive("EXPSERIES_STREAM_MAX_EVENTS", &cfg.Stream.MaxEvents)
}
