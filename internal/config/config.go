// Package config resolves run settings from flags, ROUNDTRIP_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/roundtrip/internal/store"
)

// Setting keys. They double as flag names, config file keys and, upper-cased
// with dashes turned into underscores and prefixed with ROUNDTRIP_, as
// environment variable names.
const (
	KeyTarget           = "target"
	KeyMaxPoolSize      = "max-pool-size"
	KeyConnectTimeout   = "connect-timeout"
	KeyOperationTimeout = "operation-timeout"
	KeyParallel         = "parallel"
	KeyLogLevel         = "log-level"
	KeyMetricsFile      = "metrics-file"
)

// EnvPrefix prefixes every environment variable the package reads.
const EnvPrefix = "ROUNDTRIP"

// DefaultTarget is a single-member deployment on a non-standard port.
const DefaultTarget = "mongodb://localhost:50000/test?maxPoolSize=1"

// Settings is the resolved configuration of one invocation.
type Settings struct {
	Target           string
	MaxPoolSize      uint64
	PoolSizeSet      bool // MaxPoolSize overrides the target's maxPoolSize
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
	Parallel         int
	LogLevel         slog.Level
	MetricsFile      string
}

// RegisterFlags adds the connection and run flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyTarget, DefaultTarget, "target address (mongodb://host:port/db?maxPoolSize=N or sqlite::memory:)")
	fs.Uint64(KeyMaxPoolSize, 0, "connection pool size; overrides maxPoolSize in the target (default from target, else 1)")
	fs.Duration(KeyConnectTimeout, store.DefaultConnectTimeout, "bound on dialing, the handshake and closing")
	fs.Duration(KeyOperationTimeout, store.DefaultOperationTimeout, "bound on each insert, read and drop (0 disables)")
	fs.Int(KeyParallel, 1, "scenarios to run at once (0 means no limit)")
	fs.String(KeyMetricsFile, "", "write Prometheus text metrics to this file after the run")
}

// Load resolves settings. fs supplies the flags (only flags the user changed
// override other sources); configFile is read when non-empty.
//
// max-pool-size has no default so that PoolSizeSet reports whether any source
// named it.
func Load(fs *pflag.FlagSet, configFile string) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyTarget, DefaultTarget)
	v.SetDefault(KeyConnectTimeout, store.DefaultConnectTimeout)
	v.SetDefault(KeyOperationTimeout, store.DefaultOperationTimeout)
	v.SetDefault(KeyParallel, 1)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyMetricsFile, "")

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Settings{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	s := Settings{
		Target:      strings.TrimSpace(v.GetString(KeyTarget)),
		MaxPoolSize: v.GetUint64(KeyMaxPoolSize),
		PoolSizeSet: v.IsSet(KeyMaxPoolSize),
		Parallel:    v.GetInt(KeyParallel),
		MetricsFile: v.GetString(KeyMetricsFile),
	}

	var err error
	if s.ConnectTimeout, err = duration(v, KeyConnectTimeout); err != nil {
		return Settings{}, err
	}
	if s.OperationTimeout, err = duration(v, KeyOperationTimeout); err != nil {
		return Settings{}, err
	}
	if err := s.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	if s.Parallel < 0 {
		return Settings{}, fmt.Errorf("%s must not be negative, got %d", KeyParallel, s.Parallel)
	}
	return s, nil
}

// duration parses a duration setting strictly; viper's own conversion maps
// malformed values to zero.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	switch raw := v.Get(key).(type) {
	case time.Duration:
		return raw, nil
	case string:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	default:
		return v.GetDuration(key), nil
	}
}

// StoreConfig derives the connection configuration from the target and the
// pool and timeout settings.
func (s Settings) StoreConfig() (store.Config, error) {
	cfg, err := store.ParseConfig(s.Target)
	if err != nil {
		return store.Config{}, err
	}
	// an explicit size of 0 is passed through so Connect can reject it
	if s.PoolSizeSet {
		cfg.MaxPoolSize = s.MaxPoolSize
	}
	cfg.ConnectTimeout = s.ConnectTimeout
	cfg.OperationTimeout = s.OperationTimeout
	return cfg, nil
}
