package store

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const (
	// DefaultDatabase is used when the target does not name a database.
	DefaultDatabase = "test"

	// DefaultMaxPoolSize mirrors the single-connection pools the harness was
	// built to exercise.
	DefaultMaxPoolSize = 1

	DefaultConnectTimeout   = 10 * time.Second
	DefaultOperationTimeout = 10 * time.Second
)

// Config is the explicit connection configuration handed to a Dialer.
type Config struct {
	// URI is the normalised target, including its scheme.
	URI string

	// Database the harness operates in.
	Database string

	// MaxPoolSize bounds the connection pool. Must be at least 1.
	MaxPoolSize uint64

	// ConnectTimeout bounds dialing plus the initial handshake.
	ConnectTimeout time.Duration

	// OperationTimeout bounds every individual operation. Zero disables it.
	OperationTimeout time.Duration
}

// Validate reports configuration errors that must be caught before dialing.
func (c Config) Validate() error {
	if c.URI == "" {
		return errors.New("target address is required")
	}
	if c.MaxPoolSize < 1 {
		return fmt.Errorf("max pool size must be at least 1, got %d", c.MaxPoolSize)
	}
	if c.ConnectTimeout < 0 || c.OperationTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// ParseConfig builds a Config from a target address.
//
// A target without a scheme ("localhost:50000/test?maxPoolSize=1") is treated
// as a MongoDB address. The database and pool size come from the target when
// it carries them and fall back to DefaultDatabase and DefaultMaxPoolSize.
func ParseConfig(target string) (Config, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Config{}, errors.New("target address is required")
	}
	if !strings.Contains(target, "://") && !strings.HasPrefix(target, "sqlite:") {
		target = "mongodb://" + target
	}

	cfg := Config{
		URI:              target,
		Database:         DefaultDatabase,
		MaxPoolSize:      DefaultMaxPoolSize,
		ConnectTimeout:   DefaultConnectTimeout,
		OperationTimeout: DefaultOperationTimeout,
	}

	switch Scheme(target) {
	case "mongodb":
		cs, err := connstring.ParseAndValidate(target)
		if err != nil {
			return Config{}, fmt.Errorf("parse target %q: %w", target, err)
		}
		if cs.Database != "" {
			cfg.Database = cs.Database
		}
		if cs.MaxPoolSizeSet {
			cfg.MaxPoolSize = cs.MaxPoolSize
		}
	case "sqlite":
		if err := parseSQLiteTarget(target, &cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("parse target %q: unsupported scheme %q", target, Scheme(target))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parseSQLiteTarget reads the optional maxPoolSize query parameter of a
// sqlite target ("sqlite::memory:?maxPoolSize=2").
func parseSQLiteTarget(target string, cfg *Config) error {
	_, query, ok := strings.Cut(target, "?")
	if !ok {
		return nil
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return fmt.Errorf("parse target %q: %w", target, err)
	}
	for key, vals := range values {
		if !strings.EqualFold(key, "maxPoolSize") || len(vals) == 0 {
			continue
		}
		n, err := strconv.ParseUint(vals[len(vals)-1], 10, 64)
		if err != nil {
			return fmt.Errorf("parse target %q: maxPoolSize: %w", target, err)
		}
		cfg.MaxPoolSize = n
	}
	return nil
}
