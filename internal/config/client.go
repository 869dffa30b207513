// ABOUTME: Client-side configuration for the tasksync CLI and live board
// ABOUTME: Loads TOML with environment variable expansion, falling back to defaults

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// ClientConfig configures a tasksync client.
type ClientConfig struct {
	Server  ClientServerConfig  `toml:"server"`
	Feed    FeedConfig          `toml:"feed"`
	Auth    ClientAuthConfig    `toml:"auth"`
	Logging ClientLoggingConfig `toml:"logging"`
}

// ClientServerConfig locates the tasksync server.
type ClientServerConfig struct {
	URL string `toml:"url"`
}

// FeedConfig tunes the change feed subscription.
type FeedConfig struct {
	Channel string `toml:"channel"`

	ReconnectMin time.Duration `toml:"-"`
	ReconnectMax time.Duration `toml:"-"`
	ReadTimeout  time.Duration `toml:"-"`
	DedupeTTL    time.Duration `toml:"-"`

	ReconnectMinRaw string `toml:"reconnect_min"`
	ReconnectMaxRaw string `toml:"reconnect_max"`
	ReadTimeoutRaw  string `toml:"read_timeout"`
	DedupeTTLRaw    string `toml:"dedupe_ttl"`

	DedupeSize int `toml:"dedupe_size"`
}

// ClientAuthConfig locates the credential file.
type ClientAuthConfig struct {
	TokenFile string `toml:"token_file"`
}

// ClientLoggingConfig holds client logging configuration.
type ClientLoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultClient returns the configuration used when no file exists.
func DefaultClient() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.applyDefaults()
	return cfg
}

// LoadClient reads the TOML file at path. A missing file yields
// DefaultClient; the TASKSYNC_URL environment variable overrides server.url
// in both cases.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if _, err := toml.Decode(expandEnvVars(string(data)), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		if err := cfg.parseDurations(); err != nil {
			return nil, fmt.Errorf("parsing durations: %w", err)
		}
	}

	if env := os.Getenv("TASKSYNC_URL"); env != "" {
		cfg.Server.URL = env
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *ClientConfig) applyDefaults() {
	if c.Server.URL == "" {
		c.Server.URL = "http://localhost:8080"
	}
	if c.Feed.Channel == "" {
		c.Feed.Channel = "public:tasks"
	}
	if c.Feed.ReconnectMin == 0 {
		c.Feed.ReconnectMin = 500 * time.Millisecond
	}
	if c.Feed.ReconnectMax == 0 {
		c.Feed.ReconnectMax = 30 * time.Second
	}
	if c.Feed.ReadTimeout == 0 {
		c.Feed.ReadTimeout = 60 * time.Second
	}
	if c.Feed.DedupeTTL == 0 {
		c.Feed.DedupeTTL = 5 * time.Minute
	}
	if c.Feed.DedupeSize == 0 {
		c.Feed.DedupeSize = 1024
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "warn"
	}
}

// Validate checks that required config fields are present and valid.
func (c *ClientConfig) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url must use http or https scheme")
	}
	if c.Feed.ReconnectMin <= 0 || c.Feed.ReconnectMax < c.Feed.ReconnectMin {
		return fmt.Errorf("feed.reconnect_min must be positive and not exceed feed.reconnect_max")
	}
	if c.Feed.ReadTimeout <= 0 {
		return fmt.Errorf("feed.read_timeout must be positive")
	}
	return nil
}

func (c *ClientConfig) parseDurations() error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"reconnect_min", c.Feed.ReconnectMinRaw, &c.Feed.ReconnectMin},
		{"reconnect_max", c.Feed.ReconnectMaxRaw, &c.Feed.ReconnectMax},
		{"read_timeout", c.Feed.ReadTimeoutRaw, &c.Feed.ReadTimeout},
		{"dedupe_ttl", c.Feed.DedupeTTLRaw, &c.Feed.DedupeTTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
