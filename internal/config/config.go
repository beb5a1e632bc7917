// Package config loads the canvasd configuration from a YAML file and the
// environment.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"collabcanvas/internal/log"
)

// Config is the server configuration.
type Config struct {
	Listen       string        `yaml:"listen"`
	LogLevel     string        `yaml:"log_level"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Redis        Redis         `yaml:"redis"`
	Journal      Journal       `yaml:"journal"`
	Discovery    Discovery     `yaml:"discovery"`
}

// Redis configures the frame relay. An empty Addr disables it.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Channel  string        `yaml:"channel"`
	Interval time.Duration `yaml:"interval"`
}

// Journal selects the session journal backend: "postgres", "bolt" or "none".
type Journal struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Path   string `yaml:"path"`
}

// Discovery configures mDNS advertisement.
type Discovery struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Listen:       ":8080",
		LogLevel:     "info",
		PollInterval: time.Second,
		Redis: Redis{
			Channel:  "collabcanvas:frames",
			Interval: time.Second,
		},
		Journal: Journal{Driver: "none"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file. The result is not validated; callers apply
// their own overrides first and then call Validate.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file failed")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config file %s failed", path)
		}
	}
	cfg.applyEnv(lookup)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("CANVAS_LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Journal.Driver = "postgres"
		c.Journal.DSN = v
	}
	if v, ok := lookup("JOURNAL_PATH"); ok && v != "" {
		c.Journal.Driver = "bolt"
		c.Journal.Path = v
	}
}

// Validate reports configuration that cannot be started.
func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is empty")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("poll interval %s must be positive", c.PollInterval)
	}
	if c.Redis.Addr != "" && c.Redis.Interval <= 0 {
		return errors.Errorf("relay interval %s must be positive", c.Redis.Interval)
	}
	switch c.Journal.Driver {
	case "", "none":
	case "postgres":
		if c.Journal.DSN == "" {
			return errors.New("postgres journal needs a dsn")
		}
	case "bolt":
		if c.Journal.Path == "" {
			return errors.New("bolt journal needs a path")
		}
	default:
		return errors.Errorf("unknown journal driver %q", c.Journal.Driver)
	}
	return nil
}
