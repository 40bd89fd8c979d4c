package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"github.com/lehigh-university-libraries/aidalocal/internal/netaddr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDataDir      = "data"
	DefaultPort         = 3000
	DefaultMaxBodyBytes = 100 * 1024 * 1024
	DefaultLogLevel     = "info"
	DefaultFile         = "aidalocal.yaml"
)

// Config holds the service settings. Values come from defaults, then the YAML
// file, then AIDA_* environment variables, then command flags.
type Config struct {
	DataDir      string        `yaml:"data_dir"`
	Port         int           `yaml:"port"`
	PublicHost   string        `yaml:"public_host"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	LogLevel     string        `yaml:"log_level"`
	StaticDir    string        `yaml:"static_dir"`
	Catalog      CatalogConfig `yaml:"catalog"`
}

// CatalogConfig tunes the image directory walk.
type CatalogConfig struct {
	// Exclude lists glob patterns matched against entry names, in addition to
	// the built-in .DS_Store and *_files rules.
	Exclude []string `yaml:"exclude"`
}

func Default() *Config {
	return &Config{
		DataDir:      DefaultDataDir,
		Port:         DefaultPort,
		MaxBodyBytes: DefaultMaxBodyBytes,
		LogLevel:     DefaultLogLevel,
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error when path is the default file name.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			slog.Debug("Loaded config file", "path", path)
		case errors.Is(err, os.ErrNotExist) && path == DefaultFile:
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("AIDA_DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := lookup("AIDA_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AIDA_PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v, ok := lookup("AIDA_PUBLIC_HOST"); ok {
		c.PublicHost = v
	}
	if v, ok := lookup("AIDA_MAX_BODY_MB"); ok {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid AIDA_MAX_BODY_MB %q: %w", v, err)
		}
		c.MaxBodyBytes = mb * 1024 * 1024
	}
	if v, ok := lookup("AIDA_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("AIDA_STATIC_DIR"); ok {
		c.StaticDir = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if c.PublicHost != "" {
		if err := netaddr.ValidateHost(c.PublicHost); err != nil {
			return err
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	for _, pattern := range c.Catalog.Exclude {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid catalog exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
