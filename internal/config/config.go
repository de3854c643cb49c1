package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration settings.
type Config struct {
	// Interpreter configuration
	Interpreter struct {
		Module           string
		Library          string
		Mounts           []string
		CacheDir         string        `mapstructure:"cache_dir"`
		DiskCache        bool          `mapstructure:"disk_cache"`
		MemoryLimitPages uint32        `mapstructure:"memory_limit_pages"`
		StartTimeout     time.Duration `mapstructure:"start_timeout"`
	}
	// Execution configuration
	Exec struct {
		Timeout time.Duration
	}
	// Server configuration
	Server struct {
		Host string
		Port int
	}
	// Logging configuration
	Log struct {
		Level  string
		Format string
	}
}

// Mount is a host directory exposed read-only inside the interpreter.
type Mount struct {
	Host  string
	Guest string
}

// Load reads configuration from file, or from tclbridge.yaml in the usual
// locations when file is empty. Environment variables prefixed with
// TCLBRIDGE_ override file values; a missing config file is not an error
// unless file names it explicitly.
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("tclbridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.tclbridge")
		v.AddConfigPath("/etc/tclbridge/")
	}

	setDefaults(v)

	v.SetEnvPrefix("TCLBRIDGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Interpreter defaults
	v.SetDefault("interpreter.module", "")
	v.SetDefault("interpreter.library", "")
	v.SetDefault("interpreter.mounts", []string{})
	v.SetDefault("interpreter.cache_dir", "")
	v.SetDefault("interpreter.disk_cache", true)
	v.SetDefault("interpreter.memory_limit_pages", 0)
	v.SetDefault("interpreter.start_timeout", 30*time.Second)

	// Execution defaults
	v.SetDefault("exec.timeout", 0)

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 1600)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "human")
}

// Validate reports settings that can never work.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Exec.Timeout < 0 {
		return fmt.Errorf("exec.timeout must not be negative")
	}
	if c.Interpreter.StartTimeout < 0 {
		return fmt.Errorf("interpreter.start_timeout must not be negative")
	}
	if _, err := c.ParseMounts(); err != nil {
		return err
	}
	return nil
}

// ParseMounts splits the "host:guest" entries of interpreter.mounts.
func (c *Config) ParseMounts() ([]Mount, error) {
	mounts := make([]Mount, 0, len(c.Interpreter.Mounts))
	for _, m := range c.Interpreter.Mounts {
		host, guest, ok := strings.Cut(m, ":")
		if !ok || host == "" || !strings.HasPrefix(guest, "/") {
			return nil, fmt.Errorf("invalid mount %q: want host:/guest", m)
		}
		mounts = append(mounts, Mount{Host: host, Guest: guest})
	}
	return mounts, nil
}

// Address is the server listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
