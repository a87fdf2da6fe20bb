// Package config loads layered settings: built-in defaults, an optional
// config file, a .env file, SDLC_LENS_* environment variables and finally
// any command-line flags bound to the same keys.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/source"
)

// EnvPrefix prefixes every environment variable, e.g. SDLC_LENS_PORT.
const EnvPrefix = "SDLC_LENS"

// Keys shared with flag bindings.
const (
	KeyHost            = "host"
	KeyPort            = "port"
	KeyDatabasePath    = "database_path"
	KeyAPIBase         = "github.api_base"
	KeyConnectTimeout  = "github.connect_timeout"
	KeyDownloadTimeout = "github.download_timeout"
	KeyDebounce        = "watch.debounce"
	KeyAllowedOrigins  = "websocket.allowed_origins"
	KeyLogFile         = "log.file"
	KeyLogMaxSize      = "log.max_size_mb"
	KeyLogMaxBackups   = "log.max_backups"
	KeyLogMaxAge       = "log.max_age_days"
	KeyLogCompress     = "log.compress"
)

// Config is the resolved application configuration.
type Config struct {
	Host         string          `mapstructure:"host"`
	Port         int             `mapstructure:"port"`
	DatabasePath string          `mapstructure:"database_path"`
	GitHub       GitHubConfig    `mapstructure:"github"`
	Watch        WatchConfig     `mapstructure:"watch"`
	WebSocket    WebSocketConfig `mapstructure:"websocket"`
	Log          LogConfig       `mapstructure:"log"`
}

// GitHubConfig configures the remote collector.
type GitHubConfig struct {
	APIBase         string        `mapstructure:"api_base"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// WebSocketConfig configures the /ws event stream.
type WebSocketConfig struct {
	// AllowedOrigins are extra host patterns (path.Match syntax, e.g.
	// "*.example.com") whose pages may open the stream. Same-origin pages
	// and clients that send no Origin header are always accepted.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig selects stderr or a rotated log file.
type LogConfig struct {
	// File is empty for stderr
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyHost, "0.0.0.0")
	v.SetDefault(KeyPort, 8000)
	v.SetDefault(KeyDatabasePath, "data/db/sdlc_lens.db")
	v.SetDefault(KeyAPIBase, source.DefaultAPIBase)
	v.SetDefault(KeyConnectTimeout, source.DefaultConnectTimeout)
	v.SetDefault(KeyDownloadTimeout, source.DefaultDownloadTimeout)
	v.SetDefault(KeyDebounce, 500*time.Millisecond)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSize, 50)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAge, 28)
	v.SetDefault(KeyLogCompress, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// no default, so Unmarshal only sees it through an explicit binding;
	// a comma-separated value is split into the list
	_ = v.BindEnv(KeyAllowedOrigins)

	return v
}

// Load reads envFile (a missing file is not an error) and configFile (when
// set) into v and returns the validated result.
func Load(v *viper.Viper, configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges and the relationship between the two timeouts.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535 (got %d)", c.Port)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.GitHub.ConnectTimeout <= 0 {
		return fmt.Errorf("github.connect_timeout must be positive")
	}
	if c.GitHub.DownloadTimeout <= 0 {
		return fmt.Errorf("github.download_timeout must be positive")
	}
	if c.GitHub.ConnectTimeout >= c.GitHub.DownloadTimeout {
		return fmt.Errorf("github.connect_timeout (%s) must be shorter than github.download_timeout (%s)",
			c.GitHub.ConnectTimeout, c.GitHub.DownloadTimeout)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive")
	}
	for _, pattern := range c.WebSocket.AllowedOrigins {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("websocket.allowed_origins: invalid pattern %q", pattern)
		}
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SourceOptions configures the collector from the GitHub settings.
func (c *Config) SourceOptions() source.Options {
	return source.Options{
		APIBase:         c.GitHub.APIBase,
		ConnectTimeout:  c.GitHub.ConnectTimeout,
		DownloadTimeout: c.GitHub.DownloadTimeout,
	}
}
