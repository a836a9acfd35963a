package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jgivc/dltracker/internal/service/lifecycle"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	LogFormatText = "text"
	LogFormatJSON = "json"

	EnvListen      = "DLTRACKER_LISTEN"
	EnvLogLevel    = "DLTRACKER_LOG_LEVEL"
	EnvRedisURL    = "DLTRACKER_REDIS_URL"
	EnvDownloadDir = "DLTRACKER_DOWNLOAD_DIR"

	defaultListen           = ":8080"
	defaultProgressInterval = 100 * time.Millisecond
	defaultQueueSize        = 256
	defaultSession          = "default"
	defaultStatusTitle      = "Downloads"
	defaultDownloadsDirName = "Downloads"
)

// DownloadsConfig holds the listener options of the default registration. Unset
// flags keep the listener defaults.
type DownloadsConfig struct {
	Directory          string `yaml:"directory"`
	ShowBadge          *bool  `yaml:"show_badge"`
	ShowErrorDialog    *bool  `yaml:"show_error_dialog"`
	ShowProgressBar    *bool  `yaml:"show_progress_bar"`
	DetailedProgress   *bool  `yaml:"detailed_progress"`
	OpenFolderWhenDone *bool  `yaml:"open_folder_when_done"`
	ErrorMessage       string `yaml:"error_message"`
	ErrorTitle         string `yaml:"error_title"`
	MimeTypesFile      string `yaml:"mime_types_file"`
}

type EngineConfig struct {
	ProgressInterval time.Duration `yaml:"progress_interval"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

type Config struct {
	Listen         string          `yaml:"listen"`
	LogLevel       string          `yaml:"log_level"`
	LogFormat      string          `yaml:"log_format"`
	RedisURL       string          `yaml:"redis_url"`
	DefaultSession string          `yaml:"default_session"`
	StatusTitle    string          `yaml:"status_title"`
	StatusTemplate string          `yaml:"status_template"`
	QueueSize      int             `yaml:"queue_size"`
	Downloads      DownloadsConfig `yaml:"downloads"`
	Engine         EngineConfig    `yaml:"engine"`
}

// MustLoad reads the config file at path, applies .env and environment
// overrides and defaults. A missing file is not an error. It panics on an
// invalid configuration.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env file: %w", err)
	}

	cfg.LoadFromEnv()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) LoadFromEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(EnvDownloadDir); v != "" {
		c.Downloads.Directory = v
	}
}

func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	if c.DefaultSession == "" {
		c.DefaultSession = defaultSession
	}
	if c.StatusTitle == "" {
		c.StatusTitle = defaultStatusTitle
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Downloads.Directory == "" {
		c.Downloads.Directory = defaultDownloadsDir()
	}
	if c.Engine.ProgressInterval == 0 {
		c.Engine.ProgressInterval = defaultProgressInterval
	}
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	if c.Engine.ProgressInterval < 0 {
		return fmt.Errorf("progress interval must not be negative")
	}
	if c.Engine.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue size must not be negative")
	}

	return nil
}

// Options returns the listener options described by the downloads section.
func (c *Config) Options() lifecycle.Options {
	opts := lifecycle.DefaultOptions()
	d := c.Downloads

	opts.Directory = d.Directory
	if d.ShowBadge != nil {
		opts.ShowBadge = lifecycle.Bool(*d.ShowBadge)
	}
	if d.ShowErrorDialog != nil {
		opts.ShowErrorDialog = lifecycle.Bool(*d.ShowErrorDialog)
	}
	setBool(&opts.ShowProgressBar, d.ShowProgressBar)
	setBool(&opts.DetailedProgress, d.DetailedProgress)
	setBool(&opts.OpenFolderWhenDone, d.OpenFolderWhenDone)

	if d.ErrorMessage != "" {
		opts.ErrorMessage = d.ErrorMessage
	}
	if d.ErrorTitle != "" {
		opts.ErrorTitle = d.ErrorTitle
	}

	return opts
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func defaultDownloadsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDownloadsDirName
	}

	return filepath.Join(home, defaultDownloadsDirName)
}
