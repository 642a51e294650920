// Package config loads cuagent settings from defaults, an optional file and CUAGENT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CUAGENT_AI_PROVIDER
const EnvPrefix = "CUAGENT"

// Config is the full application configuration
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Browser BrowserConfig `mapstructure:"browser"`
	Agent   AgentConfig   `mapstructure:"agent"`
	AI      AIConfig      `mapstructure:"ai"`
	Server  ServerConfig  `mapstructure:"server"`
	Record  RecordConfig  `mapstructure:"record"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"` // console or json
	AddSource   bool   `mapstructure:"add_source"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

// Browser modes
const (
	ModeShared = "shared"
	ModePerJob = "per_job"
)

type BrowserConfig struct {
	Backend     string        `mapstructure:"backend"`
	Headless    bool          `mapstructure:"headless"`
	Width       int           `mapstructure:"width"`
	Height      int           `mapstructure:"height"`
	Settle      time.Duration `mapstructure:"settle"`
	StartURL    string        `mapstructure:"start_url"`
	Mode        string        `mapstructure:"mode"`
	MaxBrowsers int           `mapstructure:"max_browsers"`
	ProfileDir  string        `mapstructure:"profile_dir"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type AgentConfig struct {
	MaxCycles    int           `mapstructure:"max_cycles"`
	WaitDuration time.Duration `mapstructure:"wait_duration"`
}

type AIConfig struct {
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxTokens      int           `mapstructure:"max_tokens"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// RecordConfig controls trajectory GIFs. Recording is off when Output is empty.
type RecordConfig struct {
	Output   string `mapstructure:"output"`
	FPS      int    `mapstructure:"fps"`
	MaxWidth uint   `mapstructure:"max_width"`
	Markers  bool   `mapstructure:"markers"`
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "cuagent")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.backend", "rod")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 720)
	v.SetDefault("browser.settle", "500ms")
	v.SetDefault("browser.start_url", "https://www.google.com")
	v.SetDefault("browser.mode", ModeShared)
	v.SetDefault("browser.max_browsers", 2)
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.timeout", "30s")

	// -- Agent --
	v.SetDefault("agent.max_cycles", 10)
	v.SetDefault("agent.wait_duration", "2s")

	// -- AI --
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.request_timeout", "60s")
	v.SetDefault("ai.max_tokens", 1024)

	// -- Server --
	v.SetDefault("server.addr", ":8080")

	// -- Record --
	v.SetDefault("record.output", "")
	v.SetDefault("record.fps", 2)
	v.SetDefault("record.max_width", 800)
	v.SetDefault("record.markers", true)
}

// NewViper returns a viper instance with defaults and environment overrides applied.
// file is read when non-empty.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return v, nil
}

// FromViper decodes and validates v
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Load is NewViper followed by FromViper
func Load(file string) (*Config, error) {
	v, err := NewViper(file)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Validate checks the configuration for sane values
func (c *Config) Validate() error {
	var errs []error
	switch c.Browser.Backend {
	case "rod", "chromedp", "playwright":
	default:
		errs = append(errs, fmt.Errorf("browser.backend must be rod, chromedp or playwright, got %q", c.Browser.Backend))
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		errs = append(errs, errors.New("browser.width and browser.height must be positive"))
	}
	switch c.Browser.Mode {
	case ModeShared, ModePerJob:
	default:
		errs = append(errs, fmt.Errorf("browser.mode must be %s or %s, got %q", ModeShared, ModePerJob, c.Browser.Mode))
	}
	if c.Browser.Mode == ModePerJob && c.Browser.MaxBrowsers <= 0 {
		errs = append(errs, errors.New("browser.max_browsers must be a positive integer"))
	}
	if c.Agent.MaxCycles <= 0 {
		errs = append(errs, errors.New("agent.max_cycles must be a positive integer"))
	}
	if c.AI.MaxTokens <= 0 {
		errs = append(errs, errors.New("ai.max_tokens must be a positive integer"))
	}
	if c.Record.Output != "" && c.Record.FPS <= 0 {
		errs = append(errs, errors.New("record.fps must be a positive integer"))
	}
	return errors.Join(errs...)
}
