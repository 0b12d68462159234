// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/voyant/api/schemas"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Server() ServerConfig
	Logger() LoggerConfig
	Browser() BrowserConfig
	Pool() PoolConfig
	Session() SessionConfig
	Perception() PerceptionConfig
	Instruction() InstructionConfig
	Workflow() WorkflowConfig
	Intelligence() IntelligenceConfig
	Health() HealthConfig
}

// Config holds the entire application configuration.
type Config struct {
	ServerCfg       ServerConfig       `mapstructure:"server" yaml:"server"`
	LoggerCfg       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	BrowserCfg      BrowserConfig      `mapstructure:"browser" yaml:"browser"`
	PoolCfg         PoolConfig         `mapstructure:"pool" yaml:"pool"`
	SessionCfg      SessionConfig      `mapstructure:"session" yaml:"session"`
	PerceptionCfg   PerceptionConfig   `mapstructure:"perception" yaml:"perception"`
	InstructionCfg  InstructionConfig  `mapstructure:"instruction" yaml:"instruction"`
	WorkflowCfg     WorkflowConfig     `mapstructure:"workflow" yaml:"workflow"`
	IntelligenceCfg IntelligenceConfig `mapstructure:"intelligence" yaml:"intelligence"`
	HealthCfg       HealthConfig       `mapstructure:"health" yaml:"health"`
}

func (c *Config) Server() ServerConfig             { return c.ServerCfg }
func (c *Config) Logger() LoggerConfig             { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig           { return c.BrowserCfg }
func (c *Config) Pool() PoolConfig                 { return c.PoolCfg }
func (c *Config) Session() SessionConfig           { return c.SessionCfg }
func (c *Config) Perception() PerceptionConfig     { return c.PerceptionCfg }
func (c *Config) Instruction() InstructionConfig   { return c.InstructionCfg }
func (c *Config) Workflow() WorkflowConfig         { return c.WorkflowCfg }
func (c *Config) Intelligence() IntelligenceConfig { return c.IntelligenceCfg }
func (c *Config) Health() HealthConfig             { return c.HealthCfg }

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LoggerConfig controls structured logging output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig controls how driver instances are launched.
type BrowserConfig struct {
	DriverPort     int           `mapstructure:"driver_port" yaml:"driver_port"`
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	ChromePath     string        `mapstructure:"chrome_path" yaml:"chrome_path"`
	WindowWidth    int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight   int           `mapstructure:"window_height" yaml:"window_height"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	// OpsPerSecond paces CDP calls per driver; zero disables pacing.
	OpsPerSecond float64 `mapstructure:"ops_per_second" yaml:"ops_per_second"`
}

// PoolConfig bounds the browser pool.
type PoolConfig struct {
	MinSize        int           `mapstructure:"min_size" yaml:"min_size"`
	MaxSize        int           `mapstructure:"max_size" yaml:"max_size"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
	MaxIdle        time.Duration `mapstructure:"max_idle" yaml:"max_idle"`
	HealthInterval time.Duration `mapstructure:"health_interval" yaml:"health_interval"`
}

// SessionConfig controls named session lifetimes.
type SessionConfig struct {
	TTL          time.Duration `mapstructure:"ttl" yaml:"ttl"`
	ReapInterval time.Duration `mapstructure:"reap_interval" yaml:"reap_interval"`
}

// PerceptionConfig tunes tier deadlines and the result cache.
type PerceptionConfig struct {
	LightningTimeout time.Duration `mapstructure:"lightning_timeout" yaml:"lightning_timeout"`
	QuickTimeout     time.Duration `mapstructure:"quick_timeout" yaml:"quick_timeout"`
	StandardTimeout  time.Duration `mapstructure:"standard_timeout" yaml:"standard_timeout"`
	DeepTimeout      time.Duration `mapstructure:"deep_timeout" yaml:"deep_timeout"`
	EnableCache      bool          `mapstructure:"enable_cache" yaml:"enable_cache"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	MaxCacheSize     int           `mapstructure:"max_cache_size" yaml:"max_cache_size"`
}

// InstructionConfig tunes the natural-language pipeline.
type InstructionConfig struct {
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	RetryDelay          time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	StepDelay           time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	AnalysisTimeout     time.Duration `mapstructure:"analysis_timeout" yaml:"analysis_timeout"`
}

// WorkflowConfig bounds workflow execution.
type WorkflowConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`
	MaxSteps       int           `mapstructure:"max_steps" yaml:"max_steps"`
}

// IntelligenceConfig selects the classifier mode and optional persistence.
type IntelligenceConfig struct {
	Mode        string `mapstructure:"mode" yaml:"mode"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
}

// HealthConfig controls the monitor's loops.
type HealthConfig struct {
	CheckInterval   time.Duration `mapstructure:"check_interval" yaml:"check_interval"`
	MetricsInterval time.Duration `mapstructure:"metrics_interval" yaml:"metrics_interval"`
	AlertHistory    int           `mapstructure:"alert_history" yaml:"alert_history"`
}

// SetDefaults establishes the baseline configuration in a viper instance.
func SetDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.request_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// Browser
	v.SetDefault("browser.driver_port", 9520)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.default_timeout", "30s")
	v.SetDefault("browser.nav_timeout", "45s")
	v.SetDefault("browser.ops_per_second", 0)

	// Pool
	v.SetDefault("pool.min_size", 1)
	v.SetDefault("pool.max_size", 4)
	v.SetDefault("pool.acquire_timeout", "30s")
	v.SetDefault("pool.max_idle", "10m")
	v.SetDefault("pool.health_interval", "30s")

	// Session
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("session.reap_interval", "1m")

	// Perception
	v.SetDefault("perception.lightning_timeout", "50ms")
	v.SetDefault("perception.quick_timeout", "200ms")
	v.SetDefault("perception.standard_timeout", "1s")
	v.SetDefault("perception.deep_timeout", "5s")
	v.SetDefault("perception.enable_cache", true)
	v.SetDefault("perception.cache_ttl", "30s")
	v.SetDefault("perception.max_cache_size", 100)

	// Instruction
	v.SetDefault("instruction.confidence_threshold", 0.4)
	v.SetDefault("instruction.retry_delay", "500ms")
	v.SetDefault("instruction.step_delay", "500ms")
	v.SetDefault("instruction.analysis_timeout", "5s")

	// Workflow
	v.SetDefault("workflow.default_timeout", "10m")
	v.SetDefault("workflow.max_steps", 200)

	// Intelligence
	v.SetDefault("intelligence.mode", "hybrid")
	v.SetDefault("intelligence.database_url", "")

	// Health
	v.SetDefault("health.check_interval", "30s")
	v.SetDefault("health.metrics_interval", "10s")
	v.SetDefault("health.alert_history", 50)
}

// BindFlatEnv wires the documented flat environment variables onto their
// config keys. The VOYANT_ prefixed forms are handled by AutomaticEnv in the
// command layer; these older names are bound explicitly.
func BindFlatEnv(v *viper.Viper) {
	v.BindEnv("browser.driver_port", "BROWSER_DRIVER_PORT")
	v.BindEnv("pool.min_size", "POOL_MIN")
	v.BindEnv("pool.max_size", "POOL_MAX")
	v.BindEnv("pool.acquire_timeout_ms", "POOL_ACQUIRE_TIMEOUT_MS")
	v.BindEnv("session.ttl_s", "SESSION_TTL_S")
	v.BindEnv("perception.cache_ttl_s", "PERCEPTION_CACHE_TTL_S")
	v.BindEnv("health.check_interval_s", "HEALTH_CHECK_INTERVAL_S")
	v.BindEnv("intelligence.mode", "INTELLIGENCE_MODE")
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	BindFlatEnv(v)

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	applyFlatOverrides(v, &cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyFlatOverrides maps the unit-suffixed flat env keys onto durations.
func applyFlatOverrides(v *viper.Viper, cfg *Config) {
	if ms := v.GetInt64("pool.acquire_timeout_ms"); ms > 0 {
		cfg.PoolCfg.AcquireTimeout = time.Duration(ms) * time.Millisecond
	}
	if s := v.GetInt64("session.ttl_s"); s > 0 {
		cfg.SessionCfg.TTL = time.Duration(s) * time.Second
	}
	if s := v.GetInt64("perception.cache_ttl_s"); s > 0 {
		cfg.PerceptionCfg.CacheTTL = time.Duration(s) * time.Second
	}
	if s := v.GetInt64("health.check_interval_s"); s > 0 {
		cfg.HealthCfg.CheckInterval = time.Duration(s) * time.Second
	}
}

// NewDefaultConfig returns a Config populated purely from defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("default config failed to unmarshal: %v", err))
	}
	return &cfg
}

// DefaultConfigPaths returns the search locations for config.yaml.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := homedir.Dir(); err == nil {
		paths = append(paths, filepath.Join(home, ".voyant"))
	}
	return paths
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.ServerCfg.Port < 1 || c.ServerCfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if err := c.PoolCfg.Validate(); err != nil {
		return fmt.Errorf("pool configuration invalid: %w", err)
	}
	if err := c.PerceptionCfg.Validate(); err != nil {
		return fmt.Errorf("perception configuration invalid: %w", err)
	}
	if err := c.InstructionCfg.Validate(); err != nil {
		return fmt.Errorf("instruction configuration invalid: %w", err)
	}
	if err := c.IntelligenceCfg.Validate(); err != nil {
		return fmt.Errorf("intelligence configuration invalid: %w", err)
	}
	if c.SessionCfg.TTL <= 0 {
		return fmt.Errorf("session.ttl must be a positive duration")
	}
	if c.HealthCfg.CheckInterval <= 0 || c.HealthCfg.MetricsInterval <= 0 {
		return fmt.Errorf("health intervals must be positive durations")
	}
	return nil
}

// Validate checks pool bounds.
func (p *PoolConfig) Validate() error {
	if p.MaxSize < 0 {
		return fmt.Errorf("pool.max_size must not be negative")
	}
	if p.MinSize < 0 || p.MinSize > p.MaxSize {
		return fmt.Errorf("pool.min_size must be between 0 and pool.max_size")
	}
	if p.AcquireTimeout <= 0 {
		return fmt.Errorf("pool.acquire_timeout must be a positive duration")
	}
	return nil
}

// Validate checks tier deadlines and cache bounds.
func (p *PerceptionConfig) Validate() error {
	if p.LightningTimeout <= 0 || p.QuickTimeout <= 0 || p.StandardTimeout <= 0 || p.DeepTimeout <= 0 {
		return fmt.Errorf("perception tier timeouts must be positive durations")
	}
	if p.MaxCacheSize <= 0 {
		return fmt.Errorf("perception.max_cache_size must be a positive integer")
	}
	return nil
}

// Validate checks the confidence threshold range.
func (i *InstructionConfig) Validate() error {
	if i.ConfidenceThreshold < 0.0 || i.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("instruction.confidence_threshold must be between 0.0 and 1.0")
	}
	return nil
}

// Validate checks the intelligence mode allowlist.
func (i *IntelligenceConfig) Validate() error {
	if !schemas.ValidIntelligenceMode(schemas.IntelligenceMode(i.Mode)) {
		return fmt.Errorf("intelligence.mode must be one of legacy, hybrid, intelligent, learning")
	}
	return nil
}
