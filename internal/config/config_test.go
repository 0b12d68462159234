// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, 8090, cfg.Server().Port)
	assert.Equal(t, 9520, cfg.Browser().DriverPort)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 4, cfg.Pool().MaxSize)
	assert.Equal(t, 50*time.Millisecond, cfg.Perception().LightningTimeout)
	assert.Equal(t, 5*time.Second, cfg.Perception().DeepTimeout)
	assert.Equal(t, 30*time.Second, cfg.Perception().CacheTTL)
	assert.Equal(t, 30*time.Minute, cfg.Session().TTL)
	assert.Equal(t, "hybrid", cfg.Intelligence().Mode)
	assert.Equal(t, 0.4, cfg.Instruction().ConfidenceThreshold)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate(), "a default config should validate cleanly")

		cfgBadPort := *cfg
		cfgBadPort.ServerCfg.Port = 0
		err := cfgBadPort.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "server.port")

		cfgBadPool := *cfg
		cfgBadPool.PoolCfg.MinSize = 9
		err = cfgBadPool.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "pool.min_size")

		cfgBadTTL := *cfg
		cfgBadTTL.SessionCfg.TTL = 0
		err = cfgBadTTL.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "session.ttl")
	})

	t.Run("Perception Validation", func(t *testing.T) {
		valid := PerceptionConfig{
			LightningTimeout: 50 * time.Millisecond,
			QuickTimeout:     200 * time.Millisecond,
			StandardTimeout:  time.Second,
			DeepTimeout:      5 * time.Second,
			MaxCacheSize:     100,
		}
		assert.NoError(t, valid.Validate())

		noDeadline := valid
		noDeadline.QuickTimeout = 0
		err := noDeadline.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "tier timeouts")

		noCache := valid
		noCache.MaxCacheSize = 0
		err = noCache.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max_cache_size")
	})

	t.Run("Intelligence Validation", func(t *testing.T) {
		valid := IntelligenceConfig{Mode: "learning"}
		assert.NoError(t, valid.Validate())

		invalid := IntelligenceConfig{Mode: "telepathic"}
		err := invalid.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "intelligence.mode")
	})

	t.Run("Instruction Validation", func(t *testing.T) {
		bad := InstructionConfig{ConfidenceThreshold: 1.5}
		err := bad.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "confidence_threshold")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
server:
  port: 9000
pool:
  max_size: 8
perception:
  cache_ttl: 45s
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		err := v.ReadConfig(bytes.NewBuffer(yamlBytes))
		require.NoError(t, err)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server().Port)
		assert.Equal(t, 8, cfg.Pool().MaxSize)
		assert.Equal(t, 45*time.Second, cfg.Perception().CacheTTL)
		// Untouched keys keep their defaults.
		assert.Equal(t, "info", cfg.Logger().Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("pool.acquire_timeout", "0s")

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
	})

	t.Run("Flat Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)

		t.Setenv("BROWSER_DRIVER_PORT", "9333")
		t.Setenv("POOL_MAX", "7")
		t.Setenv("POOL_ACQUIRE_TIMEOUT_MS", "2500")
		t.Setenv("SESSION_TTL_S", "120")
		t.Setenv("INTELLIGENCE_MODE", "learning")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 9333, cfg.Browser().DriverPort)
		assert.Equal(t, 7, cfg.Pool().MaxSize)
		assert.Equal(t, 2500*time.Millisecond, cfg.Pool().AcquireTimeout)
		assert.Equal(t, 120*time.Second, cfg.Session().TTL)
		assert.Equal(t, "learning", cfg.Intelligence().Mode)
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/voyant.log
browser:
  default_timeout: 12s
  headless: false
health:
  check_interval: 5s
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewBufferString(yamlInput))
	require.NoError(t, err)

	var cfg Config
	err = v.Unmarshal(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, "/var/log/voyant.log", cfg.Logger().LogFile)
	assert.Equal(t, 12*time.Second, cfg.Browser().DefaultTimeout)
	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, 5*time.Second, cfg.Health().CheckInterval)
}
