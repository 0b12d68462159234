// File: cmd/root.go

// Package cmd wires the CLI surface: configuration loading, logger setup and
// the serve command.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/config"
	"github.com/xkilldash9x/voyant/internal/observability"
)

// Exit codes. Config problems and unreachable browsers are distinguished so
// supervisors can tell a bad deploy from a missing Chrome install.
const (
	exitOK            = 0
	exitConfigError   = 1
	exitDriverFailure = 2
)

var (
	cfgFile string
	appCfg  *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "voyant",
	Short:   "Voyant is a stateful browser automation engine.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return err
		}

		cfg, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			// Fall back to a console logger so the failure is visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console"})
			return schemas.WrapError(schemas.KindValidation, "cmd.config", err)
		}
		appCfg = cfg

		observability.InitializeLogger(cfg.LoggerCfg)
		observability.GetLogger().Info("Starting voyant", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command and maps failures onto exit codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		observability.Sync()

		switch schemas.KindOf(err) {
		case schemas.KindDriverUnavailable:
			os.Exit(exitDriverFailure)
		default:
			os.Exit(exitConfigError)
		}
	}
	observability.Sync()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default searches . and ~/.voyant)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// initializeConfig seeds viper with defaults, the config file and the
// environment. VOYANT_SERVER_PORT style variables override file settings.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		for _, p := range config.DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("VOYANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return schemas.WrapError(schemas.KindValidation, "cmd.config",
				fmt.Errorf("error reading config file: %w", err))
		}
		// No config file; defaults and env vars apply.
	}
	return nil
}
