// Package config provides process-level configuration for the supervisor
// binary, wired through viper/cobra/TOML per the host stack's convention.
// It is distinct from the per-job Settings record in internal/model, which
// is a simpler typed wrapper (spec §9's "standardize on the wrapper").
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the process-wide configuration structure.
type Config struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`
	App struct {
		DataDir     string `mapstructure:"data_dir"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"app"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Retry struct {
		MaxRetries   int `mapstructure:"max_retries"`
		InitialDelay int `mapstructure:"initial_delay_seconds"`
	} `mapstructure:"retry"`
}

// Cfg is the global configuration instance.
var Cfg Config

// Init loads configuration from built-in defaults, a config file (if
// found), and environment variables (prefixed BACKUPSUP_). Under viper's
// precedence rules environment values override the file, which overrides
// the defaults; flags bound by BindFlags override all three.
func Init(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("BACKUPSUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Println("error reading config file:", err)
			os.Exit(1)
		}
	}

	if err := viper.Unmarshal(&Cfg); err != nil {
		fmt.Println("unable to decode config:", err)
		os.Exit(1)
	}
}

func setDefaults() {
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8787)
	viper.SetDefault("app.data_dir", "")
	viper.SetDefault("app.environment", "production")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("retry.max_retries", 10)
	viper.SetDefault("retry.initial_delay_seconds", 1)
}

// BindFlags wires the root command's persistent flags to viper keys. The
// --config flag itself is registered by the caller, since its value is
// needed before Init runs rather than bound through viper.
func BindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("data-dir", "", "override the resolved data directory")
	cmd.PersistentFlags().Int("port", 8787, "port for the host-ward JSON/SSE API")
	_ = viper.BindPFlag("app.data_dir", cmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("server.port", cmd.PersistentFlags().Lookup("port"))
}
