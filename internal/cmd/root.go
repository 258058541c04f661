// Package cmd defines the cadence command-line interface.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/weilyn/cadence/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "cadence",
	Short: "Autonomous iteration loop over a work-item store",
	Long: `Cadence repeatedly selects the most urgent ready work item from a
bd-compatible work-item store, runs an agent through a prepare/execute/
review/finalize phase sequence against it, and reconciles what changed.
A circuit breaker halts runs that keep failing.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/cadence/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/cadence")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CADENCE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., CADENCE_BREAKER_THRESHOLD for breaker.threshold
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
