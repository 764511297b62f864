package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fivetwenty-io/amocrm/cmd/amocrm/commands"
	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "amocrm",
	Short: "amoCRM API v4 CLI",
	Long: `A command-line interface for the amoCRM API v4.

Inspect leads and contacts together with their custom fields, and browse
the pipelines, custom field definitions and users of an account.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.amocrm/config.yml)")
	rootCmd.PersistentFlags().StringP("subdomain", "s", "", "account subdomain (example for example.amocrm.ru)")
	rootCmd.PersistentFlags().StringP("token", "t", "", "long-lived access token")
	rootCmd.PersistentFlags().StringP("output", "o", constants.FormatTable, "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	// Bind flags to viper
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("subdomain", rootCmd.PersistentFlags().Lookup("subdomain"))
	_ = viper.BindPFlag("access_token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	// Add commands
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewLogoutCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewLeadsCommand())
	rootCmd.AddCommand(commands.NewContactsCommand())
	rootCmd.AddCommand(commands.NewPipelinesCommand())
	rootCmd.AddCommand(commands.NewCustomFieldsCommand())
	rootCmd.AddCommand(commands.NewUsersCommand())
}

func initConfig() {
	cfgFile := viper.GetString("config")

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := commands.ConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		if err := os.MkdirAll(configDir, constants.ConfigDirPerm); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating config directory: %v\n", err)
		}

		// Search config in ~/.amocrm/config.yml
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yml")
		viper.SetConfigName("config")
	}

	// AMOCRM_SUBDOMAIN, AMOCRM_ACCESS_TOKEN, ...
	viper.SetEnvPrefix("AMOCRM")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", filepath.Clean(viper.ConfigFileUsed()))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		commands.PrintError(err)
		os.Exit(1)
	}
}
