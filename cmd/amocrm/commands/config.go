package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration stored in ~/.amocrm/config.yml.
type Config struct {
	Subdomain    string `json:"subdomain,omitempty"     yaml:"subdomain,omitempty"`
	BaseURL      string `json:"base_url,omitempty"      yaml:"base_url,omitempty"`
	AccessToken  string `json:"access_token,omitempty"  yaml:"access_token,omitempty"`
	ClientID     string `json:"client_id,omitempty"     yaml:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"  yaml:"redirect_uri,omitempty"`

	// NATSURL switches token storage and the metadata cache to a NATS KV bucket.
	NATSURL    string `json:"nats_url,omitempty"    yaml:"nats_url,omitempty"`
	NATSBucket string `json:"nats_bucket,omitempty" yaml:"nats_bucket,omitempty"`

	Output  string `json:"output,omitempty"   yaml:"output,omitempty"`
	NoColor bool   `json:"no_color,omitempty" yaml:"no_color,omitempty"`
}

type configKey struct {
	get    func(c *Config) string
	set    func(c *Config, value string) error
	secret bool
}

func stringKey(field func(c *Config) *string, secret bool) configKey {
	return configKey{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, value string) error {
			*field(c) = value

			return nil
		},
		secret: secret,
	}
}

var configKeys = map[string]configKey{
	"subdomain":     stringKey(func(c *Config) *string { return &c.Subdomain }, false),
	"base_url":      stringKey(func(c *Config) *string { return &c.BaseURL }, false),
	"access_token":  stringKey(func(c *Config) *string { return &c.AccessToken }, true),
	"client_id":     stringKey(func(c *Config) *string { return &c.ClientID }, false),
	"client_secret": stringKey(func(c *Config) *string { return &c.ClientSecret }, true),
	"redirect_uri":  stringKey(func(c *Config) *string { return &c.RedirectURI }, false),
	"nats_url":      stringKey(func(c *Config) *string { return &c.NATSURL }, false),
	"nats_bucket":   stringKey(func(c *Config) *string { return &c.NATSBucket }, false),
	"output": {
		get: func(c *Config) string { return c.Output },
		set: func(c *Config, value string) error {
			switch value {
			case "", constants.FormatTable, constants.FormatJSON, constants.FormatYAML:
				c.Output = value

				return nil
			default:
				return constants.ErrInvalidOutputFormat
			}
		},
	},
	"no_color": {
		get: func(c *Config) string { return strconv.FormatBool(c.NoColor) },
		set: func(c *Config, value string) error {
			if value == "" {
				c.NoColor = false

				return nil
			}

			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("no_color: %w", err)
			}

			c.NoColor = b

			return nil
		},
	},
}

func lookupConfigKey(key string) (configKey, error) {
	handler, ok := configKeys[key]
	if !ok {
		return configKey{}, fmt.Errorf("%q: %w", key, constants.ErrUnknownConfigKey)
	}

	return handler, nil
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage the amoCRM CLI configuration: account, credentials and output settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())
	cmd.AddCommand(newConfigClearCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := maskConfig(loadConfig())
			w := cmd.OutOrStdout()

			return outputResult(w, config, func() error {
				return displayConfigTable(w, config)
			})
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value. Keys: " + configKeyList(),
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfig(cmd.OutOrStdout(), args[0], args[1], "Set")
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value. Keys: " + configKeyList(),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateConfig(cmd.OutOrStdout(), args[0], "", "Unset")
		},
	}
}

func newConfigClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear configuration",
		Long:  "Remove the configuration file and the stored OAuth2 token",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := configFilePath()
			if err != nil {
				return err
			}

			tokenPath, err := tokenFilePath()
			if err != nil {
				return err
			}

			for _, path := range []string{configPath, tokenPath} {
				err := os.Remove(path)
				if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to remove %s: %w", path, err)
				}
			}

			for key := range configKeys {
				viper.Set(key, nil)
			}

			printSuccess(cmd.OutOrStdout(), "Cleared all configuration")

			return nil
		},
	}
}

func updateConfig(w io.Writer, key, value, action string) error {
	handler, err := lookupConfigKey(key)
	if err != nil {
		return err
	}

	config := loadConfig()

	err = handler.set(config, value)
	if err != nil {
		return err
	}

	err = saveConfigStruct(config)
	if err != nil {
		return err
	}

	viper.Set(key, handler.get(config))

	shown := handler.get(config)
	if handler.secret && shown != "" {
		shown = constants.MaskedSecret
	}

	if value == "" {
		printSuccess(w, "%s %s", action, key)
	} else {
		printSuccess(w, "%s %s = %s", action, key, shown)
	}

	return nil
}

func loadConfig() *Config {
	return &Config{
		Subdomain:    viper.GetString("subdomain"),
		BaseURL:      viper.GetString("base_url"),
		AccessToken:  viper.GetString("access_token"),
		ClientID:     viper.GetString("client_id"),
		ClientSecret: viper.GetString("client_secret"),
		RedirectURI:  viper.GetString("redirect_uri"),
		NATSURL:      viper.GetString("nats_url"),
		NATSBucket:   viper.GetString("nats_bucket"),
		Output:       viper.GetString("output"),
		NoColor:      viper.GetBool("no_color"),
	}
}

func saveConfigStruct(config *Config) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(path, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func maskConfig(config *Config) *Config {
	masked := *config

	for _, key := range sortedConfigKeys() {
		handler := configKeys[key]
		if handler.secret && handler.get(&masked) != "" {
			_ = handler.set(&masked, constants.MaskedSecret)
		}
	}

	return &masked
}

func displayConfigTable(w io.Writer, config *Config) error {
	table := newTable(w, "Property", "Value")

	for _, key := range sortedConfigKeys() {
		value := configKeys[key].get(config)
		if value == "" {
			value = constants.NotAvailable
		}

		_ = table.Append([]string{key, value})
	}

	return renderTable(table)
}

func sortedConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for key := range configKeys {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

func configKeyList() string {
	return strings.Join(sortedConfigKeys(), ", ")
}
