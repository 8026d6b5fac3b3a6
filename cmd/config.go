package cmd

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/barge-dl/barge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialize the config file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		var settings *config.Settings
		var err error
		if configPath != "" {
			settings, err = config.LoadSettingsFrom(configPath)
		} else {
			settings, err = config.LoadSettings()
		}
		if err != nil {
			return err
		}

		fmt.Printf("# %s\n", configFileHint())
		return toml.NewEncoder(os.Stdout).Encode(settings)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFileHint()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		if err := saveSettings(config.DefaultSettings()); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func configFileHint() string {
	if configPath != "" {
		return configPath
	}
	return config.GetSettingsPath()
}

func saveSettings(s *config.Settings) error {
	if configPath != "" {
		return config.SaveSettingsTo(configPath, s)
	}
	return config.SaveSettings(s)
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
