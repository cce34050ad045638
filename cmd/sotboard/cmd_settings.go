package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/sotboard/pkg/cli"
	"github.com/newtron-network/sotboard/pkg/settings"
)

const settingNames = "config, profile, last_journal"

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.sotboard/settings.json.

Settings provide defaults for flags:
  - config_path:     Used when -c is not given and SOTBOARD_CONFIG is unset
  - default_profile: Used when --profile is not given
  - last_journal:    Shown by 'journal show' without an id

Examples:
  sotboard settings show
  sotboard settings set config /etc/sotboard/lab.yaml
  sotboard settings set profile lab
  sotboard settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		t := cli.NewTable("SETTING", "VALUE")
		for _, name := range []string{"config_path", "default_profile", "last_journal"} {
			value, _ := userSettings.Get(name)
			if value == "" {
				value = "(not set)"
			}
			t.Row(name, value)
		}
		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !userSettings.Set(args[0], args[1]) {
			return fmt.Errorf("unknown setting: %s (valid: %s)", args[0], settingNames)
		}
		if err := userSettings.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Printf("%s set to: %s\n", args[0], args[1])
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, ok := userSettings.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown setting: %s (valid: %s)", args[0], settingNames)
		}
		if value == "" {
			value = "(not set)"
		}
		fmt.Println(value)
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		userSettings.Clear()
		if err := userSettings.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("Settings cleared")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsGetCmd, settingsClearCmd)
}
