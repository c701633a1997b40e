package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mender-qa/mgmtctl/pkg/cli"
	"github.com/mender-qa/mgmtctl/pkg/settings"
)

// settingsPath locates the settings file; tests point it elsewhere.
var settingsPath = settings.DefaultSettingsPath

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.mgmtctl/settings.json.

Settings provide defaults for flags and environment variables:
  - server_url:    Used when --url / URL is not given
  - username:      Used when --username / USERNAME is not given
  - per_page:      Page size of full listings
  - concurrency:   Parallel calls of bulk operations
  - insecure:      Skip TLS certificate verification
  - artifact_name: Artifact of new deployments

The password is never stored.

Examples:
  mgmtctl settings show
  mgmtctl settings set server_url https://hosted.example.com
  mgmtctl settings set concurrency 50
  mgmtctl settings set username ""
  mgmtctl settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFrom(settingsPath())
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Settings file: %s\n\n", settingsPath())

		t := cli.NewTableTo(cmd.OutOrStdout(), "SETTING", "VALUE")
		for _, key := range settings.Keys() {
			value, _ := s.Get(key)
			if value == "" {
				value = "(not set)"
			}
			t.Row(key, value)
		}
		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Set a persistent setting value. An empty value clears the setting.

Available settings: ` + strings.Join(settings.Keys(), ", "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFrom(settingsPath())
		if err != nil {
			s = &settings.Settings{}
		}
		if err := s.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := s.SaveTo(settingsPath()); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		if args[1] == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s set to: %s\n", args[0], args[1])
		}
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <setting>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFrom(settingsPath())
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		value, err := s.Get(args[0])
		if err != nil {
			return err
		}
		if value == "" {
			value = "(not set)"
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.LoadFrom(settingsPath())
		if err != nil {
			s = &settings.Settings{}
		}
		s.Clear()
		if err := s.SaveTo(settingsPath()); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All settings cleared.")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), settingsPath())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	settingsCmd.AddCommand(settingsPathCmd)
}
