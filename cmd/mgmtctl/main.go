// Mgmtctl - device-management operations tool
//
// A CLI for driving a Mender-style device-management backend in test and
// load-test environments:
//   - accept every pending device
//   - move ungrouped devices into a static group
//   - create deployments to all devices, a group or an inventory filter
//   - count, list and delete devices
//   - manage inventory filters and deployments
//
// Connection settings come from flags, from the environment variables the
// operational scripts always used (USERNAME, PASSWORD, URL, ...), from an
// optional .env file, or from ~/.mgmtctl/settings.json, in that order.
//
// Examples:
//
//	USERNAME=admin@example.com PASSWORD=... URL=https://hosted.example.com mgmtctl accept
//	mgmtctl count pending
//	mgmtctl group create --qty 1000 --name group1
//	mgmtctl deploy group group1 --artifact release-2
//	mgmtctl filter presets
//	mgmtctl deployment list --status inprogress
//	mgmtctl interactive
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mender-qa/mgmtctl/pkg/cli"
	"github.com/mender-qa/mgmtctl/pkg/settings"
	"github.com/mender-qa/mgmtctl/pkg/util"
	"github.com/mender-qa/mgmtctl/pkg/version"
)

var (
	// Global option flags
	verbose    bool
	logJSON    bool
	noColor    bool
	jsonOutput bool

	// Global state
	userSettings *settings.Settings
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		util.Errorf("%v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "mgmtctl",
	Short:             "Device-management operations tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Mgmtctl drives a device-management backend: it accepts devices, builds
groups, creates deployments and manages inventory filters.

Connection settings are read from flags, from the USERNAME, PASSWORD and URL
environment variables, from a .env file in the working directory, or from
the persistent settings (mgmtctl settings).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is the normal case
		_ = godotenv.Load()

		var err error
		userSettings, err = settings.LoadFrom(settingsPath())
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}
		applySettingsDefaults(cfg, userSettings)

		util.SetVerbose(verbose || cfg.GetBool(keyDebug))
		if level := cfg.GetString(keyLogLevel); level != "" {
			if err := util.SetLogLevel(level); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
		}
		if logJSON {
			util.SetJSONFormat()
		}
		if noColor {
			cli.SetColor(false)
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("url", "", "Backend URL (env URL)")
	flags.StringP("username", "u", "", "Login email (env USERNAME)")
	flags.String("password", "", "Login password (env PASSWORD)")
	flags.Bool("insecure", false, "Skip TLS certificate verification")
	flags.Duration("timeout", 0, "Per-request timeout (default 60s)")
	flags.IntP("concurrency", "c", 0, "Parallel calls for bulk operations (1 runs sequentially)")
	flags.Duration("delay", 0, "Pause between calls when running sequentially")
	flags.Int("per-page", 0, "Page size of full listings")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose output (env DEBUG)")
	flags.String("log-level", "", "Log level (debug, info, warn, error); overrides --verbose")
	flags.BoolVar(&logJSON, "log-json", false, "JSON log format")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
	bindFlags(cfg, flags)

	rootCmd.AddGroup(
		&cobra.Group{ID: "workflow", Title: "Workflows:"},
		&cobra.Group{ID: "resource", Title: "Resource Management:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{acceptCmd, groupCmd, deployCmd, countCmd} {
		cmd.GroupID = "workflow"
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{deviceCmd, filterCmd, deploymentCmd, artifactCmd, userCmd, interactiveCmd} {
		cmd.GroupID = "resource"
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd)
	},
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	if version.Version == "dev" {
		fmt.Fprintln(out, "mgmtctl dev build (no version stamped at link time)")
	} else {
		fmt.Fprintf(out, "mgmtctl %s\n", version.Info())
	}
}

// addOutputFlags registers --json as a local flag.
// For noun-group parent commands, this is a PersistentFlag so subcommands inherit.
func addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVar(&jsonOutput, "json", false, "JSON output")
}

// Color helpers delegate to pkg/cli
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
