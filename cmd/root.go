// The root command for the launcher.
// Running the binary with no subcommand performs an update pass per the
// flags below; the host process spawns it this way.
package cmd

import (
	"context"
	"fmt"
	"os"

	checkCmd "github.com/draftware/stampkit/internal/commands/checkCommand"
	"github.com/draftware/stampkit/internal/config"
	"github.com/draftware/stampkit/internal/launcher"
	"github.com/draftware/stampkit/internal/logging"
	"github.com/draftware/stampkit/internal/version"

	"github.com/spf13/cobra"
)

var (
	// A path to a file to load configuration from
	cfgFile string
	// For enabling debug logging with --debug/-D
	debug bool

	updateMode  bool
	silent      bool
	assumeYes   bool
	hostPID     int32
	hostExePath string
	packagePath string
)

// Cobra root command
var rootCmd = &cobra.Command{
	// The command you run to call the compiled binary
	Use:   "stampkit-launcher",
	Short: "Updates the stampkit plugin for installed Vektra CAD releases",
	Long: `Out-of-process updater for the stampkit title-block plugin.

The Vektra host keeps the plugin binary locked while it runs, so the plugin
spawns this launcher to check the release feed, download the package, wait
for the host to exit, and deploy the files into every installed Vektra
release.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		return launcher.New(settings).Run(context.Background(), launcher.Options{
			UpdateMode:  updateMode,
			Silent:      silent,
			AssumeYes:   assumeYes,
			HostPID:     hostPID,
			HostExePath: hostExePath,
			PackagePath: packagePath,
		})
	},
}

// Execute the root Cobra command
func Execute() {
	// Import this into a main.go and call with cmd.Execute()
	cobra.CheckErr(rootCmd.Execute())
}

// Initialize the root command
func init() {
	// Add flags to the CLI's root command, making them 'global'
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (JSON/YAML/TOML/env)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "D", false, "Enable debug logging")

	// Launcher contract flags, passed by the host process
	rootCmd.Flags().BoolVar(&updateMode, "update-mode", true, "Check the feed and download before deploying; false deploys --package as-is")
	rootCmd.Flags().BoolVar(&silent, "silent", false, "No prompts or console output; always proceed")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.Flags().Int32Var(&hostPID, "host-pid", 0, "Wait for this host process to exit before deploying")
	rootCmd.Flags().StringVar(&hostExePath, "host-exe-path", "", "Relaunch this executable after a successful deploy")
	rootCmd.Flags().StringVar(&packagePath, "package", "", "Release package to deploy when --update-mode=false")

	// Add other CLI subcommands
	rootCmd.AddCommand(checkCmd.NewCheckCommand())
	rootCmd.AddCommand(version.NewVersionCommand())
	rootCmd.AddCommand(version.NewPackageInfoCommand())

	// Call the initConfig function when the root command is initialized
	cobra.OnInitialize(initConfig)
}

// Load configuration for CLI app
func initConfig() {
	config.LoadConfig(rootCmd.Flags(), cfgFile)
}

// loadSettings resolves the layered config and brings up the shared log sink.
func loadSettings() (config.Settings, error) {
	settings, err := config.Resolve()
	if err != nil {
		return settings, fmt.Errorf("invalid configuration: %w", err)
	}

	level := "info"
	if debug {
		level = "debug"
	}
	if err := logging.InitLog(level, settings.Log, !silent); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing log: %v\n", err)
	}

	return settings, nil
}
