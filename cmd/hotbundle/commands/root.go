package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/hotbundle/internal/config"
	"github.com/l3aro/hotbundle/internal/log"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "hotbundle",
	Short: "hotbundle - Incremental TypeScript bundling with a live-reload loop",
	Long: `hotbundle flattens a TypeScript entry file and its relative imports into
one bundle and re-runs its entry point whenever the sources change.

Commands:
  run         Start the live-reload loop
  bundle      Print the flat bundle
  graph       Show the import graph
  orphans     List scripts the entry file never reaches
  ctl         Control a running loop
  init        Create a configuration file
  doctor      Check configuration and sources

Use "hotbundle [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: layered project/global config)")
	RootCmd.PersistentFlags().String("root", "", "Hot-reload root directory")
	RootCmd.PersistentFlags().String("entry", "", "Root entry file, relative to the root")
	RootCmd.PersistentFlags().Bool("verbose", false, "Verbose logging")
}

// loadConfig loads the layered config, or a single file when --config is
// set, and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if root, _ := cmd.Flags().GetString("root"); root != "" {
		cfg.Root = root
	}
	if entry, _ := cmd.Flags().GetString("entry"); entry != "" {
		cfg.Entry = entry
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// effectiveConfigPath returns the highest-priority config file that exists.
func effectiveConfigPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	if fileExists(config.ProjectConfigFilePath) {
		return config.ProjectConfigFilePath
	}
	if global := config.GlobalConfigFilePath(); fileExists(global) {
		return global
	}
	return ""
}

func newLogger(cfg *config.Config) log.Logger {
	level := log.InfoLevel
	if cfg.Verbose {
		level = log.DebugLevel
	}
	return log.New(log.LoggerConfig{Level: level, Stderr: os.Stderr})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
