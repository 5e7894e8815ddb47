package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/hotbundle/internal/config"
	"github.com/l3aro/hotbundle/internal/healthcheck"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file interactively",
	Long: `Asks for the hot-reload root, the entry file, the entry point name and the
iteration interval, then saves them to the project or global config file
and runs the doctor checks against the result.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd)
	},
}

func runInit(cmd *cobra.Command) error {
	defaults := config.DefaultConfig()

	root := defaults.Root
	entry := defaults.Entry
	entryPoint := defaults.EntryPoint
	interval := defaults.Interval.String()

	// === SECTION 1: Sources ===
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Hot-reload root").
				Description("Directory that holds the entry file and everything it imports").
				Placeholder(defaults.Root).
				Value(&root),
			huh.NewInput().
				Title("Entry file").
				Description("Relative to the root").
				Placeholder(defaults.Entry).
				Value(&entry).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("entry file is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Entry point").
				Description("Top-level function invoked on every iteration").
				Placeholder(defaults.EntryPoint).
				Value(&entryPoint),
			huh.NewInput().
				Title("Interval").
				Description("Pause between iterations, e.g. 500ms or 2s").
				Placeholder(interval).
				Value(&interval).
				Validate(func(s string) error {
					d, err := time.ParseDuration(s)
					if err != nil {
						return err
					}
					if d <= 0 {
						return errors.New("interval must be positive")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 2: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Project (./"+config.ProjectConfigFilePath+")", "project"),
					huh.NewOption("Global (~/.hotbundle/config.yaml)", "global"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if fileExists(configPath) {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	// === Build config struct ===
	cfg := config.DefaultConfig()
	cfg.Root = root
	cfg.Entry = entry
	cfg.EntryPoint = entryPoint
	cfg.Interval, _ = time.ParseDuration(interval)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Root: %s\n", cfg.Root)
	fmt.Printf("Entry: %s\n", cfg.Entry)
	fmt.Printf("Entry point: %s\n", cfg.EntryPoint)
	fmt.Printf("Interval: %s\n", cfg.Interval)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)

	// === SECTION 3: Health Check ===
	fmt.Println("\n=== Running Health Check ===")

	loadedCfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}

	result, err := healthcheck.Check(cmd.Context(), loadedCfg, configPath, configPath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Printf("\nConfig Scope: %s\n", result.SavedScope)
	if absPath, err := filepath.Abs(configPath); err == nil {
		fmt.Printf("Config Path: %s\n\n", absPath)
	}
	displayDoctorResult(os.Stdout, result)

	fmt.Println("\n=== Initialization Complete ===")
	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
