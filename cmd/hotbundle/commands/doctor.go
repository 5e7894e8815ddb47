package commands

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/l3aro/hotbundle/internal/healthcheck"
	"github.com/l3aro/hotbundle/internal/log"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and sources",
	Long: `Checks that the root and entry file exist, that the import graph builds,
that the bundle defines the entry point and whether a loop is listening on
the control socket.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		configPath := effectiveConfigPath(cmd)

		result, err := healthcheck.Check(cmd.Context(), cfg, configPath, configPath)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(cmd.OutOrStdout(), result)

		if !result.Healthy() {
			return fmt.Errorf("health check failed: one or more checks reported an error")
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	nameStyle  = lipgloss.NewStyle().Width(12)
)

func displayDoctorResult(out io.Writer, result *healthcheck.HealthCheckResult) {
	if result.EffectivePath != "" {
		fmt.Fprintf(out, "Using config: %s (%s)\n\n", result.EffectivePath, result.EffectiveScope)
	} else {
		fmt.Fprint(out, "Using config: defaults\n\n")
	}

	colors := log.IsTerminal(out)
	for _, c := range result.Checks {
		icon := formatStatusIcon(c.Status)
		name := c.Name
		if colors {
			icon = statusStyle(c.Status).Render(icon)
			name = nameStyle.Render(name)
		} else {
			name = fmt.Sprintf("%-12s", name)
		}
		fmt.Fprintf(out, "%s %s %s\n", icon, name, c.Detail)
	}
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case healthcheck.StatusOK:
		return okStyle
	case healthcheck.StatusWarn:
		return warnStyle
	case healthcheck.StatusError:
		return errorStyle
	default:
		return lipgloss.NewStyle().Faint(true)
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusOK:
		return "✓"
	case healthcheck.StatusWarn:
		return "!"
	case healthcheck.StatusError:
		return "✗"
	case healthcheck.StatusSkipped:
		return "-"
	default:
		return "?"
	}
}
