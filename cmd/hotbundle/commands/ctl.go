package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/l3aro/hotbundle/internal/control"
	"github.com/l3aro/hotbundle/internal/daemon"
	"github.com/l3aro/hotbundle/pkg/runloop"
)

// ctlCmd groups the control channel commands
var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Control a running loop",
	Long: `Talks to a "hotbundle run" process over its control socket.

  status        Show the loop state
  start         Resume iterations
  stop <token>  Pause iterations; a token equal to the last one is ignored
  halt          End the loop`,
}

var ctlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the loop state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := sendControl(cmd, func(ctx context.Context, c *control.Client) (*runloop.Status, error) {
			return c.Status(ctx)
		})
		if jsonOutput, _ := cmd.Flags().GetBool("json"); err == nil && !jsonOutput {
			if current := daemon.Current(); current != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "PID: %d\nStarted: %s\n", current.PID, current.StartedAt.Format(time.RFC3339))
			}
		}
		return err
	},
}

var ctlStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Resume iterations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendControl(cmd, func(ctx context.Context, c *control.Client) (*runloop.Status, error) {
			return c.Start(ctx)
		})
	},
}

var ctlStopCmd = &cobra.Command{
	Use:   "stop <token>",
	Short: "Pause iterations",
	Long: `Pauses the loop. The token is compared with the token of the previous
stop; a repeated token is ignored. Numeric tokens are sent as numbers.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := parseToken(args[0])
		return sendControl(cmd, func(ctx context.Context, c *control.Client) (*runloop.Status, error) {
			return c.Stop(ctx, token)
		})
	},
}

var ctlHaltCmd = &cobra.Command{
	Use:   "halt",
	Short: "End the loop",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendControl(cmd, func(ctx context.Context, c *control.Client) (*runloop.Status, error) {
			return c.Halt(ctx)
		})
	},
}

func init() {
	ctlCmd.PersistentFlags().String("socket", "", "Control socket path")
	ctlCmd.PersistentFlags().Duration("timeout", 5*time.Second, "Request timeout")
	ctlCmd.PersistentFlags().BoolP("json", "j", false, "Output as JSON")

	ctlCmd.AddCommand(ctlStatusCmd, ctlStartCmd, ctlStopCmd, ctlHaltCmd)
	RootCmd.AddCommand(ctlCmd)
}

func sendControl(cmd *cobra.Command, call func(context.Context, *control.Client) (*runloop.Status, error)) error {
	socket, _ := cmd.Flags().GetString("socket")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if socket == "" {
		if cfg, err := loadConfig(cmd); err == nil {
			socket = cfg.SocketPath
		}
	}

	opts := []control.Option{control.WithTimeout(timeout)}
	if socket != "" {
		opts = append(opts, control.WithSocketPath(socket))
	}
	client := control.NewClient(opts...)

	status, err := call(cmd.Context(), client)
	if err != nil {
		return err
	}
	return printStatus(cmd.OutOrStdout(), status, jsonOutput)
}

func printStatus(out io.Writer, status *runloop.Status, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	state := "stopped"
	switch {
	case !status.TestRunning:
		state = "halted"
	case status.Running:
		state = "running"
	}

	fmt.Fprintf(out, "Status: %s\n", state)
	fmt.Fprintf(out, "Iteration: %d\n", status.Iteration)
	fmt.Fprintf(out, "Files: %d\n", status.Files)
	fmt.Fprintf(out, "Entry compiled: %t\n", status.HasEntry)
	if c := status.Cache; c != nil {
		fmt.Fprintf(out, "Program cache: %d hits, %d misses, %d evictions\n", c.Hits, c.Misses, c.Evictions)
	}
	if status.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", status.LastError)
	}
	return nil
}

// parseToken sends numeric tokens as numbers so they compare equal to the
// tokens other clients send as JSON numbers.
func parseToken(arg string) interface{} {
	if n, err := strconv.ParseFloat(arg, 64); err == nil {
		return n
	}
	return arg
}
