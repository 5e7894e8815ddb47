package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/l3aro/hotbundle/pkg/bundler"
	"github.com/l3aro/hotbundle/pkg/engine"
)

// bundleCmd represents the bundle command
var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Print the flat bundle",
	Long: `Builds the bundle once and writes it to stdout, or to --output.
With --js the TypeScript bundle is transpiled to plain JavaScript first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		toJS, _ := cmd.Flags().GetBool("js")
		quiet, _ := cmd.Flags().GetBool("quiet")

		b, err := bundler.New(cfg.Root, cfg.Entry, bundler.WithLogger(newLogger(cfg)))
		if err != nil {
			return err
		}
		result, err := b.Precompile(cmd.Context())
		if err != nil {
			return fmt.Errorf("bundling %s: %w", cfg.Entry, err)
		}

		code := result.Code
		if toJS {
			if code, err = engine.Transpile(code); err != nil {
				return err
			}
		}

		if output == "" {
			fmt.Fprintln(cmd.OutOrStdout(), code)
		} else if err := os.WriteFile(output, []byte(code), 0644); err != nil {
			return fmt.Errorf("writing bundle: %w", err)
		}

		if !quiet {
			n := len(result.Files)
			fmt.Fprintf(cmd.ErrOrStderr(), "bundled %s %s into %s",
				humanize.Comma(int64(n)), pluralize(n, "file", "files"), humanize.Bytes(uint64(len(code))))
			if removed := len(result.RemovedEdges); removed > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), ", %d circular %s dropped", removed, pluralize(removed, "import", "imports"))
			}
			fmt.Fprintln(cmd.ErrOrStderr())
		}
		return nil
	},
}

func init() {
	bundleCmd.Flags().StringP("output", "o", "", "Write the bundle to a file")
	bundleCmd.Flags().Bool("js", false, "Transpile to JavaScript")
	bundleCmd.Flags().BoolP("quiet", "q", false, "Do not print bundle statistics")
	RootCmd.AddCommand(bundleCmd)
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
