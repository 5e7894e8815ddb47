package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/hotbundle/internal/scanner"
	"github.com/l3aro/hotbundle/pkg/bundler"
)

// orphansCmd represents the orphans command
var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List scripts the entry file never reaches",
	Long: `Scans the root for script files (honouring .hotbundleignore) and lists the
ones that are not part of the bundle. Type-only imports do not make a file
reachable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")

		b, err := bundler.New(cfg.Root, cfg.Entry, bundler.WithLogger(newLogger(cfg)))
		if err != nil {
			return err
		}
		result, err := b.Precompile(cmd.Context())
		if err != nil {
			return fmt.Errorf("bundling %s: %w", cfg.Entry, err)
		}

		files, err := scanner.Scan(b.Dir())
		if err != nil {
			return fmt.Errorf("scanning directory: %w", err)
		}
		orphans := scanner.Orphans(files, result.Files)

		out := cmd.OutOrStdout()
		if jsonOutput {
			if orphans == nil {
				orphans = []scanner.FileInfo{}
			}
			data, err := json.MarshalIndent(orphans, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		for _, f := range orphans {
			fmt.Fprintln(out, f.Path)
		}
		return nil
	},
}

func init() {
	orphansCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(orphansCmd)
}
