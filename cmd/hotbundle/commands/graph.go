package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/hotbundle/pkg/bundler"
	"github.com/l3aro/hotbundle/pkg/types"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the import graph",
	Long: `Registers the import graph from the entry file and prints every file with
its dependencies, dependents and emit position. Circular imports that were
dropped are listed after the table.

Formats: table (default), json, yaml, msgpack.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")

		b, err := bundler.New(cfg.Root, cfg.Entry, bundler.WithLogger(newLogger(cfg)))
		if err != nil {
			return err
		}
		result, err := b.Precompile(cmd.Context())
		if err != nil {
			return fmt.Errorf("building graph: %w", err)
		}

		snap := relativeSnapshot(result)
		out := cmd.OutOrStdout()

		switch format {
		case "table":
			_, err = io.WriteString(out, renderGraphTable(snap))
			return err
		case "json":
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		case "yaml":
			enc := yaml.NewEncoder(out)
			if err := enc.Encode(snap); err != nil {
				return fmt.Errorf("marshaling YAML: %w", err)
			}
			return enc.Close()
		case "msgpack":
			data, err := msgpack.Marshal(snap)
			if err != nil {
				return fmt.Errorf("marshaling msgpack: %w", err)
			}
			_, err = out.Write(data)
			return err
		default:
			return fmt.Errorf("unknown format: %s (use table, json, yaml or msgpack)", format)
		}
	},
}

func init() {
	graphCmd.Flags().StringP("format", "f", "table", "Output format")
	RootCmd.AddCommand(graphCmd)
}

// relativeSnapshot rewrites every path in the snapshot relative to the root.
func relativeSnapshot(result *bundler.Result) types.GraphSnapshot {
	rel := func(paths []string) []string {
		if paths == nil {
			return nil
		}
		out := make([]string, len(paths))
		for i, p := range paths {
			out[i] = result.Rel(p)
		}
		return out
	}

	snap := types.GraphSnapshot{
		Root:      result.Rel(result.Graph.Root),
		EmitOrder: rel(result.Graph.EmitOrder),
	}
	for _, node := range result.Graph.Nodes {
		imports := make([]types.Import, len(node.Imports))
		for i, imp := range node.Imports {
			if imp.Resolved != "" {
				imp.Resolved = result.Rel(imp.Resolved)
			}
			imports[i] = imp
		}
		snap.Nodes = append(snap.Nodes, types.GraphNode{
			Path:         result.Rel(node.Path),
			Dependencies: rel(node.Dependencies),
			Dependents:   rel(node.Dependents),
			Imports:      imports,
		})
	}
	for _, e := range result.Graph.RemovedEdges {
		snap.RemovedEdges = append(snap.RemovedEdges, types.Edge{From: result.Rel(e.From), To: result.Rel(e.To)})
	}
	return snap
}

func renderGraphTable(snap types.GraphSnapshot) string {
	var tableBuffer bytes.Buffer

	order := make(map[string]int, len(snap.EmitOrder))
	for i, path := range snap.EmitOrder {
		order[path] = i + 1
	}

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Order", "File", "Imports", "Imported By"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

	for _, node := range snap.Nodes {
		table.Append([]string{
			strconv.Itoa(order[node.Path]),
			node.Path,
			strings.Join(node.Dependencies, ", "),
			strings.Join(node.Dependents, ", "),
		})
	}

	table.SetFooter([]string{"", fmt.Sprintf("Total Files %d", len(snap.Nodes)), "", ""})
	table.Render()

	for _, e := range snap.RemovedEdges {
		fmt.Fprintf(&tableBuffer, "circular import dropped: %s -> %s\n", e.From, e.To)
	}
	return tableBuffer.String()
}
