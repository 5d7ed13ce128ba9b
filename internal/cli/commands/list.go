package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered definition files and their imports",
		Long: `List every definition file discovered under the search root and its
include paths, in processing order, together with the files it imports
and the files that import it.`,
		Example: `  # List all definition files
  protodrive list

  # Emit JSON for scripting
  protodrive list --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json")

	return cmd
}

type listEntry struct {
	Name       string   `json:"name"`
	Path       string   `json:"path"`
	Imports    []string `json:"imports"`
	ImportedBy []string `json:"imported_by"`
}

func runList(cmd *cobra.Command, format string) error {
	cfg := getConfig(cmd.Context())
	logger := getLogger(cmd.Context())

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateSearchRoot(); err != nil {
		return err
	}

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Discover(); err != nil {
		return err
	}

	order, graph, err := eng.Plan()
	if err != nil {
		return err
	}

	entries := make([]listEntry, 0, len(order))
	for _, name := range order {
		node, ok := graph.GetNode(name)
		if !ok {
			continue
		}
		entries = append(entries, listEntry{
			Name:       name,
			Path:       node.File.Path,
			Imports:    graph.Imports(name),
			ImportedBy: graph.ImportedBy(name),
		})
	}

	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Schema", "Imports", "Imported By"})
	for i, e := range entries {
		t.AppendRow(table.Row{i + 1, e.Name, strings.Join(e.Imports, ", "), strings.Join(e.ImportedBy, ", ")})
	}
	t.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "%d definition files, %d imports\n", graph.NodeCount(), graph.EdgeCount())
	return nil
}
