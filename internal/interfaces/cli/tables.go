package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/approval-workflow/internal/application/workflow"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

type tablesOptions struct {
	definitionsPath string
	outputYAML      bool
}

func (a *App) newTablesCmd() *cobra.Command {
	opts := &tablesOptions{}

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Validate and print the transition tables",
		Long: `Build the transition tables through the same validation the server uses
and print them. Without --definitions the built-in tables are shown.

Examples:
  # Show the built-in tables
  workflowctl tables

  # Validate a definitions file and print it back as YAML
  workflowctl tables --definitions configs/tables.yaml --yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printTables(opts)
		},
	}

	cmd.Flags().StringVar(&opts.definitionsPath, "definitions", "", "Path to a YAML table definitions file")
	cmd.Flags().BoolVar(&opts.outputYAML, "yaml", false, "Output as a YAML definitions document")

	return cmd
}

func (a *App) printTables(opts *tablesOptions) error {
	registry, err := workflow.LoadRegistry(opts.definitionsPath)
	if err != nil {
		return err
	}

	defs := domainwf.Definitions{}
	for _, dt := range registry.DocumentTypes() {
		table, _ := registry.Table(dt)
		defs.DocumentTypes = append(defs.DocumentTypes, domainwf.DefinitionOf(table))
	}

	if opts.outputYAML {
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(defs); err != nil {
			return err
		}
		return enc.Close()
	}

	for _, def := range defs.DocumentTypes {
		fmt.Fprintf(a.stdout, "%s\n", def.Name)
		fmt.Fprintf(a.stdout, "  initial:  %s\n", def.Initial)
		fmt.Fprintf(a.stdout, "  terminal: %s\n", strings.Join(def.Terminal, ", "))
		for _, t := range def.Transitions {
			line := fmt.Sprintf("  %s -> %s [%s]", t.From, t.To, strings.Join(t.Roles, ", "))
			if t.Guard != "" {
				line += " if " + t.Guard
			}
			fmt.Fprintln(a.stdout, line)
		}
		fmt.Fprintln(a.stdout)
	}
	return nil
}
