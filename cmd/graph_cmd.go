package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabrica/fabrica/internal/schema"
	"github.com/fabrica/fabrica/internal/validate"
)

var graphCmd = &cobra.Command{
	Use:   "graph <schemas.yaml>",
	Short: "Show the dependency graph",
	Long:  `Print the entity dependency graph, its generation order and any circular references.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := schema.LoadYAML(args[0])
		if err != nil {
			return fmt.Errorf("loading schemas: %w", err)
		}

		g := validate.BuildGraph(set)

		fmt.Println("Dependencies:")
		for _, name := range set.Names() {
			e, _ := set.Get(name)
			fmt.Printf("  %s\n", dependencyLine(e))
		}
		fmt.Println()

		order, err := g.TopologicalOrder()
		if err != nil {
			fmt.Printf("No valid generation order: %v\n", err)
			cmd.SilenceErrors = true
			return errors.New("schemas contain circular references")
		}

		fmt.Println("Generation order:")
		for i, name := range order {
			fmt.Printf("  %d. %s (depth %d)\n", i+1, name, g.MaxDepth(name))
		}
		return nil
	},
}

// dependencyLine formats one entity's foreign-key targets for display.
func dependencyLine(e *schema.EntitySchema) string {
	var deps []string
	for _, field := range e.FieldNames() {
		if ref, ok := e.ForeignKeyFor(field); ok {
			deps = append(deps, fmt.Sprintf("%s.%s", ref.TargetEntity, ref.TargetColumn))
		}
	}
	if len(deps) == 0 {
		return fmt.Sprintf("%s (no dependencies)", e.Name)
	}
	return fmt.Sprintf("%s -> %s", e.Name, strings.Join(deps, ", "))
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
