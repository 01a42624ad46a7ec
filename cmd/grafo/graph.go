package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petrijr/grafo/agents"
	"github.com/petrijr/grafo/pkg/api"
)

var graphYAML bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the analysis graph",
	Long:  `Prints the analysis graph as a Mermaid flowchart, or as YAML with --yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec := api.SpecFromDefinition(agents.BuildGraph())
		if graphYAML {
			data, err := spec.Marshal()
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		}
		fmt.Println(spec.ToMermaid())
		return nil
	},
}

func init() {
	graphCmd.Flags().BoolVar(&graphYAML, "yaml", false, "Emit the graph as YAML instead of Mermaid")
}
