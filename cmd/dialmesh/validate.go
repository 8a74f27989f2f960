package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/dialmesh/dialog"
)

var validateCmd = &cobra.Command{
	Use:   "validate [script.yaml...]",
	Short: "Validate dialogue script files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	failed := false
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			cmd.PrintErrf("%s: %v\n", path, err)
			failed = true
			continue
		}
		graph, err := dialog.ParseGraph(data)
		if err != nil {
			cmd.PrintErrf("%s: %v\n", path, err)
			failed = true
			continue
		}
		cmd.Printf("%s: ok (%d nodes, start %s)\n", path, len(graph.Nodes), graph.Start)
	}
	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}
