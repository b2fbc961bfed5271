package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/dagwright/internal/generator"
	"github.com/mattjoyce/dagwright/internal/log"
	"github.com/mattjoyce/dagwright/internal/tasks"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Expand the template and write the DAG file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}
}

func runGenerate(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	g := &generator.Generator{
		Logger:    log.WithComponent("generator"),
		Callables: tasks.Default(log.WithComponent("tasks")),
	}
	res, err := g.Run(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d DAG(s) to %s\n", len(res.DAGIDs), res.OutputPath)
	for _, id := range res.DAGIDs {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", id)
	}
	return nil
}
