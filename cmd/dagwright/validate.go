package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/dagwright/internal/dagfactory"
	"github.com/mattjoyce/dagwright/internal/log"
	"github.com/mattjoyce/dagwright/internal/tasks"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dags-dir]",
		Short: "Load and compile every DAG file in the DAGs folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := loadDAGs(opts, args)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			registry := dagfactory.NewRegistry()
			registry.Generate(set)
			fmt.Fprintf(cmd.OutOrStdout(), "%d DAG(s) valid\n", registry.Len())
			return nil
		},
	}
}

func loadDAGs(opts *rootOptions, args []string) (*dagfactory.Set, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	dir := cfg.Generator.DagsDir
	if len(args) > 0 {
		dir = args[0]
	}
	return dagfactory.LoadDir(dir, cfg.Generator.Suffixes, tasks.Default(log.WithComponent("tasks")))
}
