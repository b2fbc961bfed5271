package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/dagwright/internal/inspect"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var (
		jsonOut bool
		dagsDir string
	)
	cmd := &cobra.Command{
		Use:   "inspect <dag-id>",
		Short: "Show one DAG's tasks in execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dirArgs []string
			if dagsDir != "" {
				dirArgs = []string{dagsDir}
			}
			set, err := loadDAGs(opts, dirArgs)
			if err != nil {
				return err
			}

			var out string
			if jsonOut {
				out, err = inspect.BuildJSONReport(set, args[0])
			} else {
				out, err = inspect.BuildReport(set, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the report as JSON")
	cmd.Flags().StringVar(&dagsDir, "dags-dir", "", "DAGs folder to load (default: generator.dags_dir)")
	return cmd
}
