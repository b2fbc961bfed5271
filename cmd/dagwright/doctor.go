package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/dagwright/internal/doctor"
	"github.com/mattjoyce/dagwright/internal/log"
	"github.com/mattjoyce/dagwright/internal/tasks"
)

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the template, variable sets, and DAGs folder for problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			result := doctor.New(cfg, tasks.Default(log.WithComponent("tasks"))).Validate()
			if jsonOut {
				out, err := doctor.FormatJSON(result)
				if err != nil {
					return fmt.Errorf("failed to render JSON: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			} else {
				fmt.Fprint(cmd.OutOrStdout(), doctor.FormatHuman(result))
			}

			if !result.Valid {
				return fmt.Errorf("doctor found %d error(s)", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the report as JSON")
	return cmd
}
