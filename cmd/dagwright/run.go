package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/dagwright/internal/dispatch"
	"github.com/mattjoyce/dagwright/internal/log"
	"github.com/mattjoyce/dagwright/internal/tasks"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		date        string
		taskTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <dag-id>",
		Short: "Run one DAG's tasks locally for a logical date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logicalDate := time.Now().UTC().Truncate(24 * time.Hour)
			if date != "" {
				parsed, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", date, err)
				}
				logicalDate = parsed
			}

			set, err := loadDAGs(opts, nil)
			if err != nil {
				return err
			}
			dag, ok := set.DAGs[args[0]]
			if !ok {
				return fmt.Errorf("dag %q not found (known: %s)", args[0], strings.Join(set.IDs(), ", "))
			}

			d := dispatch.New(tasks.Default(log.WithComponent("tasks")), taskTimeout)
			res, runErr := d.Run(cmd.Context(), dag, logicalDate)
			for _, tr := range res.Tasks {
				fmt.Fprintf(cmd.OutOrStdout(), "%-15s %s\n", tr.Status, tr.TaskID)
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Logical date as YYYY-MM-DD (default: today, UTC)")
	cmd.Flags().DurationVar(&taskTimeout, "task-timeout", dispatch.DefaultTaskTimeout, "Timeout for each bash task")
	return cmd
}
