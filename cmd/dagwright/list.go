package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [dags-dir]",
		Short: "List DAGs with their task order and fingerprint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := loadDAGs(opts, args)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DAG\tSCHEDULE\tTASKS\tFINGERPRINT")
			for _, id := range set.IDs() {
				d := set.DAGs[id]
				schedule := d.Schedule
				if schedule == "" {
					schedule = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, schedule, strings.Join(d.Order, " -> "), d.Fingerprint)
			}
			return w.Flush()
		},
	}
}
