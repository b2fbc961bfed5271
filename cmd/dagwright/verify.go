package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/dagwright/internal/integrity"
)

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [dags-dir]",
		Short: "Check generated DAG files against their recorded checksums",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			dir := cfg.Generator.DagsDir
			if len(args) > 0 {
				dir = args[0]
			}

			results, verifyErr := integrity.Verify(dir)
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s\n", r.Status, r.Filename)
			}
			return verifyErr
		},
	}
}
