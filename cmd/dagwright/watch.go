package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/dagwright/internal/config"
	"github.com/mattjoyce/dagwright/internal/generator"
	"github.com/mattjoyce/dagwright/internal/log"
	"github.com/mattjoyce/dagwright/internal/scheduler"
	"github.com/mattjoyce/dagwright/internal/tasks"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the DAG file whenever the template or config changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(opts); err != nil {
				return err
			}

			g := &generator.Generator{
				Logger:    log.WithComponent("generator"),
				Callables: tasks.Default(log.WithComponent("tasks")),
			}
			load := func() (*config.Config, error) { return loadConfig(opts) }
			sched := scheduler.New(load, g, interval, log.Get())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := sched.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "How often to check the template and config for changes")
	return cmd
}
