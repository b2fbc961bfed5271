package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/dagwright/internal/log"
	"github.com/mattjoyce/dagwright/internal/tasks"
)

func newTaskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "task <callable> [key=value...]",
		Short: "Invoke one registered task callable",
		Long: `Invoke one of the callables generated pipelines reference, with keyword
arguments given as key=value pairs. ds and ds_nodash default to today.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(opts); err != nil {
				return err
			}

			kwargs, err := parseKwargs(args[1:])
			if err != nil {
				return err
			}

			registry := tasks.Default(log.WithComponent("tasks"))
			if err := registry.Invoke(cmd.Context(), args[0], kwargs); err != nil {
				return fmt.Errorf("%w (known callables: %s)", err, strings.Join(registry.Names(), ", "))
			}
			return nil
		},
	}
}

func parseKwargs(pairs []string) (tasks.Kwargs, error) {
	kwargs := make(tasks.Kwargs, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid argument %q (want key=value)", pair)
		}
		kwargs[strings.TrimSpace(key)] = value
	}
	return kwargs, nil
}
