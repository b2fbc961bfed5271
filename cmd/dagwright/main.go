package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/dagwright/internal/config"
	"github.com/mattjoyce/dagwright/internal/log"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "dagwright",
		Short: "Generate DAG-factory pipeline files from a YAML template",
		Long: `dagwright expands a YAML pipeline template once per variable set and writes
the result as a single DAG-factory file. Run with no arguments to generate
using dagwright.yaml (or the built-in defaults when it is absent).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to dagwright.yaml (default: $DAGWRIGHT_CONFIG or ./dagwright.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	root.AddCommand(
		newGenerateCmd(opts),
		newValidateCmd(opts),
		newListCmd(opts),
		newVerifyCmd(opts),
		newTaskCmd(opts),
		newDoctorCmd(opts),
		newWatchCmd(opts),
		newInspectCmd(opts),
		newRunCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves and loads configuration, then sets up logging from it.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = config.Discover()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	log.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
