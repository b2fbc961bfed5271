// Package generator runs one template expansion end to end: lock the output
// directory, expand the template once per variable set, write the DAG file,
// record its checksum, and check the result loads as DAG definitions.
package generator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"github.com/mattjoyce/dagwright/internal/config"
	"github.com/mattjoyce/dagwright/internal/dagfactory"
	"github.com/mattjoyce/dagwright/internal/integrity"
	"github.com/mattjoyce/dagwright/internal/lock"
	"github.com/mattjoyce/dagwright/internal/log"
	"github.com/mattjoyce/dagwright/internal/template"
)

// Result describes a completed run.
type Result struct {
	RunID      string
	OutputPath string
	DAGIDs     []string
	Report     *template.Report
	// LoadErr is set when the written file does not compile as DAG
	// definitions. The file is still written.
	LoadErr error
}

// Generator holds what a run needs besides the config.
type Generator struct {
	Logger    *slog.Logger
	Callables dagfactory.CallableSet
}

// Run performs one generation. Any error aborts the run before the output
// file is touched, except for failures writing the checksum manifest.
func (g *Generator) Run(cfg *config.Config) (*Result, error) {
	runID := uuid.NewString()
	logger := log.WithRun(runID)
	if g.Logger != nil {
		logger = g.Logger.With(slog.String("run_id", runID))
	}

	out := cfg.Generator.OutputPath
	// Neither the lock nor the output creates directories.
	if _, err := os.Stat(filepath.Dir(out)); err != nil {
		return nil, &template.PersistError{Path: out, Err: fmt.Errorf("output directory: %w", err)}
	}

	runLock, err := lock.Acquire(cfg.Generator.LockPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = runLock.Release() }()

	logger.Info("generating dags",
		"template", cfg.Generator.TemplatePath,
		"output", out,
		"variable_sets", len(cfg.Variables),
	)

	report, err := template.Generate(cfg.Generator.TemplatePath, cfg.Variables, out)
	if err != nil {
		return nil, err
	}

	for _, key := range report.Overwritten {
		logger.Warn("variable sets produced the same dag id; the later set replaced the earlier one", "dag_id", key)
	}
	for _, key := range sortedKeys(report.Unresolved) {
		logger.Warn("placeholder tokens left unresolved", "dag_id", key, "tokens", report.Unresolved[key])
	}

	if cfg.Generator.ChecksumsEnabled() {
		if _, err := integrity.Record(filepath.Dir(out), []string{out}, runID); err != nil {
			return nil, fmt.Errorf("record checksums: %w", err)
		}
	}

	res := &Result{
		RunID:      runID,
		OutputPath: out,
		DAGIDs:     report.Collection.Keys(),
		Report:     report,
	}

	if _, err := dagfactory.LoadAndCompile(out, g.Callables); err != nil {
		res.LoadErr = err
		logger.Warn("generated file does not load as dag definitions", "error", err)
	}

	logger.Info("generated dags", "dags", res.DAGIDs)
	return res, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
