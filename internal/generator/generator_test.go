package generator

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/dagwright/internal/config"
	"github.com/mattjoyce/dagwright/internal/integrity"
	"github.com/mattjoyce/dagwright/internal/lock"
	"github.com/mattjoyce/dagwright/internal/tasks"
	"github.com/mattjoyce/dagwright/internal/template"
)

const etlTemplate = `
"<< dag_id >>":
  default_args:
    owner: airflow
  schedule_interval: "@daily"
  tasks:
    extract:
      operator: airflow.operators.python.PythonOperator
      python_callable_name: extract_helper
    load:
      operator: airflow.operators.python.PythonOperator
      python_callable_name: load_helper
      op_kwargs:
        database_name: "<< database_name >>"
        table_name: "<< table_name >>"
      dependencies: [extract]
`

func newTestSlogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), &buf
}

func setup(t *testing.T, tmpl string, sets []template.Set) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "include/scripts"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "dags"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "include/scripts/template.yml"), []byte(tmpl), 0o644))

	cfg := config.Defaults()
	cfg.Generator.TemplatePath = filepath.Join(dir, "include/scripts/template.yml")
	cfg.Generator.OutputPath = filepath.Join(dir, "dags/dynamic_etl.yml")
	cfg.Generator.DagsDir = filepath.Join(dir, "dags")
	cfg.Generator.LockPath = filepath.Join(dir, "dags/.dagwright.lock")
	if sets != nil {
		cfg.Variables = sets
	}
	return cfg
}

func TestRunWritesDAGsAndChecksums(t *testing.T) {
	cfg := setup(t, etlTemplate, nil)
	logger, _ := newTestSlogger()
	g := &Generator{Logger: logger, Callables: tasks.Default(logger)}

	res, err := g.Run(cfg)
	require.NoError(t, err)
	assert.NoError(t, res.LoadErr)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"business_analytics", "data_science", "machine_learning"}, res.DAGIDs)

	manifest, err := integrity.Load(cfg.Generator.DagsDir)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, manifest.RunID)
	assert.Contains(t, manifest.Hashes, "dynamic_etl.yml")

	_, err = integrity.Verify(cfg.Generator.DagsDir)
	assert.NoError(t, err)
}

func TestRunFlagsCollisionsAndUnresolvedTokens(t *testing.T) {
	sets := []template.Set{
		{{Token: "<< dag_id >>", Value: "orders"}, {Token: "<< database_name >>", Value: "A"}, {Token: "<< table_name >>", Value: "t1"}},
		{{Token: "<< dag_id >>", Value: "orders"}, {Token: "<< database_name >>", Value: "B"}},
	}
	cfg := setup(t, etlTemplate, sets)
	logger, buf := newTestSlogger()

	res, err := (&Generator{Logger: logger}).Run(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, res.DAGIDs)
	assert.Equal(t, []string{"orders"}, res.Report.Overwritten)
	assert.Equal(t, []string{"<< table_name >>"}, res.Report.Unresolved["orders"])

	logs := buf.String()
	assert.Contains(t, logs, "the later set replaced the earlier one")
	assert.Contains(t, logs, "placeholder tokens left unresolved")
}

func TestRunShapeErrorWritesNothing(t *testing.T) {
	cfg := setup(t, etlTemplate+"\nsecond:\n  tasks: {}\n", nil)
	logger, _ := newTestSlogger()

	_, err := (&Generator{Logger: logger}).Run(cfg)
	var shapeErr *template.UnexpectedTemplateShapeError
	require.True(t, errors.As(err, &shapeErr), "want shape error, got %v", err)

	_, statErr := os.Stat(cfg.Generator.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(cfg.Generator.DagsDir, integrity.ManifestFile))
	assert.True(t, os.IsNotExist(statErr))

	l, err := lock.Acquire(cfg.Generator.LockPath)
	require.NoError(t, err, "lock must be released after a failed run")
	_ = l.Release()
}

func TestRunReportsUnloadableOutput(t *testing.T) {
	cfg := setup(t, etlTemplate, nil)
	logger, _ := newTestSlogger()

	// A registry without load_helper makes the generated call sites invalid.
	callables := tasks.NewRegistry()
	res, err := (&Generator{Logger: logger, Callables: callables}).Run(cfg)
	require.NoError(t, err)
	assert.ErrorContains(t, res.LoadErr, "not a registered callable")
}

func TestRunFailsWhenLocked(t *testing.T) {
	cfg := setup(t, etlTemplate, nil)
	held, err := lock.Acquire(cfg.Generator.LockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = held.Release() })

	_, err = (&Generator{}).Run(cfg)
	assert.ErrorIs(t, err, lock.ErrHeld)
}

func TestRunMissingTemplate(t *testing.T) {
	cfg := setup(t, etlTemplate, nil)
	cfg.Generator.TemplatePath = filepath.Join(t.TempDir(), "missing.yml")

	_, err := (&Generator{}).Run(cfg)
	var loadErr *template.TemplateLoadError
	assert.True(t, errors.As(err, &loadErr), "want load error, got %v", err)
}

func TestRunMissingOutputDirectory(t *testing.T) {
	cfg := setup(t, etlTemplate, nil)
	missing := filepath.Join(t.TempDir(), "dags")
	cfg.Generator.OutputPath = filepath.Join(missing, "dynamic_etl.yml")
	cfg.Generator.LockPath = filepath.Join(missing, ".dagwright.lock")

	_, err := (&Generator{}).Run(cfg)
	var persistErr *template.PersistError
	require.True(t, errors.As(err, &persistErr), "want persist error, got %v", err)
	assert.Equal(t, cfg.Generator.OutputPath, persistErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, statErr := os.Stat(missing)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "run created %s", missing)
}
