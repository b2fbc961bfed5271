package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/dagwright/internal/config"
	"github.com/mattjoyce/dagwright/internal/generator"
	"github.com/mattjoyce/dagwright/internal/scheduler/mocks"
)

// TestLogBuffer is a bytes.Buffer that can be used to capture log output.
type TestLogBuffer struct {
	bytes.Buffer
}

// NewTestSlogger creates a new *slog.Logger that writes to a TestLogBuffer.
func NewTestSlogger() (*slog.Logger, *TestLogBuffer) {
	var buf TestLogBuffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), &buf
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "template.yml")
	out := filepath.Join(dir, "dynamic_etl.yml")
	require.NoError(t, os.WriteFile(tmpl, []byte(`"<< dag_id >>": {tasks: {}}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(out, []byte("orders: {}\n"), 0o644))
	return &config.Config{
		Generator: config.GeneratorConfig{TemplatePath: tmpl, OutputPath: out, DagsDir: dir},
	}
}

func staticLoad(cfg *config.Config) LoadFunc {
	return func() (*config.Config, error) { return cfg, nil }
}

func okResult(cfg *config.Config) *generator.Result {
	return &generator.Result{RunID: "run-1", OutputPath: cfg.Generator.OutputPath, DAGIDs: []string{"orders"}}
}

func TestTick_SkipsWhenInputsUnchanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	logger, buf := NewTestSlogger()

	cfg := testConfig(t)
	runner.EXPECT().Run(cfg).Return(okResult(cfg), nil).Times(1)

	s := New(staticLoad(cfg), runner, time.Minute, logger)
	s.tick(context.Background())
	s.tick(context.Background())

	assert.Contains(t, buf.String(), "Regenerated DAG file")
	assert.Contains(t, buf.String(), "Inputs unchanged, skipping generation")
}

func TestTick_RunsAgainWhenTemplateChanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	logger, _ := NewTestSlogger()

	cfg := testConfig(t)
	runner.EXPECT().Run(cfg).Return(okResult(cfg), nil).Times(2)

	s := New(staticLoad(cfg), runner, time.Minute, logger)
	s.tick(context.Background())

	require.NoError(t, os.WriteFile(cfg.Generator.TemplatePath, []byte(`"<< dag_id >>": {tasks: {a: 1}}`+"\n"), 0o644))
	s.tick(context.Background())
}

func TestTick_RunsAgainWhenOutputMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	logger, _ := NewTestSlogger()

	cfg := testConfig(t)
	runner.EXPECT().Run(cfg).Return(okResult(cfg), nil).Times(2)

	s := New(staticLoad(cfg), runner, time.Minute, logger)
	s.tick(context.Background())

	require.NoError(t, os.Remove(cfg.Generator.OutputPath))
	s.tick(context.Background())
}

func TestTick_FailedRunNotRetriedUntilChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	logger, buf := NewTestSlogger()

	cfg := testConfig(t)
	runner.EXPECT().Run(cfg).Return(nil, errors.New("unexpected format")).Times(1)

	s := New(staticLoad(cfg), runner, time.Minute, logger)
	s.tick(context.Background())
	s.tick(context.Background())

	assert.Contains(t, buf.String(), "Generation failed")
}

func TestTick_LoadErrorSkipsRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	logger, buf := NewTestSlogger()

	load := func() (*config.Config, error) { return nil, errors.New("bad config") }
	s := New(load, runner, time.Minute, logger)
	s.tick(context.Background())

	assert.Contains(t, buf.String(), "bad config")
}

func TestTick_CancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	logger, _ := NewTestSlogger()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(staticLoad(testConfig(t)), runner, time.Minute, logger)
	s.tick(ctx)
}

func TestStart_RejectsNonPositiveInterval(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := New(staticLoad(testConfig(t)), mocks.NewMockRunner(ctrl), 0, nil)
	assert.Error(t, s.Start(context.Background()))
}

func TestStartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	logger, _ := NewTestSlogger()

	cfg := testConfig(t)
	ran := make(chan struct{}, 1)
	runner.EXPECT().Run(cfg).DoAndReturn(func(c *config.Config) (*generator.Result, error) {
		ran <- struct{}{}
		return okResult(c), nil
	}).Times(1)

	s := New(staticLoad(cfg), runner, time.Hour, logger)
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("first tick did not run")
	}
	s.Stop()
}

func TestInputsDigest(t *testing.T) {
	cfg := testConfig(t)

	first, err := inputsDigest(cfg)
	require.NoError(t, err)
	again, err := inputsDigest(cfg)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, os.Remove(cfg.Generator.TemplatePath))
	missing, err := inputsDigest(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, first, missing)
}
