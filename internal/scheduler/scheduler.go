// Package scheduler regenerates DAG files on an interval whenever the
// template or config file changes, the way a DAG folder is re-parsed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/dagwright/internal/config"
)

// Scheduler watches generation inputs and reruns generation on change.
type Scheduler struct {
	load     LoadFunc
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup

	// lastDigest is only touched from the tick loop.
	lastDigest string
}

// New creates a new Scheduler instance.
func New(load LoadFunc, runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		load:     load,
		runner:   runner,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the tick loop. The first tick runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("watch interval must be positive (got %s)", s.interval)
	}
	s.logger.Info("Starting scheduler", "interval", s.interval.String())

	s.wg.Add(1)
	go s.tickLoop(ctx)
	return nil
}

// Stop stops the tick loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.logger.Warn("Scheduler context cancelled, stopping tick loop")
			return
		}
	}
}

// tick runs generation if the inputs changed since the last attempt or the
// output file is gone. A failed run is not retried until the inputs change.
func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	cfg, err := s.load()
	if err != nil {
		s.logger.Error("Failed to load config", "error", err)
		return
	}

	digest, err := inputsDigest(cfg)
	if err != nil {
		s.logger.Error("Failed to read generation inputs", "error", err)
		return
	}
	if digest == s.lastDigest && fileExists(cfg.Generator.OutputPath) {
		s.logger.Debug("Inputs unchanged, skipping generation")
		return
	}
	s.lastDigest = digest

	res, err := s.runner.Run(cfg)
	if err != nil {
		s.logger.Error("Generation failed", "error", err)
		return
	}
	s.logger.Info("Regenerated DAG file", "run_id", res.RunID, "output", res.OutputPath, "dags", len(res.DAGIDs))
}

// inputsDigest hashes the template and config file contents. A missing file
// hashes as a distinct marker so its later appearance counts as a change.
func inputsDigest(cfg *config.Config) (string, error) {
	h := blake3.New()
	for _, path := range []string{cfg.SourcePath, cfg.Generator.TemplatePath} {
		if path == "" {
			continue
		}
		fmt.Fprintf(h, "%s\x00", path)

		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			_, _ = h.Write([]byte("missing\x00"))
			continue
		}
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		_ = f.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
