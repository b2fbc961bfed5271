package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"github.com/mattjoyce/dagwright/internal/dagfactory"
	"github.com/mattjoyce/dagwright/internal/log"
	"github.com/mattjoyce/dagwright/internal/tasks"
)

const (
	// maxOutputBytes caps the amount of output captured from a bash task.
	maxOutputBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	terminationGracePeriod = 5 * time.Second

	// pipeDrainDelay bounds how long output pipes may stay open after the
	// shell exits, e.g. when a backgrounded child inherited them.
	pipeDrainDelay = 2 * time.Second

	// DefaultTaskTimeout bounds a bash task when no timeout is configured.
	DefaultTaskTimeout = 10 * time.Minute
)

// Status is the outcome of one task in a run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusFailed         Status = "failed"
	StatusUpstreamFailed Status = "upstream_failed"
)

// Invoker runs a named callable. *tasks.Registry satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, name string, kwargs tasks.Kwargs) error
}

// TaskResult records one task's outcome.
type TaskResult struct {
	TaskID   string
	Status   Status
	Duration time.Duration
	Output   string
	Err      error
}

// RunResult is the outcome of a whole DAG run, in execution order.
type RunResult struct {
	DAGID       string
	LogicalDate time.Time
	Tasks       []TaskResult
}

// Failed returns the ids of tasks that did not succeed.
func (r *RunResult) Failed() []string {
	var out []string
	for _, t := range r.Tasks {
		if t.Status != StatusSuccess {
			out = append(out, t.TaskID)
		}
	}
	return out
}

// Dispatcher executes compiled DAGs in-process.
type Dispatcher struct {
	invoker     Invoker
	taskTimeout time.Duration
}

// New creates a new Dispatcher. A zero taskTimeout uses DefaultTaskTimeout.
func New(invoker Invoker, taskTimeout time.Duration) *Dispatcher {
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	return &Dispatcher{
		invoker:     invoker,
		taskTimeout: taskTimeout,
	}
}

// Run executes every task of dag for logicalDate. The returned error is
// non-nil when any task did not succeed; the result is always complete.
func (d *Dispatcher) Run(ctx context.Context, dag *dagfactory.DAG, logicalDate time.Time) (*RunResult, error) {
	logger := log.WithDAG(dag.ID).With("component", "dispatch")
	logger.Info("dag run started", "logical_date", logicalDate.Format("2006-01-02"), "tasks", len(dag.Order))

	upstream := make(map[string][]string, len(dag.Tasks))
	for _, e := range dag.Edges {
		upstream[e.To] = append(upstream[e.To], e.From)
	}

	res := &RunResult{DAGID: dag.ID, LogicalDate: logicalDate}
	status := make(map[string]Status, len(dag.Order))

	for _, taskID := range dag.Order {
		task := dag.Tasks[taskID]
		taskLogger := logger.With("task_id", taskID)

		blocked := ""
		for _, up := range upstream[taskID] {
			if status[up] != StatusSuccess {
				blocked = up
				break
			}
		}
		if blocked != "" {
			taskLogger.Warn("skipping task, upstream did not succeed", "upstream", blocked)
			status[taskID] = StatusUpstreamFailed
			res.Tasks = append(res.Tasks, TaskResult{TaskID: taskID, Status: StatusUpstreamFailed})
			continue
		}

		start := time.Now()
		output, err := d.executeTask(ctx, task, logicalDate, taskLogger)
		tr := TaskResult{TaskID: taskID, Duration: time.Since(start), Output: output, Status: StatusSuccess}
		if err != nil {
			tr.Status = StatusFailed
			tr.Err = err
			taskLogger.Error("task failed", "error", err, "duration_ms", tr.Duration.Milliseconds())
		} else {
			taskLogger.Info("task succeeded", "duration_ms", tr.Duration.Milliseconds())
		}
		status[taskID] = tr.Status
		res.Tasks = append(res.Tasks, tr)
	}

	if failed := res.Failed(); len(failed) > 0 {
		logger.Warn("dag run finished with failures", "failed", failed)
		return res, fmt.Errorf("dag %q: %d task(s) did not succeed: %v", dag.ID, len(failed), failed)
	}
	logger.Info("dag run succeeded")
	return res, nil
}

func (d *Dispatcher) executeTask(ctx context.Context, task dagfactory.Task, logicalDate time.Time, logger *slog.Logger) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch task.Kind {
	case dagfactory.TaskKindPython:
		kwargs := make(tasks.Kwargs, len(task.Kwargs)+2)
		for k, v := range task.Kwargs {
			kwargs[k] = v
		}
		kwargs["ds"] = logicalDate.Format("2006-01-02")
		kwargs["ds_nodash"] = logicalDate.Format("20060102")
		return "", d.invoker.Invoke(ctx, task.Callable, kwargs)
	case dagfactory.TaskKindBash:
		return d.runShell(ctx, task.BashCommand, logger)
	case dagfactory.TaskKindEmpty:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported task kind %q", task.Kind)
	}
}

// runShell runs command under sh -c with the dispatcher's timeout.
func (d *Dispatcher) runShell(ctx context.Context, command string, logger *slog.Logger) (string, error) {
	timeoutTimer := time.NewTimer(d.taskTimeout)
	defer timeoutTimer.Stop()

	// Termination is managed here rather than through CommandContext.
	// The shell leads its own process group so signals reach its children.
	cmd := exec.Command("sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = pipeDrainDelay

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logger.Debug("running bash task", "command", command, "timeout", d.taskTimeout)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start process: %w", err)
	}
	pgid := cmd.Process.Pid

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	terminate := func(reason error) (string, error) {
		logger.Warn("bash task interrupted, sending SIGTERM", "reason", reason)
		if err := signalGroup(pgid, syscall.SIGTERM); err != nil {
			logger.Error("failed to send SIGTERM", "error", err)
		}

		grace := time.NewTimer(terminationGracePeriod)
		defer grace.Stop()

		select {
		case <-waitErr:
			logger.Info("bash task exited after SIGTERM")
		case <-grace.C:
			logger.Warn("bash task did not exit after SIGTERM, sending SIGKILL")
			if err := signalGroup(pgid, syscall.SIGKILL); err != nil {
				logger.Error("failed to send SIGKILL", "error", err)
			}
			<-waitErr
		}
		// Reap anything that ignored SIGTERM but outlived the shell.
		_ = signalGroup(pgid, syscall.SIGKILL)
		return truncateOutput(output.String()), reason
	}

	select {
	case <-timeoutTimer.C:
		return terminate(context.DeadlineExceeded)
	case <-ctx.Done():
		return terminate(ctx.Err())
	case err := <-waitErr:
		out := truncateOutput(output.String())
		if errors.Is(err, exec.ErrWaitDelay) {
			// The shell succeeded but left children holding its output.
			logger.Warn("bash task left background processes, killing process group")
			_ = signalGroup(pgid, syscall.SIGKILL)
			return out, nil
		}
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return out, fmt.Errorf("command exited with status %d", exitErr.ExitCode())
			}
			return out, fmt.Errorf("wait for process: %w", err)
		}
		return out, nil
	}
}

// signalGroup delivers sig to every process in the group led by pgid.
// A group that has already gone away is not an error.
func signalGroup(pgid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pgid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n... (truncated)"
}
