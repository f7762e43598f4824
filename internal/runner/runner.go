// Package runner executes shell commands with concurrent stdout/stderr
// capture, a timeout, and caller cancellation, resolving exactly one
// terminal outcome per execution.
package runner

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deixis/shellrun/internal/platform"
	"github.com/deixis/shellrun/internal/report"
)

// DefaultTimeout applies when Runner.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Runner executes shell commands. The zero value is ready to use.
type Runner struct {
	Timeout  time.Duration      // per-execution timeout; DefaultTimeout if zero
	Dir      string             // working directory; inherited if empty
	Resolver *platform.Resolver // shell selection; host OS if nil
	Logger   *zap.Logger        // nil discards logs
	Store    report.Store       // optional; receives every outcome
	Observer Observer           // optional lifecycle notifications
}

// Execute runs command and returns its terminal outcome. The only error
// returned is ErrInvalidCommand; every other failure, including launch
// failure and cancellation, is reported through the Outcome.
func (r *Runner) Execute(ctx context.Context, command string) (*Outcome, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrInvalidCommand
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	out := &Outcome{
		RunID:     uuid.New().String(),
		Command:   command,
		StartedAt: time.Now(),
	}
	log := r.logger().With(zap.String("run_id", out.RunID))
	r.observer().Started(out.RunID, command)

	r.run(ctx, out, log)
	out.Duration = time.Since(out.StartedAt)

	switch out.Kind {
	case LaunchError:
		log.Error("launch failed", zap.String("command", command), zap.Error(out.Err))
	case Cancelled:
		log.Warn("command cancelled", zap.Error(out.Err), zap.Duration("duration", out.Duration))
	default:
		log.Info("command finished",
			zap.String("outcome", string(out.Kind)),
			zap.Int("exit_code", out.ExitCode),
			zap.Duration("duration", out.Duration))
	}

	if r.Store != nil {
		if err := r.Store.Save(out.Record()); err != nil {
			log.Warn("saving run", zap.Error(err))
		}
	}
	r.observer().Finished(out)
	return out, nil
}

// run drives one process from launch to its terminal state and fills in out.
func (r *Runner) run(ctx context.Context, out *Outcome, log *zap.Logger) {
	launchFailed := func(err error) {
		out.Kind = LaunchError
		out.Err = &LaunchFailedError{Command: out.Command, Err: err}
	}

	inv, err := r.resolver().Resolve(ctx, out.Command)
	if err != nil {
		if ctx.Err() != nil {
			out.Kind = Cancelled
			out.Err = &CancelledError{Cause: context.Cause(ctx)}
			return
		}
		launchFailed(err)
		return
	}

	// Not CommandContext: cancellation must kill the whole tree, which
	// the lifecycle does itself.
	cmd := exec.Command(inv.Executable, inv.Args...) //nolint:gosec // running caller commands is the purpose
	cmd.Dir = r.Dir
	configureProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		launchFailed(err)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		launchFailed(err)
		return
	}

	lc := newLifecycle()
	log.Debug("launching", zap.String("command", out.Command), zap.String("executable", inv.Executable))
	if err := cmd.Start(); err != nil {
		lc.transition(stateLaunchFailed)
		launchFailed(err)
		return
	}
	lc.transition(stateRunning)

	outBuf, errBuf := newStreamBuffer(), newStreamBuffer()
	var drains errgroup.Group
	drains.Go(func() error { return outBuf.drain(stdout) })
	drains.Go(func() error { return errBuf.drain(stderr) })

	var (
		exitCode = -1
		waitErr  error
	)
	reaped := make(chan struct{})
	go func() {
		defer close(reaped)
		st, err := cmd.Process.Wait()
		if err != nil {
			waitErr = err
			return
		}
		exitCode = st.ExitCode()
	}()

	final := lc.await(ctx, signals{exited: reaped, stdout: outBuf.Done(), stderr: errBuf.Done()}, func() {
		if err := killTree(cmd.Process); err != nil {
			log.Warn("killing process tree", zap.Int("pid", cmd.Process.Pid), zap.Error(err))
		}
	})

	// Release the process and pipes on every path. After a kill the pipes
	// may be held open by escaped descendants, so close them to unblock the
	// drainers.
	<-reaped
	closePipes(stdout, stderr)
	if err := drains.Wait(); err != nil {
		log.Warn("reading output", zap.Error(err))
	}

	if final == stateCancelled {
		out.Kind = Cancelled
		out.Err = &CancelledError{Cause: context.Cause(ctx)}
		return
	}

	out.ExitCode = exitCode
	out.Stdout = outBuf.Text()
	out.Stderr = errBuf.Text()
	if waitErr != nil {
		out.Kind = Failure
		out.Err = fmt.Errorf("waiting for process: %w", waitErr)
		return
	}
	if exitCode == 0 && out.Stderr == "" {
		out.Kind = Success
	} else {
		out.Kind = Failure
	}
}

func closePipes(pipes ...io.Closer) {
	for _, p := range pipes {
		_ = p.Close()
	}
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

func (r *Runner) resolver() *platform.Resolver {
	if r.Resolver == nil {
		return &platform.Resolver{}
	}
	return r.Resolver
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Runner) observer() Observer {
	if r.Observer == nil {
		return noopObserver{}
	}
	return r.Observer
}
