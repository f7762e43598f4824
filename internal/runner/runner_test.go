//go:build unix

package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sys/unix"

	"github.com/deixis/shellrun/internal/platform"
	"github.com/deixis/shellrun/internal/report"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{
		Timeout: 10 * time.Second,
		Logger:  zap.NewNop(),
	}
}

// recordingSink counts every capability call.
type recordingSink struct {
	calls    []string
	exitCode int
	result   string
	errText  string
}

func newRecordingSink() *recordingSink { return &recordingSink{} }

func (s *recordingSink) SetExitCode(code int) {
	s.calls = append(s.calls, "exit")
	s.exitCode = code
}

func (s *recordingSink) ParseResult(text string) {
	s.calls = append(s.calls, "result")
	s.result = text
}

func (s *recordingSink) ParseError(text string) {
	s.calls = append(s.calls, "error")
	s.errText = text
}

func TestSucceeds_ExitZero(t *testing.T) {
	r := newTestRunner(t)
	ok, err := r.Succeeds(context.Background(), "true")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSucceeds_StderrWithExitZero(t *testing.T) {
	r := newTestRunner(t)
	ok, err := r.Succeeds(context.Background(), "echo warn >&2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSucceeds_NonZeroExit(t *testing.T) {
	r := newTestRunner(t)
	ok, err := r.Succeeds(context.Background(), "echo broken >&2; exit 3")

	assert.False(t, ok)
	require.ErrorIs(t, err, ErrNonZeroExit)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "broken", exitErr.Stderr)
	assert.Contains(t, err.Error(), "code 3")
	assert.Contains(t, err.Error(), "broken")
	assert.NotErrorIs(t, err, ErrCancelled)
}

func TestExitCode(t *testing.T) {
	r := newTestRunner(t)
	for _, n := range []int{0, 1, 2, 42, 255} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			code, err := r.ExitCode(context.Background(), fmt.Sprintf("exit %d", n))
			require.NoError(t, err)
			assert.Equal(t, n, code)
		})
	}
}

func TestExitCode_StderrFailsEvenOnZero(t *testing.T) {
	r := newTestRunner(t)
	code, err := r.ExitCode(context.Background(), "echo oops >&2")

	assert.Equal(t, 0, code)
	require.ErrorIs(t, err, ErrStderrProduced)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, "oops", exitErr.Stderr)
}

func TestCollect_StdoutOnly(t *testing.T) {
	r := newTestRunner(t)
	sink, err := Collect(context.Background(), r, "echo hello", newRecordingSink)

	require.NoError(t, err)
	assert.Equal(t, "hello", sink.result)
	assert.Equal(t, []string{"result", "exit"}, sink.calls)
	assert.Equal(t, 0, sink.exitCode)
}

func TestCollect_StderrOnly(t *testing.T) {
	r := newTestRunner(t)
	sink, err := Collect(context.Background(), r, "echo bad >&2; exit 4", newRecordingSink)

	require.NoError(t, err, "typed results never fail on exit code or stderr")
	assert.Equal(t, []string{"error", "exit"}, sink.calls)
	assert.Equal(t, "bad", sink.errText)
	assert.Equal(t, 4, sink.exitCode)
}

func TestCollect_CallOrder(t *testing.T) {
	r := newTestRunner(t)
	sink, err := Collect(context.Background(), r, "echo out; echo err >&2", newRecordingSink)

	require.NoError(t, err)
	assert.Equal(t, []string{"result", "error", "exit"}, sink.calls)
}

func TestCollect_NoOutput(t *testing.T) {
	r := newTestRunner(t)
	sink, err := Collect(context.Background(), r, "true", newRecordingSink)

	require.NoError(t, err)
	assert.Equal(t, []string{"exit"}, sink.calls)
}

func TestCollect_MultiLineInterleaved(t *testing.T) {
	r := newTestRunner(t)
	for i := range 20 {
		sink, err := Collect(context.Background(), r,
			"for i in 1 2 3; do echo line$i; echo err$i >&2; done", NewTextResult)
		require.NoError(t, err, "iteration %d", i)
		assert.Equal(t, "line1\nline2\nline3", sink.Output)
		assert.Equal(t, "err1\nerr2\nerr3", sink.Error)
	}
}

func TestCollect_LargeOutput(t *testing.T) {
	r := newTestRunner(t)
	sink, err := Collect(context.Background(), r, "seq 1 20000; seq 1 20000 >&2", NewTextResult)

	require.NoError(t, err)
	lines := strings.Split(sink.Output, "\n")
	require.Len(t, lines, 20000)
	assert.Equal(t, "1", lines[0])
	assert.Equal(t, "20000", lines[19999])
	assert.Len(t, strings.Split(sink.Error, "\n"), 20000)
}

func TestCollect_RoundTrip(t *testing.T) {
	inputs := []string{
		"hello world",
		"  leading and trailing  ",
		`$HOME "double" \backslash\ `,
		"it's quoted",
		"~!@#%^&*()_+-={}[]|:;<>?,./`",
	}
	r := newTestRunner(t)
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			quoted := "'" + strings.ReplaceAll(in, "'", `'\''`) + "'"
			sink, err := Collect(context.Background(), r, "printf '%s\\n' "+quoted, NewTextResult)
			require.NoError(t, err)
			assert.Equal(t, in, sink.Output)
			assert.Empty(t, sink.Error)
		})
	}
}

func TestEmptyCommand(t *testing.T) {
	r := newTestRunner(t)
	obs := &countingObserver{}
	r.Observer = obs

	for _, cmd := range []string{"", "   ", "\t\n"} {
		_, err := r.Succeeds(context.Background(), cmd)
		assert.ErrorIs(t, err, ErrInvalidCommand)

		_, err = r.ExitCode(context.Background(), cmd)
		assert.ErrorIs(t, err, ErrInvalidCommand)

		_, err = Collect(context.Background(), r, cmd, NewTextResult)
		assert.ErrorIs(t, err, ErrInvalidCommand)
	}
	assert.Zero(t, obs.started, "no execution may begin for an invalid command")
}

func TestTimeout(t *testing.T) {
	r := newTestRunner(t)
	r.Timeout = 300 * time.Millisecond
	pidFile := filepath.Join(t.TempDir(), "pid")

	start := time.Now()
	_, err := Collect(context.Background(), r, fmt.Sprintf("echo $$ > %s; sleep 10", pidFile), newRecordingSink)

	require.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.True(t, cancelled.Timeout())
	assert.Less(t, time.Since(start), 5*time.Second)

	data, readErr := os.ReadFile(pidFile)
	require.NoError(t, readErr)
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, convErr)
	assert.Eventually(t, func() bool {
		return errors.Is(unix.Kill(pid, 0), unix.ESRCH)
	}, 2*time.Second, 20*time.Millisecond, "process %d still running", pid)
}

func TestTimeout_KillsBackgroundChildren(t *testing.T) {
	r := newTestRunner(t)
	r.Timeout = 100 * time.Millisecond

	start := time.Now()
	ok, err := r.Succeeds(context.Background(), "sleep 10 & sleep 10 & wait")

	assert.False(t, ok)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExternalCancel(t *testing.T) {
	r := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	code, err := r.ExitCode(ctx, "sleep 5")

	assert.Equal(t, 0, code)
	require.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.False(t, cancelled.Timeout())
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestCancelledNeverInvokesSink(t *testing.T) {
	r := newTestRunner(t)
	r.Timeout = 50 * time.Millisecond
	built := false

	_, err := Collect(context.Background(), r, "echo partial; sleep 5", func() *recordingSink {
		built = true
		return newRecordingSink()
	})

	require.ErrorIs(t, err, ErrCancelled)
	assert.False(t, built)
}

func TestLaunchFailure(t *testing.T) {
	r := newTestRunner(t)
	r.Resolver = &platform.Resolver{Shell: "/nonexistent/shell-xyz"}

	out, err := r.Execute(context.Background(), "echo hi")
	require.NoError(t, err)
	assert.Equal(t, LaunchError, out.Kind)
	require.ErrorIs(t, out.Err, ErrLaunchFailure)
	assert.Contains(t, out.Err.Error(), "echo hi")

	_, err = Collect(context.Background(), r, "echo hi", NewTextResult)
	assert.ErrorIs(t, err, ErrLaunchFailure)
	_, err = r.Succeeds(context.Background(), "echo hi")
	assert.ErrorIs(t, err, ErrLaunchFailure)
}

func TestPlatformNotSupported(t *testing.T) {
	r := newTestRunner(t)
	r.Resolver = &platform.Resolver{
		GOOS:  "windows",
		Probe: func(context.Context) error { return errors.New("wsl --status exited with code 1") },
	}

	_, err := r.ExitCode(context.Background(), "echo hi")
	require.ErrorIs(t, err, ErrLaunchFailure)
	assert.ErrorIs(t, err, platform.ErrPlatformNotSupported)
}

func TestExecute_Outcomes(t *testing.T) {
	r := newTestRunner(t)
	tests := []struct {
		command string
		kind    Kind
		code    int
	}{
		{"echo ok", Success, 0},
		{"exit 7", Failure, 7},
		{"echo warn >&2", Failure, 0},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			out, err := r.Execute(context.Background(), tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, out.Kind)
			assert.Equal(t, tt.code, out.ExitCode)
			assert.NotEmpty(t, out.RunID)
			assert.Nil(t, out.Err)
		})
	}
}

func TestExecute_WorkingDirectory(t *testing.T) {
	r := newTestRunner(t)
	r.Dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(r.Dir, "marker"), nil, 0o644))

	sink, err := Collect(context.Background(), r, "ls", NewTextResult)
	require.NoError(t, err)
	assert.Equal(t, "marker", sink.Output)
}

func TestExecute_ConcurrentRuns(t *testing.T) {
	r := newTestRunner(t)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink, err := Collect(context.Background(), r, fmt.Sprintf("echo %d; echo e%d >&2", i, i), NewTextResult)
			assert.NoError(t, err)
			assert.Equal(t, strconv.Itoa(i), sink.Output)
			assert.Equal(t, fmt.Sprintf("e%d", i), sink.Error)
		}()
	}
	wg.Wait()
}

func TestExecute_StoresRecords(t *testing.T) {
	store := report.NewLRUStore(4, report.NewDiskStore(t.TempDir()))
	r := newTestRunner(t)
	r.Store = store

	out, err := r.Execute(context.Background(), "echo stored; exit 2")
	require.NoError(t, err)

	rec, err := store.Load(out.RunID)
	require.NoError(t, err)
	assert.Equal(t, report.Failure, rec.Outcome)
	assert.Equal(t, 2, rec.ExitCode)
	assert.Equal(t, "stored", rec.Stdout)
	assert.Equal(t, "echo stored; exit 2", rec.Command)
}

func TestExecute_StoresCancelledWithoutOutput(t *testing.T) {
	store := report.NewLRUStore(4, report.NewDiskStore(t.TempDir()))
	r := newTestRunner(t)
	r.Store = store
	r.Timeout = 50 * time.Millisecond

	out, err := r.Execute(context.Background(), "echo partial; sleep 5")
	require.NoError(t, err)
	require.Equal(t, Cancelled, out.Kind)

	rec, err := store.Load(out.RunID)
	require.NoError(t, err)
	assert.Equal(t, report.Cancelled, rec.Outcome)
	assert.Empty(t, rec.Stdout)
	assert.Equal(t, "command timed out", rec.Error)
}

type countingObserver struct {
	mu       sync.Mutex
	started  int
	finished []*Outcome
}

func (o *countingObserver) Started(string, string) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *countingObserver) Finished(out *Outcome) {
	o.mu.Lock()
	o.finished = append(o.finished, out)
	o.mu.Unlock()
}

func TestObserver(t *testing.T) {
	r := newTestRunner(t)
	obs := &countingObserver{}
	r.Observer = obs

	out, err := r.Execute(context.Background(), "echo hi")
	require.NoError(t, err)

	assert.Equal(t, 1, obs.started)
	require.Len(t, obs.finished, 1)
	assert.Same(t, out, obs.finished[0])
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := newTestRunner(t)
	r.Logger = zap.New(core)
	r.Timeout = 50 * time.Millisecond

	_, err := r.Execute(context.Background(), "echo hi")
	require.NoError(t, err)
	_, err = r.Execute(context.Background(), "sleep 5")
	require.NoError(t, err)

	assert.Equal(t, 2, logs.FilterMessage("launching").Len())
	finished := logs.FilterMessage("command finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, "success", finished[0].ContextMap()["outcome"])
	assert.Equal(t, 1, logs.FilterMessage("command cancelled").Len())
	for _, entry := range logs.All() {
		assert.Contains(t, entry.ContextMap(), "run_id")
	}
}

func TestDefaultTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, (&Runner{}).timeout())
	assert.Equal(t, time.Second, (&Runner{Timeout: time.Second}).timeout())
}
