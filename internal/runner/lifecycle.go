package runner

import (
	"context"
	"sync"
)

// state is a position in the execution lifecycle:
//
//	Starting -> Running -> {Exited, Cancelled}
//	Starting -> LaunchFailed
type state int

const (
	stateStarting state = iota
	stateRunning
	stateExited
	stateCancelled
	stateLaunchFailed
)

func (s state) String() string {
	switch s {
	case stateStarting:
		return "starting"
	case stateRunning:
		return "running"
	case stateExited:
		return "exited"
	case stateCancelled:
		return "cancelled"
	case stateLaunchFailed:
		return "launch_failed"
	}
	return "unknown"
}

func (s state) terminal() bool {
	return s >= stateExited
}

// lifecycle resolves exactly one terminal state. Later attempts are no-ops.
type lifecycle struct {
	mu    sync.Mutex
	state state
	done  chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{done: make(chan struct{})}
}

// current returns the state.
func (l *lifecycle) current() state {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// transition moves to next if the move is legal and reports whether it
// happened. Entering a terminal state closes done.
func (l *lifecycle) transition(next state) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.state == stateStarting && (next == stateRunning || next == stateLaunchFailed):
	case l.state == stateRunning && (next == stateExited || next == stateCancelled):
	default:
		return false
	}

	l.state = next
	if next.terminal() {
		close(l.done)
	}
	return true
}

// signals are the three independent completion notifications of a
// running process. They may close in any order.
type signals struct {
	exited <-chan struct{}
	stdout <-chan struct{}
	stderr <-chan struct{}
}

// await races the joined signals against ctx and returns the terminal
// state. If ctx fires first, onCancel runs exactly once; the registration
// is revoked as soon as a terminal state is reached. Output must be fully
// drained before the process counts as exited, so the join waits for all
// three signals.
func (l *lifecycle) await(ctx context.Context, sig signals, onCancel func()) state {
	stop := context.AfterFunc(ctx, func() {
		if l.transition(stateCancelled) {
			onCancel()
		}
	})
	defer stop()

	go func() {
		for _, c := range []<-chan struct{}{sig.exited, sig.stdout, sig.stderr} {
			select {
			case <-c:
			case <-l.done:
				return
			}
		}
		l.transition(stateExited)
	}()

	<-l.done
	return l.current()
}
