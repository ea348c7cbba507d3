package launcher

import (
	"fmt"
	"syscall"
	"time"
)

// State represents a launched process's lifecycle state
type State string

const (
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateKilled    State = "killed"
)

// ExitReason describes why a launched process terminated
type ExitReason string

const (
	ExitReasonSuccess ExitReason = "success" // exit code 0
	ExitReasonError   ExitReason = "error"   // exit code != 0
	ExitReasonSignal  ExitReason = "signal"  // killed by signal
	ExitReasonReload  ExitReason = "reload"  // stopped by the file watcher for a restart
	ExitReasonUnknown ExitReason = "unknown"
)

// Event records a lifecycle state change
type Event struct {
	PID       int        `json:"pid"`
	State     State      `json:"state"`
	Timestamp time.Time  `json:"timestamp"`
	ExitCode  int        `json:"exit_code,omitempty"`
	Reason    ExitReason `json:"exit_reason,omitempty"`
	Signal    string     `json:"signal,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// DetermineExitReason classifies a process exit
func DetermineExitReason(exitCode int, waitStatus syscall.WaitStatus) ExitReason {
	if waitStatus.Exited() {
		if exitCode == 0 {
			return ExitReasonSuccess
		}
		return ExitReasonError
	}

	if waitStatus.Signaled() {
		return ExitReasonSignal
	}

	return ExitReasonUnknown
}

// SignalName returns a printable name for a signal
func SignalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGKILL:
		return "SIGKILL"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGHUP:
		return "SIGHUP"
	case syscall.SIGQUIT:
		return "SIGQUIT"
	default:
		return fmt.Sprintf("SIG%d", sig)
	}
}

// IsSuccess returns true if the exit represents success
func (r ExitReason) IsSuccess() bool {
	return r == ExitReasonSuccess
}
