package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"finstack/internal/stack"
	"finstack/pkg/logging"
)

// Sentinel errors surfaced before any process is spawned
var (
	ErrBinaryNotFound = errors.New("process manager binary not found on PATH")
	ErrMissingEnv     = errors.New("required environment variable not set")
)

// Result describes a completed launch
type Result struct {
	PID       int           `json:"pid"`
	ExitCode  int           `json:"exit_code"`
	Reason    ExitReason    `json:"exit_reason"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// Launcher starts one service process. It never retries: a failed launch
// exits non-zero and the invoking supervisor decides what happens next.
type Launcher struct {
	spec   *stack.Spec
	logger *logging.Logger
	events []Event
}

// New creates a launcher for a service spec
func New(spec *stack.Spec, logger *logging.Logger) *Launcher {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Launcher{
		spec:   spec,
		logger: logger.WithField("service", string(spec.Name)),
		events: []Event{},
	}
}

// MissingEnv returns the required environment variables that are unset
func MissingEnv(spec *stack.Spec) []string {
	var missing []string
	for _, name := range spec.RequiredEnv {
		if _, ok := os.LookupEnv(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Resolve validates the environment and locates the binary on PATH.
// Both checks fail hard: there is no fallback binary and no default for a
// missing variable.
func (l *Launcher) Resolve() (string, error) {
	if missing := MissingEnv(l.spec); len(missing) > 0 {
		return "", fmt.Errorf("%w: %v", ErrMissingEnv, missing)
	}

	path, err := exec.LookPath(l.spec.Binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, l.spec.Binary)
	}
	return path, nil
}

// Exec replaces the current process image with the service process, the way
// a shell `exec` does. The server owns the terminal, signal handling, and
// exit code from here on. Returns only on failure.
func (l *Launcher) Exec() error {
	path, err := l.Resolve()
	if err != nil {
		return err
	}

	l.logger.Info("exec", map[string]interface{}{
		"binary": path,
		"args":   l.spec.Args(),
		"addr":   l.spec.Addr(),
	})

	if err := syscall.Exec(path, l.spec.Command(), os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil // unreachable
}

// Run spawns the service as a child in its own process group, forwards
// SIGINT/SIGTERM to it, and waits for exit. Used where a parent has to stay
// alive (the scheduler supervisor); plain launches go through Exec.
func (l *Launcher) Run(ctx context.Context) (*Result, error) {
	path, err := l.Resolve()
	if err != nil {
		return nil, err
	}

	l.emit(0, StateStarting, "spawning service process")

	cmd := exec.CommandContext(ctx, path, l.spec.Args()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Env = os.Environ()

	start := time.Now()
	if err := cmd.Start(); err != nil {
		l.emit(0, StateFailed, fmt.Sprintf("failed to start: %v", err))
		return nil, fmt.Errorf("failed to start %s: %w", l.spec.Binary, err)
	}

	pid := cmd.Process.Pid
	l.logger.Info("started", map[string]interface{}{"pid": pid})
	l.emit(pid, StateRunning, "")

	// Forward termination signals to the child's process group
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	forwardDone := make(chan struct{})
	go func() {
		defer signal.Stop(sigChan)
		for {
			select {
			case sig := <-sigChan:
				syscall.Kill(-pid, sig.(syscall.Signal))
			case <-forwardDone:
				return
			}
		}
	}()

	waitErr := cmd.Wait()
	close(forwardDone)
	end := time.Now()

	result := &Result{
		PID:       pid,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
	}

	if waitErr == nil {
		result.ExitCode = 0
		result.Reason = ExitReasonSuccess
		l.emit(pid, StateCompleted, "")
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		ws, ok := exitErr.Sys().(syscall.WaitStatus)
		if ok {
			result.ExitCode = exitErr.ExitCode()
			result.Reason = DetermineExitReason(result.ExitCode, ws)
			if ws.Signaled() {
				l.emit(pid, StateKilled, SignalName(ws.Signal()))
			} else {
				l.emit(pid, StateFailed, fmt.Sprintf("exit code %d", result.ExitCode))
			}
			return result, nil
		}
	}

	result.ExitCode = -1
	result.Reason = ExitReasonUnknown
	l.emit(pid, StateFailed, waitErr.Error())
	return result, fmt.Errorf("wait for %s: %w", l.spec.Binary, waitErr)
}

// Events returns the lifecycle events recorded so far
func (l *Launcher) Events() []Event {
	return append([]Event(nil), l.events...)
}

func (l *Launcher) emit(pid int, state State, message string) {
	l.events = append(l.events, Event{
		PID:       pid,
		State:     state,
		Timestamp: time.Now(),
		Message:   message,
	})
	if message != "" {
		l.logger.Debug(string(state), map[string]interface{}{"pid": pid, "detail": message})
	}
}
