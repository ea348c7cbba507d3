package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"finstack/internal/launcher"
	"finstack/internal/stack"
	"finstack/pkg/logging"
	"finstack/pkg/retry"
)

// RestartCause explains why the supervisor restarted the scheduler
type RestartCause string

const (
	CauseReload   RestartCause = "reload"   // source change
	CauseCrash    RestartCause = "crash"    // process exited on its own
	CauseShutdown RestartCause = "shutdown" // supervisor stopping
)

// DefaultKillTimeout is how long a stopped process gets to exit after
// SIGTERM before SIGKILL.
const DefaultKillTimeout = 10 * time.Second

// stableAfter is the uptime after which a crash streak is forgiven
const stableAfter = 30 * time.Second

// SupervisorConfig configures the restart supervisor
type SupervisorConfig struct {
	KillTimeout time.Duration
	Backoff     retry.Config
	// RestartsPerMinute throttles restart storms from rapid-fire source
	// changes or a crash-looping scheduler. 0 means 10.
	RestartsPerMinute int
	// OnRestart is invoked after every process exit the supervisor handles
	OnRestart func(cause RestartCause, result *launcher.Result)
}

// Supervisor keeps the scheduler process running, restarting it on source
// changes and on crashes. This is the one launcher with explicit supervision
// behavior; the web services rely on their servers' own --reload instead.
type Supervisor struct {
	spec    *stack.Spec
	watcher *Watcher
	config  SupervisorConfig
	limiter *rate.Limiter
	backoff *retry.Backoff
	logger  *logging.Logger

	restarts int
}

// NewSupervisor creates a supervisor for a scheduler spec
func NewSupervisor(spec *stack.Spec, w *Watcher, config SupervisorConfig, logger *logging.Logger) *Supervisor {
	if config.KillTimeout == 0 {
		config.KillTimeout = DefaultKillTimeout
	}
	if config.Backoff.InitialBackoff == 0 {
		config.Backoff = retry.DefaultConfig()
	}
	if config.RestartsPerMinute == 0 {
		config.RestartsPerMinute = 10
	}
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}

	return &Supervisor{
		spec:    spec,
		watcher: w,
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(float64(config.RestartsPerMinute)/60.0), config.RestartsPerMinute),
		backoff: retry.NewBackoff(config.Backoff),
		logger:  logger.WithField("service", string(spec.Name)),
	}
}

// Restarts returns how many times the supervised process has been restarted
func (s *Supervisor) Restarts() int {
	return s.restarts
}

// Run supervises the process until the context is cancelled. The first
// launch failure (missing binary, missing env) is fatal; once the process
// has started, exits are restarted with backoff.
func (s *Supervisor) Run(ctx context.Context) error {
	launched := false

	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}

		child, err := s.start(ctx)
		if err != nil {
			if !launched {
				return err
			}
			// Binary disappeared mid-session; back off and retry
			s.logger.Error("relaunch failed", map[string]interface{}{"error": err.Error()})
			if !s.sleep(ctx, s.backoff.Next()) {
				return nil
			}
			continue
		}
		launched = true
		started := time.Now()

		select {
		case <-ctx.Done():
			result := child.stop(s.config.KillTimeout)
			s.notify(CauseShutdown, result)
			return nil

		case path := <-s.watcher.Changes():
			s.logger.Info("restarting on change", map[string]interface{}{"path": path})
			result := child.stop(s.config.KillTimeout)
			result.Reason = launcher.ExitReasonReload
			s.restarts++
			s.backoff.Reset()
			s.notify(CauseReload, result)

		case result := <-child.done:
			s.logger.Warn("scheduler exited", map[string]interface{}{
				"exit_code": result.ExitCode,
				"reason":    string(result.Reason),
			})
			s.restarts++
			if time.Since(started) > stableAfter {
				s.backoff.Reset()
			}
			s.notify(CauseCrash, result)
			if !s.sleep(ctx, s.backoff.Next()) {
				return nil
			}
		}
	}
}

func (s *Supervisor) notify(cause RestartCause, result *launcher.Result) {
	if s.config.OnRestart != nil && result != nil {
		s.config.OnRestart(cause, result)
	}
}

func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// child is one incarnation of the supervised process
type child struct {
	cmd   *exec.Cmd
	pid   int
	start time.Time
	done  chan *launcher.Result
}

func (s *Supervisor) start(ctx context.Context) (*child, error) {
	if missing := launcher.MissingEnv(s.spec); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", launcher.ErrMissingEnv, missing)
	}

	path, err := exec.LookPath(s.spec.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", launcher.ErrBinaryNotFound, s.spec.Binary)
	}

	cmd := exec.Command(path, s.spec.Args()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true, Pgid: 0}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", s.spec.Binary, err)
	}

	c := &child{
		cmd:   cmd,
		pid:   cmd.Process.Pid,
		start: time.Now(),
		done:  make(chan *launcher.Result, 1),
	}

	s.logger.Info("started", map[string]interface{}{"pid": c.pid})

	go func() {
		waitErr := cmd.Wait()
		c.done <- c.result(waitErr)
	}()

	return c, nil
}

// stop terminates the child's process group: SIGTERM, then SIGKILL after the
// kill timeout. Returns the final result.
func (c *child) stop(killTimeout time.Duration) *launcher.Result {
	syscall.Kill(-c.pid, syscall.SIGTERM)

	select {
	case result := <-c.done:
		return result
	case <-time.After(killTimeout):
		syscall.Kill(-c.pid, syscall.SIGKILL)
		return <-c.done
	}
}

func (c *child) result(waitErr error) *launcher.Result {
	end := time.Now()
	result := &launcher.Result{
		PID:       c.pid,
		StartTime: c.start,
		EndTime:   end,
		Duration:  end.Sub(c.start),
	}

	if waitErr == nil {
		result.Reason = launcher.ExitReasonSuccess
		return result
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.Reason = launcher.DetermineExitReason(result.ExitCode, ws)
			return result
		}
	}

	result.ExitCode = -1
	result.Reason = launcher.ExitReasonUnknown
	return result
}
