package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"finstack/pkg/logging"
)

// Op identifies one dispatcher operation. Each op maps to exactly one
// docker compose invocation with fixed flags; there is no branching and no
// parameterization beyond what compose itself supports.
type Op string

const (
	OpBuild          Op = "build"
	OpDown           Op = "down"
	OpDownVolumes    Op = "down-v"
	OpMakeMigrations Op = "makemigrations"
	OpMigrate        Op = "migrate"
	OpShell          Op = "bash"
	OpEnv            Op = "env"
	OpSuperuser      Op = "superuser"
)

// ErrUnknownOp is returned for operations the dispatcher does not define
var ErrUnknownOp = errors.New("unknown compose operation")

// Transient reports whether the op runs in a disposable one-off container
// (compose run --rm) rather than acting on the long-running services.
func (op Op) Transient() bool {
	switch op {
	case OpMakeMigrations, OpMigrate, OpShell, OpEnv, OpSuperuser:
		return true
	}
	return false
}

// Interactive reports whether the op needs the operator's terminal
func (op Op) Interactive() bool {
	return op == OpShell || op == OpSuperuser
}

// Ops returns all dispatcher operations, ordered by name
func Ops() []Op {
	ops := []Op{OpBuild, OpDown, OpDownVolumes, OpMakeMigrations, OpMigrate, OpShell, OpEnv, OpSuperuser}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// ParseOp validates an operation name
func ParseOp(name string) (Op, error) {
	op := Op(name)
	switch op {
	case OpBuild, OpDown, OpDownVolumes, OpMakeMigrations, OpMigrate, OpShell, OpEnv, OpSuperuser:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOp, name)
}

// Config selects the compose project the dispatcher acts on
type Config struct {
	File       string // compose file path, "" for compose's own default
	Project    string // compose project name, "" for the directory default
	AppService string // service that hosts manage.py, defaults to "session"
}

// Invoker translates dispatcher ops into docker compose invocations
type Invoker struct {
	config Config
	logger *logging.Logger
}

// New creates an invoker
func New(config Config, logger *logging.Logger) *Invoker {
	if config.AppService == "" {
		config.AppService = "session"
	}
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Invoker{config: config, logger: logger.WithField("component", "compose")}
}

// Args returns the full argv after the "docker" binary for an op
func (i *Invoker) Args(op Op) ([]string, error) {
	args := []string{"compose"}
	if i.config.File != "" {
		args = append(args, "-f", i.config.File)
	}
	if i.config.Project != "" {
		args = append(args, "-p", i.config.Project)
	}

	app := i.config.AppService

	switch op {
	case OpBuild:
		args = append(args, "up", "--build", "-d", "--remove-orphans")
	case OpDown:
		args = append(args, "down")
	case OpDownVolumes:
		args = append(args, "down", "-v")
	case OpMakeMigrations:
		args = append(args, "run", "--rm", app, "python", "manage.py", "makemigrations")
	case OpMigrate:
		args = append(args, "run", "--rm", app, "python", "manage.py", "migrate")
	case OpShell:
		args = append(args, "run", "--rm", app, "bash")
	case OpEnv:
		args = append(args, "run", "--rm", app, "env")
	case OpSuperuser:
		args = append(args, "run", "--rm", app, "python", "manage.py", "createsuperuser")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}

	return args, nil
}

// Command builds the exec.Cmd for an op with stdio attached to the operator's
// terminal, so interactive ops (bash, createsuperuser) work unchanged.
func (i *Invoker) Command(ctx context.Context, op Op) (*exec.Cmd, error) {
	args, err := i.Args(op)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd, nil
}

// Invoke runs the op and returns the underlying tool's exit code unmodified.
// A non-zero exit is not an error at this layer; the dispatcher passes it
// through and the operator's shell sees what compose returned.
func (i *Invoker) Invoke(ctx context.Context, op Op) (int, error) {
	cmd, err := i.Command(ctx, op)
	if err != nil {
		return -1, err
	}

	i.logger.Info("invoking", map[string]interface{}{"op": string(op), "argv": cmd.Args})

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, fmt.Errorf("docker compose %s: %w", op, err)
	}
	return 0, nil
}
