package discover

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Process is a discovered stack process
type Process struct {
	PID         int32         `json:"pid"`
	Command     string        `json:"command"`
	CommandLine string        `json:"command_line"`
	Service     string        `json:"service"`
	Username    string        `json:"username,omitempty"`
	CPUPercent  float64       `json:"cpu_percent"`
	RSSBytes    uint64        `json:"rss_bytes"`
	StartTime   time.Time     `json:"start_time"`
	Age         time.Duration `json:"age"`
}

// Target maps a process manager command to the stack service it runs
type Target struct {
	Command string
	Service string
}

// DefaultTargets are the process managers the finance stack runs under
func DefaultTargets() []Target {
	return []Target{
		{Command: "gunicorn", Service: "session"},
		{Command: "uvicorn", Service: "wallet"},
		{Command: "celery", Service: "beat"},
	}
}

// Scanner discovers running stack processes in the process table
type Scanner struct {
	targets []Target
	ownPID  int32
}

// NewScanner creates a scanner for the given targets
func NewScanner(targets []Target) *Scanner {
	if len(targets) == 0 {
		targets = DefaultTargets()
	}
	return &Scanner{
		targets: targets,
		ownPID:  int32(os.Getpid()),
	}
}

// Scan walks the process table and returns matching stack processes
func (s *Scanner) Scan() ([]*Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var found []*Process
	for _, p := range procs {
		if p.Pid == s.ownPID {
			continue
		}

		name, err := p.Name()
		if err != nil {
			continue // process may have exited mid-scan
		}

		cmdline, _ := p.Cmdline()
		service, ok := s.match(name, cmdline)
		if !ok {
			continue
		}

		proc := &Process{
			PID:         p.Pid,
			Command:     name,
			CommandLine: cmdline,
			Service:     service,
		}

		if username, err := p.Username(); err == nil {
			proc.Username = username
		}
		if pct, err := p.CPUPercent(); err == nil {
			proc.CPUPercent = pct
		}
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			proc.RSSBytes = mem.RSS
		}
		if createMs, err := p.CreateTime(); err == nil {
			proc.StartTime = time.UnixMilli(createMs)
			proc.Age = time.Since(proc.StartTime).Truncate(time.Second)
		}

		found = append(found, proc)
	}

	return found, nil
}

// match resolves which stack service a process belongs to. The command name
// alone is not enough for celery: only the beat scheduler counts, workers
// belong to somebody else.
func (s *Scanner) match(name, cmdline string) (string, bool) {
	for _, target := range s.targets {
		if !strings.Contains(name, target.Command) && !strings.Contains(cmdline, target.Command) {
			continue
		}
		if target.Command == "celery" && !strings.Contains(cmdline, "beat") {
			continue
		}
		return target.Service, true
	}
	return "", false
}
