package stack

import (
	"fmt"
	"sort"
	"strconv"
)

// Service identifies one entrypoint of the finance stack
type Service string

const (
	ServiceSession Service = "session"
	ServiceWallet  Service = "wallet"
	ServiceBeat    Service = "beat"
)

// Kind represents the class of process manager a service runs under
type Kind string

const (
	KindWSGI      Kind = "wsgi"      // gunicorn-style synchronous server
	KindASGI      Kind = "asgi"      // uvicorn-style async server
	KindScheduler Kind = "scheduler" // celery beat under a file watcher
)

// Fixed bind ports. The session-auth server always owns 8000 and the wallet
// API always owns 8001; they are constants, not configuration, so they can
// never be swapped by a bad config file.
const (
	SessionPort = 8000
	WalletPort  = 8001
)

// BindHost is the bind address for all web services
const BindHost = "0.0.0.0"

// Spec describes how one service process is started
type Spec struct {
	Name        Service
	Kind        Kind
	Binary      string   // process manager binary resolved on PATH
	Entry       string   // application entry point the binary loads
	Port        int      // 0 for services that do not listen
	Reload      bool     // server restarts its own workers on source change
	RequiredEnv []string // must be set before launch
	WatchExts   []string // file extensions the scheduler supervisor watches
	Argv        []string // explicit argv for specs outside the known kinds
}

// Args returns the argv passed to the binary, excluding the binary itself
func (s *Spec) Args() []string {
	switch s.Kind {
	case KindWSGI:
		args := []string{s.Entry, "--bind", s.Addr()}
		if s.Reload {
			args = append(args, "--reload")
		}
		return args
	case KindASGI:
		args := []string{s.Entry, "--host", BindHost, "--port", strconv.Itoa(s.Port)}
		if s.Reload {
			args = append(args, "--reload")
		}
		return args
	case KindScheduler:
		return []string{"-A", s.Entry, "beat", "-l", "INFO"}
	default:
		return append([]string(nil), s.Argv...)
	}
}

// Command returns the full command line, binary first
func (s *Spec) Command() []string {
	return append([]string{s.Binary}, s.Args()...)
}

// Addr returns the host:port the service binds, or "" for non-listening services
func (s *Spec) Addr() string {
	if s.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", BindHost, s.Port)
}

// Listens reports whether the service binds a TCP port
func (s *Spec) Listens() bool {
	return s.Port != 0
}

// defaults holds the canonical service definitions
var defaults = map[Service]Spec{
	ServiceSession: {
		Name:   ServiceSession,
		Kind:   KindWSGI,
		Binary: "gunicorn",
		Entry:  "config.wsgi",
		Port:   SessionPort,
		Reload: true,
	},
	ServiceWallet: {
		Name:   ServiceWallet,
		Kind:   KindASGI,
		Binary: "uvicorn",
		Entry:  "app.main:app",
		Port:   WalletPort,
		Reload: true,
	},
	ServiceBeat: {
		Name:      ServiceBeat,
		Kind:      KindScheduler,
		Binary:    "celery",
		Entry:     "app.core.celery_app",
		WatchExts: []string{".py"},
	},
}

// Lookup returns a copy of the spec for the named service
func Lookup(name string) (*Spec, error) {
	spec, ok := defaults[Service(name)]
	if !ok {
		return nil, fmt.Errorf("unknown service %q (expected one of %v)", name, Names())
	}
	out := spec
	out.RequiredEnv = append([]string(nil), spec.RequiredEnv...)
	out.WatchExts = append([]string(nil), spec.WatchExts...)
	return &out, nil
}

// All returns copies of every service spec, ordered by name
func All() []*Spec {
	specs := make([]*Spec, 0, len(defaults))
	for name := range defaults {
		spec, _ := Lookup(string(name))
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Names returns the known service names, ordered
func Names() []string {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}
