package discover

import (
	"testing"
)

func TestMatchKnownManagers(t *testing.T) {
	s := NewScanner(nil)

	tests := []struct {
		name    string
		cmdline string
		service string
		ok      bool
	}{
		{"gunicorn", "gunicorn config.wsgi --bind 0.0.0.0:8000 --reload", "session", true},
		{"uvicorn", "uvicorn app.main:app --host 0.0.0.0 --port 8001", "wallet", true},
		{"celery", "celery -A app.core.celery_app beat -l INFO", "beat", true},
		// celery workers are not the beat scheduler
		{"celery", "celery -A app.core.celery_app worker -l INFO", "", false},
		{"postgres", "postgres -D /var/lib/postgresql/data", "", false},
		{"python", "python manage.py runserver", "", false},
	}

	for _, tt := range tests {
		service, ok := s.match(tt.name, tt.cmdline)
		if ok != tt.ok || service != tt.service {
			t.Errorf("match(%q, %q) = (%q, %v), want (%q, %v)",
				tt.name, tt.cmdline, service, ok, tt.service, tt.ok)
		}
	}
}

func TestDefaultTargets(t *testing.T) {
	targets := DefaultTargets()
	if len(targets) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(targets))
	}

	byCommand := make(map[string]string)
	for _, target := range targets {
		byCommand[target.Command] = target.Service
	}
	if byCommand["gunicorn"] != "session" || byCommand["uvicorn"] != "wallet" || byCommand["celery"] != "beat" {
		t.Errorf("unexpected target mapping: %v", byCommand)
	}
}

func TestScanDoesNotFail(t *testing.T) {
	// The process table will rarely contain stack processes in CI; the scan
	// itself must still succeed and never report the scanner's own process.
	s := NewScanner(nil)
	procs, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	for _, p := range procs {
		if p.PID == s.ownPID {
			t.Error("scanner reported its own process")
		}
	}
}
