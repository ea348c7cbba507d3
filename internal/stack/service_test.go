package stack

import (
	"strings"
	"testing"
)

func TestSessionBindsPort8000(t *testing.T) {
	spec, err := Lookup("session")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	if spec.Port != 8000 {
		t.Fatalf("session port = %d, want 8000", spec.Port)
	}

	cmd := strings.Join(spec.Command(), " ")
	if !strings.Contains(cmd, "0.0.0.0:8000") {
		t.Errorf("session command does not bind 0.0.0.0:8000: %s", cmd)
	}
	if !strings.Contains(cmd, "config.wsgi") {
		t.Errorf("session command missing WSGI entry point: %s", cmd)
	}
	if !strings.Contains(cmd, "--reload") {
		t.Errorf("session command missing --reload: %s", cmd)
	}
	if spec.Binary != "gunicorn" {
		t.Errorf("session binary = %q, want gunicorn", spec.Binary)
	}
}

func TestWalletBindsPort8001(t *testing.T) {
	spec, err := Lookup("wallet")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	if spec.Port != 8001 {
		t.Fatalf("wallet port = %d, want 8001", spec.Port)
	}

	cmd := strings.Join(spec.Command(), " ")
	if !strings.Contains(cmd, "--port 8001") {
		t.Errorf("wallet command does not bind port 8001: %s", cmd)
	}
	if !strings.Contains(cmd, "app.main:app") {
		t.Errorf("wallet command missing ASGI entry point: %s", cmd)
	}
	if !strings.Contains(cmd, "--host 0.0.0.0") {
		t.Errorf("wallet command does not bind all interfaces: %s", cmd)
	}
	if spec.Binary != "uvicorn" {
		t.Errorf("wallet binary = %q, want uvicorn", spec.Binary)
	}
}

func TestPortsNeverSwapped(t *testing.T) {
	session, _ := Lookup("session")
	wallet, _ := Lookup("wallet")

	if session.Port == wallet.Port {
		t.Fatal("session and wallet must bind distinct ports")
	}
	if session.Port != SessionPort || wallet.Port != WalletPort {
		t.Errorf("ports swapped: session=%d wallet=%d", session.Port, wallet.Port)
	}
}

func TestBeatCommand(t *testing.T) {
	spec, err := Lookup("beat")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	want := []string{"celery", "-A", "app.core.celery_app", "beat", "-l", "INFO"}
	got := spec.Command()
	if len(got) != len(want) {
		t.Fatalf("beat command = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("beat command = %v, want %v", got, want)
		}
	}

	if spec.Listens() {
		t.Error("beat must not bind a port")
	}
	if len(spec.WatchExts) == 0 || spec.WatchExts[0] != ".py" {
		t.Errorf("beat watch extensions = %v, want [.py]", spec.WatchExts)
	}
}

func TestLookupUnknownService(t *testing.T) {
	if _, err := Lookup("stockx"); err == nil {
		t.Error("expected error for unknown service")
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	a, _ := Lookup("session")
	a.Port = 9999
	a.RequiredEnv = append(a.RequiredEnv, "MUTATED")

	b, _ := Lookup("session")
	if b.Port != SessionPort {
		t.Error("Lookup must return an isolated copy")
	}
	if len(b.RequiredEnv) != 0 {
		t.Error("RequiredEnv leaked between Lookup calls")
	}
}

func TestAllOrdered(t *testing.T) {
	specs := All()
	if len(specs) != 3 {
		t.Fatalf("expected 3 services, got %d", len(specs))
	}
	for i := 1; i < len(specs); i++ {
		if specs[i-1].Name >= specs[i].Name {
			t.Errorf("All() not ordered: %v before %v", specs[i-1].Name, specs[i].Name)
		}
	}
}
