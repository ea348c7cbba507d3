package probe

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"finstack/internal/stack"
)

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	port := ln.Addr().(*net.TCPAddr).Port
	return ln, port
}

func TestTCPUp(t *testing.T) {
	_, port := listen(t)

	latency, err := TCP(fmt.Sprintf("127.0.0.1:%d", port), DefaultTimeout)
	if err != nil {
		t.Fatalf("TCP probe failed: %v", err)
	}
	if latency <= 0 {
		t.Error("expected positive latency")
	}
}

func TestTCPDown(t *testing.T) {
	ln, port := listen(t)
	ln.Close()

	if _, err := TCP(fmt.Sprintf("127.0.0.1:%d", port), 200*time.Millisecond); err == nil {
		t.Error("expected probe failure on closed port")
	}
}

func TestCheckListeningService(t *testing.T) {
	_, port := listen(t)

	spec := &stack.Spec{Name: "wallet", Kind: stack.KindASGI, Port: port}
	result := Check(spec, DefaultTimeout)

	if result.Status != StatusUp {
		t.Errorf("status = %s, want %s (error: %s)", result.Status, StatusUp, result.Error)
	}
	if result.Addr != "127.0.0.1:"+strconv.Itoa(port) {
		t.Errorf("probe addr = %s", result.Addr)
	}
}

func TestCheckDownService(t *testing.T) {
	ln, port := listen(t)
	ln.Close()

	spec := &stack.Spec{Name: "session", Kind: stack.KindWSGI, Port: port}
	result := Check(spec, 200*time.Millisecond)

	if result.Status != StatusDown {
		t.Errorf("status = %s, want %s", result.Status, StatusDown)
	}
	if result.Error == "" {
		t.Error("down result should carry the dial error")
	}
}

func TestCheckNonListeningService(t *testing.T) {
	spec, err := stack.Lookup("beat")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	result := Check(spec, DefaultTimeout)
	if result.Status != StatusNone {
		t.Errorf("status = %s, want %s for non-listening service", result.Status, StatusNone)
	}
}

func TestScrapeMetrics(t *testing.T) {
	body := `# HELP finstack_beat_restarts_total Scheduler restarts
# TYPE finstack_beat_restarts_total counter
finstack_beat_restarts_total{cause="reload"} 4
# HELP finstack_beat_up Supervisor state
# TYPE finstack_beat_up gauge
finstack_beat_up 1
`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	values, err := ScrapeMetrics(srv.URL, DefaultTimeout)
	if err != nil {
		t.Fatalf("ScrapeMetrics failed: %v", err)
	}

	if values["finstack_beat_restarts_total"] != 4 {
		t.Errorf("restarts = %v, want 4", values["finstack_beat_restarts_total"])
	}
	if values["finstack_beat_up"] != 1 {
		t.Errorf("up = %v, want 1", values["finstack_beat_up"])
	}
}

func TestScrapeMetricsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := ScrapeMetrics(srv.URL, DefaultTimeout); err == nil {
		t.Error("expected error on non-200 response")
	}
}
