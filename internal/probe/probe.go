package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/common/expfmt"

	"finstack/internal/stack"
	"finstack/pkg/retry"
)

// DefaultTimeout bounds a single liveness dial
const DefaultTimeout = 2 * time.Second

// Status is a probe verdict
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
	StatusNone Status = "n/a" // service does not listen
)

// Result is the outcome of probing one service
type Result struct {
	Service string        `json:"service"`
	Addr    string        `json:"addr,omitempty"`
	Status  Status        `json:"status"`
	Latency time.Duration `json:"latency_ns,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// TCP dials an address once and reports reachability
func TCP(addr string, timeout time.Duration) (time.Duration, error) {
	start := time.Now()
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return 0, err
	}
	conn.Close()
	return time.Since(start), nil
}

// Check probes one service spec
func Check(spec *stack.Spec, timeout time.Duration) *Result {
	result := &Result{Service: string(spec.Name)}

	if !spec.Listens() {
		result.Status = StatusNone
		return result
	}

	// Services bind all interfaces; the probe goes through loopback
	addr := fmt.Sprintf("127.0.0.1:%d", spec.Port)
	result.Addr = addr

	latency, err := TCP(addr, timeout)
	if err != nil {
		result.Status = StatusDown
		result.Error = err.Error()
		return result
	}

	result.Status = StatusUp
	result.Latency = latency
	return result
}

// CheckAll probes every spec
func CheckAll(specs []*stack.Spec, timeout time.Duration) []*Result {
	results := make([]*Result, 0, len(specs))
	for _, spec := range specs {
		results = append(results, Check(spec, timeout))
	}
	return results
}

// WaitReady blocks until the service accepts connections, with backoff
func WaitReady(ctx context.Context, spec *stack.Spec, timeout time.Duration, config retry.Config) error {
	if !spec.Listens() {
		return nil
	}
	addr := fmt.Sprintf("127.0.0.1:%d", spec.Port)
	return retry.Do(ctx, config, func() error {
		_, err := TCP(addr, timeout)
		return err
	})
}

// ScrapeMetrics fetches a Prometheus text endpoint and returns the first
// sample value of each untyped/gauge/counter family. Used to read the beat
// supervisor's restart counters without a full Prometheus setup.
func ScrapeMetrics(url string, timeout time.Duration) (map[string]float64, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape %s: status %d", url, resp.StatusCode)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics: %w", err)
	}

	values := make(map[string]float64, len(families))
	for name, family := range families {
		metrics := family.GetMetric()
		if len(metrics) == 0 {
			continue
		}
		m := metrics[0]
		switch {
		case m.GetCounter() != nil:
			values[name] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			values[name] = m.GetGauge().GetValue()
		case m.GetUntyped() != nil:
			values[name] = m.GetUntyped().GetValue()
		}
	}
	return values, nil
}
