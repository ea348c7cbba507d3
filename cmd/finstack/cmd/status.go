package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"finstack/internal/probe"
	"finstack/internal/stack"
	"finstack/pkg/retry"
)

var (
	statusWait       bool
	statusMetricsURL string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the stack's service ports",
	Long: `Check whether the session-auth server (port 8000) and the wallet API
(port 8001) accept connections. With --wait, block until both are ready.
With --metrics-url, also read the beat supervisor's restart counters.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusWait, "wait", false, "wait for listening services to become ready")
	statusCmd.Flags().StringVar(&statusMetricsURL, "metrics-url", "", "beat supervisor metrics endpoint to scrape")
}

func runStatus(cmd *cobra.Command, args []string) error {
	specs := stack.All()

	if statusWait {
		config := retry.Config{
			MaxRetries:     30,
			InitialBackoff: time.Second,
			MaxBackoff:     5 * time.Second,
			Multiplier:     1.5,
		}
		for _, spec := range specs {
			if err := probe.WaitReady(context.Background(), spec, probe.DefaultTimeout, config); err != nil {
				return fmt.Errorf("service %s never became ready: %w", spec.Name, err)
			}
		}
	}

	results := probe.CheckAll(specs, probe.DefaultTimeout)

	var supervisorMetrics map[string]float64
	if statusMetricsURL != "" {
		values, err := probe.ScrapeMetrics(statusMetricsURL, probe.DefaultTimeout)
		if err != nil {
			newLogger().Warn("metrics scrape failed", map[string]interface{}{"error": err.Error()})
		} else {
			supervisorMetrics = values
		}
	}

	if IsJSONOutput() {
		payload := map[string]interface{}{"services": results}
		if supervisorMetrics != nil {
			payload["supervisor_metrics"] = supervisorMetrics
		}
		output, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Service", "Address", "Status", "Latency")

	for _, result := range results {
		latency := ""
		if result.Latency > 0 {
			latency = result.Latency.Truncate(time.Microsecond).String()
		}
		addr := result.Addr
		if addr == "" {
			addr = "-"
		}
		table.Append(result.Service, addr, string(result.Status), latency)
	}

	table.Render()

	if supervisorMetrics != nil {
		fmt.Println()
		for name, value := range supervisorMetrics {
			fmt.Printf("%s = %g\n", name, value)
		}
	}
	return nil
}
