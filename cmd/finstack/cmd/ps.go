package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"finstack/internal/discover"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List running stack processes",
	Long: `Scan the process table for the stack's process managers (gunicorn,
uvicorn, celery beat) and show what is actually running, regardless of how
it was started.`,
	Args: cobra.NoArgs,
	RunE: runPs,
}

func init() {
	rootCmd.AddCommand(psCmd)
}

func runPs(cmd *cobra.Command, args []string) error {
	scanner := discover.NewScanner(discover.DefaultTargets())
	procs, err := scanner.Scan()
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(procs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(procs) == 0 {
		fmt.Println("No stack processes running")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("PID", "Service", "User", "CPU%", "RSS", "Age", "Command")

	for _, proc := range procs {
		table.Append(
			fmt.Sprintf("%d", proc.PID),
			proc.Service,
			proc.Username,
			fmt.Sprintf("%.1f", proc.CPUPercent),
			formatBytes(proc.RSSBytes),
			proc.Age.String(),
			proc.CommandLine,
		)
	}

	table.Render()
	fmt.Printf("\nTotal processes: %d\n", len(procs))
	return nil
}

func formatBytes(n uint64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
