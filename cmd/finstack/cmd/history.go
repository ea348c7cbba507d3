package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"finstack/pkg/logging"
	"finstack/pkg/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent launches and dispatcher invocations",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of records to show")
}

// historyPath resolves the configured history database location
func historyPath() string {
	if path := viper.GetString("history.path"); path != "" {
		return path
	}
	return store.DefaultPath()
}

// openHistory opens the history store, or returns nil when disabled or
// unavailable. History is a convenience; it never blocks an operation.
func openHistory(logger *logging.Logger) *store.History {
	if !viper.GetBool("history.enabled") {
		return nil
	}
	hist, err := store.Open(historyPath())
	if err != nil {
		logger.Warn("history unavailable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return hist
}

// recordHistory appends one record, best effort
func recordHistory(rec *store.Record) {
	hist := openHistory(newLogger())
	if hist == nil {
		return
	}
	defer hist.Close()
	if err := hist.Append(rec); err != nil {
		newLogger().Warn("failed to record history", map[string]interface{}{"error": err.Error()})
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	hist, err := store.Open(historyPath())
	if err != nil {
		return err
	}
	defer hist.Close()

	records, err := hist.List(historyLimit)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		output, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if len(records) == 0 {
		fmt.Println("No history recorded")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("When", "Kind", "Name", "Exit", "Reason", "Command")

	for _, rec := range records {
		exit := fmt.Sprintf("%d", rec.ExitCode)
		if rec.Kind == "exec" {
			exit = "-" // process image was replaced; exit belongs to the server
		}
		table.Append(
			rec.StartedAt.Local().Format(time.DateTime),
			rec.Kind,
			rec.Name,
			exit,
			rec.Reason,
			rec.Argv,
		)
	}

	table.Render()
	fmt.Printf("\nTotal records: %d\n", len(records))
	return nil
}
