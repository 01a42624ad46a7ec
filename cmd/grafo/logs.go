package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petrijr/grafo/internal/persistence"
)

var logsCmd = &cobra.Command{
	Use:   "logs [run-id]",
	Short: "Inspect the execution audit trail",
	Long: `Without arguments, lists the run IDs recorded in the audit database.
With a run ID, prints that run's execution logs in append order. Pass
--verbose to include each step's captured log output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: showLogs,
}

func showLogs(cmd *cobra.Command, args []string) error {
	if dbPath == "" {
		return fmt.Errorf("logs needs --db pointing at the audit database")
	}
	db, err := openAuditDB()
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := persistence.NewSQLiteSink(db)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if len(args) == 0 {
		runs, err := store.Runs(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, id := range runs {
			fmt.Println(id)
		}
		return nil
	}

	logs, err := store.ListByRun(ctx, args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}

	for _, entry := range logs {
		status := "ok"
		if entry.Failed() {
			status = "FAILED: " + entry.Err
		}
		fmt.Printf("%s  %-22s %10s  %s\n",
			entry.StartedAt.Format("15:04:05.000"),
			entry.StepName,
			entry.Duration().Round(time.Microsecond),
			status,
		)
		if verbose && entry.CapturedOutput != "" {
			fmt.Println(indent(strings.TrimRight(entry.CapturedOutput, "\n"), "    "))
		}
	}
	return nil
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
