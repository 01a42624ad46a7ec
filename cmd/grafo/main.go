package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

var (
	// Global flags
	verbose bool
	dbPath  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "grafo",
	Short: "grafo - graph-driven security analysis",
	Long: `grafo runs a static analysis graph over a shared state: market data
fans out to four analysts, their signals feed a bull and a bear researcher,
a debate room weighs the theses, and risk plus macro context shape the final
portfolio decision. Every step invocation lands in an execution audit trail.

Point --db at a SQLite file to keep that trail across invocations, then
inspect it with "grafo logs".`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite file for the execution audit trail (default: in-memory)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(graphCmd)
}

// newLogger builds the process logger. Structured output goes to stderr so
// stdout stays clean for the rendered result.
func newLogger() *slog.Logger {
	var out io.Writer = os.Stderr
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// openAuditDB opens the --db SQLite file, or returns nil when unset.
func openAuditDB() (*sql.DB, error) {
	if dbPath == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_journal=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	return db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
