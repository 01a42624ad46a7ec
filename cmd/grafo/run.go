package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/petrijr/grafo"
	"github.com/petrijr/grafo/agents"
	"github.com/petrijr/grafo/intent"
	"github.com/petrijr/grafo/internal/persistence"
	"github.com/petrijr/grafo/llm"
	"github.com/petrijr/grafo/marketdata"
	"github.com/petrijr/grafo/pkg/api"
)

var (
	showReasoning bool
	noReport      bool
	startDate     string
	endDate       string
	workers       int
	newsLimit     int
	cash          float64
	shares        int64
)

var runCmd = &cobra.Command{
	Use:   "run [ticker or query]",
	Short: "Run the analysis graph for one security",
	Long: `Resolves the argument to a single security, asking when it is ambiguous,
then runs the full analysis graph and renders the decision.

Set OPENAI_COMPATIBLE_API_KEY, OPENAI_COMPATIBLE_BASE_URL and
OPENAI_COMPATIBLE_MODEL to have the report analyzer write a narrative
report; without them it falls back to a local plain-text summary.

Example:
  grafo run 600519 --start-date 2024-01-02 --end-date 2024-06-28 --db runs.db`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalysis,
}

func init() {
	runCmd.Flags().BoolVar(&showReasoning, "show-reasoning", false, "Ask steps to append their reasoning to the message ledger")
	runCmd.Flags().BoolVar(&noReport, "no-report", false, "Skip the report analyzer step")
	runCmd.Flags().StringVar(&startDate, "start-date", "", "History start date, YYYY-MM-DD (default: one year before end)")
	runCmd.Flags().StringVar(&endDate, "end-date", "", "History end date, YYYY-MM-DD (default: yesterday)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent steps per run (default: GOMAXPROCS)")
	runCmd.Flags().IntVar(&newsLimit, "news", 5, "Headlines the sentiment analyst reads")
	runCmd.Flags().Float64Var(&cash, "cash", 100_000, "Cash available to the portfolio manager")
	runCmd.Flags().Int64Var(&shares, "shares", 0, "Shares already held")
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	provider := marketdata.NewStaticProvider()

	sec, err := resolveSecurity(ctx, provider, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Printf("Analyzing %s (%s, %s)\n\n", sec.Name, sec.Code, sec.Exchange)

	opts := grafo.Options{Logger: logger, Workers: workers}
	db, err := openAuditDB()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		sink, err := persistence.NewSQLiteSink(db)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		opts.Sink = sink
	}
	eng := grafo.NewEngineWithOptions(opts)

	deps := agents.Deps{Provider: provider}
	if client := llmFromEnv(); client != nil {
		deps.LLM = client
		deps.Classifier = intent.NewLLMClassifier(client)
	}
	if err := agents.Register(eng, deps); err != nil {
		return err
	}
	if err := eng.RegisterGraph(agents.BuildGraph()); err != nil {
		return err
	}

	initial := grafo.NewState()
	initial.AddMessage(grafo.Message{Role: "user", Content: "Make a trading decision based on the provided data."})
	initial.SetValue(agents.KeyTicker, sec.Code)
	if startDate != "" {
		initial.SetValue(agents.KeyStartDate, startDate)
	}
	if endDate != "" {
		initial.SetValue(agents.KeyEndDate, endDate)
	}
	initial.SetValue(agents.KeyNewsLimit, newsLimit)
	initial.SetValue(agents.KeyPortfolio, agents.Portfolio{Cash: cash, Shares: shares})
	initial.SetMeta(api.MetaShowReasoning, showReasoning)
	if noReport {
		initial.SetMeta(api.MetaGenerateReport, false)
	}

	report, err := grafo.Run(ctx, eng, agents.GraphName, initial)
	if err != nil {
		if report != nil {
			fmt.Fprintln(os.Stderr, renderFailure(report))
		}
		return err
	}

	fmt.Println(renderReport(report))
	if dbPath != "" {
		fmt.Printf("\nAudit trail: grafo logs %s --db %s\n", report.ID, dbPath)
	}
	return nil
}

// resolveSecurity resolves interactively: an ambiguous query turns into a
// numbered pick list on the terminal instead of an error.
func resolveSecurity(ctx context.Context, p marketdata.Provider, query string) (marketdata.Security, error) {
	sec, err := p.ResolveTicker(ctx, query, false)
	if err == nil {
		return sec, nil
	}
	var ambig *marketdata.AmbiguousMatchError
	if !errors.As(err, &ambig) {
		return marketdata.Security{}, err
	}
	return promptSelect(ambig.Matches)
}

func promptSelect(matches []marketdata.Security) (marketdata.Security, error) {
	fmt.Println("Multiple securities match:")
	for i, s := range matches {
		fmt.Printf("  %d) %s  %s (%s)\n", i+1, s.Code, s.Name, s.Exchange)
	}
	fmt.Print("Pick one: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return marketdata.Security{}, fmt.Errorf("reading selection: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(matches) {
		return marketdata.Security{}, fmt.Errorf("pick a number between 1 and %d", len(matches))
	}
	return matches[n-1], nil
}

// llmFromEnv builds the completion client from the environment, or returns
// nil when no key is set; the pipeline then degrades to local output.
func llmFromEnv() llm.Client {
	key := os.Getenv("OPENAI_COMPATIBLE_API_KEY")
	if key == "" {
		return nil
	}
	cfg := llm.DefaultConfig(key)
	if base := os.Getenv("OPENAI_COMPATIBLE_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
	if model := os.Getenv("OPENAI_COMPATIBLE_MODEL"); model != "" {
		cfg.Model = model
	}
	return llm.NewOpenAIClientWithConfig(cfg)
}
