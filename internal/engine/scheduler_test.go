package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/petrijr/grafo/internal/persistence"
	"github.com/petrijr/grafo/pkg/api"
)

// TestDiamondGraphCompletes runs entry -> {A,B,C,D} -> join. Every branch
// writes its own key, so the joined state must carry all four, and every
// invocation must have produced exactly one execution log: six in total.
func TestDiamondGraphCompletes(t *testing.T) {
	ctx := context.Background()
	eng, sink := newTestEngine(t, Config{Workers: 4})

	registerAll(t, eng,
		setKey("entry", "query", "analyse ACME"),
		setKey("analyst-a", "a", 1),
		setKey("analyst-b", "b", 2),
		setKey("analyst-c", "c", 3),
		setKey("analyst-d", "d", 4),
		setKey("join", "summary", "done"),
	)
	mustRegisterGraph(t, eng, api.GraphDefinition{
		Name:  "diamond",
		Entry: "entry",
		Nodes: []string{"entry", "analyst-a", "analyst-b", "analyst-c", "analyst-d", "join"},
		Edges: []api.Edge{
			{From: "entry", To: "analyst-a"},
			{From: "entry", To: "analyst-b"},
			{From: "entry", To: "analyst-c"},
			{From: "entry", To: "analyst-d"},
			{From: "analyst-a", To: "join"},
			{From: "analyst-b", To: "join"},
			{From: "analyst-c", To: "join"},
			{From: "analyst-d", To: "join"},
		},
	})

	report, err := eng.Run(ctx, "diamond", api.NewState())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Status != api.StatusCompleted {
		t.Fatalf("expected status COMPLETED, got %q", report.Status)
	}

	for _, key := range []string{"query", "a", "b", "c", "d", "summary"} {
		if _, ok := report.Final.Value(key); !ok {
			t.Errorf("final state missing key %q", key)
		}
	}

	logs := logsFor(t, sink, report.ID)
	if len(logs) != 6 {
		t.Fatalf("expected exactly 6 execution logs, got %d", len(logs))
	}
	for _, log := range logs {
		if log.Failed() {
			t.Errorf("step %s logged error %q on a clean run", log.StepName, log.Err)
		}
		if log.RunID != report.ID {
			t.Errorf("step %s logged run id %q, want %q", log.StepName, log.RunID, report.ID)
		}
	}

	for node, state := range report.Nodes {
		if state != api.NodeCompleted {
			t.Errorf("node %s finished as %s, want COMPLETED", node, state)
		}
	}
}

// TestFanInWaitsForAllPredecessors holds one predecessor open and checks
// the join does not start until it is released.
func TestFanInWaitsForAllPredecessors(t *testing.T) {
	ctx := context.Background()
	trace := newStepTrace()
	eng, _ := newTestEngine(t, Config{Workers: 4, Observer: trace})

	aDone := make(chan struct{})
	releaseB := make(chan struct{})

	registerAll(t, eng,
		passThrough("entry"),
		api.StepDefinition{Name: "a", Fn: func(ctx context.Context, s *api.State) (*api.State, error) {
			s.SetValue("a", true)
			close(aDone)
			return s, nil
		}},
		api.StepDefinition{Name: "b", Fn: func(ctx context.Context, s *api.State) (*api.State, error) {
			<-releaseB
			s.SetValue("b", true)
			return s, nil
		}},
		passThrough("c"),
	)
	mustRegisterGraph(t, eng, api.GraphDefinition{
		Name:  "gate",
		Entry: "entry",
		Nodes: []string{"entry", "a", "b", "c"},
		Edges: []api.Edge{
			{From: "entry", To: "a"},
			{From: "entry", To: "b"},
			{From: "a", To: "c"},
			{From: "b", To: "c"},
		},
	})

	done := make(chan *api.RunReport, 1)
	go func() {
		report, err := eng.Run(ctx, "gate", api.NewState())
		if err != nil {
			t.Errorf("Run failed: %v", err)
		}
		done <- report
	}()

	<-aDone
	// a finished but b is still held open; c must not have started.
	time.Sleep(50 * time.Millisecond)
	if trace.started("c") {
		t.Fatal("join started before all predecessors completed")
	}
	close(releaseB)

	report := <-done
	if report == nil {
		t.Fatal("run produced no report")
	}
	if !trace.completedBefore("c", "a", "b") {
		t.Fatal("join started without both predecessors completed")
	}
	if _, ok := report.Final.Value("a"); !ok {
		t.Error("final state missing key from branch a")
	}
	if _, ok := report.Final.Value("b"); !ok {
		t.Error("final state missing key from branch b")
	}
}

// TestFanInGatingUnderRace re-runs a two-branch join many times with no
// synchronization between the branches and asserts the gating property
// held for every interleaving the scheduler happened to produce.
func TestFanInGatingUnderRace(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		trace := newStepTrace()
		eng, _ := newTestEngine(t, Config{Workers: 4, Observer: trace})
		registerAll(t, eng,
			passThrough("entry"),
			setKey("a", "a", i),
			setKey("b", "b", i),
			passThrough("join"),
		)
		mustRegisterGraph(t, eng, api.GraphDefinition{
			Name:  "gate",
			Entry: "entry",
			Nodes: []string{"entry", "a", "b", "join"},
			Edges: []api.Edge{
				{From: "entry", To: "a"},
				{From: "entry", To: "b"},
				{From: "a", To: "join"},
				{From: "b", To: "join"},
			},
		})
		if _, err := eng.Run(ctx, "gate", api.NewState()); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		if !trace.completedBefore("join", "a", "b") {
			t.Fatalf("run %d: join started before both predecessors completed", i)
		}
	}
}

// TestMergeTieBreakLastDeclaredWins forces the first-declared predecessor
// to finish last. Declaration order, not completion order, must decide the
// conflicting key, and the conflict must be reported.
func TestMergeTieBreakLastDeclaredWins(t *testing.T) {
	ctx := context.Background()
	trace := newStepTrace()
	eng, sink := newTestEngine(t, Config{Workers: 4, Observer: trace})

	bDone := make(chan struct{})
	registerAll(t, eng,
		passThrough("entry"),
		api.StepDefinition{Name: "bull", Fn: func(ctx context.Context, s *api.State) (*api.State, error) {
			<-bDone // completes after bear even though declared first
			s.SetValue("x", "from-bull")
			return s, nil
		}},
		api.StepDefinition{Name: "bear", Fn: func(ctx context.Context, s *api.State) (*api.State, error) {
			s.SetValue("x", "from-bear")
			close(bDone)
			return s, nil
		}},
		passThrough("debate"),
	)
	mustRegisterGraph(t, eng, api.GraphDefinition{
		Name:  "conflict",
		Entry: "entry",
		Nodes: []string{"entry", "bull", "bear", "debate"},
		Edges: []api.Edge{
			{From: "entry", To: "bull"},
			{From: "entry", To: "bear"},
			{From: "bull", To: "debate"},
			{From: "bear", To: "debate"},
		},
	})

	report, err := eng.Run(ctx, "conflict", api.NewState())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, _ := report.Final.StringValue("x")
	if got != "from-bear" {
		t.Fatalf("expected last-declared predecessor to win, got x=%q", got)
	}

	// The joined node must have seen the tie-broken value too.
	for _, log := range logsFor(t, sink, report.ID) {
		if log.StepName != "debate" {
			continue
		}
		if v, _ := log.Input.StringValue("x"); v != "from-bear" {
			t.Fatalf("join input carried x=%q, want %q", v, "from-bear")
		}
	}

	conflicts := trace.conflictList()
	if len(conflicts) != 1 || conflicts[0] != "debate/x" {
		t.Fatalf("expected one merge conflict debate/x, got %v", conflicts)
	}
}

// TestBranchIsolation checks that a branch never observes keys written by
// a sibling, even when the sibling is known to have completed first.
func TestBranchIsolation(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, Config{Workers: 4})

	bDone := make(chan struct{})
	var leaked bool
	registerAll(t, eng,
		passThrough("entry"),
		api.StepDefinition{Name: "first", Fn: func(ctx context.Context, s *api.State) (*api.State, error) {
			s.SetValue("first", true)
			close(bDone)
			return s, nil
		}},
		api.StepDefinition{Name: "second", Fn: func(ctx context.Context, s *api.State) (*api.State, error) {
			<-bDone
			_, leaked = s.Value("first")
			s.SetValue("second", true)
			return s, nil
		}},
		passThrough("join"),
	)
	mustRegisterGraph(t, eng, api.GraphDefinition{
		Name:  "isolation",
		Entry: "entry",
		Nodes: []string{"entry", "first", "second", "join"},
		Edges: []api.Edge{
			{From: "entry", To: "first"},
			{From: "entry", To: "second"},
			{From: "first", To: "join"},
			{From: "second", To: "join"},
		},
	})

	report, err := eng.Run(ctx, "isolation", api.NewState())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if leaked {
		t.Fatal("sibling branch observed a concurrent write")
	}
	if _, ok := report.Final.Value("first"); !ok {
		t.Error("final state missing key from first branch")
	}
	if _, ok := report.Final.Value("second"); !ok {
		t.Error("final state missing key from second branch")
	}
}

// TestMessagesAppendOnly checks both the per-invocation prefix property in
// the logs and the full ledger on the final state.
func TestMessagesAppendOnly(t *testing.T) {
	ctx := context.Background()
	eng, sink := newTestEngine(t, Config{Workers: 4})

	registerAll(t, eng,
		setKey("entry", "query", "q"),
		setKey("a", "a", 1),
		setKey("b", "b", 2),
		setKey("c", "c", 3),
		setKey("d", "d", 4),
		setKey("join", "summary", "s"),
	)
	mustRegisterGraph(t, eng, api.GraphDefinition{
		Name:  "ledger",
		Entry: "entry",
		Nodes: []string{"entry", "a", "b", "c", "d", "join"},
		Edges: []api.Edge{
			{From: "entry", To: "a"},
			{From: "entry", To: "b"},
			{From: "entry", To: "c"},
			{From: "entry", To: "d"},
			{From: "a", To: "join"},
			{From: "b", To: "join"},
			{From: "c", To: "join"},
			{From: "d", To: "join"},
		},
	})

	initial := api.NewState()
	initial.AddMessage(api.Message{Role: "user", Content: "how is ACME doing?"})

	report, err := eng.Run(ctx, "ledger", initial)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// initial + entry + four branches + join
	if got := len(report.Final.Messages); got != 7 {
		t.Fatalf("expected 7 messages on the final state, got %d", got)
	}
	if report.Final.Messages[0].Role != "user" {
		t.Errorf("initial message was not preserved first, got %+v", report.Final.Messages[0])
	}
	seen := make(map[string]int)
	for _, m := range report.Final.Messages {
		seen[m.Name]++
	}
	for _, name := range []string{"entry", "a", "b", "c", "d", "join"} {
		if seen[name] != 1 {
			t.Errorf("expected exactly one message from %s, got %d", name, seen[name])
		}
	}

	for _, log := range logsFor(t, sink, report.ID) {
		if log.Output == nil {
			t.Fatalf("step %s has no output snapshot", log.StepName)
		}
		if len(log.Output.Messages) < len(log.Input.Messages) {
			t.Errorf("step %s shrank the message trail: %d -> %d",
				log.StepName, len(log.Input.Messages), len(log.Output.Messages))
		}
		if log.StepName == "join" && len(log.Input.Messages) != 6 {
			t.Errorf("join saw %d messages, want the full ledger of 6", len(log.Input.Messages))
		}
	}
}

// TestStepFailureAbortsRun covers the failing-node contract: the run
// reports a StepExecutionError naming the node, the failed invocation is
// logged with an error and no output snapshot, predecessors are logged
// clean, and downstream nodes never start.
func TestStepFailureAbortsRun(t *testing.T) {
	ctx := context.Background()
	eng, sink := newTestEngine(t, Config{})

	errBoom := errors.New("boom")
	registerAll(t, eng,
		setKey("a", "a", 1),
		api.StepDefinition{Name: "b", Fn: func(ctx context.Context, s *api.State) (*api.State, error) {
			return nil, errBoom
		}},
		setKey("c", "c", 3),
	)
	mustRegisterGraph(t, eng, api.GraphDefinition{
		Name:  "failing",
		Entry: "a",
		Nodes: []string{"a", "b", "c"},
		Edges: []api.Edge{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
		},
	})

	report, err := eng.Run(ctx, "failing", api.NewState())
	if err == nil {
		t.Fatal("expected Run to return an error")
	}

	var stepErr *api.StepExecutionError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepExecutionError, got %T: %v", err, err)
	}
	if stepErr.Step != "b" {
		t.Errorf("error names step %q, want %q", stepErr.Step, "b")
	}
	if stepErr.RunID != report.ID {
		t.Errorf("error carries run id %q, want %q", stepErr.RunID, report.ID)
	}
	if !errors.Is(err, errBoom) {
		t.Error("original cause not reachable through errors.Is")
	}

	if report.Status != api.StatusFailed {
		t.Errorf("expected status FAILED, got %q", report.Status)
	}
	if report.Nodes["a"] != api.NodeCompleted {
		t.Errorf("node a finished as %s, want COMPLETED", report.Nodes["a"])
	}
	if report.Nodes["b"] != api.NodeFailed {
		t.Errorf("node b finished as %s, want FAILED", report.Nodes["b"])
	}
	if report.Nodes["c"] != api.NodePending {
		t.Errorf("node c finished as %s, want PENDING", report.Nodes["c"])
	}

	// Work done before the failure stays available for diagnostics.
	if _, ok := report.Final.Value("a"); !ok {
		t.Error("final state lost predecessor data")
	}

	logs := logsFor(t, sink, report.ID)
	if len(logs) != 2 {
		t.Fatalf("expected 2 execution logs, got %d", len(logs))
	}
	for _, log := range logs {
		switch log.StepName {
		case "a":
			if log.Failed() || log.Output == nil {
				t.Errorf("predecessor log should be clean, got err=%q output=%v", log.Err, log.Output)
			}
		case "b":
			if !log.Failed() {
				t.Error("failed step logged without error")
			}
			if log.Output != nil {
				t.Error("failed step logged an output snapshot")
			}
			if log.Input == nil {
				t.Error("failed step lost its input snapshot")
			}
		default:
			t.Errorf("unexpected log for step %s", log.StepName)
		}
	}
}

// TestSiblingFinishesAfterFailure holds a slow branch open while its
// sibling fails. The slow branch must still run to completion and log,
// and its data must appear in the failure report.
func TestSiblingFinishesAfterFailure(t *testing.T) {
	ctx := context.Background()
	eng, sink := newTestEngine(t, Config{Workers: 4})

	failed := make(chan struct{})
	registerAll(t, eng,
		passThrough("entry"),
		api.StepDefinition{Name: "broken", Fn: func(ctx context.Context, s *api.State) (*api.State, error) {
			close(failed)
			return nil, fmt.Errorf("no data for ticker")
		}},
		api.StepDefinition{Name: "slow", Fn: func(ctx context.Context, s *api.State) (*api.State, error) {
			<-failed
			time.Sleep(20 * time.Millisecond)
			s.SetValue("slow", "finished")
			return s, nil
		}},
		passThrough("join"),
	)
	mustRegisterGraph(t, eng, api.GraphDefinition{
		Name:  "abort",
		Entry: "entry",
		Nodes: []string{"entry", "broken", "slow", "join"},
		Edges: []api.Edge{
			{From: "entry", To: "broken"},
			{From: "entry", To: "slow"},
			{From: "broken", To: "join"},
			{From: "slow", To: "join"},
		},
	})

	report, err := eng.Run(ctx, "abort", api.NewState())
	if err == nil {
		t.Fatal("expected Run to return an error")
	}

	if report.Nodes["slow"] != api.NodeCompleted {
		t.Errorf("in-flight sibling finished as %s, want COMPLETED", report.Nodes["slow"])
	}
	if report.Nodes["join"] != api.NodePending {
		t.Errorf("join finished as %s, want PENDING", report.Nodes["join"])
	}
	if v, _ := report.Final.StringValue("slow"); v != "finished" {
		t.Errorf("sibling's data missing from failure report, got %q", v)
	}

	logs := logsFor(t, sink, report.ID)
	if len(logs) != 3 {
		t.Fatalf("expected 3 execution logs (entry, broken, slow), got %d", len(logs))
	}
}

// TestRunIDSurvivesStepTampering: run_id is engine-owned metadata.
func TestRunIDSurvivesStepTampering(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, Config{})

	registerAll(t, eng, api.StepDefinition{
		Name: "tamper",
		Fn: func(ctx context.Context, s *api.State) (*api.State, error) {
			s.SetMeta(api.MetaRunID, "hijacked")
			return s, nil
		},
	})
	mustRegisterGraph(t, eng, api.GraphDefinition{
		Name:  "tamper",
		Entry: "tamper",
		Nodes: []string{"tamper"},
	})

	report, err := eng.RunWithID(ctx, "tamper", "run-42", api.NewState())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := report.Final.RunID(); got != "run-42" {
		t.Fatalf("run id changed to %q, want %q", got, "run-42")
	}
}

// TestDispatchRefusalFailsRun pins the submission contract: a task the pool
// refuses records a failure instead of incrementing inFlight and leaving
// the coordinator waiting on an event that never arrives.
func TestDispatchRefusalFailsRun(t *testing.T) {
	def := api.GraphDefinition{Name: "one", Entry: "a", Nodes: []string{"a"}}
	steps := map[string]api.StepDefinition{"a": passThrough("a")}
	ins := &instrumenter{
		sink:     persistence.NewMemorySink(),
		observer: api.NoopObserver{},
		logger:   quietLogger(),
	}
	e := newExecution(context.Background(), "run-1", def, steps, ins, api.NoopObserver{}, quietLogger(), 1)
	e.pool.Close()

	e.dispatch("a", api.NewState())

	if e.inFlight != 0 {
		t.Fatalf("inFlight = %d after refused dispatch, want 0", e.inFlight)
	}
	if e.failure == nil {
		t.Fatal("expected a refused dispatch to record a failure")
	}
	if e.states["a"] != api.NodeFailed {
		t.Errorf("node state = %q, want %q", e.states["a"], api.NodeFailed)
	}
}
