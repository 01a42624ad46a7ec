package agents

import (
	"github.com/petrijr/grafo/intent"
	"github.com/petrijr/grafo/pkg/api"
)

// GraphName is the name BuildGraph registers the pipeline under.
const GraphName = "fund_analysis"

// BuildGraph wires the full pipeline:
//
//	classify_intent ──router──▶ knowledge_query            (terminal)
//	        └──────────────────▶ market_data
//	market_data ─▶ {technical, fundamentals, sentiment, valuation}
//	each analyst ─▶ researcher_bull and researcher_bear
//	bull + bear  ─▶ debate_room ─▶ risk_management ─▶ macro_analyst
//	             ─▶ portfolio_management ──router──▶ report_analyzer or End
//
// The bear edge into debate_room is declared after the bull edge, so where
// both researchers wrote the same key the bear value wins the merge.
func BuildGraph() api.GraphDefinition {
	analysts := []string{
		StepTechnicalAnalyst,
		StepFundamentalsAnalyst,
		StepSentimentAnalyst,
		StepValuationAnalyst,
	}

	edges := []api.Edge{}
	for _, analyst := range analysts {
		edges = append(edges, api.Edge{From: StepMarketData, To: analyst})
	}
	for _, analyst := range analysts {
		edges = append(edges,
			api.Edge{From: analyst, To: StepResearcherBull},
			api.Edge{From: analyst, To: StepResearcherBear},
		)
	}
	edges = append(edges,
		api.Edge{From: StepResearcherBull, To: StepDebateRoom},
		api.Edge{From: StepResearcherBear, To: StepDebateRoom},
		api.Edge{From: StepDebateRoom, To: StepRiskManagement},
		api.Edge{From: StepRiskManagement, To: StepMacroAnalyst},
		api.Edge{From: StepMacroAnalyst, To: StepPortfolioManagement},
	)

	return api.GraphDefinition{
		Name:  GraphName,
		Entry: StepClassifyIntent,
		Nodes: append([]string{
			StepClassifyIntent,
			StepKnowledgeQuery,
			StepMarketData,
			StepResearcherBull,
			StepResearcherBear,
			StepDebateRoom,
			StepRiskManagement,
			StepMacroAnalyst,
			StepPortfolioManagement,
			StepReportAnalyzer,
		}, analysts...),
		Edges: edges,
		Routers: map[string]api.RouterFunc{
			StepClassifyIntent:      intent.Router(StepKnowledgeQuery, StepMarketData),
			StepPortfolioManagement: reportRouter,
		},
	}
}

// reportRouter ends the run after the decision unless report generation is
// wanted, which it is by default.
func reportRouter(state *api.State) string {
	if v, ok := state.Meta(api.MetaGenerateReport); ok {
		if enabled, isBool := v.(bool); isBool && !enabled {
			return api.End
		}
	}
	return StepReportAnalyzer
}
