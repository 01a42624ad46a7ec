// Package agents implements the analysis pipeline: a fixed graph of steps
// that resolves a security, fans out to four analysts, debates the bull and
// bear cases and ends in a position decision, with an intent branch that
// answers free-form finance questions instead.
//
// Steps communicate exclusively through state Data keys; the constants below
// are the contract between them. Register wires every step into an engine
// registry and BuildGraph returns the graph definition that connects them.
package agents

import (
	"fmt"

	"github.com/petrijr/grafo/intent"
	"github.com/petrijr/grafo/llm"
	"github.com/petrijr/grafo/marketdata"
	"github.com/petrijr/grafo/pkg/api"
)

// Step names, as registered and as used in the graph definition.
const (
	StepClassifyIntent      = "classify_intent"
	StepKnowledgeQuery      = "knowledge_query"
	StepMarketData          = "market_data"
	StepTechnicalAnalyst    = "technical_analyst"
	StepFundamentalsAnalyst = "fundamentals_analyst"
	StepSentimentAnalyst    = "sentiment_analyst"
	StepValuationAnalyst    = "valuation_analyst"
	StepResearcherBull      = "researcher_bull"
	StepResearcherBear      = "researcher_bear"
	StepDebateRoom          = "debate_room"
	StepRiskManagement      = "risk_management"
	StepMacroAnalyst        = "macro_analyst"
	StepPortfolioManagement = "portfolio_management"
	StepReportAnalyzer      = "report_analyzer"
)

// State Data keys. Keys up to KeyNewsLimit are inputs supplied by the
// caller; the rest are written by the steps named in their comments.
const (
	KeyQuery     = "query"       // free-form user text
	KeyTicker    = "ticker"      // security code or name
	KeyPortfolio = "portfolio"   // Portfolio value
	KeyStartDate = "start_date"  // "2006-01-02", optional
	KeyEndDate   = "end_date"    // "2006-01-02", optional
	KeyNewsLimit = "num_of_news" // int, optional

	KeyMarketData        = "market_data"          // market_data: MarketData
	KeyTechnicalSignal   = "technical_analysis"   // technical_analyst: Signal
	KeyFundamentalSignal = "fundamental_analysis" // fundamentals_analyst: Signal
	KeySentimentSignal   = "sentiment_analysis"   // sentiment_analyst: Signal
	KeyValuationSignal   = "valuation_analysis"   // valuation_analyst: Signal
	KeyBullThesis        = "bull_thesis"          // researcher_bull: Thesis
	KeyBearThesis        = "bear_thesis"          // researcher_bear: Thesis
	KeyDebateConclusion  = "debate_conclusion"    // debate_room: Signal
	KeyRiskAssessment    = "risk_assessment"      // risk_management: RiskAssessment
	KeyMacroOutlook      = "macro_outlook"        // macro_analyst: Signal
	KeyDecision          = "final_decision"       // portfolio_management: Decision
	KeyReport            = "report_analysis"      // report_analyzer: string

	KeyKnowledgeQuery    = "knowledge_query"    // knowledge_query: the question
	KeyKnowledgeResponse = "knowledge_response" // knowledge_query: the answer
)

// Signal directions and decision actions.
const (
	Bullish = "bullish"
	Bearish = "bearish"
	Neutral = "neutral"

	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Signal is one analyst's verdict on the security.
type Signal struct {
	Direction  string  `json:"direction"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Thesis is a researcher's one-sided case, built from the analyst signals
// that support its stance.
type Thesis struct {
	Stance     string   `json:"stance"`
	Confidence float64  `json:"confidence"`
	Points     []string `json:"points"`
}

// RiskAssessment bounds how much of the portfolio a decision may commit.
type RiskAssessment struct {
	// Score grades risk from 0 (calm) to 10 (extreme).
	Score float64 `json:"score"`
	// MaxPositionRatio is the largest fraction of cash a buy may spend.
	MaxPositionRatio float64 `json:"max_position_ratio"`
	Reasoning        string  `json:"reasoning"`
}

// Decision is the portfolio manager's final order.
type Decision struct {
	Action     string  `json:"action"`
	Quantity   int64   `json:"quantity"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Portfolio is the account the pipeline decides for.
type Portfolio struct {
	Cash   float64 `json:"cash"`
	Shares int64   `json:"shares"`
}

// MarketData is the snapshot the market_data step fans out to the analysts.
type MarketData struct {
	Security marketdata.Security `json:"security"`
	Bars     []marketdata.Bar    `json:"bars"`
	News     []marketdata.News   `json:"news"`
}

// Deps carries the external services the steps close over. Zero-value
// fields get offline defaults: a static provider, a keyword classifier and
// no LLM (steps that would call one degrade to locally formatted output).
type Deps struct {
	Provider   marketdata.Provider
	LLM        llm.Client
	Classifier intent.Classifier
}

func (d Deps) withDefaults() Deps {
	if d.Provider == nil {
		d.Provider = marketdata.NewStaticProvider()
	}
	if d.Classifier == nil {
		d.Classifier = intent.KeywordClassifier{}
	}
	return d
}

// Registry is the part of the engine the package registers its steps with.
type Registry interface {
	RegisterStep(def api.StepDefinition) error
}

// Register adds every pipeline step to reg. Call it once per engine,
// before registering the graph from BuildGraph.
func Register(reg Registry, deps Deps) error {
	deps = deps.withDefaults()

	defs := []api.StepDefinition{
		{
			Name:        StepClassifyIntent,
			Description: "Classifies the user query; writes intent and classification.",
			Fn:          classifyIntentStep(deps),
		},
		{
			Name:        StepKnowledgeQuery,
			Description: "Answers a finance question; writes knowledge_query and knowledge_response.",
			Fn:          knowledgeQueryStep(deps),
		},
		{
			Name:        StepMarketData,
			Description: "Resolves ticker and fetches bars and news; writes market_data.",
			Fn:          marketDataStep(deps),
		},
		{
			Name:        StepTechnicalAnalyst,
			Description: "Scores momentum, trend and RSI from market_data; writes technical_analysis.",
			Fn:          technicalAnalystStep(),
		},
		{
			Name:        StepFundamentalsAnalyst,
			Description: "Scores return, drawdown and liquidity ratios from market_data; writes fundamental_analysis.",
			Fn:          fundamentalsAnalystStep(),
		},
		{
			Name:        StepSentimentAnalyst,
			Description: "Scores headline tone from market_data; writes sentiment_analysis.",
			Fn:          sentimentAnalystStep(),
		},
		{
			Name:        StepValuationAnalyst,
			Description: "Compares an owner-earnings value against price from market_data; writes valuation_analysis.",
			Fn:          valuationAnalystStep(),
		},
		{
			Name:        StepResearcherBull,
			Description: "Builds the bull case from the four analyst signals; writes bull_thesis.",
			Fn:          researcherStep(Bullish, KeyBullThesis),
		},
		{
			Name:        StepResearcherBear,
			Description: "Builds the bear case from the four analyst signals; writes bear_thesis.",
			Fn:          researcherStep(Bearish, KeyBearThesis),
		},
		{
			Name:        StepDebateRoom,
			Description: "Weighs bull_thesis against bear_thesis; writes debate_conclusion.",
			Fn:          debateRoomStep(),
		},
		{
			Name:        StepRiskManagement,
			Description: "Grades risk and caps position size from market_data and debate_conclusion; writes risk_assessment.",
			Fn:          riskManagementStep(),
		},
		{
			Name:        StepMacroAnalyst,
			Description: "Scans headlines for policy pressure; writes macro_outlook.",
			Fn:          macroAnalystStep(),
		},
		{
			Name:        StepPortfolioManagement,
			Description: "Combines signals, debate, macro and risk into a sized order; writes final_decision.",
			Fn:          portfolioManagementStep(),
		},
		{
			Name:        StepReportAnalyzer,
			Description: "Renders the run as a readable report; writes report_analysis.",
			Fn:          reportAnalyzerStep(deps),
		},
	}
	for _, def := range defs {
		if err := reg.RegisterStep(def); err != nil {
			return fmt.Errorf("agents: registering %s: %w", def.Name, err)
		}
	}
	return nil
}
