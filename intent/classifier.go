package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/petrijr/grafo/llm"
)

// Classifier detects the intent of a user query.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// knowledgeMarkers are phrases that flag a definitional or conceptual
// question rather than a request to analyse a security.
var knowledgeMarkers = []string{
	"what is", "what are", "what does", "explain", "define", "definition",
	"difference between", "how does", "how do", "why do", "why is", "mean",
	"是什么", "什么是", "解释", "定义", "含义",
}

// analysisMarkers are phrases that flag an analysis request. They take
// precedence over knowledge markers when both appear.
var analysisMarkers = []string{
	"analyse", "analyze", "analysis", "should i buy", "should i sell",
	"price target", "outlook", "forecast", "valuation", "position",
	"分析", "买入", "卖出", "走势", "估值",
}

// KeywordClassifier is a deterministic, offline classifier built on a
// phrase ladder. It is the default when no model-backed classifier is
// configured.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	if strings.TrimSpace(text) == "" {
		return Classification{}, &ClassificationError{Text: text, Err: errors.New("empty query")}
	}

	lower := strings.ToLower(text)
	result := Classification{
		Text:   text,
		Domain: "finance",
		Intent: StockAnalysis,
		Slots:  map[string]any{},
	}

	for _, marker := range analysisMarkers {
		if strings.Contains(lower, marker) {
			result.Slots["matched"] = marker
			return result, nil
		}
	}
	for _, marker := range knowledgeMarkers {
		if strings.Contains(lower, marker) {
			result.Intent = KnowledgeQuery
			result.Slots["matched"] = marker
			return result, nil
		}
	}
	return result, nil
}

// LLMClassifier asks a language model for the intent and parses its JSON
// answer. Failures come back as *ClassificationError; callers decide how to
// degrade.
type LLMClassifier struct {
	client llm.Client
}

func NewLLMClassifier(client llm.Client) *LLMClassifier {
	return &LLMClassifier{client: client}
}

const classifySystemPrompt = `You classify financial user queries.
Answer with a single JSON object, no prose:
{"intent":"KNOWLEDGE_QUERY"|"STOCK_ANALYSIS","domain":"finance","slots":{}}
KNOWLEDGE_QUERY is for conceptual or definitional questions.
STOCK_ANALYSIS is for requests about a specific security, price or position.`

func (c *LLMClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	if strings.TrimSpace(text) == "" {
		return Classification{}, &ClassificationError{Text: text, Err: errors.New("empty query")}
	}

	answer, err := c.client.CompleteWithSystem(ctx, classifySystemPrompt, text)
	if err != nil {
		return Classification{}, &ClassificationError{Text: text, Err: err}
	}

	var result Classification
	if err := json.Unmarshal([]byte(extractJSON(answer)), &result); err != nil {
		return Classification{}, &ClassificationError{Text: text, Err: fmt.Errorf("unparsable answer %q: %w", answer, err)}
	}
	if result.Intent == "" {
		return Classification{}, &ClassificationError{Text: text, Err: fmt.Errorf("answer %q has no intent", answer)}
	}
	result.Text = text
	if result.Domain == "" {
		result.Domain = "finance"
	}
	return result, nil
}

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object in s, or s unchanged if none is found.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
