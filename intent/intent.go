// Package intent classifies user queries and routes graph execution between
// the knowledge-answer terminal and the analysis pipeline.
package intent

import (
	"fmt"
)

// Intents the pipeline routes on. Classifiers may emit other labels; the
// router treats anything that is not KnowledgeQuery as an analysis request.
const (
	KnowledgeQuery = "KNOWLEDGE_QUERY"
	StockAnalysis  = "STOCK_ANALYSIS"
)

// DataKey is the state Data key the classify step writes the detected
// intent to and the router reads it from.
const DataKey = "intent"

// DataClassificationKey holds the full Classification record on the state.
const DataClassificationKey = "classification"

// Classification is the typed result of classifying one query.
type Classification struct {
	// Text is the query that was classified.
	Text string `json:"text"`

	// Domain is the broad subject area, e.g. "finance".
	Domain string `json:"domain"`

	// Intent is the detected intent label.
	Intent string `json:"intent"`

	// Slots carries extracted entities keyed by slot name.
	Slots map[string]any `json:"slots,omitempty"`
}

// ClassificationError reports that a query could not be classified.
type ClassificationError struct {
	Text string
	Err  error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %q: %v", e.Text, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}
