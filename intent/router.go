package intent

import (
	"github.com/petrijr/grafo/pkg/api"
)

// Router returns a RouterFunc for the classification branch point: it
// selects knowledgeNode when the state carries a KNOWLEDGE_QUERY intent and
// analysisNode in every other case.
//
// A missing, non-string or unrecognized intent falls back to analysisNode.
// The router never fails the run; treating an unclassifiable query as an
// analysis request is the documented degrade path.
func Router(knowledgeNode, analysisNode string) api.RouterFunc {
	return func(state *api.State) string {
		if detected, ok := state.StringValue(DataKey); ok && detected == KnowledgeQuery {
			return knowledgeNode
		}
		return analysisNode
	}
}
