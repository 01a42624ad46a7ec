package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/petrijr/grafo/intent"
	"github.com/petrijr/grafo/pkg/api"
)

// classifyIntentStep decides which branch the run takes. Classification
// trouble never fails the run: an unclassifiable query falls through to the
// analysis branch, which has its own input validation.
func classifyIntentStep(deps Deps) api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		logger := api.LoggerFromContext(ctx)

		query := userQuery(state)
		c, err := deps.Classifier.Classify(ctx, query)
		if err != nil {
			logger.Warn("intent classification degraded to analysis", "err", err)
			state.SetValue(intent.DataKey, intent.StockAnalysis)
			return state, nil
		}

		logger.Info("intent classified", "intent", c.Intent, "domain", c.Domain)
		state.SetValue(intent.DataKey, c.Intent)
		state.SetValue(intent.DataClassificationKey, c)
		state.AddMessage(api.Message{
			Role:    "assistant",
			Name:    StepClassifyIntent,
			Content: fmt.Sprintf("intent: %s", c.Intent),
		})
		return state, nil
	}
}

const knowledgeSystemPrompt = `You are a financial domain expert covering
equities, bonds, funds, derivatives, macroeconomics, financial analysis,
investment strategy and risk management. Give accurate, clear and concise
answers, citing the relevant theory or concept where it helps. State
uncertainty plainly when you are unsure. For questions outside finance,
politely say so and point the user to the right kind of expert.`

// knowledgeQueryStep answers a free-form finance question. It degrades
// instead of failing: a missing question, a missing LLM client or a failed
// call all end the branch with an explanatory message.
func knowledgeQueryStep(deps Deps) api.StepFunc {
	return func(ctx context.Context, state *api.State) (*api.State, error) {
		logger := api.LoggerFromContext(ctx)

		query := userQuery(state)
		if query == "" {
			state.AddMessage(api.Message{
				Role:    "assistant",
				Name:    StepKnowledgeQuery,
				Content: "No question found. Ask a finance question to get an answer.",
			})
			return state, nil
		}
		state.SetValue(KeyKnowledgeQuery, query)

		var answer string
		switch {
		case deps.LLM == nil:
			answer = "Knowledge answers need a configured LLM client; this deployment runs offline."
			logger.Warn("knowledge query without LLM client")
		default:
			got, err := deps.LLM.CompleteWithSystem(ctx, knowledgeSystemPrompt, query)
			if err != nil {
				answer = fmt.Sprintf("Sorry, answering your question hit a technical problem: %v. Please retry or rephrase.", err)
				logger.Warn("knowledge query failed", "err", err)
			} else {
				answer = got
				logger.Info("knowledge query answered", "chars", len(answer))
			}
		}

		state.SetValue(KeyKnowledgeResponse, answer)
		state.AddMessage(api.Message{
			Role:    "assistant",
			Name:    StepKnowledgeQuery,
			Content: answer,
		})
		return state, nil
	}
}

// userQuery finds the question to work on: the query Data key if set,
// otherwise the most recent user message.
func userQuery(state *api.State) string {
	if q, ok := state.StringValue(KeyQuery); ok && strings.TrimSpace(q) != "" {
		return strings.TrimSpace(q)
	}
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == "user" && strings.TrimSpace(state.Messages[i].Content) != "" {
			return strings.TrimSpace(state.Messages[i].Content)
		}
	}
	return ""
}
