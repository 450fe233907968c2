package conversation

import "github.com/r3d91ll/innercritic/internal/llm"

// EstimateTokens provides a rough token count for a string.
// Uses ~4 chars per token heuristic (works reasonably for English).
func EstimateTokens(s string) int {
	return len(s) / 4
}

// Trim drops the oldest messages until the estimate fits maxTokens. The
// last message is never dropped. A non-positive maxTokens disables trimming.
func Trim(history []llm.Message, maxTokens int) []llm.Message {
	if maxTokens <= 0 || len(history) == 0 {
		return history
	}

	total := 0
	for _, m := range history {
		total += EstimateTokens(m.Content)
	}

	start := 0
	for total > maxTokens && start < len(history)-1 {
		total -= EstimateTokens(history[start].Content)
		start++
	}
	// After trimming, start on a user turn.
	for start < len(history)-1 && history[start].Role != "user" && start > 0 {
		start++
	}
	return history[start:]
}
