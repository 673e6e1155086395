package types

import (
	"strconv"
	"strings"
)

const (
	UsageInputTokensKey     = "usage_input_tokens"
	UsageOutputTokensKey    = "usage_output_tokens"
	UsageTotalTokensKey     = "usage_total_tokens"
	UsageReasoningTokensKey = "usage_reasoning_tokens"
)

// UsageMetadata serializes token usage into outbound message metadata.
func UsageMetadata(usage *TokenUsage) map[string]string {
	if usage == nil || usage.IsZero() {
		return nil
	}

	return map[string]string{
		UsageInputTokensKey:     strconv.FormatInt(usage.InputTokens, 10),
		UsageOutputTokensKey:    strconv.FormatInt(usage.OutputTokens, 10),
		UsageTotalTokensKey:     strconv.FormatInt(usage.TotalTokens, 10),
		UsageReasoningTokensKey: strconv.FormatInt(usage.ReasoningTokens, 10),
	}
}

// UsageFromMetadata reconstructs token usage from outbound metadata.
func UsageFromMetadata(metadata map[string]string) *TokenUsage {
	if metadata == nil {
		return nil
	}

	usage := &TokenUsage{
		InputTokens:     parseInt64(metadata[UsageInputTokensKey]),
		OutputTokens:    parseInt64(metadata[UsageOutputTokensKey]),
		TotalTokens:     parseInt64(metadata[UsageTotalTokensKey]),
		ReasoningTokens: parseInt64(metadata[UsageReasoningTokensKey]),
	}
	if usage.IsZero() {
		return nil
	}

	return usage
}

func parseInt64(value string) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}

	return parsed
}
