package budget

import (
	"math"
	"strings"
	"unicode/utf8"
)

// charsPerToken is the conservative English heuristic used for all estimates.
const charsPerToken = 4

// EstimateTokensFromChars converts a character count into an estimated token
// count. The result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / charsPerToken))
}

// EstimateTokens returns the estimated token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len(s))
}

// EstimatePromptTokens estimates the total tokens of a prompt made of
// instructions and zero or more content parts.
func EstimatePromptTokens(instructions string, parts ...string) int {
	total := EstimateTokens(instructions)
	for _, p := range parts {
		total += EstimateTokens(p)
	}
	return total
}

// ModelContextTokens returns an estimated maximum context window for a model
// name. Unknown models fall back to 8192.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	for _, p := range knownPrefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.tokens
		}
	}
	switch {
	case strings.HasSuffix(name, "1m"):
		return 1_000_000
	case strings.HasSuffix(name, "200k"):
		return 200_000
	case strings.HasSuffix(name, "128k"):
		return 128_000
	case strings.HasSuffix(name, "32k"):
		return 32_768
	case strings.Contains(name, "-mini"):
		return 128_000
	}
	return 8192
}

// RemainingContext computes the input budget left for a model after reserving
// output tokens and subtracting the prompt. Never negative.
func RemainingContext(modelName string, reservedForOutput int, promptTokens int) int {
	if reservedForOutput < 0 {
		reservedForOutput = 0
	}
	remaining := ModelContextTokens(modelName) - reservedForOutput - promptTokens
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FitsInContext reports whether the prompt fits when reserving output tokens.
func FitsInContext(modelName string, reservedForOutput int, promptTokens int) bool {
	return RemainingContext(modelName, reservedForOutput, promptTokens) > 0
}

// HeadroomTokens is the safety margin for tokenizer and message framing
// overhead: the larger of 5% of the context window or 512 tokens.
func HeadroomTokens(modelName string) int {
	dyn := int(math.Ceil(float64(ModelContextTokens(modelName)) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// RemainingContextWithHeadroom is RemainingContext after HeadroomTokens.
func RemainingContextWithHeadroom(modelName string, reservedForOutput int, promptTokens int) int {
	return RemainingContext(modelName, reservedForOutput+HeadroomTokens(modelName), promptTokens)
}

// ClipToContext trims text so that fixed (instructions plus framing) and the
// clipped text together fit the model window after reserving maxOutput tokens
// and headroom. The cut lands on a line boundary when one exists in the last
// quarter of the allowed span and never splits a UTF-8 sequence. The second
// result reports whether anything was removed.
func ClipToContext(modelName string, maxOutput int, fixed string, text string) (string, bool) {
	allowed := RemainingContextWithHeadroom(modelName, maxOutput, EstimateTokens(fixed)) * charsPerToken
	if len(text) <= allowed {
		return text, false
	}
	if allowed <= 0 {
		return "", text != ""
	}
	cut := allowed
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if nl := strings.LastIndexByte(text[:cut], '\n'); nl >= cut*3/4 {
		cut = nl
	}
	return text[:cut], true
}

// knownModelMax holds rough context sizes for common model identifiers.
var knownModelMax = map[string]int{
	"gpt-4":                 8_192,
	"gpt-4-32k":             32_768,
	"gpt-4o":                128_000,
	"gpt-4o-mini":           128_000,
	"gpt-4-turbo":           128_000,
	"gpt-4-0125-preview":    128_000,
	"gpt-3.5-turbo":         16_384,
	"gemini-2.0-flash":      1_048_576,
	"gemini-2.0-flash-lite": 1_048_576,
	"gemini-1.5-pro":        2_097_152,
	"gemini-1.5-flash":      1_048_576,
	"llama-3":               8_192,
	"llama-3.1":             128_000,
	"gpt-oss-20b":           4_096,
}

var knownPrefixes = []struct {
	prefix string
	tokens int
}{
	{"gpt-4.1", 1_000_000},
	{"gemini-2.5", 1_048_576},
	{"gemini-2.0", 1_048_576},
	{"gemini-1.5", 1_048_576},
}
