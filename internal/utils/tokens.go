package utils

// CountTokens estimates the number of tokens in text at about four
// characters per token. Non-empty text counts as at least one token.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// PromptTokens estimates the input size of one chat request. Each message
// carries a small fixed overhead for its role framing.
func PromptTokens(system, user string) int {
	const perMessage = 4
	n := CountTokens(user) + perMessage
	if system != "" {
		n += CountTokens(system) + perMessage
	}
	return n
}

// Ellipsize shortens s to at most limit runes, ending in "..." when cut.
// It never splits a multi-byte character.
func Ellipsize(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
