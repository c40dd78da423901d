package extract

import "unicode/utf8"

// EstimateTokens estimates the token count of a string as rune count / 3.
// English runs ~4 chars per token and CJK ~1.5, so dividing by 3 is a usable
// middle ground for mixed-language content without pulling in a tokenizer.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := n / 3
	if est < 1 {
		return 1
	}
	return est
}
