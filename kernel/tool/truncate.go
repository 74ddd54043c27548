package tool

import (
	"fmt"
	"unicode/utf8"
)

const approxBytesPerToken = 4

// TruncationPolicy bounds the rendered size of a tool result before it is
// fed back to the model. Token limits are byte-approximated.
type TruncationPolicy struct {
	MaxTokens int
	MaxBytes  int
}

// DefaultTruncationPolicy returns the default tool output budget.
func DefaultTruncationPolicy() TruncationPolicy {
	return TruncationPolicy{MaxTokens: 10000}
}

// TruncateString cuts s in the middle to fit the policy budget, keeping the
// head and tail around a marker. Returns the result and the estimated number
// of tokens removed (zero when s already fits).
func TruncateString(s string, policy TruncationPolicy) (string, int) {
	if s == "" {
		return s, 0
	}
	budgetBytes := policy.byteBudget()
	if budgetBytes <= 0 || len(s) <= budgetBytes {
		return s, 0
	}
	leftBudget := budgetBytes / 2
	rightBudget := budgetBytes - leftBudget
	prefixEnd, suffixStart := splitUTF8Bounds(s, leftBudget, rightBudget)
	left := s[:prefixEnd]
	right := s[suffixStart:]
	removedBytes := len(s) - (len(left) + len(right))
	removedTokens := approxTokensFromBytes(removedBytes)
	marker := formatTruncationMarker(policy, removedTokens, removedBytes)
	return left + marker + right, removedTokens
}

// splitUTF8Bounds keeps both cut points on rune boundaries.
func splitUTF8Bounds(s string, leftBudget, rightBudget int) (int, int) {
	if leftBudget < 0 {
		leftBudget = 0
	}
	if rightBudget < 0 {
		rightBudget = 0
	}
	length := len(s)
	targetSuffix := max(length-rightBudget, 0)
	prefixEnd := 0
	suffixStart := length
	for idx, r := range s {
		end := idx + utf8.RuneLen(r)
		if end <= leftBudget {
			prefixEnd = end
		}
		if idx >= targetSuffix {
			suffixStart = idx
			break
		}
	}
	if suffixStart < prefixEnd {
		suffixStart = prefixEnd
	}
	return prefixEnd, suffixStart
}

func formatTruncationMarker(policy TruncationPolicy, removedTokens, removedBytes int) string {
	if policy.MaxTokens > 0 {
		if removedTokens <= 0 {
			return "...truncated..."
		}
		return fmt.Sprintf("...%d tokens truncated...", removedTokens)
	}
	if removedBytes <= 0 {
		return "...truncated..."
	}
	return fmt.Sprintf("...%d chars truncated...", removedBytes)
}

func approxTokensFromBytes(bytes int) int {
	if bytes <= 0 {
		return 0
	}
	tokens := bytes / approxBytesPerToken
	if bytes%approxBytesPerToken != 0 {
		tokens++
	}
	return tokens
}

func (p TruncationPolicy) byteBudget() int {
	if p.MaxBytes > 0 {
		return p.MaxBytes
	}
	if p.MaxTokens > 0 {
		return p.MaxTokens * approxBytesPerToken
	}
	return 0
}
