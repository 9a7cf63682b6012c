package llm

import (
	"github.com/pkoukk/tiktoken-go"
)

// runesPerToken approximates tokens when no encoding is available
const runesPerToken = 4

// Budget counts and clips text in model tokens
type Budget struct {
	enc *tiktoken.Tiktoken
}

// NewBudget loads the named encoding. When the encoding cannot be loaded
// (unknown name, offline host) the budget falls back to a rune estimate.
func NewBudget(encoding string) *Budget {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return &Budget{}
	}
	return &Budget{enc: enc}
}

// Exact reports whether counts come from a real tokenizer
func (b *Budget) Exact() bool {
	return b.enc != nil
}

// Count returns the number of tokens in text
func (b *Budget) Count(text string) int {
	if b.enc != nil {
		return len(b.enc.Encode(text, nil, nil))
	}
	n := len([]rune(text))
	return (n + runesPerToken - 1) / runesPerToken
}

// Clip returns the longest prefix of text that fits in max tokens
func (b *Budget) Clip(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if b.enc != nil {
		tokens := b.enc.Encode(text, nil, nil)
		if len(tokens) <= max {
			return text
		}
		return b.enc.Decode(tokens[:max])
	}
	r := []rune(text)
	if len(r) <= max*runesPerToken {
		return text
	}
	return string(r[:max*runesPerToken])
}
