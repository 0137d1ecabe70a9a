package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var encoder = sync.OnceValue(func() *tiktoken.Tiktoken {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil
	}
	return encoding
})

// CountTokens returns the cl100k_base token count of text, or -1 when
// the encoding tables cannot be loaded.
func CountTokens(text string) int {
	enc := encoder()
	if enc == nil {
		return -1
	}
	return len(enc.Encode(text, nil, nil))
}
