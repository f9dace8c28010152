package relay

import (
	"github.com/rs/zerolog/log"
	"github.com/weaviate/tiktoken-go"
)

// TokenCounter counts prompt tokens for history trimming.
type TokenCounter interface {
	Count(s string) int
}

type tiktokenCounter struct {
	tk *tiktoken.Tiktoken
}

func (c tiktokenCounter) Count(s string) int {
	return len(c.tk.Encode(s, nil, nil))
}

// approxCounter is used when no encoding is available: about four bytes per
// token.
type approxCounter struct{}

func (approxCounter) Count(s string) int {
	return (len(s) + 3) / 4
}

// NewTokenCounter returns a cl100k_base counter, or an approximation if the
// encoding cannot be loaded.
func NewTokenCounter() TokenCounter {
	tk, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn().Err(err).Str("component", "relay").Msg("tiktoken encoding unavailable, approximating token counts")
		return approxCounter{}
	}
	return tiktokenCounter{tk: tk}
}

// per-message framing overhead of the chat format
const messageOverheadTokens = 4

// TrimToBudget drops the oldest messages until the history fits budget
// tokens. Leading system messages and the newest message are always kept.
// budget <= 0 disables trimming.
func TrimToBudget(msgs []CompletionMessage, counter TokenCounter, budget int) []CompletionMessage {
	if budget <= 0 || counter == nil || len(msgs) <= 1 {
		return msgs
	}

	cost := func(m CompletionMessage) int {
		return counter.Count(m.Content) + messageOverheadTokens
	}

	n := 0
	for n < len(msgs) && msgs[n].Role == RoleSystem {
		n++
	}
	head, rest := msgs[:n], msgs[n:]

	total := 0
	for _, m := range head {
		total += cost(m)
	}
	for _, m := range rest {
		total += cost(m)
	}

	drop := 0
	for total > budget && drop < len(rest)-1 {
		total -= cost(rest[drop])
		drop++
	}
	if drop == 0 {
		return msgs
	}

	out := make([]CompletionMessage, 0, len(head)+len(rest)-drop)
	out = append(out, head...)
	out = append(out, rest[drop:]...)
	return out
}
