package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/go-go-golems/partes/pkg/relay"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Message is one transcript entry. Assistant replies use RoleSystem.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func newMessage(role Role, content string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
}

// completionHistory maps a transcript onto LLM chat roles.
func completionHistory(msgs []Message) []relay.CompletionMessage {
	out := make([]relay.CompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := relay.RoleUser
		if m.Role == RoleSystem {
			role = relay.RoleAssistant
		}
		out = append(out, relay.CompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
