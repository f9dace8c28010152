package relay

import (
	"context"
	"strings"
)

const DefaultLegacyModel = "llama-3.2-3b-preview"

// LegacyPayload is the LLM-chain input expected by the older webhook flow.
type LegacyPayload struct {
	Messages        []string      `json:"messages"`
	EstimatedTokens int           `json:"estimatedTokens"`
	Options         LegacyOptions `json:"options"`
}

type LegacyOptions struct {
	APIKey      SecretRef `json:"api_key"`
	ModelName   string    `json:"model_name"`
	Temperature float64   `json:"temperature"`
}

// SecretRef points the workflow at a credential it holds; the key itself is
// never sent.
type SecretRef struct {
	LC   int      `json:"lc"`
	Type string   `json:"type"`
	ID   []string `json:"id"`
}

func BuildLegacyPayload(message, model string) LegacyPayload {
	if model == "" {
		model = DefaultLegacyModel
	}
	return LegacyPayload{
		Messages:        []string{"Human: " + message},
		EstimatedTokens: len(strings.Split(message, " ")),
		Options: LegacyOptions{
			APIKey: SecretRef{
				LC:   1,
				Type: "secret",
				ID:   []string{"GROQ_API_KEY"},
			},
			ModelName:   model,
			Temperature: 0.7,
		},
	}
}

// LegacyWebhookStrategy talks to the older workflow, which takes an
// LLM-chain payload instead of message plus metadata.
type LegacyWebhookStrategy struct {
	client *WebhookClient
	model  string
}

var _ ReplyStrategy = (*LegacyWebhookStrategy)(nil)

func NewLegacyWebhookStrategy(client *WebhookClient, model string) *LegacyWebhookStrategy {
	return &LegacyWebhookStrategy{client: client, model: model}
}

func (s *LegacyWebhookStrategy) Name() string { return StrategyLegacy }

func (s *LegacyWebhookStrategy) Reply(ctx context.Context, turn Turn) (Reply, error) {
	body, err := s.client.Post(ctx, BuildLegacyPayload(turn.Message, s.model))
	if err != nil {
		return Reply{}, err
	}
	return DecodeReply(body), nil
}
