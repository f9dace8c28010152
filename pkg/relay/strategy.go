package relay

import (
	"context"
)

// ReplyStrategy obtains an assistant reply for one chat turn from some
// upstream. Implementations must not retry.
type ReplyStrategy interface {
	Name() string
	Reply(ctx context.Context, turn Turn) (Reply, error)
}

const (
	StrategyWebhook    = "webhook"
	StrategyLegacy     = "legacy-webhook"
	StrategyCompletion = "completion"
)

// WebhookPayload is what the webhook strategy sends upstream.
type WebhookPayload struct {
	Message  string   `json:"message"`
	Metadata Metadata `json:"metadata"`
}

// WebhookStrategy forwards the turn with its metadata to an automation
// webhook and decodes whichever reply shape comes back.
type WebhookStrategy struct {
	client *WebhookClient
}

var _ ReplyStrategy = (*WebhookStrategy)(nil)

func NewWebhookStrategy(client *WebhookClient) *WebhookStrategy {
	return &WebhookStrategy{client: client}
}

func (s *WebhookStrategy) Name() string { return StrategyWebhook }

func (s *WebhookStrategy) Reply(ctx context.Context, turn Turn) (Reply, error) {
	body, err := s.client.Post(ctx, WebhookPayload{
		Message:  turn.Message,
		Metadata: turn.Metadata,
	})
	if err != nil {
		return Reply{}, err
	}
	return DecodeReply(body), nil
}

// StrategyFunc adapts a function to ReplyStrategy.
type StrategyFunc func(ctx context.Context, turn Turn) (Reply, error)

func (f StrategyFunc) Name() string { return "func" }

func (f StrategyFunc) Reply(ctx context.Context, turn Turn) (Reply, error) {
	return f(ctx, turn)
}
