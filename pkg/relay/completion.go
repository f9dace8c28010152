package relay

import (
	"context"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCompletionBaseURL = "https://api.groq.com/openai/v1"
	DefaultCompletionModel   = "mixtral-8x7b-32768"
	DefaultMaxTokens         = 2048
	DefaultContextTokens     = 32768

	completionTemperature = 0.7
	completionTopP        = 0.9
)

type CompletionConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	// ContextTokens bounds the prompt; older history is dropped to fit
	// ContextTokens - MaxTokens. Zero disables trimming.
	ContextTokens int
	SystemPrompt  string
	HTTPClient    *http.Client
	Counter       TokenCounter
}

// CompletionClient calls an OpenAI-compatible chat-completion API with the
// assistant persona prepended.
type CompletionClient struct {
	client        openai.Client
	model         string
	maxTokens     int
	contextTokens int
	systemPrompt  string
	counter       TokenCounter
}

func NewCompletionClient(cfg CompletionConfig) (*CompletionClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("completion api key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCompletionBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultCompletionModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.SystemPrompt == "" {
		sp, err := DefaultSystemPrompt()
		if err != nil {
			return nil, err
		}
		cfg.SystemPrompt = sp
	}
	if cfg.Counter == nil && cfg.ContextTokens > 0 {
		cfg.Counter = NewTokenCounter()
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &CompletionClient{
		client:        openai.NewClient(opts...),
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		contextTokens: cfg.ContextTokens,
		systemPrompt:  cfg.SystemPrompt,
		counter:       cfg.Counter,
	}, nil
}

// WithSystemPrompt prepends the persona unless the history already starts
// with a system message.
func (c *CompletionClient) WithSystemPrompt(msgs []CompletionMessage) []CompletionMessage {
	if len(msgs) > 0 && msgs[0].Role == RoleSystem {
		return msgs
	}
	out := make([]CompletionMessage, 0, len(msgs)+1)
	out = append(out, CompletionMessage{Role: RoleSystem, Content: c.systemPrompt})
	return append(out, msgs...)
}

// Complete returns the text of the first choice, or "" when the API
// returned none.
func (c *CompletionClient) Complete(ctx context.Context, msgs []CompletionMessage) (string, error) {
	full := c.WithSystemPrompt(msgs)
	if c.contextTokens > 0 {
		full = TrimToBudget(full, c.counter, c.contextTokens-c.maxTokens)
	}

	params := openai.ChatCompletionNewParams{
		Messages:    toOpenAIMessages(full),
		Model:       shared.ChatModel(c.model),
		Temperature: openai.Float(completionTemperature),
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		TopP:        openai.Float(completionTopP),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(completion.Choices) == 0 {
		log.Warn().Str("component", "relay").Str("model", c.model).Msg("chat completion returned no choices")
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}

func toOpenAIMessages(msgs []CompletionMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// CompletionStrategy answers conversation turns through the completion API.
// The vehicle context, when known, is added as a system note after the
// persona.
type CompletionStrategy struct {
	client *CompletionClient
}

var _ ReplyStrategy = (*CompletionStrategy)(nil)

func NewCompletionStrategy(client *CompletionClient) *CompletionStrategy {
	return &CompletionStrategy{client: client}
}

func (s *CompletionStrategy) Name() string { return StrategyCompletion }

func (s *CompletionStrategy) Reply(ctx context.Context, turn Turn) (Reply, error) {
	msgs := s.client.WithSystemPrompt(turn.History)
	if line := turn.Metadata.VehicleLine(); line != "" {
		withCar := make([]CompletionMessage, 0, len(msgs)+1)
		withCar = append(withCar, msgs[0], CompletionMessage{Role: RoleSystem, Content: line})
		msgs = append(withCar, msgs[1:]...)
	}
	msgs = append(msgs, CompletionMessage{Role: RoleUser, Content: turn.Message})

	text, err := s.client.Complete(ctx, msgs)
	if err != nil {
		return Reply{}, err
	}
	if text == "" {
		return Reply{Kind: ReplyUnrecognized, Text: FallbackReply}, nil
	}
	return Reply{Kind: ReplyCompletion, Text: text}, nil
}
