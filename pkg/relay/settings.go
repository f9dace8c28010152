package relay

import (
	"net/http"
	"os"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/pkg/errors"
)

const (
	SectionSlug = "relay"

	DefaultWebhookURL       = "https://api.worldapptechnologies.com/webhook/partes"
	DefaultLegacyWebhookURL = "https://api.worldapptechnologies.com/webhook-test/partes"
	DefaultSource           = "partes-app-bot"
)

// Settings configures the upstreams. Empty URL/key values fall back to the
// N8N_WEBHOOK_URL, N8N_API_KEY and GROQ_API_KEY environment variables.
type Settings struct {
	Strategy              string `glazed:"strategy"`
	WebhookURL            string `glazed:"webhook-url"`
	WebhookAPIKey         string `glazed:"webhook-api-key"`
	LegacyWebhookURL      string `glazed:"legacy-webhook-url"`
	LegacyModel           string `glazed:"legacy-model"`
	CompletionBaseURL     string `glazed:"completion-base-url"`
	CompletionAPIKey      string `glazed:"completion-api-key"`
	CompletionModel       string `glazed:"completion-model"`
	CompletionMaxTokens   int    `glazed:"completion-max-tokens"`
	CompletionContext     int    `glazed:"completion-context-tokens"`
	RequestTimeoutSeconds int    `glazed:"request-timeout-seconds"`
	Source                string `glazed:"source"`
}

func NewSection() (schema.Section, error) {
	return schema.NewSection(
		SectionSlug,
		"Upstream chat relay configuration",
		schema.WithFields(
			fields.New("strategy", fields.TypeChoice,
				fields.WithChoices(StrategyWebhook, StrategyLegacy, StrategyCompletion),
				fields.WithDefault(StrategyWebhook),
				fields.WithHelp("Reply strategy used for conversation sessions")),
			fields.New("webhook-url", fields.TypeString, fields.WithDefault(""),
				fields.WithHelp("Automation webhook URL (env N8N_WEBHOOK_URL)")),
			fields.New("webhook-api-key", fields.TypeString, fields.WithDefault(""),
				fields.WithHelp("Bearer key for the webhook (env N8N_API_KEY)")),
			fields.New("legacy-webhook-url", fields.TypeString, fields.WithDefault(DefaultLegacyWebhookURL),
				fields.WithHelp("Webhook URL of the legacy LLM-chain workflow")),
			fields.New("legacy-model", fields.TypeString, fields.WithDefault(DefaultLegacyModel),
				fields.WithHelp("Model name sent to the legacy workflow")),
			fields.New("completion-base-url", fields.TypeString, fields.WithDefault(DefaultCompletionBaseURL),
				fields.WithHelp("OpenAI-compatible API base URL")),
			fields.New("completion-api-key", fields.TypeString, fields.WithDefault(""),
				fields.WithHelp("Chat completion API key (env GROQ_API_KEY)")),
			fields.New("completion-model", fields.TypeString, fields.WithDefault(DefaultCompletionModel),
				fields.WithHelp("Chat completion model")),
			fields.New("completion-max-tokens", fields.TypeInteger, fields.WithDefault(DefaultMaxTokens),
				fields.WithHelp("Maximum completion tokens")),
			fields.New("completion-context-tokens", fields.TypeInteger, fields.WithDefault(DefaultContextTokens),
				fields.WithHelp("Model context size used to trim history (0 = no trimming)")),
			fields.New("request-timeout-seconds", fields.TypeInteger, fields.WithDefault(0),
				fields.WithHelp("Outbound request timeout (0 = HTTP client default)")),
			fields.New("source", fields.TypeString, fields.WithDefault(DefaultSource),
				fields.WithHelp("Source tag attached to chat metadata")),
		),
	)
}

// WithEnvDefaults fills empty values from the environment and the built-in
// defaults.
func (s Settings) WithEnvDefaults() Settings {
	if s.WebhookURL == "" {
		s.WebhookURL = os.Getenv("N8N_WEBHOOK_URL")
	}
	if s.WebhookURL == "" {
		s.WebhookURL = DefaultWebhookURL
	}
	if s.WebhookAPIKey == "" {
		s.WebhookAPIKey = os.Getenv("N8N_API_KEY")
	}
	if s.CompletionAPIKey == "" {
		s.CompletionAPIKey = os.Getenv("GROQ_API_KEY")
	}
	if s.LegacyWebhookURL == "" {
		s.LegacyWebhookURL = DefaultLegacyWebhookURL
	}
	if s.Strategy == "" {
		s.Strategy = StrategyWebhook
	}
	if s.Source == "" {
		s.Source = DefaultSource
	}
	return s
}

func (s Settings) HTTPClient() *http.Client {
	if s.RequestTimeoutSeconds <= 0 {
		return http.DefaultClient
	}
	return &http.Client{Timeout: time.Duration(s.RequestTimeoutSeconds) * time.Second}
}

func (s Settings) WebhookClient() (*WebhookClient, error) {
	return NewWebhookClient(s.WebhookURL, s.WebhookAPIKey, WithHTTPClient(s.HTTPClient()))
}

func (s Settings) LegacyWebhookClient() (*WebhookClient, error) {
	return NewWebhookClient(s.LegacyWebhookURL, "", WithHTTPClient(s.HTTPClient()))
}

func (s Settings) CompletionClient() (*CompletionClient, error) {
	return NewCompletionClient(CompletionConfig{
		BaseURL:       s.CompletionBaseURL,
		APIKey:        s.CompletionAPIKey,
		Model:         s.CompletionModel,
		MaxTokens:     s.CompletionMaxTokens,
		ContextTokens: s.CompletionContext,
		HTTPClient:    s.HTTPClient(),
	})
}

// BuildStrategy builds the reply strategy selected by s.Strategy.
func (s Settings) BuildStrategy() (ReplyStrategy, error) {
	switch s.Strategy {
	case StrategyWebhook, "":
		c, err := s.WebhookClient()
		if err != nil {
			return nil, err
		}
		return NewWebhookStrategy(c), nil
	case StrategyLegacy:
		c, err := s.LegacyWebhookClient()
		if err != nil {
			return nil, err
		}
		return NewLegacyWebhookStrategy(c, s.LegacyModel), nil
	case StrategyCompletion:
		c, err := s.CompletionClient()
		if err != nil {
			return nil, err
		}
		return NewCompletionStrategy(c), nil
	default:
		return nil, errors.Errorf("unknown reply strategy %q", s.Strategy)
	}
}
