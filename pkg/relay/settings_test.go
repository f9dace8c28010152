package relay

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithEnvDefaults(t *testing.T) {
	t.Setenv("N8N_WEBHOOK_URL", "https://hooks.example/partes")
	t.Setenv("N8N_API_KEY", "k-1")
	t.Setenv("GROQ_API_KEY", "g-1")

	s := Settings{}.WithEnvDefaults()
	require.Equal(t, "https://hooks.example/partes", s.WebhookURL)
	require.Equal(t, "k-1", s.WebhookAPIKey)
	require.Equal(t, "g-1", s.CompletionAPIKey)
	require.Equal(t, DefaultLegacyWebhookURL, s.LegacyWebhookURL)
	require.Equal(t, StrategyWebhook, s.Strategy)
	require.Equal(t, DefaultSource, s.Source)

	// flags win over the environment
	s = Settings{WebhookURL: "https://flag.example"}.WithEnvDefaults()
	require.Equal(t, "https://flag.example", s.WebhookURL)
}

func TestWithEnvDefaultsFallsBackToBuiltInURL(t *testing.T) {
	t.Setenv("N8N_WEBHOOK_URL", "")
	require.Equal(t, DefaultWebhookURL, Settings{}.WithEnvDefaults().WebhookURL)
}

func TestBuildStrategy(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	base := Settings{WebhookURL: "https://hooks.example", LegacyWebhookURL: "https://legacy.example"}

	cases := []struct {
		strategy string
		name     string
		apiKey   string
		wantErr  bool
	}{
		{strategy: "", name: StrategyWebhook},
		{strategy: StrategyWebhook, name: StrategyWebhook},
		{strategy: StrategyLegacy, name: StrategyLegacy},
		{strategy: StrategyCompletion, name: StrategyCompletion, apiKey: "g-1"},
		{strategy: StrategyCompletion, wantErr: true},
		{strategy: "carrier-pigeon", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.strategy+tc.apiKey, func(t *testing.T) {
			s := base
			s.Strategy = tc.strategy
			s.CompletionAPIKey = tc.apiKey
			st, err := s.BuildStrategy()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.name, st.Name())
		})
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	require.Same(t, http.DefaultClient, Settings{}.HTTPClient())
	require.Equal(t, 5*time.Second, Settings{RequestTimeoutSeconds: 5}.HTTPClient().Timeout)
}
