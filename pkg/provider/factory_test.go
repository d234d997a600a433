package provider

import (
	"testing"

	"github.com/schardosin/folio/pkg/config"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, mapping := range config.ProviderEnvMapping {
		for _, env := range mapping {
			t.Setenv(env, "")
		}
	}
}

func TestGetProvider(t *testing.T) {
	clearProviderEnv(t)

	tests := []struct {
		name      string
		provider  string
		model     string
		settings  config.ProviderConfig
		wantModel string
		wantErr   bool
	}{
		{
			name:      "azure uses deployment as model",
			provider:  "azure_openai",
			settings:  config.ProviderConfig{"api_key": "k", "endpoint": "https://x.openai.azure.com", "deployment": "gpt-4o"},
			wantModel: "gpt-4o",
		},
		{
			name:     "azure without endpoint",
			provider: "azure_openai",
			settings: config.ProviderConfig{"api_key": "k"},
			wantErr:  true,
		},
		{
			name:     "azure without key",
			provider: "azure_openai",
			settings: config.ProviderConfig{"endpoint": "https://x.openai.azure.com"},
			wantErr:  true,
		},
		{
			name:      "openai default model",
			provider:  "openai",
			settings:  config.ProviderConfig{"api_key": "k"},
			wantModel: "gpt-4o-mini",
		},
		{
			name:     "openrouter requires model",
			provider: "openrouter",
			settings: config.ProviderConfig{"api_key": "k"},
			wantErr:  true,
		},
		{
			name:      "ollama needs no key",
			provider:  "ollama",
			model:     "llama3",
			wantModel: "llama3",
		},
		{
			name:      "gemini alias",
			provider:  "google_genai",
			settings:  config.ProviderConfig{"api_key": "k"},
			wantModel: "gemini-2.0-flash",
		},
		{
			name:     "unknown provider",
			provider: "carrier-pigeon",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.AppConfig{Providers: map[string]config.ProviderConfig{}}
			if tt.settings != nil {
				cfg.Providers[tt.provider] = tt.settings
			}

			p, err := GetProvider(tt.provider, tt.model, cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got provider %+v", p)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Model != tt.wantModel {
				t.Errorf("Model = %q, expected %q", p.Model, tt.wantModel)
			}
			if p.Client == nil {
				t.Error("Client should be set")
			}
		})
	}
}

func TestGetProviderReadsEnvironment(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GROQ_API_KEY", "from-env")

	p, err := GetProvider("groq", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "groq" {
		t.Errorf("Name = %q, expected groq", p.Name)
	}
}

func TestGetProviderDisplayName(t *testing.T) {
	if got := GetProviderDisplayName("azure_openai"); got != "Azure OpenAI" {
		t.Errorf("GetProviderDisplayName(azure_openai) = %q", got)
	}
	if got := GetProviderDisplayName("custom"); got != "custom" {
		t.Errorf("unknown IDs should pass through, got %q", got)
	}
	ids := GetProviderIDs()
	if len(ids) != len(ProviderDisplayNames) || ids[0] != "azure_openai" {
		t.Errorf("GetProviderIDs() = %v", ids)
	}
}
