package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/schardosin/folio/pkg/config"
)

// ProviderDisplayNames maps provider IDs to their proper display names.
// This is the centralized source of truth for how provider names should be displayed
// in both the CLI and logs.
var ProviderDisplayNames = map[string]string{
	"azure_openai": "Azure OpenAI",
	"gemini":       "Google Gemini",
	"groq":         "Groq",
	"lm_studio":    "LM Studio",
	"ollama":       "Ollama",
	"openai":       "OpenAI",
	"openrouter":   "Openrouter",
	"xai":          "xAI",
}

const defaultAzureAPIVersion = "2025-01-01-preview"

// GetProviderDisplayName returns the proper display name for a provider ID.
// If the provider ID is not found, it returns the ID as-is.
func GetProviderDisplayName(providerID string) string {
	if name, ok := ProviderDisplayNames[providerID]; ok {
		return name
	}
	return providerID
}

// GetProviderIDs returns all known provider IDs, sorted.
func GetProviderIDs() []string {
	ids := make([]string, 0, len(ProviderDisplayNames))
	for id := range ProviderDisplayNames {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Provider is a configured streaming chat completion backend.
type Provider struct {
	Name   string
	Model  string
	Client *openai.Client
}

// Stream starts a streamed chat completion with the provider's model.
func (p *Provider) Stream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error) {
	req.Model = p.Model
	req.Stream = true
	return p.Client.CreateChatCompletionStream(ctx, req)
}

// GetProvider builds the provider named name. Every supported backend speaks
// the OpenAI chat completions protocol, so all of them share one client type.
func GetProvider(name string, modelName string, cfg *config.AppConfig) (*Provider, error) {
	settings := config.ProviderConfig{}
	if cfg != nil && cfg.Providers[name] != nil {
		settings = cfg.Providers[name]
	}
	settings = config.ApplyProviderEnv(name, settings)
	apiKey := settings["api_key"]

	var clientCfg openai.ClientConfig

	switch name {
	case "azure_openai":
		endpoint := settings["endpoint"]
		if apiKey == "" {
			return nil, fmt.Errorf("AZURE_OPENAI_KEY not set")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT not set")
		}
		deployment := settings["deployment"]
		if deployment == "" {
			deployment = modelName
		}
		if deployment == "" {
			return nil, fmt.Errorf("deployment or model name required for azure_openai")
		}
		if modelName == "" {
			modelName = deployment
		}

		clientCfg = openai.DefaultAzureConfig(apiKey, endpoint)
		clientCfg.APIVersion = defaultAzureAPIVersion
		if v := settings["api_version"]; v != "" {
			clientCfg.APIVersion = v
		}
		clientCfg.AzureModelMapperFunc = func(string) string { return deployment }

	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		if modelName == "" {
			modelName = "gpt-4o-mini"
		}
		clientCfg = openai.DefaultConfig(apiKey)
		if v := settings["base_url"]; v != "" {
			clientCfg.BaseURL = v
		}

	case "openrouter":
		if apiKey == "" {
			return nil, fmt.Errorf("OpenRouter API Key not configured")
		}
		if modelName == "" {
			return nil, fmt.Errorf("model name required for openrouter")
		}
		clientCfg = openai.DefaultConfig(apiKey)
		clientCfg.BaseURL = "https://openrouter.ai/api/v1"

	case "gemini", "google_genai":
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY not set")
		}
		if modelName == "" {
			modelName = "gemini-2.0-flash"
		}
		clientCfg = openai.DefaultConfig(apiKey)
		clientCfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

	case "groq":
		if apiKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY not set")
		}
		if modelName == "" {
			modelName = "llama-3.3-70b-versatile"
		}
		clientCfg = openai.DefaultConfig(apiKey)
		clientCfg.BaseURL = "https://api.groq.com/openai/v1"

	case "xai", "grok":
		if apiKey == "" {
			return nil, fmt.Errorf("XAI_API_KEY not set")
		}
		if modelName == "" {
			modelName = "grok-beta"
		}
		clientCfg = openai.DefaultConfig(apiKey)
		clientCfg.BaseURL = "https://api.x.ai/v1"

	case "ollama":
		baseURL := "http://localhost:11434"
		if v := settings["base_url"]; v != "" {
			baseURL = v
		}
		if modelName == "" {
			return nil, fmt.Errorf("model name required for ollama")
		}
		// Ollama's OpenAI compatible endpoint is at /v1; the key must be non-empty.
		clientCfg = openai.DefaultConfig("ollama")
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"

	case "lm_studio":
		baseURL := "http://localhost:1234/v1"
		if v := settings["base_url"]; v != "" {
			baseURL = v
		}
		if modelName == "" {
			return nil, fmt.Errorf("model name required for lm_studio")
		}
		clientCfg = openai.DefaultConfig("lm-studio")
		clientCfg.BaseURL = baseURL

	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}

	return &Provider{
		Name:   name,
		Model:  modelName,
		Client: openai.NewClientWithConfig(clientCfg),
	}, nil
}

// NewOpenAICompatible builds a provider against an arbitrary OpenAI compatible
// base URL.
func NewOpenAICompatible(name, baseURL, apiKey, modelName string) *Provider {
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = baseURL
	return &Provider{Name: name, Model: modelName, Client: openai.NewClientWithConfig(clientCfg)}
}
