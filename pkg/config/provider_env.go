package config

import "os"

// ProviderEnvMapping maps provider config keys to environment variable names
// This is the single source of truth for how config keys map to env vars
var ProviderEnvMapping = map[string]map[string]string{
	"azure_openai": {
		"api_key":     "AZURE_OPENAI_KEY",
		"endpoint":    "AZURE_OPENAI_ENDPOINT",
		"deployment":  "AZURE_OPENAI_DEPLOYMENT",
		"api_version": "AZURE_OPENAI_API_VERSION",
	},
	"openai": {
		"api_key": "OPENAI_API_KEY",
	},
	"openrouter": {
		"api_key": "OPENROUTER_API_KEY",
	},
	"gemini": {
		"api_key": "GOOGLE_API_KEY",
	},
	"xai": {
		"api_key": "XAI_API_KEY",
	},
	"groq": {
		"api_key": "GROQ_API_KEY",
	},
	"ollama": {
		"base_url": "OLLAMA_HOST",
	},
	"lm_studio": {
		"base_url": "LM_STUDIO_BASE_URL",
	},
}

// ServerEnvMapping maps server settings to environment variables.
var ServerEnvMapping = map[string]string{
	"public_token": "FOLIO_PUBLIC_TOKEN",
	"admin_token":  "FOLIO_ADMIN_TOKEN",
}

// ApplyProviderEnv fills empty provider settings from the environment.
// Values in the config file win.
func ApplyProviderEnv(providerName string, providerCfg ProviderConfig) ProviderConfig {
	if providerCfg == nil {
		providerCfg = make(ProviderConfig)
	}
	if mapping, ok := ProviderEnvMapping[providerName]; ok {
		for cfgKey, envKey := range mapping {
			if providerCfg[cfgKey] != "" {
				continue
			}
			if val := os.Getenv(envKey); val != "" {
				providerCfg[cfgKey] = val
			}
		}
	}
	return providerCfg
}

// ApplyEnv fills provider credentials and server tokens from the environment.
func ApplyEnv(appCfg *AppConfig) {
	if appCfg == nil {
		return
	}
	if appCfg.Providers == nil {
		appCfg.Providers = make(map[string]ProviderConfig)
	}
	for providerName := range ProviderEnvMapping {
		cfg := ApplyProviderEnv(providerName, appCfg.Providers[providerName])
		if len(cfg) > 0 {
			appCfg.Providers[providerName] = cfg
		}
	}

	if appCfg.Server.PublicToken == "" {
		appCfg.Server.PublicToken = os.Getenv(ServerEnvMapping["public_token"])
	}
	if appCfg.Server.AdminToken == "" {
		appCfg.Server.AdminToken = os.Getenv(ServerEnvMapping["admin_token"])
	}
}
