package folio

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/schardosin/folio/pkg/config"
	"github.com/schardosin/folio/pkg/provider"
	"github.com/schardosin/folio/pkg/ui"
)

func handleSetupCommand() error {
	reader := bufio.NewReader(os.Stdin)
	cfg, err := config.LoadAppConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return err
	}

	names := make([]string, 0, len(provider.ProviderDisplayNames))
	byName := make(map[string]string)
	for _, id := range provider.GetProviderIDs() {
		display := provider.GetProviderDisplayName(id)
		names = append(names, display)
		byName[display] = id
	}

	choice, err := ui.ReadSelection(names, "Select a provider to configure")
	if err != nil {
		return err
	}
	selectedProvider := byName[choice]
	fmt.Printf("Configuring %s...\n", choice)

	if cfg.Providers[selectedProvider] == nil {
		cfg.Providers[selectedProvider] = make(config.ProviderConfig)
	}
	keys := make([]string, 0, len(config.ProviderEnvMapping[selectedProvider]))
	for k := range config.ProviderEnvMapping[selectedProvider] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		promptAndSet(reader, cfg.Providers[selectedProvider], k, "Enter "+strings.ReplaceAll(k, "_", " "))
	}

	cfg.General.DefaultProvider = selectedProvider
	fmt.Printf("Set %s as default provider.\n", choice)

	fmt.Println("Fetching available models...")
	models, err := listProviderModels(selectedProvider, "", cfg)
	switch {
	case err != nil:
		fmt.Printf("Warning: Failed to fetch models: %v\n", err)
	case len(models) > 0:
		ids := make([]string, len(models))
		for i, m := range models {
			ids[i] = m.ID
		}
		model, err := ui.ReadSelection(ids, "Select the default model")
		if err == nil {
			cfg.General.DefaultModel = model
			goto SaveConfig
		}
	}

	fmt.Print("Enter default model (leave empty to keep current/default): ")
	if modelInput, _ := reader.ReadString('\n'); strings.TrimSpace(modelInput) != "" {
		cfg.General.DefaultModel = strings.TrimSpace(modelInput)
	}

SaveConfig:
	promptAndSetString(reader, &cfg.Server.PublicToken, "Public widget token (sent by the site)")
	promptAndSetString(reader, &cfg.Server.AdminToken, "Admin token (for folio leads)")

	if err := config.SaveAppConfig(cfg); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		return err
	}

	fmt.Println("Configuration saved successfully!")
	return nil
}

func promptAndSet(reader *bufio.Reader, providerConfig config.ProviderConfig, key string, prompt string) {
	current := providerConfig[key]
	providerConfig[key] = promptValue(reader, prompt, current)
}

func promptAndSetString(reader *bufio.Reader, dst *string, prompt string) {
	*dst = promptValue(reader, prompt, *dst)
}

func promptValue(reader *bufio.Reader, prompt, current string) string {
	fmt.Printf("%s [%s]: ", prompt, maskSecret(current))
	input, _ := reader.ReadString('\n')
	if input = strings.TrimSpace(input); input != "" {
		return input
	}
	return current
}

// maskSecret keeps the last four characters of long values visible.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return s
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
