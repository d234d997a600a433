package folio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schardosin/folio/pkg/config"
	"github.com/schardosin/folio/pkg/provider"
	"gopkg.in/yaml.v3"
)

func handleConfigCommand(args []string) error {
	if len(args) < 1 || args[0] == "-h" || args[0] == "--help" {
		printConfigUsage()
		return nil
	}

	switch args[0] {
	case "edit":
		return handleConfigEdit()
	case "show":
		return handleConfigShow()
	case "check":
		return handleConfigCheck()
	case "directory":
		return handleConfigDirectory()
	default:
		return fmt.Errorf("unknown config subcommand: %s", args[0])
	}
}

func printConfigUsage() {
	fmt.Println("usage: folio config [-h] {edit,show,check,directory} ...")
	fmt.Println("")
	fmt.Println("positional arguments:")
	fmt.Println("  {edit,show,check,directory}")
	fmt.Println("                        Configuration management commands")
	fmt.Println("    edit                Open config.yaml in default editor")
	fmt.Println("    show                Print the effective configuration")
	fmt.Println("    check               Validate config.yaml and the provider settings")
	fmt.Println("    directory           Print the configuration directory path")
	fmt.Println("")
	fmt.Println("options:")
	fmt.Println("  -h, --help            show this help message and exit")
}

func handleConfigEdit() error {
	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return openInEditor(path)
}

// handleConfigShow prints the config with defaults applied and secrets masked.
func handleConfigShow() error {
	cfg, err := config.LoadAppConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	masked := *cfg
	masked.Providers = make(map[string]config.ProviderConfig, len(cfg.Providers))
	for name, settings := range cfg.Providers {
		copied := make(config.ProviderConfig, len(settings))
		for k, v := range settings {
			if k == "api_key" {
				v = maskSecret(v)
			}
			copied[k] = v
		}
		masked.Providers[name] = copied
	}
	masked.Server.PublicToken = maskSecret(cfg.Server.PublicToken)
	masked.Server.AdminToken = maskSecret(cfg.Server.AdminToken)
	masked.Client.Token = maskSecret(cfg.Client.Token)
	masked.Client.AdminToken = maskSecret(cfg.Client.AdminToken)

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func handleConfigCheck() error {
	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	cfg, err := config.LoadAppConfigFrom(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, err := provider.GetProvider(cfg.General.DefaultProvider, cfg.General.DefaultModel, cfg); err != nil {
		return fmt.Errorf("provider %s: %w", cfg.General.DefaultProvider, err)
	}
	fmt.Printf("%s is valid (provider: %s, model: %s)\n", path,
		provider.GetProviderDisplayName(cfg.General.DefaultProvider), cfg.General.DefaultModel)
	return nil
}

func handleConfigDirectory() error {
	dir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	fmt.Println(dir)
	return nil
}
