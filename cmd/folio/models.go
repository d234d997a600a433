package folio

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schardosin/folio/pkg/config"
	"github.com/schardosin/folio/pkg/provider"
)

func handleModelsCommand(args []string) error {
	modelsCmd := flag.NewFlagSet("models", flag.ContinueOnError)
	providerName := modelsCmd.String("provider", "", "Provider to query (default: general.default_provider)")
	if err := modelsCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg, err := config.LoadAppConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	name := *providerName
	model := cfg.General.DefaultModel
	if name == "" {
		name = cfg.General.DefaultProvider
	} else if name != cfg.General.DefaultProvider {
		model = ""
	}

	models, err := listProviderModels(name, model, cfg)
	if err != nil {
		return err
	}

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	currentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	ownerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	fmt.Println(headerStyle.Render(fmt.Sprintf("%s models", provider.GetProviderDisplayName(name))))
	for _, m := range models {
		line := "  " + m.ID
		if m.ID == cfg.General.DefaultModel {
			line = currentStyle.Render("* " + m.ID)
		}
		if m.OwnedBy != "" {
			line += " " + ownerStyle.Render("("+m.OwnedBy+")")
		}
		fmt.Println(line)
	}
	return nil
}

func listProviderModels(name, model string, cfg *config.AppConfig) ([]provider.ModelInfo, error) {
	// Providers that need a model name up front still list without one
	if model == "" {
		model = "default"
	}
	p, err := provider.GetProvider(name, model, cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return p.ListModels(ctx)
}
