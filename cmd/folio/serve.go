package folio

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schardosin/folio/pkg/config"
	"github.com/schardosin/folio/pkg/launcher"
	"github.com/schardosin/folio/pkg/logger"
)

func handleServeCommand(args []string) error {
	serveCmd := flag.NewFlagSet("serve", flag.ContinueOnError)
	serveCmd.Usage = printServeUsage
	port := serveCmd.Int("port", 0, "Port to listen on (overrides config)")
	host := serveCmd.String("host", "", "Interface to bind (overrides config)")
	providerName := serveCmd.String("provider", "", "Model provider (overrides config)")
	model := serveCmd.String("model", "", "Model name (overrides config)")
	webDir := serveCmd.String("web-dir", "", "Directory with the built portfolio site")
	noWatch := serveCmd.Bool("no-watch", false, "Do not reload config.yaml on change")

	if err := serveCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	cfg, err := config.LoadAppConfigFrom(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyServeOverrides(cfg, *port, *host, *providerName, *model, *webDir)

	log := logger.InitGlobalLogger(logger.Config{
		Level:  cfg.General.LogLevel,
		Pretty: cfg.General.LogPretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveCfg := &launcher.ServeConfig{App: cfg, Log: log}
	if !*noWatch {
		serveCfg.ConfigPath = path
	}
	return launcher.RunServer(ctx, serveCfg)
}

func applyServeOverrides(cfg *config.AppConfig, port int, host, providerName, model, webDir string) {
	if port != 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if providerName != "" {
		cfg.General.DefaultProvider = providerName
		// A model name from the config belongs to the configured provider
		if model == "" {
			cfg.General.DefaultModel = ""
		}
	}
	if model != "" {
		cfg.General.DefaultModel = model
	}
	if webDir != "" {
		cfg.Server.WebDir = webDir
	}
}

func printServeUsage() {
	fmt.Println("usage: folio serve [-h] [--port PORT] [--host HOST] [--provider PROVIDER] [--model MODEL] [--web-dir DIR] [--no-watch]")
	fmt.Println("")
	fmt.Println("Run the chat relay, lead capture API and portfolio site")
	fmt.Println("")
	fmt.Println("options:")
	fmt.Println("  -h, --help            show this help message and exit")
	fmt.Println("  --port PORT           Port to listen on (default: 8080)")
	fmt.Println("  --host HOST           Interface to bind (default: all)")
	fmt.Println("  --provider PROVIDER   Model provider (default: azure_openai)")
	fmt.Println("  --model MODEL         Model name")
	fmt.Println("  --web-dir DIR         Directory with the built portfolio site")
	fmt.Println("  --no-watch            Do not reload config.yaml on change")
}
