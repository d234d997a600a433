package folio

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/schardosin/folio/pkg/config"
	"github.com/schardosin/folio/pkg/launcher"
	"github.com/schardosin/folio/pkg/logger"
	"github.com/schardosin/folio/pkg/tui"
	"github.com/schardosin/folio/pkg/widget"
	"golang.org/x/term"
)

func handleChatCommand(args []string) error {
	chatCmd := flag.NewFlagSet("chat", flag.ContinueOnError)
	chatCmd.Usage = printChatUsage
	server := chatCmd.String("server", "", "folio server URL (overrides config)")
	token := chatCmd.String("token", "", "Public widget token (overrides config)")
	plain := chatCmd.Bool("plain", false, "Use the line-mode console even on a terminal")

	if err := chatCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg, err := config.LoadAppConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	serverURL, publicToken := clientTarget(cfg, *server, *token)

	// Chat output owns the terminal; keep logs to warnings.
	log := logger.New(logger.Config{Level: "warn", Pretty: true}).Zerolog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	httpClient := &http.Client{Timeout: 2 * time.Minute}
	settings, err := widget.FetchSettings(ctx, httpClient, serverURL, publicToken)
	if err != nil {
		log.Warn().Err(err).Msg("using local widget settings")
		settings = cfg.Widget
	}

	ctrl, err := widget.New(widget.Options{
		ChatEndpoint:  serverURL + "/api/chat",
		LeadsEndpoint: serverURL + "/api/leads",
		Token:         publicToken,
		HTTPClient:    httpClient,
		Settings:      settings,
		Logger:        log,
	})
	if err != nil {
		return err
	}

	if *plain || !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return launcher.RunConsole(ctx, &launcher.ConsoleConfig{Controller: ctrl, In: os.Stdin, Out: os.Stdout})
	}
	return tui.Run(ctx, ctrl, time.Now)
}

// clientTarget resolves the server URL and public token for client commands.
func clientTarget(cfg *config.AppConfig, server, token string) (string, string) {
	if server == "" {
		server = cfg.Client.ServerURL
	}
	if token == "" {
		token = cfg.Client.Token
	}
	if token == "" {
		token = cfg.Server.PublicToken
	}
	return strings.TrimRight(server, "/"), token
}

func printChatUsage() {
	fmt.Println("usage: folio chat [-h] [--server URL] [--token TOKEN] [--plain]")
	fmt.Println("")
	fmt.Println("Chat with the portfolio assistant and book a consultation")
	fmt.Println("")
	fmt.Println("options:")
	fmt.Println("  -h, --help            show this help message and exit")
	fmt.Println("  --server URL          folio server URL (default: client.server_url)")
	fmt.Println("  --token TOKEN         Public widget token (default: client.token)")
	fmt.Println("  --plain               Use the line-mode console even on a terminal")
}
