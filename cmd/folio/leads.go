package folio

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/schardosin/folio/pkg/api"
	"github.com/schardosin/folio/pkg/config"
	"github.com/schardosin/folio/pkg/leads"
	"github.com/schardosin/folio/pkg/ui"
)

func handleLeadsCommand(args []string) error {
	if len(args) < 1 || args[0] == "-h" || args[0] == "--help" {
		printLeadsUsage()
		return nil
	}

	switch args[0] {
	case "list":
		return handleLeadsList(args[1:])
	case "stats":
		return handleLeadsStats(args[1:])
	default:
		return fmt.Errorf("unknown leads subcommand: %s", args[0])
	}
}

func printLeadsUsage() {
	fmt.Println("usage: folio leads [-h] {list,stats} ...")
	fmt.Println("")
	fmt.Println("positional arguments:")
	fmt.Println("  {list,stats}")
	fmt.Println("                        Lead review commands (admin token required)")
	fmt.Println("    list                Show the newest consultation requests")
	fmt.Println("    stats               Show lead counters")
	fmt.Println("")
	fmt.Println("options:")
	fmt.Println("  -h, --help            show this help message and exit")
	fmt.Println("  --server URL          folio server URL (default: client.server_url)")
	fmt.Println("  --json                Print raw JSON")
}

// adminClient calls the admin lead endpoints.
type adminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAdminClient(cfg *config.AppConfig, server string) (*adminClient, error) {
	baseURL, _ := clientTarget(cfg, server, "")
	token := cfg.Client.AdminToken
	if token == "" {
		token = cfg.Server.AdminToken
	}
	if token == "" {
		return nil, fmt.Errorf("no admin token configured; set client.admin_token in config.yaml or FOLIO_ADMIN_TOKEN")
	}
	return &adminClient{baseURL: baseURL, token: token, http: &http.Client{Timeout: 30 * time.Second}}, nil
}

func (c *adminClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, body.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *adminClient) list(ctx context.Context, limit int) ([]leads.Lead, error) {
	var resp api.LeadListResponse
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := c.get(ctx, "/api/leads?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Leads, nil
}

func (c *adminClient) stats(ctx context.Context) (leads.Stats, error) {
	var stats leads.Stats
	err := c.get(ctx, "/api/leads/stats", &stats)
	return stats, err
}

func handleLeadsList(args []string) error {
	listCmd := flag.NewFlagSet("leads list", flag.ContinueOnError)
	server := listCmd.String("server", "", "folio server URL")
	limit := listCmd.Int("limit", 20, "Number of leads to show")
	asJSON := listCmd.Bool("json", false, "Print raw JSON")
	if err := listCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if *limit < 1 {
		return fmt.Errorf("--limit must be positive")
	}

	cfg, err := config.LoadAppConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	client, err := newAdminClient(cfg, *server)
	if err != nil {
		return err
	}

	list, err := client.list(context.Background(), *limit)
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No leads yet.")
		return nil
	}
	for _, lead := range list {
		fmt.Print(ui.RenderLeadCard(lead))
	}
	return nil
}

func handleLeadsStats(args []string) error {
	statsCmd := flag.NewFlagSet("leads stats", flag.ContinueOnError)
	server := statsCmd.String("server", "", "folio server URL")
	asJSON := statsCmd.Bool("json", false, "Print raw JSON")
	if err := statsCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg, err := config.LoadAppConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	client, err := newAdminClient(cfg, *server)
	if err != nil {
		return err
	}

	stats, err := client.stats(context.Background())
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(stats)
	}
	fmt.Print(ui.RenderStats(stats))
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
