package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/schardosin/folio/pkg/config"
	"github.com/schardosin/folio/pkg/logger"
	"github.com/schardosin/folio/pkg/widget"
)

// upstream is a minimal OpenAI compatible streaming endpoint.
func upstream(t *testing.T, deltas ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			chunk, _ := json.Marshal(map[string]any{
				"id":      "chatcmpl-test",
				"object":  "chat.completion.chunk",
				"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": d}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
			w.(http.Flusher).Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testAppConfig(t *testing.T, upstreamURL string) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	webDir := filepath.Join(dir, "site")
	if err := os.MkdirAll(webDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<h1>portfolio</h1>"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.ParseAppConfig([]byte(fmt.Sprintf(`
general:
  default_provider: openai
  default_model: gpt-test
server:
  web_dir: %q
  public_token: public-token
  shutdown_timeout_seconds: 2
providers:
  openai:
    api_key: test-key
    base_url: %q
leads:
  database: %q
  digest_disabled: true
`, webDir, upstreamURL+"/v1", filepath.Join(dir, "leads.db"))))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func startServer(t *testing.T, cfg *config.AppConfig) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunServer(ctx, &ServeConfig{App: cfg, Log: logger.Nop(), Listener: ln, Ready: ready})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("RunServer returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	select {
	case addr := <-ready:
		return "http://" + addr
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}
	return ""
}

func TestRunServer_ServesSiteAndAPI(t *testing.T) {
	up := upstream(t, "Hello ", "there")
	base := startServer(t, testAppConfig(t, up.URL))

	resp, err := http.Get(base + "/projects/some-client-route")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "portfolio") {
		t.Errorf("expected SPA fallback to index.html, got %q", body)
	}

	resp, err = http.Get(base + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "/api/widget")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("widget without token: expected 401, got %d", resp.StatusCode)
	}

	settings, err := widget.FetchSettings(context.Background(), nil, base, "public-token")
	if err != nil {
		t.Fatalf("FetchSettings: %v", err)
	}
	if settings.WelcomeMessage != widget.DefaultWelcomeMessage {
		t.Errorf("unexpected welcome message %q", settings.WelcomeMessage)
	}
}

func TestRunServer_ConsoleConversation(t *testing.T) {
	up := upstream(t, "Happy ", "to help!")
	cfg := testAppConfig(t, up.URL)
	base := startServer(t, cfg)

	c, err := widget.New(widget.Options{
		ChatEndpoint:  base + "/api/chat",
		LeadsEndpoint: base + "/api/leads",
		Token:         "public-token",
		Settings:      cfg.Widget,
		Now:           func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatal(err)
	}

	input := strings.Join([]string{
		"1",
		"",
		"/book",
		"Ada Lovelace",
		"ada@example.com",
		"",
		"An analytical engine dashboard",
		"2099-06-10",
		"/book",
		"/quit",
	}, "\n") + "\n"

	var out strings.Builder
	if err := RunConsole(context.Background(), &ConsoleConfig{Controller: c, In: strings.NewReader(input), Out: &out}); err != nil {
		t.Fatalf("RunConsole: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		widget.DefaultWelcomeMessage,
		"[1] " + widget.DefaultQuickReplies[0],
		"assistant: Happy to help!",
		"(type a message, or /help)",
		widget.DefaultClosingMessage,
		"already been sent",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("console output missing %q:\n%s", want, got)
		}
	}

	snap := c.Snapshot()
	if !snap.BookingConfirmed {
		t.Error("expected booking to be confirmed")
	}
	if len(snap.Turns) != 4 {
		t.Errorf("expected welcome, question, reply and closing turns, got %d", len(snap.Turns))
	}
}

func TestParseConsoleLine(t *testing.T) {
	replies := []string{"Pricing", "Timeline"}
	tests := []struct {
		line     string
		replies  []string
		wantCmd  consoleCommand
		wantText string
	}{
		{"/quit", replies, cmdQuit, ""},
		{"  /EXIT ", replies, cmdQuit, ""},
		{"/reset", replies, cmdReset, ""},
		{"/book", replies, cmdBook, ""},
		{"/help", replies, cmdHelp, ""},
		{"2", replies, cmdQuickReply, "Timeline"},
		{"3", replies, cmdMessage, "3"},
		{"1", nil, cmdMessage, "1"},
		{"hello there", replies, cmdMessage, "hello there"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, text := parseConsoleLine(tt.line, tt.replies)
			if cmd != tt.wantCmd {
				t.Errorf("command: expected %d, got %d", tt.wantCmd, cmd)
			}
			if text != tt.wantText {
				t.Errorf("text: expected %q, got %q", tt.wantText, text)
			}
		})
	}
}

func TestSpaFileServer(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":    {Data: []byte("index")},
		"assets/app.js": {Data: []byte("console.log(1)")},
	}
	handler := spaFileServer(http.FS(fsys))

	tests := []struct {
		path string
		want string
	}{
		{"/", "index"},
		{"/assets/app.js", "console.log(1)"},
		{"/contact", "index"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("expected body %q, got %q", tt.want, rec.Body.String())
			}
		})
	}
}
