package launcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/schardosin/folio/pkg/api"
	"github.com/schardosin/folio/pkg/config"
	"github.com/schardosin/folio/pkg/leads"
	"github.com/schardosin/folio/pkg/logger"
	"github.com/schardosin/folio/pkg/metrics"
	"github.com/schardosin/folio/pkg/provider"
	"github.com/schardosin/folio/web"
)

// ServeConfig contains configuration for the relay server
type ServeConfig struct {
	App        *config.AppConfig
	ConfigPath string // watched for hot reload when set
	Log        *logger.Logger

	// Listener overrides Host/Port; tests pass one bound to :0.
	Listener net.Listener
	// Ready is closed once the server is accepting connections.
	Ready chan<- string
}

// RunServer starts the relay server and blocks until ctx is cancelled, then
// shuts down gracefully.
func RunServer(ctx context.Context, cfg *ServeConfig) error {
	app := cfg.App
	log := cfg.Log
	if log == nil {
		log = logger.Global()
	}

	prov, err := provider.GetProvider(app.General.DefaultProvider, app.General.DefaultModel, app)
	if err != nil {
		return fmt.Errorf("failed to initialize provider: %w", err)
	}

	store, err := leads.OpenStore(app.Leads.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	server := api.NewServer(api.Options{
		Provider: prov,
		Leads:    store,
		Metrics:  m,
		Gatherer: reg,
		Logger:   log,
		Settings: api.SettingsFromConfig(app),
	})

	router := mux.NewRouter()
	server.RegisterRoutes(router)
	router.PathPrefix("/").Handler(siteHandler(app.Server.WebDir, log))

	if !app.Leads.DigestDisabled {
		digest, err := leads.NewDigest(store, app.Leads.DigestSchedule, log.Component("lead_digest"))
		if err != nil {
			return err
		}
		digest.Start()
		defer digest.Stop()
	}

	if cfg.ConfigPath != "" {
		go func() {
			err := config.Watch(ctx, cfg.ConfigPath, log.Component("config"), func(reloaded *config.AppConfig) {
				server.UpdateSettings(api.SettingsFromConfig(reloaded))
			})
			if err != nil {
				log.Zerolog().Warn().Err(err).Msg("config hot reload disabled")
			}
		}()
	}

	listener := cfg.Listener
	if listener == nil {
		addr := net.JoinHostPort(app.Server.Host, strconv.Itoa(app.Server.Port))
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
	}

	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	addr := listener.Addr().String()
	log.LogServerStart(addr, prov.Name, prov.Model, app.Leads.Database)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()
	if cfg.Ready != nil {
		cfg.Ready <- addr
		close(cfg.Ready)
	}

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("relay server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.LogServerShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(app.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// siteHandler serves the portfolio site: a configured or discovered web
// directory first, then the embedded build, then a placeholder page.
func siteHandler(webDir string, log *logger.Logger) http.Handler {
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		log.Zerolog().Info().Str("dir", webDir).Msg("serving site from disk")
		return spaFileServer(http.Dir(webDir))
	}
	if dist, ok := web.DistFS(); ok {
		log.Zerolog().Info().Msg("serving embedded site")
		return spaFileServer(http.FS(dist))
	}

	log.Zerolog().Warn().Msg("no site assets found, serving placeholder page")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/index.html" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>folio</title></head>
<body style="font-family: sans-serif; padding: 40px;">
<h1>folio relay is running</h1>
<p>No site build was found. Set <code>server.web_dir</code> in config.yaml or build the site into <code>web/dist</code>.</p>
</body>
</html>`)
	})
}

// findWebDir looks for a built site directory
func findWebDir() string {
	// Check relative to current directory
	paths := []string{
		"web/dist",
		"../web/dist",
		"dist",
	}

	// Also check relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, "web/dist"),
			filepath.Join(exeDir, "../web/dist"),
		)
	}

	for _, path := range paths {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if _, err := os.Stat(filepath.Join(path, "index.html")); err == nil {
				absPath, _ := filepath.Abs(path)
				return absPath
			}
		}
	}

	return ""
}

// spaFileServer returns a handler that serves SPA files with fallback to index.html
func spaFileServer(fsys http.FileSystem) http.Handler {
	fileServer := http.FileServer(fsys)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, err := fsys.Open(r.URL.Path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				http.Error(w, "Failed to open file", http.StatusInternalServerError)
				return
			}
			// Unknown paths are client-side routes
			r.URL.Path = "/"
		} else {
			f.Close()
		}

		fileServer.ServeHTTP(w, r)
	})
}
