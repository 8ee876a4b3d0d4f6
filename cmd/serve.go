package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/py-daily/pywebguard/internal/audit"
	"github.com/py-daily/pywebguard/internal/config"
	"github.com/py-daily/pywebguard/internal/guard"
	"github.com/py-daily/pywebguard/internal/httpmw"
	"github.com/py-daily/pywebguard/internal/metrics"
	"github.com/py-daily/pywebguard/internal/storage"
)

var (
	configFile string
	listenAddr string
	backendURL string
	auditFile  string
	trustProxy bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WebGuard gateway",
	Long: `Start an HTTP gateway that applies the admission checks to every
request and forwards admitted requests to the backend service.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configFile, "config", "configs/webguard.yaml", "Path to config YAML file")
	serveCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	serveCmd.Flags().StringVar(&backendURL, "backend", "http://localhost:3000", "Backend service URL")
	serveCmd.Flags().StringVar(&auditFile, "audit-log", "", "Path to audit log file (overrides config; default: stderr)")
	serveCmd.Flags().BoolVar(&trustProxy, "trust-proxy", false, "Resolve client IPs from X-Forwarded-For / X-Real-IP")
}

// loadConfig reads the YAML config. The default config path is allowed
// to be absent, in which case the built-in defaults apply; an explicit
// --config that cannot be read is an error.
func loadConfig(path string, c *cobra.Command) (config.Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		if os.IsNotExist(err) && !c.Flags().Changed("config") {
			return config.Default(), nil
		}
		return config.Config{}, err
	}
	return *cfg, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Str("component", "webguard").Logger()
}

func newAuditLogger(cfg config.Config, logger zerolog.Logger) (*audit.Logger, error) {
	path := cfg.Logging.AuditFile
	if auditFile != "" {
		path = auditFile
	}
	if path == "" {
		return audit.NewStderrLogger(), nil
	}
	al, err := audit.NewFileLogger(path)
	if err != nil {
		return nil, fmt.Errorf("creating audit logger: %w", err)
	}
	logger.Info().Str("path", path).Msg("audit log enabled")
	return al, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Logging.Level)
	logger.Info().
		Str("storage", cfg.Storage.Type).
		Bool("ip_filter", cfg.IPFilter.Enabled).
		Bool("rate_limit", cfg.RateLimit.Enabled).
		Bool("penetration", cfg.Penetration.Enabled).
		Msg("config loaded")

	ctx := context.Background()
	store, err := storage.Open(ctx, storage.Config{
		Type:      cfg.Storage.Type,
		URL:       cfg.Storage.URL,
		Namespace: cfg.Storage.Namespace,
	})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	auditLogger, err := newAuditLogger(cfg, logger)
	if err != nil {
		return err
	}

	g, err := guard.New(cfg, store,
		guard.WithLogger(logger),
		guard.WithAudit(auditLogger),
		guard.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		return fmt.Errorf("building guard: %w", err)
	}

	backend, err := url.Parse(backendURL)
	if err != nil {
		return fmt.Errorf("parsing backend URL: %w", err)
	}
	upstream := httputil.NewSingleHostReverseProxy(backend)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Group(func(r chi.Router) {
		r.Use(httpmw.Middleware(g, httpmw.Options{
			TrustProxyHeaders: trustProxy,
			SnapshotBody:      cfg.Penetration.ScanBody,
		}))
		r.Handle("/*", upstream)
	})

	logger.Info().
		Str("listen", listenAddr).
		Str("backend", backendURL).
		Msg("starting webguard gateway")

	fmt.Fprintf(os.Stderr, "\n  WebGuard v%s\n", Version)
	fmt.Fprintf(os.Stderr, "  Listen:  %s\n", listenAddr)
	fmt.Fprintf(os.Stderr, "  Backend: %s\n", backendURL)
	fmt.Fprintf(os.Stderr, "  Storage: %s\n\n", storageLabel(cfg.Storage.Type))

	return http.ListenAndServe(listenAddr, r)
}

func storageLabel(t string) string {
	if t == "" {
		return "memory"
	}
	return t
}
