package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/py-daily/pywebguard/internal/audit"
	"github.com/py-daily/pywebguard/internal/guard"
	"github.com/py-daily/pywebguard/internal/storage"
)

var (
	checkConfigFile string
	checkIP         string
	checkMethod     string
	checkPath       string
	checkQuery      string
	checkUserAgent  string
	checkBody       string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a single request against the configured policy",
	Long: `Run the admission checks once for a synthetic request and print
the decision. Useful for verifying a policy change before deploying it.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkConfigFile, "config", "configs/webguard.yaml", "Path to config YAML file")
	checkCmd.Flags().StringVar(&checkIP, "ip", "198.51.100.1", "Client IP to test")
	checkCmd.Flags().StringVar(&checkMethod, "method", "GET", "Request method")
	checkCmd.Flags().StringVar(&checkPath, "path", "/", "Request path")
	checkCmd.Flags().StringVar(&checkQuery, "query", "", "Raw query string")
	checkCmd.Flags().StringVar(&checkUserAgent, "user-agent", "webguard-check", "User-Agent header")
	checkCmd.Flags().StringVar(&checkBody, "body", "", "Request body to scan")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(checkConfigFile, cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.Open(cmd.Context(), storage.Config{
		Type:      cfg.Storage.Type,
		URL:       cfg.Storage.URL,
		Namespace: cfg.Storage.Namespace,
	})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	g, err := guard.New(cfg, store, guard.WithAudit(audit.NopLogger()))
	if err != nil {
		return fmt.Errorf("building guard: %w", err)
	}

	dec := g.CheckContext(cmd.Context(), guard.Request{
		ClientIP: checkIP,
		Method:   checkMethod,
		Path:     checkPath,
		Query:    checkQuery,
		Headers:  map[string]string{"User-Agent": checkUserAgent},
		Body:     checkBody,
	})

	out, _ := json.MarshalIndent(dec, "", "  ")
	fmt.Fprintf(os.Stdout, "%s\n", out)

	if dec.Allowed {
		fmt.Fprintln(os.Stderr, "\n  Decision: ALLOW")
	} else {
		fmt.Fprintf(os.Stderr, "\n  Decision: DENY (%s)\n", dec.Reason.Kind)
		fmt.Fprintf(os.Stderr, "  Detail:   %s\n", dec.Reason.Detail)
	}
	return nil
}
