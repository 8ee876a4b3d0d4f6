package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/py-daily/pywebguard/internal/audit"
	"github.com/py-daily/pywebguard/internal/guard"
	"github.com/py-daily/pywebguard/internal/storage"
)

var (
	adminConfigFile string
	banDuration     time.Duration
	banReason       string
)

var banCmd = &cobra.Command{
	Use:   "ban <client-ip>",
	Short: "Ban a client in the shared store",
	Long: `Write a ban record for the given client. Every gateway instance
sharing the same storage backend denies the client immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: runBan,
}

var unbanCmd = &cobra.Command{
	Use:   "unban <client-ip>",
	Short: "Remove a client's ban from the shared store",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnban,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show active checks and aggregate request counters",
	RunE:  runStatus,
}

func init() {
	for _, c := range []*cobra.Command{banCmd, unbanCmd, statusCmd} {
		c.Flags().StringVar(&adminConfigFile, "config", "configs/webguard.yaml", "Path to config YAML file")
	}
	banCmd.Flags().DurationVar(&banDuration, "duration", time.Hour, "How long the ban lasts")
	banCmd.Flags().StringVar(&banReason, "reason", "manual ban", "Reason recorded with the ban")
}

// adminGuard opens the configured store and builds a guard for the
// admin operations. The caller must Close the returned store.
func adminGuard(c *cobra.Command) (*guard.Guard, storage.Storage, error) {
	cfg, err := loadConfig(adminConfigFile, c)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := storage.Open(c.Context(), storage.Config{
		Type:      cfg.Storage.Type,
		URL:       cfg.Storage.URL,
		Namespace: cfg.Storage.Namespace,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}
	g, err := guard.New(cfg, store, guard.WithAudit(audit.NopLogger()))
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("building guard: %w", err)
	}
	return g, store, nil
}

func runBan(cmd *cobra.Command, args []string) error {
	g, store, err := adminGuard(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := g.Ban(cmd.Context(), args[0], banReason, banDuration); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "banned %s for %s (%s)\n", args[0], banDuration, banReason)
	return nil
}

func runUnban(cmd *cobra.Command, args []string) error {
	g, store, err := adminGuard(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := g.Unban(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "unbanned %s\n", args[0])
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	g, store, err := adminGuard(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := g.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading status: %w", err)
	}
	out, _ := json.MarshalIndent(st, "", "  ")
	fmt.Fprintf(os.Stdout, "%s\n", out)
	return nil
}
