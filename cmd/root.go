package cmd

import "github.com/spf13/cobra"

// Version is set at build time.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "webguard",
	Short: "WebGuard — request admission firewall for web services",
	Long: `WebGuard is a security gateway for web services. It filters
requests by IP, CIDR range, country and user agent, enforces per-client
rate limits with automatic banning, and scans paths, query strings and
bodies for known attack signatures. Counters and bans live in a shared
store (memory, Redis, Postgres, SQLite, MongoDB or an embedded file
store) so every instance behind the same backend enforces the same
limits.`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(banCmd)
	rootCmd.AddCommand(unbanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("webguard v%s\n", Version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
