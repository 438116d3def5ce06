// heraldctl is a CLI tool for managing Herald notification preferences and digests.
//
// Installation:
//
//	go build -o heraldctl ./cmd/heraldctl
//	mv heraldctl /usr/local/bin/
//
// Usage:
//
//	heraldctl prefs get u1
//	heraldctl prefs set u1 --frequency daily_digest --disable taskCommentAdded
//	heraldctl digest show u1
//	heraldctl digest drain u1
//	heraldctl event-types -o yaml
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

// rootOptions are the global flags shared by every subcommand.
type rootOptions struct {
	output  string
	server  string
	timeout time.Duration
}

func (o *rootOptions) client() *apiClient {
	return newAPIClient(o.server, o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "heraldctl",
		Short: "Manage Herald notification preferences and digests",
		Long: `heraldctl is a CLI tool for interacting with a running Herald daemon.

It reads and updates per-user notification preferences, inspects pending
digests and triggers digest delivery on demand.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("HERALD_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&opts.server, "server", "s", defaultServer, "Herald API base URL (env HERALD_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "HTTP request timeout")

	// Add subcommands
	rootCmd.AddCommand(prefsCmd(opts))
	rootCmd.AddCommand(digestCmd(opts))
	rootCmd.AddCommand(eventTypesCmd(opts))

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
