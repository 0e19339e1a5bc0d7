package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	server  string
	token   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orderflow",
		Short: "CLI for the orderflow fulfillment pipeline",
		Long: `orderflow tails the live event stream of a restaurant, mints development
tokens and explains which work queues a status belongs to.`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVar(&server, "server", envOr("ORDERFLOW_SERVER", "http://localhost:8080"), "orderflow server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("ORDERFLOW_TOKEN"), "bearer token (defaults to $ORDERFLOW_TOKEN)")

	rootCmd.AddCommand(
		newWatchCmd(),
		newTokenCmd(),
		newQueuesCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
