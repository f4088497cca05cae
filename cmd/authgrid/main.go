package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "authgrid",
		Short:         "OAuth 2.1 authorization server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOr("AUTHGRID_CONFIG", ""), "path to the YAML config file")

	root.AddCommand(serveCmd(), migrateCmd(), sweepCmd(), revokeCmd(), encryptCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "authgrid: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
