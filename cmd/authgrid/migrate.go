package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authgrid/internal/config"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	migrations "github.com/dropDatabas3/authgrid/migrations/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down] [steps]",
		Short: "Apply the embedded postgres migrations",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			steps := 0
			if len(args) >= 1 {
				action = strings.ToLower(args[0])
			}
			if len(args) >= 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[1])
				}
				steps = n
			}
			return runMigrate(cmd.Context(), action, steps)
		},
	}
}

func runMigrate(ctx context.Context, action string, steps int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrate only applies to the postgres driver, configured %q", cfg.Storage.Driver)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "authgrid"})
	defer logger.Sync()
	log := logger.L()

	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	var suffix string
	switch action {
	case "up":
		suffix = "_up.sql"
	case "down":
		suffix = "_down.sql"
	default:
		return fmt.Errorf("unknown action %q, use up or down", action)
	}

	files, err := listEmbeddedSQL(suffix)
	if err != nil {
		return err
	}
	if action == "down" {
		// downs run newest-first
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}
	if steps > 0 && steps < len(files) {
		files = files[:steps]
	}

	for _, name := range files {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return err
		}
		start := time.Now()
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
		log.Info("migration applied",
			logger.String("file", name),
			logger.DurationMs(time.Since(start).Milliseconds()))
	}
	log.Info("migrations done", logger.Count(len(files)), logger.String("action", action))
	return nil
}

func listEmbeddedSQL(suffix string) ([]string, error) {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
