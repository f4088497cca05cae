package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authgrid/internal/config"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	"github.com/dropDatabas3/authgrid/internal/store"
)

func sweepCmd() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired codes and tokens",
		Long: `Deletes authorization codes, access/refresh tokens and device codes whose
expiry is older than now minus the grace period. Expiry is already enforced
at read time; this reclaims storage and is safe to run from cron.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), grace)
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 24*time.Hour, "keep expired rows this long for audit")
	return cmd
}

func runSweep(ctx context.Context, grace time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "authgrid"})
	defer logger.Sync()
	log := logger.L().With(logger.Op("sweep"))

	st, err := store.New(ctx, store.Config{
		Driver:          cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	before := time.Now().Add(-grace)

	n, err := st.AuthCodes().DeleteExpired(ctx, before)
	if err != nil {
		return err
	}
	log.Info("authorization codes swept", logger.Count(int(n)))

	n, err = st.Tokens().DeleteExpired(ctx, before)
	if err != nil {
		return err
	}
	log.Info("tokens swept", logger.Count(int(n)))

	n, err = st.DeviceCodes().DeleteExpired(ctx, before)
	if err != nil {
		return err
	}
	log.Info("device codes swept", logger.Count(int(n)))

	return nil
}
