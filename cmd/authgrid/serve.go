package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authgrid/internal/cache"
	"github.com/dropDatabas3/authgrid/internal/config"
	ctrl "github.com/dropDatabas3/authgrid/internal/http/controllers/oauth"
	"github.com/dropDatabas3/authgrid/internal/http/router"
	"github.com/dropDatabas3/authgrid/internal/http/services/health"
	oauthsvc "github.com/dropDatabas3/authgrid/internal/http/services/oauth"
	jwtx "github.com/dropDatabas3/authgrid/internal/jwt"
	"github.com/dropDatabas3/authgrid/internal/observability/logger"
	"github.com/dropDatabas3/authgrid/internal/rate"
	"github.com/dropDatabas3/authgrid/internal/security/dpop"
	"github.com/dropDatabas3/authgrid/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authorization server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "authgrid",
	})
	defer logger.Sync()
	log := logger.L()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	cc, err := cache.New(cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: config.Duration(cfg.Cache.Memory.DefaultTTL),
	})
	if err != nil {
		return err
	}
	defer cc.Close()

	issuer, err := jwtx.NewIssuer(cfg.JWT.Issuer, cfg.JWT.SigningSeed, config.Duration(cfg.JWT.AccessTTL))
	if err != nil {
		return err
	}
	if cfg.JWT.SigningSeed == "" {
		log.Warn("no signing seed configured; using an ephemeral key", logger.String("kid", issuer.KID()))
	}

	services := oauthsvc.NewServices(oauthsvc.Deps{
		Store:           st,
		Cache:           cc,
		Issuer:          issuer,
		AllowPlainPKCE:  cfg.OAuth.AllowPlainPKCE,
		AccessTTL:       config.Duration(cfg.JWT.AccessTTL),
		RefreshTTL:      config.Duration(cfg.JWT.RefreshTTL),
		AuthCodeTTL:     config.Duration(cfg.OAuth.AuthCodeTTL),
		DeviceCodeTTL:   config.Duration(cfg.OAuth.DeviceCodeTTL),
		DeviceInterval:  cfg.OAuth.DeviceInterval,
		PARRequestTTL:   config.Duration(cfg.OAuth.PARRequestTTL),
		VerificationURI: cfg.OAuth.VerificationURI,
	})

	controllers := ctrl.New(ctrl.Deps{
		Services:    services,
		Issuer:      issuer,
		DPoP:        dpop.NewValidator(cc, config.Duration(cfg.OAuth.DPoP.ProofMaxAge)),
		ExternalURL: cfg.JWT.Issuer,
	})

	routerDeps := router.Deps{Controllers: controllers}
	if cfg.Rate.Enabled {
		routerDeps.TokenLimiter = rate.NewFixedWindow(cc, "rate:token",
			cfg.Rate.Token.Limit, config.Duration(cfg.Rate.Token.Window))
		routerDeps.DeviceLimiter = rate.NewFixedWindow(cc, "rate:device",
			cfg.Rate.DeviceCode.Limit, config.Duration(cfg.Rate.DeviceCode.Window))
	}

	api := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router.New(routerDeps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	ops := &http.Server{
		Addr:         cfg.Server.MetricsAddr,
		Handler:      opsHandler(health.NewService(st, cc)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api listening", logger.String("addr", api.Addr), logger.String("issuer", cfg.JWT.Issuer))
		if err := api.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("ops listening", logger.String("addr", ops.Addr))
		if err := ops.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = ops.Shutdown(sctx)
		return api.Shutdown(sctx)
	})

	return g.Wait()
}

// opsHandler serves the out-of-band surface: metrics and health.
func opsHandler(h *health.Service) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := h.Check(ctx)
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}
