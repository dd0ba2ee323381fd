package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/latidos/ledger-engine/api"
	"github.com/latidos/ledger-engine/ledger"
	"github.com/latidos/ledger-engine/logger"
	"github.com/latidos/ledger-engine/treasury"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. On SIGINT/SIGTERM the server stops accepting
connections, waits up to 30s for active requests, then closes the database.

When INTEGRITY_TENANTS is set, a background sweep checks those tenants
every INTEGRITY_INTERVAL and logs any drift.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "HTTP port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Lookup("port") != nil {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Port = port
		}
	}
	log := logger.WithComponent("server")

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cache, err := api.NewProjectionCache(cfg.CacheSize)
	if err != nil {
		return fmt.Errorf("projection cache: %w", err)
	}
	handler := api.NewHandler(store, ledger.NewPINSigner(store), cache)
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Auth:        api.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
	})

	tenants := make([]ledger.TenantID, len(cfg.IntegrityTenants))
	for i, t := range cfg.IntegrityTenants {
		tenants[i] = ledger.TenantID(t)
	}
	sweeper := treasury.NewIntegrityScheduler(handler.Treasury, tenants)
	sweeper.CheckInterval = cfg.IntegrityInterval
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("database", cfg.DatabasePath).
			Str("version", version).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
