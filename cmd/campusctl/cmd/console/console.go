package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/schoolops/campus/cmd/campusctl/internal/config"
	consolesrv "github.com/schoolops/campus/cmd/campusctl/internal/console"
	"github.com/spf13/cobra"
)

var listenAddr string

// ConsoleCmd serves the browser console.
var ConsoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Serve the back office in a local browser console",
	Long: `Starts a local web console over the same session as the CLI. Logging in or
out here and in the CLI affects both. Send SIGHUP to re-read the stored session
immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.MustFromContext(cmd.Context())
		provider := cfg.ClientProvider
		logger := cfg.Logger.With("component", "console")

		addr := cfg.Settings.ConsoleAddr
		if cmd.Flags().Changed("addr") {
			addr = listenAddr
		}

		ctrl, err := provider.Controller(cmd.Context())
		if err != nil {
			return err
		}
		authorizer, err := provider.Authorizer()
		if err != nil {
			return err
		}
		api, err := provider.SDKClient(cmd.Context())
		if err != nil {
			return err
		}

		handler, err := consolesrv.New(consolesrv.Config{
			Controller:     ctrl,
			Authorizer:     authorizer,
			API:            api,
			Logger:         logger,
			Metrics:        consolesrv.NewMetrics(),
			LoginRate:      cfg.Settings.ConsoleLoginRate,
			RequestTimeout: cfg.Settings.RequestTimeout,
		})
		if err != nil {
			return err
		}
		defer handler.Close()

		srv := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: cfg.Settings.RequestTimeout + 5*time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			serverErrors <- srv.ListenAndServe()
		}()
		pterm.Info.Printf("Console listening on http://%s\n", addr)

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		resync := make(chan os.Signal, 1)
		signal.Notify(resync, syscall.SIGHUP)
		defer signal.Stop(resync)

		for {
			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("console server error: %w", err)

			case sig := <-resync:
				if err := ctrl.Sync(cmd.Context()); err != nil {
					logger.Warn("session resync failed", slog.String("signal", sig.String()), slog.Any("error", err))
				} else {
					logger.Info("session resynced", slog.String("signal", sig.String()), slog.String("state", ctrl.State().String()))
				}

			case sig := <-shutdown:
				logger.Info("shutting down console", slog.String("signal", sig.String()))

				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}
				pterm.Info.Println("Console stopped")
				return nil
			}
		}
	},
}

func init() {
	ConsoleCmd.Flags().StringVar(&listenAddr, "addr", "127.0.0.1:8090", "Listen address (CAMPUS_CONSOLE_ADDR)")
}
