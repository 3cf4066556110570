package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docview/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the rendered document as a local preview page",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := newApp(ctx, cfg, os.Stdout, nil)
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.log

		// A failed load still serves the page with the fallback message.
		if err := a.session.Load(ctx); err != nil {
			log.Warn("initial load failed", "error", err)
		}

		srv := api.NewServer(a.session, a.reg, log, cfg)
		httpServer := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		ln, err := net.Listen("tcp", httpServer.Addr)
		if err != nil {
			return err
		}

		a.precache(ctx)

		// Graceful shutdown.
		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.Info("shutting down...")
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			httpServer.Shutdown(shutdownCtx)
		}()

		log.Info("starting docview", "port", cfg.Port, "document", cfg.DocumentURL, "session", a.session.ID)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
