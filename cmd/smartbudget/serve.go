package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"smartbudget/internal/config"
	"smartbudget/internal/handlers"
	"smartbudget/internal/wa"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP chat API (and WhatsApp when enabled)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.HTTPListenAddr = addr
			}
			logger := newLogger(cfg, os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := wireApp(ctx, cfg, logger, wireOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			go a.sessions.Run(ctx)

			if cfg.WhatsAppEnabled {
				gateway, err := wa.New(ctx, wa.Config{
					StorePath: cfg.WhatsAppStorePath,
					LogLevel:  cfg.WhatsAppLogLevel,
				}, a.engine, a.metrics, logger)
				if err != nil {
					return fmt.Errorf("init whatsapp: %w", err)
				}
				defer func() {
					if err := gateway.Close(); err != nil {
						logger.Warn("close whatsapp failed", "error", err)
					}
				}()
				if err := gateway.Start(ctx); err != nil {
					return err
				}
			}

			server := handlers.NewChatServer(a.engine, a.metrics, a.registry, logger)
			return server.ListenAndServe(ctx, cfg.HTTPListenAddr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_LISTEN_ADDR)")
	return cmd
}
