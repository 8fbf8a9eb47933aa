package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tyrowin/gopresence/internal/moderation"
	"github.com/Tyrowin/gopresence/internal/presence"
	"github.com/Tyrowin/gopresence/internal/server"
	"github.com/Tyrowin/gopresence/internal/storage"
)

func serveCmd() *cobra.Command {
	var (
		port       string
		badgerPath string
		origins    []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.NewConfigFromEnv()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("badger") {
				cfg.BadgerPath = badgerPath
			}
			if cmd.Flags().Changed("origin") {
				cfg.AllowedOrigins = origins
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&port, "port", ":8080", "listen address; overrides SERVER_PORT")
	cmd.Flags().StringVar(&badgerPath, "badger", "", "BadgerDB directory, empty for in-memory; overrides BADGER_PATH")
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "allowed WebSocket origin, repeatable, * for any; overrides ALLOWED_ORIGINS")
	return cmd
}

// runServe owns the relay lifecycle so that deferred cleanup always runs.
func runServe(parent context.Context, cfg *server.Config) error {
	log := newLogger(cfg.LogLevel)

	store, err := storage.Open(cfg.BadgerPath, log)
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	var opts []presence.RouterOption
	if len(cfg.ModerationWords) > 0 {
		moderator, err := moderation.NewModerator(cfg.ModerationWords, moderation.DefaultReplacement)
		if err != nil {
			return fmt.Errorf("moderation setup failed: %w", err)
		}
		opts = append(opts, presence.WithCensor(moderator))
		log.Info("Moderation enabled", "words", len(cfg.ModerationWords))
	}

	relay := server.New(cfg, log, store, opts...)
	relay.Start()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := server.CreateServer(relay.Config().Port, relay.Handler())
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.StartServer(httpServer, log)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		if err != nil {
			_ = relay.Shutdown(cfg.ShutdownTimeout)
			return fmt.Errorf("http server error: %w", err)
		}
	}

	timeout := relay.Config().ShutdownTimeout
	if err := server.ShutdownServer(httpServer, timeout, log); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := relay.Shutdown(timeout); err != nil {
		log.Warn("Hub shutdown incomplete", "error", err)
	}
	log.Info("Relay stopped cleanly")
	return nil
}
