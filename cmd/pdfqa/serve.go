package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/pdfqa/internal/bot"
	"github.com/hyperjump/pdfqa/internal/config"
	"github.com/hyperjump/pdfqa/internal/server"
)

const shutdownTimeout = 10 * time.Second

var webCmd = &cobra.Command{
	Use:   "web",
	Short: "Run the web front-end",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFrontends(cmd.Context(), true, false)
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFrontends(cmd.Context(), false, true)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web front-end and the Telegram bot together",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFrontends(cmd.Context(), true, true)
	},
}

func init() {
	rootCmd.AddCommand(webCmd, botCmd, serveCmd)
}

// runFrontends starts the selected front-ends over one shared pipeline and session store, and
// blocks until ctx is cancelled or one of them fails.
func runFrontends(ctx context.Context, web, telegram bool) error {
	cfg, logger, err := setup("pdfqa")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var token string
	if telegram {
		env, err := requireEnv(cfg.Bot.TokenEnv)
		if err != nil {
			return err
		}
		token = env[cfg.Bot.TokenEnv]
	}

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize components", zap.Error(err))
		return err
	}
	defer components.Close()

	var b *bot.Bot
	if telegram {
		if b, err = newBot(token, cfg, components, logger); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if web {
		srv := server.NewServer(components.Indexer, components.RAG, components.Store, components.Locker,
			&cfg.Server, logger.Named("web"))
		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("web server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down web server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Stop(shutdownCtx)
		})
	}
	if b != nil {
		g.Go(func() error { return b.Run(gctx) })
	}

	err = g.Wait()
	logger.Info("Stopped")
	return err
}

func newBot(token string, cfg *config.Config, c *Components, logger *zap.Logger) (*bot.Bot, error) {
	api, err := bot.Connect(token, cfg.Debug || debugFlag)
	if err != nil {
		return nil, err
	}
	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))
	return bot.New(api, c.Indexer, c.RAG, c.Store, &cfg.Bot,
		bot.WithLogger(logger.Named("bot")),
		bot.WithLocker(c.Locker),
	), nil
}
